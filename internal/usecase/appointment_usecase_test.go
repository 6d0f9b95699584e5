package usecase

import (
	"context"
	"testing"
	"time"

	"clinic-booking-api/internal/delivery/dto"
	"clinic-booking-api/internal/delivery/http/middleware"
	"clinic-booking-api/internal/domain/entity"
	"clinic-booking-api/internal/schedule"
	"clinic-booking-api/internal/service"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB builds a *gorm.DB that is never queried: repositories are faked
// and ignore it, but the usecases still attach the request context to it.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=127.0.0.1 user=test dbname=test"), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

// txTestDB is like testDB but backed by sqlmock, for usecases that open
// real transactions. Tests declare the expected Begin/Commit/Rollback.
func txTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func patientContext(userID uuid.UUID) context.Context {
	ctx := context.WithValue(context.Background(), middleware.UserIDKey, userID)
	return context.WithValue(ctx, middleware.RoleIDKey, entity.RoleIDPatient)
}

func duplicateKeyErr(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// -- Fakes --

type fakeAppointmentRepo struct {
	stored     map[uuid.UUID]*entity.Appointment
	conflict   *entity.Appointment
	createErrs []error // consumed per Create call; nil entry means success
	createCall int

	rescheduleErr  error
	statusAffected int64

	lastExcludeID uuid.UUID
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{stored: make(map[uuid.UUID]*entity.Appointment), statusAffected: 1}
}

func (f *fakeAppointmentRepo) Create(_ *gorm.DB, appointment *entity.Appointment) error {
	f.createCall++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()
	clone := *appointment
	f.stored[appointment.ID] = &clone
	return nil
}

func (f *fakeAppointmentRepo) FindByID(_ *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	a, ok := f.stored[id]
	if !ok {
		return nil, nil
	}
	clone := *a
	return &clone, nil
}

func (f *fakeAppointmentRepo) FindByKey(_ *gorm.DB, key string) (*entity.Appointment, error) {
	for _, a := range f.stored {
		if a.AppointmentKey == key {
			clone := *a
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeAppointmentRepo) FindByPatientID(_ *gorm.DB, patientID uuid.UUID) ([]entity.Appointment, error) {
	var out []entity.Appointment
	for _, a := range f.stored {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) FindByDoctorAndDate(_ *gorm.DB, doctorID uuid.UUID, date time.Time) ([]entity.Appointment, error) {
	var out []entity.Appointment
	for _, a := range f.stored {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) FindConflict(_ *gorm.DB, _ uuid.UUID, _ time.Time, _ string, _ []entity.AppointmentStatus, excludeID uuid.UUID) (*entity.Appointment, error) {
	f.lastExcludeID = excludeID
	if f.conflict != nil && f.conflict.ID == excludeID {
		return nil, nil
	}
	return f.conflict, nil
}

func (f *fakeAppointmentRepo) UpdateStatusIf(_ *gorm.DB, id uuid.UUID, newStatus entity.AppointmentStatus, _ []entity.AppointmentStatus) (int64, error) {
	if f.statusAffected > 0 {
		if a, ok := f.stored[id]; ok {
			a.Status = newStatus
		}
	}
	return f.statusAffected, nil
}

func (f *fakeAppointmentRepo) Reschedule(_ *gorm.DB, id uuid.UUID, newDate time.Time, newTime string) error {
	if f.rescheduleErr != nil {
		return f.rescheduleErr
	}
	if a, ok := f.stored[id]; ok {
		a.Date = newDate
		a.Time = newTime
	}
	return nil
}

type fakeDoctorRepo struct {
	profiles map[uuid.UUID]*entity.DoctorProfile
}

func newFakeDoctorRepo(ids ...uuid.UUID) *fakeDoctorRepo {
	f := &fakeDoctorRepo{profiles: make(map[uuid.UUID]*entity.DoctorProfile)}
	for _, id := range ids {
		f.profiles[id] = &entity.DoctorProfile{UserID: id}
	}
	return f
}

func (f *fakeDoctorRepo) Create(_ *gorm.DB, profile *entity.DoctorProfile) error {
	f.profiles[profile.UserID] = profile
	return nil
}

func (f *fakeDoctorRepo) FindByUserID(_ *gorm.DB, userID uuid.UUID) (*entity.DoctorProfile, error) {
	return f.profiles[userID], nil
}

func (f *fakeDoctorRepo) FindAll(_ *gorm.DB) ([]entity.DoctorProfile, error) {
	var out []entity.DoctorProfile
	for _, p := range f.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeDoctorRepo) Update(_ *gorm.DB, profile *entity.DoctorProfile) error {
	f.profiles[profile.UserID] = profile
	return nil
}

func (f *fakeDoctorRepo) Delete(_ *gorm.DB, userID uuid.UUID) error {
	delete(f.profiles, userID)
	return nil
}

type fakeSlotHold struct {
	acquireErr  error
	acquired    int
	released    int
	invalidated []string
}

func (f *fakeSlotHold) AcquireHold(_ context.Context, _ uuid.UUID, _, _ string) (string, error) {
	if f.acquireErr != nil {
		return "", f.acquireErr
	}
	f.acquired++
	return "token", nil
}

func (f *fakeSlotHold) ReleaseHold(_ context.Context, _ uuid.UUID, _, _, _ string) {
	f.released++
}

func (f *fakeSlotHold) InvalidateDay(_ context.Context, _ uuid.UUID, date string) {
	f.invalidated = append(f.invalidated, date)
}

type fakeResolver struct {
	resolved *schedule.ResolvedDay
	err      error
}

func (f *fakeResolver) Resolve(_ *gorm.DB, _ uuid.UUID, _ time.Time) (*schedule.ResolvedDay, error) {
	return f.resolved, f.err
}

type fakeAuditService struct {
	entries int
}

func (f *fakeAuditService) LogCreate(_ context.Context, _ *gorm.DB, _ *uuid.UUID, _ string, _ string, _ string, _ interface{}) error {
	f.entries++
	return nil
}

func (f *fakeAuditService) LogUpdate(_ context.Context, _ *gorm.DB, _ *uuid.UUID, _ string, _ string, _ string, _, _ interface{}) error {
	f.entries++
	return nil
}

func (f *fakeAuditService) LogDelete(_ context.Context, _ *gorm.DB, _ *uuid.UUID, _ string, _ string, _ string, _ interface{}) error {
	f.entries++
	return nil
}

// -- Test harness --

type bookingFixture struct {
	usecase  AppointmentUsecase
	repo     *fakeAppointmentRepo
	doctors  *fakeDoctorRepo
	hold     *fakeSlotHold
	resolver *fakeResolver
	audit    *fakeAuditService
	doctorID uuid.UUID
	ctx      context.Context
	userID   uuid.UUID
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	doctorID := uuid.New()
	userID := uuid.New()
	day := entity.DaySchedule{
		DayOfWeek:    entity.Monday,
		MorningStart: "09:00",
		MorningEnd:   "12:00",
		EveningStart: "14:00",
		EveningEnd:   "18:00",
		SlotDuration: 30,
	}

	f := &bookingFixture{
		repo:     newFakeAppointmentRepo(),
		doctors:  newFakeDoctorRepo(doctorID),
		hold:     &fakeSlotHold{},
		resolver: &fakeResolver{resolved: &schedule.ResolvedDay{Day: &day, Provenance: schedule.ProvenanceGeneral}},
		audit:    &fakeAuditService{},
		doctorID: doctorID,
		userID:   userID,
		ctx:      patientContext(userID),
	}
	log := logrus.New()
	f.usecase = NewAppointmentUsecase(testDB(t), log, f.repo, f.doctors, f.resolver, f.hold, f.audit)
	return f
}

// futureMonday returns the next Monday strictly in the future, formatted
// as YYYY-MM-DD.
func futureMonday() string {
	d := time.Now().UTC().AddDate(0, 0, 1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format(entity.DateLayout)
}

func TestBookAppointment(t *testing.T) {
	t.Run("books a pending appointment with a six digit key", func(t *testing.T) {
		f := newBookingFixture(t)

		resp, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "09:30",
			Reason:   "checkup",
		})
		require.NoError(t, err)
		assert.Equal(t, string(entity.AppointmentStatusPending), resp.Status)
		assert.Len(t, resp.AppointmentKey, 6)
		assert.Equal(t, f.userID, resp.PatientID)
		assert.Equal(t, "09:30", resp.Time)
		assert.Equal(t, 1, f.hold.acquired)
		assert.Equal(t, 1, f.hold.released)
		assert.Equal(t, []string{futureMonday()}, f.hold.invalidated)
		assert.Equal(t, 1, f.audit.entries)
	})

	t.Run("normalizes single digit hour before slot comparison", func(t *testing.T) {
		f := newBookingFixture(t)

		resp, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "9:30",
		})
		require.NoError(t, err)
		assert.Equal(t, "09:30", resp.Time)
	})

	t.Run("rejects a time outside the resolved slot set", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "12:30", // between sessions
		})
		assert.ErrorIs(t, err, ErrSlotNotInSchedule)
		assert.Equal(t, 0, f.repo.createCall)
	})

	t.Run("rejects the end bound of a session window", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "12:00",
		})
		assert.ErrorIs(t, err, ErrSlotNotInSchedule)
	})

	t.Run("rejects past dates", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     "2020-01-06",
			Time:     "09:00",
		})
		assert.ErrorIs(t, err, ErrPastDate)
	})

	t.Run("rejects malformed date and time", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     "06-01-2030",
			Time:     "09:00",
		})
		assert.ErrorIs(t, err, ErrInvalidDate)

		_, err = f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "9.30",
		})
		assert.ErrorIs(t, err, ErrInvalidTime)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: uuid.New(),
			Date:     futureMonday(),
			Time:     "09:00",
		})
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("held slot is reported as already booked", func(t *testing.T) {
		f := newBookingFixture(t)
		f.hold.acquireErr = service.ErrSlotHeld

		_, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "09:00",
		})
		assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
		assert.Equal(t, 0, f.repo.createCall)
	})

	t.Run("active conflict blocks the booking", func(t *testing.T) {
		f := newBookingFixture(t)
		f.repo.conflict = &entity.Appointment{ID: uuid.New(), Status: entity.AppointmentStatusConfirmed}

		_, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "09:00",
		})
		assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	})

	t.Run("unique index violation on insert means the slot was lost", func(t *testing.T) {
		f := newBookingFixture(t)
		f.repo.createErrs = []error{duplicateKeyErr("uniq_appointments_active_slot")}

		_, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "09:00",
		})
		assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	})

	t.Run("retries on appointment key collision", func(t *testing.T) {
		f := newBookingFixture(t)
		f.repo.createErrs = []error{duplicateKeyErr("idx_appointments_appointment_key"), nil}

		resp, err := f.usecase.BookAppointment(f.ctx, &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "09:00",
		})
		require.NoError(t, err)
		assert.Len(t, resp.AppointmentKey, 6)
		assert.Equal(t, 2, f.repo.createCall)
	})
}

func TestCancelAppointment(t *testing.T) {
	seed := func(f *bookingFixture, status entity.AppointmentStatus) uuid.UUID {
		id := uuid.New()
		f.repo.stored[id] = &entity.Appointment{
			ID:        id,
			DoctorID:  f.doctorID,
			PatientID: f.userID,
			Date:      time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC),
			Time:      "09:00",
			Status:    status,
		}
		return id
	}

	t.Run("cancels an active appointment and frees the day cache", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusPending)

		err := f.usecase.CancelAppointment(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entity.AppointmentStatusCancelled, f.repo.stored[id].Status)
		assert.Equal(t, []string{"2030-01-07"}, f.hold.invalidated)
	})

	t.Run("double cancel is rejected", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusCancelled)

		err := f.usecase.CancelAppointment(f.ctx, id)
		assert.ErrorIs(t, err, ErrAppointmentAlreadyCancelled)
	})

	t.Run("losing the status race is reported as already cancelled", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusPending)
		f.repo.statusAffected = 0

		err := f.usecase.CancelAppointment(f.ctx, id)
		assert.ErrorIs(t, err, ErrAppointmentAlreadyCancelled)
	})

	t.Run("other patients cannot cancel", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusPending)

		err := f.usecase.CancelAppointment(patientContext(uuid.New()), id)
		assert.ErrorIs(t, err, ErrAppointmentNotOwned)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		f := newBookingFixture(t)
		err := f.usecase.CancelAppointment(f.ctx, uuid.New())
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
	})

	t.Run("cancelled slot can be booked again", func(t *testing.T) {
		f := newBookingFixture(t)
		req := &dto.BookAppointmentRequest{
			DoctorID: f.doctorID,
			Date:     futureMonday(),
			Time:     "09:30",
		}

		first, err := f.usecase.BookAppointment(f.ctx, req)
		require.NoError(t, err)

		f.repo.conflict = f.repo.stored[first.ID]
		_, err = f.usecase.BookAppointment(patientContext(uuid.New()), req)
		assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

		require.NoError(t, f.usecase.CancelAppointment(f.ctx, first.ID))
		f.repo.conflict = nil

		second, err := f.usecase.BookAppointment(patientContext(uuid.New()), req)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestRescheduleAppointment(t *testing.T) {
	seed := func(f *bookingFixture, status entity.AppointmentStatus) uuid.UUID {
		id := uuid.New()
		f.repo.stored[id] = &entity.Appointment{
			ID:             id,
			AppointmentKey: "123456",
			DoctorID:       f.doctorID,
			PatientID:      f.userID,
			Date:           time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC),
			Time:           "09:00",
			Status:         status,
		}
		return id
	}

	t.Run("moves the appointment and keeps its key", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusConfirmed)

		resp, err := f.usecase.RescheduleAppointment(f.ctx, id, &dto.RescheduleAppointmentRequest{
			Date: futureMonday(),
			Time: "10:30",
		})
		require.NoError(t, err)
		assert.Equal(t, "123456", resp.AppointmentKey)
		assert.Equal(t, "10:30", resp.Time)
		assert.Equal(t, futureMonday(), resp.Date)
		// Both the old and the new day caches are dropped.
		assert.Equal(t, []string{"2030-01-07", futureMonday()}, f.hold.invalidated)
	})

	t.Run("own record is excluded from the conflict check", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusPending)
		f.repo.conflict = f.repo.stored[id]

		_, err := f.usecase.RescheduleAppointment(f.ctx, id, &dto.RescheduleAppointmentRequest{
			Date: futureMonday(),
			Time: "10:30",
		})
		require.NoError(t, err)
		assert.Equal(t, id, f.repo.lastExcludeID)
	})

	t.Run("cancelled appointments cannot be rescheduled", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusCancelled)

		_, err := f.usecase.RescheduleAppointment(f.ctx, id, &dto.RescheduleAppointmentRequest{
			Date: futureMonday(),
			Time: "10:30",
		})
		assert.ErrorIs(t, err, ErrAppointmentNotActive)
	})

	t.Run("conflicting appointment blocks the move", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusPending)
		f.repo.conflict = &entity.Appointment{ID: uuid.New(), Status: entity.AppointmentStatusPending}

		_, err := f.usecase.RescheduleAppointment(f.ctx, id, &dto.RescheduleAppointmentRequest{
			Date: futureMonday(),
			Time: "10:30",
		})
		assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	})

	t.Run("unique index violation on update means the slot was lost", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusPending)
		f.repo.rescheduleErr = duplicateKeyErr("uniq_appointments_active_slot")

		_, err := f.usecase.RescheduleAppointment(f.ctx, id, &dto.RescheduleAppointmentRequest{
			Date: futureMonday(),
			Time: "10:30",
		})
		assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	})

	t.Run("other patients cannot reschedule", func(t *testing.T) {
		f := newBookingFixture(t)
		id := seed(f, entity.AppointmentStatusPending)

		_, err := f.usecase.RescheduleAppointment(patientContext(uuid.New()), id, &dto.RescheduleAppointmentRequest{
			Date: futureMonday(),
			Time: "10:30",
		})
		assert.ErrorIs(t, err, ErrAppointmentNotOwned)
	})
}

func TestGenerateAppointmentKey(t *testing.T) {
	for i := 0; i < 100; i++ {
		key, err := generateAppointmentKey()
		require.NoError(t, err)
		require.Len(t, key, 6)
		assert.GreaterOrEqual(t, key, "100000")
		assert.LessOrEqual(t, key, "999999")
	}
}
