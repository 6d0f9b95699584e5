package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic-booking-api/internal/delivery/dto"
	"clinic-booking-api/internal/delivery/http/middleware"
	"clinic-booking-api/internal/domain/entity"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func adminContext() context.Context {
	ctx := context.WithValue(context.Background(), middleware.UserIDKey, uuid.New())
	return context.WithValue(ctx, middleware.RoleIDKey, entity.RoleIDAdmin)
}

func doctorContext(doctorID uuid.UUID) context.Context {
	ctx := context.WithValue(context.Background(), middleware.UserIDKey, doctorID)
	return context.WithValue(ctx, middleware.RoleIDKey, entity.RoleIDDoctor)
}

type fakeScheduleRepo struct {
	schedules      map[int]*entity.DoctorSchedule
	nextID         int
	createErr      error
	replaceDaysErr error
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: make(map[int]*entity.DoctorSchedule), nextID: 1}
}

func (f *fakeScheduleRepo) add(s *entity.DoctorSchedule) *entity.DoctorSchedule {
	s.ID = f.nextID
	f.nextID++
	f.schedules[s.ID] = s
	return s
}

func (f *fakeScheduleRepo) Create(_ *gorm.DB, s *entity.DoctorSchedule) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.add(s)
	return nil
}

func (f *fakeScheduleRepo) FindByID(_ *gorm.DB, id int) (*entity.DoctorSchedule, error) {
	return f.schedules[id], nil
}

func (f *fakeScheduleRepo) FindByDoctorID(_ *gorm.DB, doctorID uuid.UUID) ([]entity.DoctorSchedule, error) {
	var out []entity.DoctorSchedule
	for _, s := range f.schedules {
		if s.DoctorID == doctorID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) FindForWeek(_ *gorm.DB, doctorID uuid.UUID, date time.Time) (*entity.DoctorSchedule, error) {
	for _, s := range f.schedules {
		if s.DoctorID == doctorID && s.CoversDate(date) {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeScheduleRepo) FindGeneral(_ *gorm.DB, doctorID uuid.UUID) (*entity.DoctorSchedule, error) {
	for _, s := range f.schedules {
		if s.DoctorID == doctorID && s.IsGeneral() {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeScheduleRepo) FindAny(_ *gorm.DB, doctorID uuid.UUID) (*entity.DoctorSchedule, error) {
	for _, s := range f.schedules {
		if s.DoctorID == doctorID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeScheduleRepo) Update(_ *gorm.DB, s *entity.DoctorSchedule) error {
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeScheduleRepo) ReplaceDays(_ *gorm.DB, scheduleID int, days []entity.DaySchedule) error {
	if f.replaceDaysErr != nil {
		return f.replaceDaysErr
	}
	if s, ok := f.schedules[scheduleID]; ok {
		s.Days = days
	}
	return nil
}

func (f *fakeScheduleRepo) Delete(_ *gorm.DB, id int) (int64, error) {
	if _, ok := f.schedules[id]; !ok {
		return 0, nil
	}
	delete(f.schedules, id)
	return 1, nil
}

type fakeInvalidator struct {
	doctors []uuid.UUID
}

func (f *fakeInvalidator) InvalidateDoctorSlots(_ context.Context, doctorID uuid.UUID) {
	f.doctors = append(f.doctors, doctorID)
}

type scheduleFixture struct {
	usecase     ScheduleUsecase
	repo        *fakeScheduleRepo
	invalidator *fakeInvalidator
	doctorID    uuid.UUID
	mock        sqlmock.Sqlmock
}

func newScheduleFixture(t *testing.T) *scheduleFixture {
	t.Helper()
	doctorID := uuid.New()
	f := &scheduleFixture{
		repo:        newFakeScheduleRepo(),
		invalidator: &fakeInvalidator{},
		doctorID:    doctorID,
	}
	db, mock := txTestDB(t)
	f.mock = mock
	f.usecase = NewScheduleUsecase(db, logrus.New(), f.repo, newFakeDoctorRepo(doctorID), f.invalidator, &fakeAuditService{})
	return f
}

func workingDays() []dto.DayScheduleRequest {
	return []dto.DayScheduleRequest{
		{
			DayOfWeek:    entity.Monday,
			MorningStart: "09:00",
			MorningEnd:   "12:00",
			EveningStart: "14:00",
			EveningEnd:   "18:00",
			SlotDuration: 30,
		},
		{DayOfWeek: entity.Sunday, IsOffDay: true, SlotDuration: 30},
	}
}

func TestCreateSchedule(t *testing.T) {
	t.Run("creates a general schedule with materialized slots", func(t *testing.T) {
		f := newScheduleFixture(t)

		resp, err := f.usecase.CreateSchedule(adminContext(), &dto.CreateScheduleRequest{
			DoctorID: f.doctorID,
			Days:     workingDays(),
		})
		require.NoError(t, err)
		assert.True(t, resp.General)
		require.Len(t, resp.Days, 2)

		monday := resp.Days[0]
		assert.Equal(t, entity.Monday, monday.DayOfWeek)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, monday.MorningSlots)
		assert.Equal(t, []string{"14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00", "17:30"}, monday.EveningSlots)

		sunday := resp.Days[1]
		assert.True(t, sunday.IsOffDay)
		assert.Empty(t, sunday.MorningSlots)

		assert.Equal(t, []uuid.UUID{f.doctorID}, f.invalidator.doctors)
	})

	t.Run("second general schedule for the same doctor is rejected", func(t *testing.T) {
		f := newScheduleFixture(t)
		f.repo.add(&entity.DoctorSchedule{DoctorID: f.doctorID})

		_, err := f.usecase.CreateSchedule(adminContext(), &dto.CreateScheduleRequest{
			DoctorID: f.doctorID,
			Days:     workingDays(),
		})
		assert.ErrorIs(t, err, ErrGeneralScheduleExists)
	})

	t.Run("creates a week-specific schedule", func(t *testing.T) {
		f := newScheduleFixture(t)

		resp, err := f.usecase.CreateSchedule(adminContext(), &dto.CreateScheduleRequest{
			DoctorID:  f.doctorID,
			WeekStart: "2030-01-07",
			WeekEnd:   "2030-01-13",
			Days:      workingDays(),
		})
		require.NoError(t, err)
		assert.False(t, resp.General)
		assert.Equal(t, "2030-01-07", resp.WeekStart)
		assert.Equal(t, "2030-01-13", resp.WeekEnd)
	})

	t.Run("overlapping week-specific schedules are rejected", func(t *testing.T) {
		f := newScheduleFixture(t)
		start := time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
		end := time.Date(2030, 1, 13, 0, 0, 0, 0, time.UTC)
		f.repo.add(&entity.DoctorSchedule{DoctorID: f.doctorID, WeekStart: &start, WeekEnd: &end})

		_, err := f.usecase.CreateSchedule(adminContext(), &dto.CreateScheduleRequest{
			DoctorID:  f.doctorID,
			WeekStart: "2030-01-10",
			WeekEnd:   "2030-01-16",
			Days:      workingDays(),
		})
		assert.ErrorIs(t, err, ErrWeekOverlap)
	})

	t.Run("adjacent weeks do not overlap", func(t *testing.T) {
		f := newScheduleFixture(t)
		start := time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
		end := time.Date(2030, 1, 13, 0, 0, 0, 0, time.UTC)
		f.repo.add(&entity.DoctorSchedule{DoctorID: f.doctorID, WeekStart: &start, WeekEnd: &end})

		_, err := f.usecase.CreateSchedule(adminContext(), &dto.CreateScheduleRequest{
			DoctorID:  f.doctorID,
			WeekStart: "2030-01-14",
			WeekEnd:   "2030-01-20",
			Days:      workingDays(),
		})
		assert.NoError(t, err)
	})

	t.Run("one-sided week bounds are rejected", func(t *testing.T) {
		f := newScheduleFixture(t)

		_, err := f.usecase.CreateSchedule(adminContext(), &dto.CreateScheduleRequest{
			DoctorID:  f.doctorID,
			WeekStart: "2030-01-07",
			Days:      workingDays(),
		})
		assert.ErrorIs(t, err, ErrInvalidWeekBounds)
	})

	t.Run("inverted week bounds are rejected", func(t *testing.T) {
		f := newScheduleFixture(t)

		_, err := f.usecase.CreateSchedule(adminContext(), &dto.CreateScheduleRequest{
			DoctorID:  f.doctorID,
			WeekStart: "2030-01-13",
			WeekEnd:   "2030-01-07",
			Days:      workingDays(),
		})
		assert.ErrorIs(t, err, ErrInvalidWeekBounds)
	})

	t.Run("duplicate weekday entries are rejected", func(t *testing.T) {
		f := newScheduleFixture(t)
		days := workingDays()
		days = append(days, days[0])

		_, err := f.usecase.CreateSchedule(adminContext(), &dto.CreateScheduleRequest{
			DoctorID: f.doctorID,
			Days:     days,
		})
		assert.ErrorIs(t, err, ErrDuplicateDay)
	})

	t.Run("doctors cannot create schedules for other doctors", func(t *testing.T) {
		f := newScheduleFixture(t)

		_, err := f.usecase.CreateSchedule(doctorContext(uuid.New()), &dto.CreateScheduleRequest{
			DoctorID: f.doctorID,
			Days:     workingDays(),
		})
		assert.ErrorIs(t, err, ErrScheduleNotOwned)
	})

	t.Run("doctors can create their own schedules", func(t *testing.T) {
		f := newScheduleFixture(t)

		_, err := f.usecase.CreateSchedule(doctorContext(f.doctorID), &dto.CreateScheduleRequest{
			DoctorID: f.doctorID,
			Days:     workingDays(),
		})
		assert.NoError(t, err)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		f := newScheduleFixture(t)

		_, err := f.usecase.CreateSchedule(adminContext(), &dto.CreateScheduleRequest{
			DoctorID: uuid.New(),
			Days:     workingDays(),
		})
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})
}

func TestUpdateSchedule(t *testing.T) {
	t.Run("replacing days re-materializes the slot caches", func(t *testing.T) {
		f := newScheduleFixture(t)
		sched := f.repo.add(&entity.DoctorSchedule{DoctorID: f.doctorID})
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()

		resp, err := f.usecase.UpdateSchedule(adminContext(), sched.ID, &dto.UpdateScheduleRequest{
			Days: []dto.DayScheduleRequest{
				{DayOfWeek: entity.Friday, MorningStart: "10:00", MorningEnd: "11:00", SlotDuration: 20},
			},
		})
		require.NoError(t, err)
		require.Len(t, resp.Days, 1)
		assert.Equal(t, []string{"10:00", "10:20", "10:40"}, resp.Days[0].MorningSlots)
		assert.Equal(t, []uuid.UUID{f.doctorID}, f.invalidator.doctors)
	})

	t.Run("cannot convert to general when one already exists", func(t *testing.T) {
		f := newScheduleFixture(t)
		f.repo.add(&entity.DoctorSchedule{DoctorID: f.doctorID}) // general
		start := time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
		end := time.Date(2030, 1, 13, 0, 0, 0, 0, time.UTC)
		weekly := f.repo.add(&entity.DoctorSchedule{DoctorID: f.doctorID, WeekStart: &start, WeekEnd: &end})
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()

		empty := ""
		_, err := f.usecase.UpdateSchedule(adminContext(), weekly.ID, &dto.UpdateScheduleRequest{
			WeekStart: &empty,
			WeekEnd:   &empty,
		})
		assert.ErrorIs(t, err, ErrGeneralScheduleExists)
	})

	t.Run("failed day replacement rolls back the bounds update", func(t *testing.T) {
		f := newScheduleFixture(t)
		sched := f.repo.add(&entity.DoctorSchedule{DoctorID: f.doctorID})
		f.repo.replaceDaysErr = errors.New("insert failed")
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()

		start, end := "2030-01-07", "2030-01-13"
		_, err := f.usecase.UpdateSchedule(adminContext(), sched.ID, &dto.UpdateScheduleRequest{
			WeekStart: &start,
			WeekEnd:   &end,
			Days:      workingDays(),
		})
		require.Error(t, err)
		assert.NoError(t, f.mock.ExpectationsWereMet())
		assert.Empty(t, f.invalidator.doctors)
	})

	t.Run("unknown schedule", func(t *testing.T) {
		f := newScheduleFixture(t)
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()

		_, err := f.usecase.UpdateSchedule(adminContext(), 42, &dto.UpdateScheduleRequest{})
		assert.ErrorIs(t, err, ErrScheduleNotFound)
	})
}

func TestDeleteSchedule(t *testing.T) {
	t.Run("deletes and invalidates the slot cache", func(t *testing.T) {
		f := newScheduleFixture(t)
		sched := f.repo.add(&entity.DoctorSchedule{DoctorID: f.doctorID})

		require.NoError(t, f.usecase.DeleteSchedule(adminContext(), sched.ID))
		assert.Empty(t, f.repo.schedules)
		assert.Equal(t, []uuid.UUID{f.doctorID}, f.invalidator.doctors)
	})

	t.Run("doctors cannot delete another doctor's schedule", func(t *testing.T) {
		f := newScheduleFixture(t)
		sched := f.repo.add(&entity.DoctorSchedule{DoctorID: f.doctorID})

		err := f.usecase.DeleteSchedule(doctorContext(uuid.New()), sched.ID)
		assert.ErrorIs(t, err, ErrScheduleNotOwned)
		assert.Len(t, f.repo.schedules, 1)
	})

	t.Run("unknown schedule", func(t *testing.T) {
		f := newScheduleFixture(t)
		assert.ErrorIs(t, f.usecase.DeleteSchedule(adminContext(), 9), ErrScheduleNotFound)
	})
}
