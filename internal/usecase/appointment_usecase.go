package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"time"

	"clinic-booking-api/internal/converter"
	"clinic-booking-api/internal/delivery/dto"
	"clinic-booking-api/internal/delivery/http/middleware"
	"clinic-booking-api/internal/domain/entity"
	"clinic-booking-api/internal/domain/repository"
	"clinic-booking-api/internal/schedule"
	"clinic-booking-api/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAppointmentNotFound         = errors.New("appointment not found")
	ErrAppointmentNotOwned         = errors.New("appointment does not belong to you")
	ErrAppointmentNotActive        = errors.New("only pending or confirmed appointments can be rescheduled")
	ErrAppointmentAlreadyCancelled = errors.New("appointment is already cancelled")
	ErrSlotNotInSchedule           = errors.New("slot not in schedule")
	ErrSlotAlreadyBooked           = errors.New("slot already booked")
	ErrPastDate                    = errors.New("cannot book a past date")
	ErrInvalidDate                 = errors.New("invalid date format, use YYYY-MM-DD")
	ErrInvalidTime                 = errors.New("invalid time format, use HH:MM")
)

// Attempts to draw a free 6-digit appointment key before giving up.
const appointmentKeyAttempts = 5

// SlotHold is the Redis fast path the booking flow uses to shed the obvious
// loser of two concurrent attempts before either reaches PostgreSQL.
type SlotHold interface {
	AcquireHold(ctx context.Context, doctorID uuid.UUID, date, slotTime string) (string, error)
	ReleaseHold(ctx context.Context, doctorID uuid.UUID, date, slotTime, token string)
	InvalidateDay(ctx context.Context, doctorID uuid.UUID, date string)
}

// DayResolver resolves the applicable day schedule for a doctor and date.
type DayResolver interface {
	Resolve(db *gorm.DB, doctorID uuid.UUID, date time.Time) (*schedule.ResolvedDay, error)
}

type AppointmentUsecase interface {
	BookAppointment(ctx context.Context, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error)
	RescheduleAppointment(ctx context.Context, appointmentID uuid.UUID, req *dto.RescheduleAppointmentRequest) (*dto.AppointmentResponse, error)
	CancelAppointment(ctx context.Context, appointmentID uuid.UUID) error
	GetMyAppointments(ctx context.Context) (*dto.AppointmentListResponse, error)
	GetDoctorAppointments(ctx context.Context, doctorID uuid.UUID, date string) (*dto.AppointmentListResponse, error)
}

type appointmentUsecase struct {
	db                *gorm.DB
	log               *logrus.Logger
	appointmentRepo   repository.AppointmentRepository
	doctorProfileRepo repository.DoctorProfileRepository
	resolver          DayResolver
	slotHold          SlotHold
	auditService      service.AuditService
}

func NewAppointmentUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	doctorProfileRepo repository.DoctorProfileRepository,
	resolver DayResolver,
	slotHold SlotHold,
	auditService service.AuditService,
) AppointmentUsecase {
	return &appointmentUsecase{
		db:                db,
		log:               log,
		appointmentRepo:   appointmentRepo,
		doctorProfileRepo: doctorProfileRepo,
		resolver:          resolver,
		slotHold:          slotHold,
		auditService:      auditService,
	}
}

// BookAppointment books a slot for the logged-in patient.
//
// Flow:
//  1. Validate date/time and that the requested time is one of the slots the
//     schedule currently resolves to (rejects stale slot lists).
//  2. Acquire a short-lived Redis hold on (doctor, date, time).
//  3. Advisory conflict pre-check against active appointments.
//  4. Insert with status pending. The partial unique index on
//     (doctor_id, date, time) for active statuses is the authoritative
//     conflict signal: a unique violation here means another booking won.
func (u *appointmentUsecase) BookAppointment(ctx context.Context, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	date, slotTime, err := parseDateTime(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return nil, ErrPastDate
	}

	db := u.db.WithContext(ctx)

	// Validate doctor exists
	doctor, err := u.doctorProfileRepo.FindByUserID(db, req.DoctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", req.DoctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	// Step 1: the requested time must be in the currently resolved slot set
	if err := u.validateSlotInSchedule(db, req.DoctorID, date, slotTime); err != nil {
		return nil, err
	}

	// Step 2: Redis slot hold. A held slot is an early conflict; a Redis
	// failure is not - the database constraint below stays authoritative.
	token, err := u.slotHold.AcquireHold(ctx, req.DoctorID, req.Date, slotTime)
	if err != nil {
		if errors.Is(err, service.ErrSlotHeld) {
			return nil, ErrSlotAlreadyBooked
		}
		u.log.Warnf("Slot hold unavailable for doctor %s %s %s: %+v", req.DoctorID, req.Date, slotTime, err)
	}
	if token != "" {
		defer u.slotHold.ReleaseHold(ctx, req.DoctorID, req.Date, slotTime, token)
	}

	// Step 3: advisory pre-check to avoid a doomed insert
	conflict, err := u.appointmentRepo.FindConflict(db, req.DoctorID, date, slotTime, entity.ActiveStatuses, uuid.Nil)
	if err != nil {
		u.log.Warnf("Failed conflict pre-check for doctor %s %s %s: %+v", req.DoctorID, req.Date, slotTime, err)
		return nil, err
	}
	if conflict != nil {
		return nil, ErrSlotAlreadyBooked
	}

	// Step 4: insert, retrying only on appointment key collisions
	appointment, err := u.insertWithFreshKey(db, &entity.Appointment{
		DoctorID:  req.DoctorID,
		PatientID: userID,
		Date:      date,
		Time:      slotTime,
		Reason:    req.Reason,
		Status:    entity.AppointmentStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if err := u.auditService.LogCreate(ctx, db, &userID, entity.AuditActionAppointmentBook, "appointment", appointment.ID.String(), appointment); err != nil {
		u.log.Warnf("Failed to audit appointment %s: %+v", appointment.ID, err)
	}

	u.slotHold.InvalidateDay(ctx, req.DoctorID, req.Date)

	// Reload with doctor info for the response
	full, err := u.appointmentRepo.FindByID(db, appointment.ID)
	if err != nil || full == nil {
		u.log.Warnf("Failed to reload appointment %s: %+v", appointment.ID, err)
		return converter.AppointmentToResponse(appointment), nil
	}

	u.log.Infof("Appointment booked: id=%s, key=%s, doctor=%s, date=%s, time=%s",
		appointment.ID, appointment.AppointmentKey, req.DoctorID, req.Date, slotTime)
	return converter.AppointmentToResponse(full), nil
}

// RescheduleAppointment moves an active appointment to a new date/time after
// re-running the same validation and conflict checks against the new slot,
// excluding the appointment's own record from the conflict query. The ID and
// appointment key are preserved.
func (u *appointmentUsecase) RescheduleAppointment(ctx context.Context, appointmentID uuid.UUID, req *dto.RescheduleAppointmentRequest) (*dto.AppointmentResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	date, slotTime, err := parseDateTime(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return nil, ErrPastDate
	}

	db := u.db.WithContext(ctx)

	appointment, err := u.appointmentRepo.FindByID(db, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	if appointment.PatientID != userID {
		return nil, ErrAppointmentNotOwned
	}
	if !appointment.IsActive() {
		return nil, ErrAppointmentNotActive
	}

	if err := u.validateSlotInSchedule(db, appointment.DoctorID, date, slotTime); err != nil {
		return nil, err
	}

	token, err := u.slotHold.AcquireHold(ctx, appointment.DoctorID, req.Date, slotTime)
	if err != nil {
		if errors.Is(err, service.ErrSlotHeld) {
			return nil, ErrSlotAlreadyBooked
		}
		u.log.Warnf("Slot hold unavailable for doctor %s %s %s: %+v", appointment.DoctorID, req.Date, slotTime, err)
	}
	if token != "" {
		defer u.slotHold.ReleaseHold(ctx, appointment.DoctorID, req.Date, slotTime, token)
	}

	conflict, err := u.appointmentRepo.FindConflict(db, appointment.DoctorID, date, slotTime, entity.ActiveStatuses, appointment.ID)
	if err != nil {
		u.log.Warnf("Failed conflict pre-check for doctor %s %s %s: %+v", appointment.DoctorID, req.Date, slotTime, err)
		return nil, err
	}
	if conflict != nil {
		return nil, ErrSlotAlreadyBooked
	}

	oldDate := appointment.DateString()
	if err := u.appointmentRepo.Reschedule(db, appointment.ID, date, slotTime); err != nil {
		// The unique index also guards the UPDATE path.
		if isDuplicateKeyError(err, "active_slot") {
			return nil, ErrSlotAlreadyBooked
		}
		u.log.Warnf("Failed to reschedule appointment %s: %+v", appointment.ID, err)
		return nil, err
	}

	if err := u.auditService.LogUpdate(ctx, db, &userID, entity.AuditActionAppointmentReschedule, "appointment", appointment.ID.String(),
		map[string]interface{}{"date": oldDate, "time": appointment.Time},
		map[string]interface{}{"date": req.Date, "time": slotTime},
	); err != nil {
		u.log.Warnf("Failed to audit reschedule of %s: %+v", appointment.ID, err)
	}

	u.slotHold.InvalidateDay(ctx, appointment.DoctorID, oldDate)
	u.slotHold.InvalidateDay(ctx, appointment.DoctorID, req.Date)

	full, err := u.appointmentRepo.FindByID(db, appointment.ID)
	if err != nil || full == nil {
		u.log.Warnf("Failed to reload appointment %s: %+v", appointment.ID, err)
		appointment.Date = date
		appointment.Time = slotTime
		return converter.AppointmentToResponse(appointment), nil
	}

	u.log.Infof("Appointment rescheduled: id=%s, doctor=%s, date=%s, time=%s",
		appointment.ID, appointment.DoctorID, req.Date, slotTime)
	return converter.AppointmentToResponse(full), nil
}

// CancelAppointment cancels the patient's own appointment. The transition is
// a conditional UPDATE guarded by the current status, so cancelling an
// already-cancelled appointment is rejected rather than silently accepted.
func (u *appointmentUsecase) CancelAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return errors.New("user not found in context")
	}

	db := u.db.WithContext(ctx)

	appointment, err := u.appointmentRepo.FindByID(db, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return err
	}
	if appointment == nil {
		return ErrAppointmentNotFound
	}
	if appointment.PatientID != userID {
		return ErrAppointmentNotOwned
	}
	if appointment.IsCancelled() {
		return ErrAppointmentAlreadyCancelled
	}

	affected, err := u.appointmentRepo.UpdateStatusIf(db, appointment.ID, entity.AppointmentStatusCancelled, entity.ActiveStatuses)
	if err != nil {
		u.log.Warnf("Failed to cancel appointment %s: %+v", appointment.ID, err)
		return err
	}
	if affected == 0 {
		// Lost a race with another transition on the same appointment.
		return ErrAppointmentAlreadyCancelled
	}

	if err := u.auditService.LogUpdate(ctx, db, &userID, entity.AuditActionAppointmentCancel, "appointment", appointment.ID.String(),
		map[string]interface{}{"status": string(appointment.Status)},
		map[string]interface{}{"status": string(entity.AppointmentStatusCancelled)},
	); err != nil {
		u.log.Warnf("Failed to audit cancellation of %s: %+v", appointment.ID, err)
	}

	u.slotHold.InvalidateDay(ctx, appointment.DoctorID, appointment.DateString())

	u.log.Infof("Appointment cancelled: id=%s, doctor=%s, date=%s, time=%s",
		appointment.ID, appointment.DoctorID, appointment.DateString(), appointment.Time)
	return nil
}

// GetMyAppointments returns all appointments for the logged-in patient
func (u *appointmentUsecase) GetMyAppointments(ctx context.Context) (*dto.AppointmentListResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	appointments, err := u.appointmentRepo.FindByPatientID(u.db.WithContext(ctx), userID)
	if err != nil {
		u.log.Warnf("Failed to find appointments for patient %s: %+v", userID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}

// GetDoctorAppointments returns a doctor's appointments for one date
func (u *appointmentUsecase) GetDoctorAppointments(ctx context.Context, doctorID uuid.UUID, dateStr string) (*dto.AppointmentListResponse, error) {
	date, err := time.Parse(entity.DateLayout, dateStr)
	if err != nil {
		return nil, ErrInvalidDate
	}

	appointments, err := u.appointmentRepo.FindByDoctorAndDate(u.db.WithContext(ctx), doctorID, date)
	if err != nil {
		u.log.Warnf("Failed to find appointments for doctor %s on %s: %+v", doctorID, dateStr, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}

// validateSlotInSchedule rejects a time that is not in the slot set the
// schedule currently resolves to for that doctor and date.
func (u *appointmentUsecase) validateSlotInSchedule(db *gorm.DB, doctorID uuid.UUID, date time.Time, slotTime string) error {
	resolved, err := u.resolver.Resolve(db, doctorID, date)
	if err != nil {
		u.log.Warnf("Failed to resolve schedule for doctor %s on %s: %+v", doctorID, date.Format(entity.DateLayout), err)
		return err
	}
	if !resolved.HasSlots() {
		return ErrSlotNotInSchedule
	}

	ok, err := schedule.ContainsSlot(resolved.Day, slotTime)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSlotNotInSchedule
	}
	return nil
}

// insertWithFreshKey persists the appointment, drawing a new 6-digit key on
// key collisions. A unique violation on the active-slot index is final: the
// slot went to a concurrent booking.
func (u *appointmentUsecase) insertWithFreshKey(db *gorm.DB, appointment *entity.Appointment) (*entity.Appointment, error) {
	for attempt := 0; attempt < appointmentKeyAttempts; attempt++ {
		key, err := generateAppointmentKey()
		if err != nil {
			return nil, err
		}
		appointment.ID = uuid.Nil
		appointment.AppointmentKey = key

		err = u.appointmentRepo.Create(db, appointment)
		if err == nil {
			return appointment, nil
		}
		if isDuplicateKeyError(err, "active_slot") {
			return nil, ErrSlotAlreadyBooked
		}
		if isDuplicateKeyError(err, "appointment_key") {
			u.log.Warnf("Appointment key collision on %q, retrying", key)
			continue
		}
		u.log.Warnf("Failed to insert appointment: %+v", err)
		return nil, err
	}
	return nil, errors.New("could not allocate a unique appointment key")
}

// generateAppointmentKey draws the human-facing 6-digit key, uniform in
// [100000, 999999].
func generateAppointmentKey() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func parseDateTime(dateStr, timeStr string) (time.Time, string, error) {
	date, err := time.Parse(entity.DateLayout, dateStr)
	if err != nil {
		return time.Time{}, "", ErrInvalidDate
	}
	parsed, err := time.Parse(entity.TimeLayout, timeStr)
	if err != nil {
		return time.Time{}, "", ErrInvalidTime
	}
	// Normalize "9:30" to "09:30" so slot comparison is purely textual.
	return date, parsed.Format(entity.TimeLayout), nil
}
