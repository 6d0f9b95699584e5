package usecase

import (
	"context"
	"errors"
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
	ErrScheduleNotFound      = errors.New("schedule not found")
	ErrScheduleNotOwned      = errors.New("schedule does not belong to you")
	ErrInvalidWeekBounds     = errors.New("week_start and week_end must be provided together, with week_start <= week_end")
	ErrWeekOverlap           = errors.New("week-specific schedule overlaps an existing one for this doctor")
	ErrGeneralScheduleExists = errors.New("doctor already has a general schedule")
	ErrDuplicateDay          = errors.New("duplicate day_of_week in schedule")
	ErrInvalidWeekday        = errors.New("invalid day_of_week")
)

// ScheduleCacheInvalidator drops cached slot listings after schedule writes.
type ScheduleCacheInvalidator interface {
	InvalidateDoctorSlots(ctx context.Context, doctorID uuid.UUID)
}

type ScheduleUsecase interface {
	CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest) (*dto.ScheduleResponse, error)
	GetSchedule(ctx context.Context, scheduleID int) (*dto.ScheduleResponse, error)
	GetSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.ScheduleListResponse, error)
	UpdateSchedule(ctx context.Context, scheduleID int, req *dto.UpdateScheduleRequest) (*dto.ScheduleResponse, error)
	DeleteSchedule(ctx context.Context, scheduleID int) error
}

type scheduleUsecase struct {
	db                *gorm.DB
	log               *logrus.Logger
	scheduleRepo      repository.ScheduleRepository
	doctorProfileRepo repository.DoctorProfileRepository
	cacheInvalidator  ScheduleCacheInvalidator
	auditService      service.AuditService
}

func NewScheduleUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	scheduleRepo repository.ScheduleRepository,
	doctorProfileRepo repository.DoctorProfileRepository,
	cacheInvalidator ScheduleCacheInvalidator,
	auditService service.AuditService,
) ScheduleUsecase {
	return &scheduleUsecase{
		db:                db,
		log:               log,
		scheduleRepo:      scheduleRepo,
		doctorProfileRepo: doctorProfileRepo,
		cacheInvalidator:  cacheInvalidator,
		auditService:      auditService,
	}
}

// CreateSchedule creates a general or week-specific schedule document.
//
// Invariants enforced here (with the partial unique index as backstop for
// the first one): at most one general schedule per doctor, and week-specific
// intervals for one doctor must not overlap.
func (u *scheduleUsecase) CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest) (*dto.ScheduleResponse, error) {
	db := u.db.WithContext(ctx)

	doctor, err := u.doctorProfileRepo.FindByUserID(db, req.DoctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", req.DoctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	if err := u.requireOwnership(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	weekStart, weekEnd, err := parseWeekBounds(req.WeekStart, req.WeekEnd)
	if err != nil {
		return nil, err
	}

	if weekStart == nil {
		existing, err := u.scheduleRepo.FindGeneral(db, req.DoctorID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrGeneralScheduleExists
		}
	} else {
		if err := u.checkWeekOverlap(db, req.DoctorID, *weekStart, *weekEnd, 0); err != nil {
			return nil, err
		}
	}

	days, err := materializeDays(req.Days)
	if err != nil {
		return nil, err
	}

	sched := &entity.DoctorSchedule{
		DoctorID:  req.DoctorID,
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Days:      days,
	}

	if err := u.scheduleRepo.Create(db, sched); err != nil {
		if isDuplicateKeyError(err, "general") {
			return nil, ErrGeneralScheduleExists
		}
		if isDuplicateKeyError(err, "schedule_day") {
			return nil, ErrDuplicateDay
		}
		u.log.Warnf("Failed to create schedule for doctor %s: %+v", req.DoctorID, err)
		return nil, err
	}

	actorID, _ := middleware.GetUserIDFromContext(ctx)
	if err := u.auditService.LogCreate(ctx, db, &actorID, entity.AuditActionScheduleCreate, "doctor_schedule", strconv.Itoa(sched.ID), converter.ScheduleToResponse(sched)); err != nil {
		u.log.Warnf("Failed to audit schedule %d: %+v", sched.ID, err)
	}

	u.cacheInvalidator.InvalidateDoctorSlots(ctx, req.DoctorID)
	u.log.Infof("Schedule created: id=%d, doctor=%s, general=%t", sched.ID, req.DoctorID, sched.IsGeneral())

	return converter.ScheduleToResponse(sched), nil
}

func (u *scheduleUsecase) GetSchedule(ctx context.Context, scheduleID int) (*dto.ScheduleResponse, error) {
	sched, err := u.scheduleRepo.FindByID(u.db.WithContext(ctx), scheduleID)
	if err != nil {
		u.log.Warnf("Failed to find schedule %d: %+v", scheduleID, err)
		return nil, err
	}
	if sched == nil {
		return nil, ErrScheduleNotFound
	}
	return converter.ScheduleToResponse(sched), nil
}

func (u *scheduleUsecase) GetSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.ScheduleListResponse, error) {
	schedules, err := u.scheduleRepo.FindByDoctorID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find schedules for doctor %s: %+v", doctorID, err)
		return nil, err
	}
	return &dto.ScheduleListResponse{
		Schedules: converter.SchedulesToResponses(schedules),
		Total:     len(schedules),
	}, nil
}

func (u *scheduleUsecase) UpdateSchedule(ctx context.Context, scheduleID int, req *dto.UpdateScheduleRequest) (*dto.ScheduleResponse, error) {
	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	sched, err := u.scheduleRepo.FindByID(tx, scheduleID)
	if err != nil {
		u.log.Warnf("Failed to find schedule %d: %+v", scheduleID, err)
		return nil, err
	}
	if sched == nil {
		return nil, ErrScheduleNotFound
	}

	if err := u.requireOwnership(ctx, sched.DoctorID); err != nil {
		return nil, err
	}

	oldValue := converter.ScheduleToResponse(sched)

	if req.WeekStart != nil || req.WeekEnd != nil {
		startStr := valueOr(req.WeekStart, formatWeekBound(sched.WeekStart))
		endStr := valueOr(req.WeekEnd, formatWeekBound(sched.WeekEnd))
		weekStart, weekEnd, err := parseWeekBounds(startStr, endStr)
		if err != nil {
			return nil, err
		}
		if weekStart == nil {
			existing, err := u.scheduleRepo.FindGeneral(tx, sched.DoctorID)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != sched.ID {
				return nil, ErrGeneralScheduleExists
			}
		} else {
			if err := u.checkWeekOverlap(tx, sched.DoctorID, *weekStart, *weekEnd, sched.ID); err != nil {
				return nil, err
			}
		}
		sched.WeekStart = weekStart
		sched.WeekEnd = weekEnd
	}

	if err := u.scheduleRepo.Update(tx, sched); err != nil {
		if isDuplicateKeyError(err, "general") {
			return nil, ErrGeneralScheduleExists
		}
		u.log.Warnf("Failed to update schedule %d: %+v", scheduleID, err)
		return nil, err
	}

	// Replacing the day set rewrites the pre-materialized slot caches along
	// with the windows they were derived from.
	if req.Days != nil {
		days, err := materializeDays(req.Days)
		if err != nil {
			return nil, err
		}
		if err := u.scheduleRepo.ReplaceDays(tx, sched.ID, days); err != nil {
			u.log.Warnf("Failed to replace days of schedule %d: %+v", scheduleID, err)
			return nil, err
		}
		sched.Days = days
	}

	actorID, _ := middleware.GetUserIDFromContext(ctx)
	if err := u.auditService.LogUpdate(ctx, tx, &actorID, entity.AuditActionScheduleUpdate, "doctor_schedule", strconv.Itoa(sched.ID), oldValue, converter.ScheduleToResponse(sched)); err != nil {
		u.log.Warnf("Failed to audit schedule %d: %+v", sched.ID, err)
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	u.cacheInvalidator.InvalidateDoctorSlots(ctx, sched.DoctorID)
	u.log.Infof("Schedule updated: id=%d, doctor=%s", sched.ID, sched.DoctorID)

	return converter.ScheduleToResponse(sched), nil
}

func (u *scheduleUsecase) DeleteSchedule(ctx context.Context, scheduleID int) error {
	db := u.db.WithContext(ctx)

	sched, err := u.scheduleRepo.FindByID(db, scheduleID)
	if err != nil {
		u.log.Warnf("Failed to find schedule %d: %+v", scheduleID, err)
		return err
	}
	if sched == nil {
		return ErrScheduleNotFound
	}

	if err := u.requireOwnership(ctx, sched.DoctorID); err != nil {
		return err
	}

	if _, err := u.scheduleRepo.Delete(db, scheduleID); err != nil {
		u.log.Warnf("Failed to delete schedule %d: %+v", scheduleID, err)
		return err
	}

	actorID, _ := middleware.GetUserIDFromContext(ctx)
	if err := u.auditService.LogDelete(ctx, db, &actorID, entity.AuditActionScheduleDelete, "doctor_schedule", strconv.Itoa(scheduleID), converter.ScheduleToResponse(sched)); err != nil {
		u.log.Warnf("Failed to audit schedule %d: %+v", scheduleID, err)
	}

	u.cacheInvalidator.InvalidateDoctorSlots(ctx, sched.DoctorID)
	u.log.Infof("Schedule deleted: id=%d, doctor=%s", scheduleID, sched.DoctorID)
	return nil
}

// requireOwnership lets admins manage any schedule but restricts doctors to
// their own.
func (u *scheduleUsecase) requireOwnership(ctx context.Context, doctorID uuid.UUID) error {
	roleID, ok := middleware.GetRoleIDFromContext(ctx)
	if ok && roleID == entity.RoleIDAdmin {
		return nil
	}
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return errors.New("user not found in context")
	}
	if userID != doctorID {
		return ErrScheduleNotOwned
	}
	return nil
}

func (u *scheduleUsecase) checkWeekOverlap(db *gorm.DB, doctorID uuid.UUID, weekStart, weekEnd time.Time, excludeID int) error {
	schedules, err := u.scheduleRepo.FindByDoctorID(db, doctorID)
	if err != nil {
		return err
	}
	for i := range schedules {
		s := &schedules[i]
		if s.ID == excludeID || s.IsGeneral() || s.WeekStart == nil || s.WeekEnd == nil {
			continue
		}
		if !weekStart.After(*s.WeekEnd) && !weekEnd.Before(*s.WeekStart) {
			return ErrWeekOverlap
		}
	}
	return nil
}

// materializeDays validates the day set and pre-computes the slot caches so
// reads never regenerate them. The caches are rebuilt on every write, which
// keeps them from diverging from the window fields.
func materializeDays(reqs []dto.DayScheduleRequest) ([]entity.DaySchedule, error) {
	seen := make(map[string]struct{}, len(reqs))
	days := make([]entity.DaySchedule, 0, len(reqs))

	for _, req := range reqs {
		if !entity.IsValidWeekday(req.DayOfWeek) {
			return nil, ErrInvalidWeekday
		}
		if _, dup := seen[req.DayOfWeek]; dup {
			return nil, ErrDuplicateDay
		}
		seen[req.DayOfWeek] = struct{}{}

		day := entity.DaySchedule{
			DayOfWeek:    req.DayOfWeek,
			IsOffDay:     req.IsOffDay,
			MorningStart: req.MorningStart,
			MorningEnd:   req.MorningEnd,
			EveningStart: req.EveningStart,
			EveningEnd:   req.EveningEnd,
			SlotDuration: req.SlotDuration,
		}

		if !day.IsOffDay {
			morning, err := schedule.GenerateSlots(day.MorningStart, day.MorningEnd, day.SlotDuration)
			if err != nil {
				return nil, err
			}
			evening, err := schedule.GenerateSlots(day.EveningStart, day.EveningEnd, day.SlotDuration)
			if err != nil {
				return nil, err
			}
			day.MorningSlots = morning
			day.EveningSlots = evening
		}

		days = append(days, day)
	}

	return days, nil
}

func parseWeekBounds(startStr, endStr string) (*time.Time, *time.Time, error) {
	if startStr == "" && endStr == "" {
		return nil, nil, nil
	}
	if startStr == "" || endStr == "" {
		return nil, nil, ErrInvalidWeekBounds
	}
	start, err := time.Parse(entity.DateLayout, startStr)
	if err != nil {
		return nil, nil, ErrInvalidDate
	}
	end, err := time.Parse(entity.DateLayout, endStr)
	if err != nil {
		return nil, nil, ErrInvalidDate
	}
	if start.After(end) {
		return nil, nil, ErrInvalidWeekBounds
	}
	return &start, &end, nil
}

func formatWeekBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(entity.DateLayout)
}

func valueOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
