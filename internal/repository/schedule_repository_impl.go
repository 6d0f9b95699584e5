package repository

import (
	"errors"
	"time"

	"clinic-booking-api/internal/domain/entity"
	domainRepo "clinic-booking-api/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type scheduleRepository struct{}

func NewScheduleRepository() domainRepo.ScheduleRepository {
	return &scheduleRepository{}
}

func (r *scheduleRepository) Create(db *gorm.DB, schedule *entity.DoctorSchedule) error {
	return db.Create(schedule).Error
}

func (r *scheduleRepository) FindByID(db *gorm.DB, id int) (*entity.DoctorSchedule, error) {
	var schedule entity.DoctorSchedule
	err := db.Preload("Days").Where("id = ?", id).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) FindByDoctorID(db *gorm.DB, doctorID uuid.UUID) ([]entity.DoctorSchedule, error) {
	var schedules []entity.DoctorSchedule
	err := db.Preload("Days").
		Where("doctor_id = ?", doctorID).
		Order("week_start ASC NULLS FIRST").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// FindForWeek picks the week-specific schedule whose [week_start, week_end]
// interval contains date. Overlapping intervals are not rejected for legacy
// rows, so the most recently updated document wins as the tie-break.
func (r *scheduleRepository) FindForWeek(db *gorm.DB, doctorID uuid.UUID, date time.Time) (*entity.DoctorSchedule, error) {
	var schedule entity.DoctorSchedule
	err := db.Preload("Days").
		Where("doctor_id = ? AND week_start IS NOT NULL AND week_end IS NOT NULL AND week_start <= ? AND week_end >= ?",
			doctorID, date, date).
		Order("updated_at DESC").
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) FindGeneral(db *gorm.DB, doctorID uuid.UUID) (*entity.DoctorSchedule, error) {
	var schedule entity.DoctorSchedule
	err := db.Preload("Days").
		Where("doctor_id = ? AND week_start IS NULL AND week_end IS NULL", doctorID).
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) FindAny(db *gorm.DB, doctorID uuid.UUID) (*entity.DoctorSchedule, error) {
	var schedule entity.DoctorSchedule
	err := db.Preload("Days").
		Where("doctor_id = ?", doctorID).
		Order("updated_at DESC").
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) Update(db *gorm.DB, schedule *entity.DoctorSchedule) error {
	return db.Omit("Doctor", "Days").Save(schedule).Error
}

// ReplaceDays swaps the full day set of a schedule. Used on schedule updates
// so the pre-materialized slot caches are rewritten together with the
// windows they were derived from.
func (r *scheduleRepository) ReplaceDays(db *gorm.DB, scheduleID int, days []entity.DaySchedule) error {
	if err := db.Where("schedule_id = ?", scheduleID).Delete(&entity.DaySchedule{}).Error; err != nil {
		return err
	}
	for i := range days {
		days[i].ID = 0
		days[i].ScheduleID = scheduleID
	}
	if len(days) == 0 {
		return nil
	}
	return db.Create(&days).Error
}

func (r *scheduleRepository) Delete(db *gorm.DB, id int) (int64, error) {
	affected := db.Where("id = ?", id).Delete(&entity.DoctorSchedule{})
	return affected.RowsAffected, affected.Error
}
