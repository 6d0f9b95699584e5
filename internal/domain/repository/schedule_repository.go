package repository

import (
	"time"

	"clinic-booking-api/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScheduleRepository interface {
	Create(db *gorm.DB, schedule *entity.DoctorSchedule) error
	FindByID(db *gorm.DB, id int) (*entity.DoctorSchedule, error)
	FindByDoctorID(db *gorm.DB, doctorID uuid.UUID) ([]entity.DoctorSchedule, error)
	// FindForWeek returns the week-specific schedule covering date, most
	// recently updated first when intervals overlap.
	FindForWeek(db *gorm.DB, doctorID uuid.UUID, date time.Time) (*entity.DoctorSchedule, error)
	// FindGeneral returns the doctor's standing schedule (no week bounds).
	FindGeneral(db *gorm.DB, doctorID uuid.UUID) (*entity.DoctorSchedule, error)
	// FindAny returns any schedule document for the doctor, ignoring week
	// bounds, most recently updated first.
	FindAny(db *gorm.DB, doctorID uuid.UUID) (*entity.DoctorSchedule, error)
	Update(db *gorm.DB, schedule *entity.DoctorSchedule) error
	ReplaceDays(db *gorm.DB, scheduleID int, days []entity.DaySchedule) error
	Delete(db *gorm.DB, id int) (int64, error)
}
