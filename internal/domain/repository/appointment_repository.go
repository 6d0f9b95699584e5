package repository

import (
	"time"

	"clinic-booking-api/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentRepository interface {
	Create(db *gorm.DB, appointment *entity.Appointment) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error)
	FindByKey(db *gorm.DB, key string) (*entity.Appointment, error)
	FindByPatientID(db *gorm.DB, patientID uuid.UUID) ([]entity.Appointment, error)
	FindByDoctorAndDate(db *gorm.DB, doctorID uuid.UUID, date time.Time) ([]entity.Appointment, error)
	// FindConflict returns the appointment holding (doctorID, date, slotTime)
	// with one of the given statuses, excluding excludeID when non-zero.
	FindConflict(db *gorm.DB, doctorID uuid.UUID, date time.Time, slotTime string, statuses []entity.AppointmentStatus, excludeID uuid.UUID) (*entity.Appointment, error)
	// UpdateStatusIf transitions the appointment to newStatus only when its
	// current status is one of allowedFrom. Returns affected rows: 0 means
	// the guard failed (already transitioned).
	UpdateStatusIf(db *gorm.DB, id uuid.UUID, newStatus entity.AppointmentStatus, allowedFrom []entity.AppointmentStatus) (int64, error)
	// Reschedule mutates date/time in place, preserving id and key.
	Reschedule(db *gorm.DB, id uuid.UUID, newDate time.Time, newTime string) error
}
