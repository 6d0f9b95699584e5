package entity

import (
	"time"

	"github.com/google/uuid"
)

// DoctorSchedule is one schedule document for a doctor.
//
// A doctor has at most one "general" schedule (no week bounds) acting as the
// standing weekly schedule, plus zero or more week-specific schedules that
// override it for the closed date interval [WeekStart, WeekEnd].
type DoctorSchedule struct {
	ID        int        `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"doctor_id"`
	WeekStart *time.Time `gorm:"type:date;index" json:"week_start,omitempty"`
	WeekEnd   *time.Time `gorm:"type:date" json:"week_end,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Doctor DoctorProfile `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Days   []DaySchedule `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"days,omitempty"`
}

func (DoctorSchedule) TableName() string {
	return "doctor_schedules"
}

// IsGeneral reports whether this is the doctor's standing weekly schedule.
func (s *DoctorSchedule) IsGeneral() bool {
	return s.WeekStart == nil && s.WeekEnd == nil
}

// CoversDate reports whether this schedule applies to the given date.
// A general schedule covers every date; a week-specific schedule covers
// the closed interval [WeekStart, WeekEnd].
func (s *DoctorSchedule) CoversDate(date time.Time) bool {
	if s.IsGeneral() {
		return true
	}
	if s.WeekStart == nil || s.WeekEnd == nil {
		return false
	}
	d := date.Truncate(24 * time.Hour)
	return !d.Before(s.WeekStart.Truncate(24*time.Hour)) && !d.After(s.WeekEnd.Truncate(24*time.Hour))
}

// DayFor returns the day entry matching the weekday name, or nil if the
// schedule has no entry for that weekday.
func (s *DoctorSchedule) DayFor(dayOfWeek string) *DaySchedule {
	for i := range s.Days {
		if s.Days[i].DayOfWeek == dayOfWeek {
			return &s.Days[i]
		}
	}
	return nil
}
