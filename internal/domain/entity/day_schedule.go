package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DaySchedule defines the bookable windows for one weekday of a schedule.
//
// Morning and evening are two independent session windows; either may be
// absent (empty start/end). MorningSlots/EveningSlots are pre-materialized
// "HH:MM" slot lists recomputed whenever the window or duration fields
// change, so reads never have to regenerate them.
type DaySchedule struct {
	ID           int        `gorm:"primaryKey;autoIncrement" json:"id"`
	ScheduleID   int        `gorm:"not null;uniqueIndex:idx_day_schedules_schedule_day" json:"schedule_id"`
	DayOfWeek    string     `gorm:"type:varchar(10);not null;uniqueIndex:idx_day_schedules_schedule_day" json:"day_of_week"`
	IsOffDay     bool       `gorm:"not null;default:false" json:"is_off_day"`
	MorningStart string     `gorm:"type:varchar(5)" json:"morning_start,omitempty"`
	MorningEnd   string     `gorm:"type:varchar(5)" json:"morning_end,omitempty"`
	EveningStart string     `gorm:"type:varchar(5)" json:"evening_start,omitempty"`
	EveningEnd   string     `gorm:"type:varchar(5)" json:"evening_end,omitempty"`
	SlotDuration int        `gorm:"not null" json:"slot_duration"`
	MorningSlots SlotList   `gorm:"type:jsonb" json:"morning_slots,omitempty"`
	EveningSlots SlotList   `gorm:"type:jsonb" json:"evening_slots,omitempty"`
}

func (DaySchedule) TableName() string {
	return "day_schedules"
}

// SlotList is a jsonb-backed ordered list of "HH:MM" slot start times.
type SlotList []string

// Value returns json value, implement driver.Valuer interface
func (l SlotList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan scan value into SlotList, implements sql.Scanner interface
func (l *SlotList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal jsonb slot list:", value))
	}

	result := []string{}
	err := json.Unmarshal(bytes, &result)
	*l = SlotList(result)
	return err
}

// Weekday name constants, matching time.Weekday.String().
const (
	Monday    = "Monday"
	Tuesday   = "Tuesday"
	Wednesday = "Wednesday"
	Thursday  = "Thursday"
	Friday    = "Friday"
	Saturday  = "Saturday"
	Sunday    = "Sunday"
)

// Weekdays lists all weekday names in schedule order, Monday first.
var Weekdays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayName returns the locale-independent weekday name for a date.
func WeekdayName(date time.Time) string {
	return date.Weekday().String()
}

// IsValidWeekday reports whether name is one of the seven weekday names.
func IsValidWeekday(name string) bool {
	for _, d := range Weekdays {
		if d == name {
			return true
		}
	}
	return false
}

// Clinic-wide default working hours, used when a doctor has no schedule
// document at all: Monday-Saturday 09:00-12:00 and 14:00-18:00, Sunday off.
const (
	DefaultMorningStart = "09:00"
	DefaultMorningEnd   = "12:00"
	DefaultEveningStart = "14:00"
	DefaultEveningEnd   = "18:00"
	DefaultSlotDuration = 30
)

// DefaultDaySchedule synthesizes the hard-coded default day for a weekday.
func DefaultDaySchedule(dayOfWeek string) DaySchedule {
	if dayOfWeek == Sunday {
		return DaySchedule{DayOfWeek: Sunday, IsOffDay: true, SlotDuration: DefaultSlotDuration}
	}
	return DaySchedule{
		DayOfWeek:    dayOfWeek,
		MorningStart: DefaultMorningStart,
		MorningEnd:   DefaultMorningEnd,
		EveningStart: DefaultEveningStart,
		EveningEnd:   DefaultEveningEnd,
		SlotDuration: DefaultSlotDuration,
	}
}
