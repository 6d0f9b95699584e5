package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type DayScheduleRequest struct {
	DayOfWeek    string `json:"day_of_week" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	IsOffDay     bool   `json:"is_off_day"`
	MorningStart string `json:"morning_start" validate:"omitempty"`
	MorningEnd   string `json:"morning_end" validate:"omitempty"`
	EveningStart string `json:"evening_start" validate:"omitempty"`
	EveningEnd   string `json:"evening_end" validate:"omitempty"`
	SlotDuration int    `json:"slot_duration" validate:"required,min=1"`
}

type CreateScheduleRequest struct {
	DoctorID  uuid.UUID            `json:"doctor_id" validate:"required"`
	WeekStart string               `json:"week_start" validate:"omitempty"` // Format: YYYY-MM-DD
	WeekEnd   string               `json:"week_end" validate:"omitempty"`   // Format: YYYY-MM-DD
	Days      []DayScheduleRequest `json:"days" validate:"required,min=1,dive"`
}

type UpdateScheduleRequest struct {
	WeekStart *string              `json:"week_start"` // Format: YYYY-MM-DD, empty string clears
	WeekEnd   *string              `json:"week_end"`   // Format: YYYY-MM-DD, empty string clears
	Days      []DayScheduleRequest `json:"days" validate:"omitempty,min=1,dive"`
}

// Response DTOs

type DayScheduleResponse struct {
	DayOfWeek    string   `json:"day_of_week"`
	IsOffDay     bool     `json:"is_off_day"`
	MorningStart string   `json:"morning_start,omitempty"`
	MorningEnd   string   `json:"morning_end,omitempty"`
	EveningStart string   `json:"evening_start,omitempty"`
	EveningEnd   string   `json:"evening_end,omitempty"`
	SlotDuration int      `json:"slot_duration"`
	MorningSlots []string `json:"morning_slots,omitempty"`
	EveningSlots []string `json:"evening_slots,omitempty"`
}

type ScheduleResponse struct {
	ID        int                   `json:"id"`
	DoctorID  uuid.UUID             `json:"doctor_id"`
	WeekStart string                `json:"week_start,omitempty"`
	WeekEnd   string                `json:"week_end,omitempty"`
	General   bool                  `json:"general"`
	Days      []DayScheduleResponse `json:"days"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	Doctor    *DoctorResponse       `json:"doctor,omitempty"`
}

type ScheduleListResponse struct {
	Schedules []ScheduleResponse `json:"schedules"`
	Total     int                `json:"total"`
}
