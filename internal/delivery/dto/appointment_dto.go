package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type BookAppointmentRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" validate:"required"`
	Date     string    `json:"date" validate:"required"` // Format: YYYY-MM-DD
	Time     string    `json:"time" validate:"required"` // Format: HH:MM
	Reason   string    `json:"reason" validate:"omitempty,max=500"`
}

type RescheduleAppointmentRequest struct {
	Date string `json:"date" validate:"required"` // Format: YYYY-MM-DD
	Time string `json:"time" validate:"required"` // Format: HH:MM
}

// Response DTOs

type AppointmentResponse struct {
	ID             uuid.UUID       `json:"id"`
	AppointmentKey string          `json:"appointment_key"`
	DoctorID       uuid.UUID       `json:"doctor_id"`
	PatientID      uuid.UUID       `json:"patient_id"`
	Date           string          `json:"date"`
	Time           string          `json:"time"`
	Reason         string          `json:"reason,omitempty"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Doctor         *DoctorResponse `json:"doctor,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}

// DaySlotsResponse lists the bookable slots for one doctor and date.
// Booked carries the currently consumed times so a client can color slots;
// it is advisory only and re-checked at booking time.
type DaySlotsResponse struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	Date       string    `json:"date"`
	Morning    []string  `json:"morning"`
	Evening    []string  `json:"evening"`
	Booked     []string  `json:"booked"`
	Provenance string    `json:"provenance,omitempty"`
}
