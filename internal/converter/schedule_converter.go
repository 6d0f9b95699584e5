package converter

import (
	"clinic-booking-api/internal/delivery/dto"
	"clinic-booking-api/internal/domain/entity"

	"github.com/google/uuid"
)

// DayScheduleToResponse converts a DaySchedule entity to DayScheduleResponse DTO
func DayScheduleToResponse(day *entity.DaySchedule) dto.DayScheduleResponse {
	return dto.DayScheduleResponse{
		DayOfWeek:    day.DayOfWeek,
		IsOffDay:     day.IsOffDay,
		MorningStart: day.MorningStart,
		MorningEnd:   day.MorningEnd,
		EveningStart: day.EveningStart,
		EveningEnd:   day.EveningEnd,
		SlotDuration: day.SlotDuration,
		MorningSlots: day.MorningSlots,
		EveningSlots: day.EveningSlots,
	}
}

// ScheduleToResponse converts a DoctorSchedule entity to ScheduleResponse DTO
func ScheduleToResponse(schedule *entity.DoctorSchedule) *dto.ScheduleResponse {
	if schedule == nil {
		return nil
	}

	response := &dto.ScheduleResponse{
		ID:        schedule.ID,
		DoctorID:  schedule.DoctorID,
		General:   schedule.IsGeneral(),
		Days:      make([]dto.DayScheduleResponse, len(schedule.Days)),
		CreatedAt: schedule.CreatedAt,
		UpdatedAt: schedule.UpdatedAt,
	}

	if schedule.WeekStart != nil {
		response.WeekStart = schedule.WeekStart.Format(entity.DateLayout)
	}
	if schedule.WeekEnd != nil {
		response.WeekEnd = schedule.WeekEnd.Format(entity.DateLayout)
	}

	for i := range schedule.Days {
		response.Days[i] = DayScheduleToResponse(&schedule.Days[i])
	}

	// Include doctor info if available
	if schedule.Doctor.UserID != uuid.Nil {
		response.Doctor = DoctorProfileToResponse(&schedule.Doctor)
	}

	return response
}

// SchedulesToResponses converts a slice of DoctorSchedule entities to slice of ScheduleResponse DTOs
func SchedulesToResponses(schedules []entity.DoctorSchedule) []dto.ScheduleResponse {
	responses := make([]dto.ScheduleResponse, len(schedules))
	for i := range schedules {
		resp := ScheduleToResponse(&schedules[i])
		if resp != nil {
			responses[i] = *resp
		}
	}
	return responses
}
