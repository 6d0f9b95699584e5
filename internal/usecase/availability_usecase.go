package usecase

import (
	"context"
	"encoding/json"
	"time"

	"clinic-booking-api/internal/delivery/dto"
	"clinic-booking-api/internal/domain/entity"
	"clinic-booking-api/internal/domain/repository"
	"clinic-booking-api/internal/schedule"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SlotCache caches serialized day listings per (doctor, date).
type SlotCache interface {
	GetCachedDaySlots(ctx context.Context, doctorID uuid.UUID, date string) []byte
	CacheDaySlots(ctx context.Context, doctorID uuid.UUID, date string, payload []byte)
}

type AvailabilityUsecase interface {
	GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) (*dto.DaySlotsResponse, error)
}

type availabilityUsecase struct {
	db                *gorm.DB
	log               *logrus.Logger
	appointmentRepo   repository.AppointmentRepository
	doctorProfileRepo repository.DoctorProfileRepository
	resolver          DayResolver
	slotCache         SlotCache
}

func NewAvailabilityUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	doctorProfileRepo repository.DoctorProfileRepository,
	resolver DayResolver,
	slotCache SlotCache,
) AvailabilityUsecase {
	return &availabilityUsecase{
		db:                db,
		log:               log,
		appointmentRepo:   appointmentRepo,
		doctorProfileRepo: doctorProfileRepo,
		resolver:          resolver,
		slotCache:         slotCache,
	}
}

// GetAvailableSlots resolves the doctor's schedule for a date and returns
// the morning/evening slot lists, the currently booked times, and the
// provenance of the schedule that produced them.
//
// Listings are cached in Redis with a short TTL; bookings, cancellations
// and schedule writes invalidate the affected entries. The booked list is
// advisory - booking re-checks availability at write time.
func (u *availabilityUsecase) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, dateStr string) (*dto.DaySlotsResponse, error) {
	date, err := time.Parse(entity.DateLayout, dateStr)
	if err != nil {
		return nil, ErrInvalidDate
	}

	if payload := u.slotCache.GetCachedDaySlots(ctx, doctorID, dateStr); payload != nil {
		var cached dto.DaySlotsResponse
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
		u.log.Warnf("Discarding malformed slot cache entry for doctor %s %s", doctorID, dateStr)
	}

	db := u.db.WithContext(ctx)

	doctor, err := u.doctorProfileRepo.FindByUserID(db, doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	resolved, err := u.resolver.Resolve(db, doctorID, date)
	if err != nil {
		u.log.Warnf("Failed to resolve schedule for doctor %s on %s: %+v", doctorID, dateStr, err)
		return nil, err
	}

	morning, evening, err := schedule.DaySlots(resolved.Day)
	if err != nil {
		u.log.Warnf("Failed to generate slots for doctor %s on %s: %+v", doctorID, dateStr, err)
		return nil, err
	}

	appointments, err := u.appointmentRepo.FindByDoctorAndDate(db, doctorID, date)
	if err != nil {
		u.log.Warnf("Failed to load appointments for doctor %s on %s: %+v", doctorID, dateStr, err)
		return nil, err
	}

	booked := make([]string, 0, len(appointments))
	for i := range appointments {
		if appointments[i].IsActive() {
			booked = append(booked, appointments[i].Time)
		}
	}

	response := &dto.DaySlotsResponse{
		DoctorID:   doctorID,
		Date:       dateStr,
		Morning:    emptyIfNil(morning),
		Evening:    emptyIfNil(evening),
		Booked:     booked,
		Provenance: string(resolved.Provenance),
	}

	if payload, err := json.Marshal(response); err == nil {
		u.slotCache.CacheDaySlots(ctx, doctorID, dateStr, payload)
	}

	return response, nil
}

func emptyIfNil(slots []string) []string {
	if slots == nil {
		return []string{}
	}
	return slots
}
