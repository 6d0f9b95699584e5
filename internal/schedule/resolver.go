package schedule

import (
	"time"

	"clinic-booking-api/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provenance tags which fallback strategy produced a resolved day, so
// callers and UIs can explain why a given slot set was shown.
type Provenance string

const (
	ProvenanceWeekSpecific Provenance = "week-specific"
	ProvenanceGeneral      Provenance = "general"
	ProvenanceFallback     Provenance = "fallback"
	ProvenanceDefault      Provenance = "default"
)

// ResolvedDay is the outcome of resolving a doctor's schedule for a date.
// Day is nil when the doctor has schedule documents but none defines the
// requested weekday; that is a normal empty result, not an error.
type ResolvedDay struct {
	Day        *entity.DaySchedule
	Provenance Provenance
}

// HasSlots reports whether the resolved day can produce any slots.
func (r *ResolvedDay) HasSlots() bool {
	return r != nil && r.Day != nil && !r.Day.IsOffDay
}

// Source is the read-only schedule lookup surface the resolver needs.
type Source interface {
	FindForWeek(db *gorm.DB, doctorID uuid.UUID, date time.Time) (*entity.DoctorSchedule, error)
	FindGeneral(db *gorm.DB, doctorID uuid.UUID) (*entity.DoctorSchedule, error)
	FindAny(db *gorm.DB, doctorID uuid.UUID) (*entity.DoctorSchedule, error)
}

// Resolver walks the schedule fallback chain for a doctor and date.
type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

type strategy struct {
	provenance Provenance
	lookup     func(db *gorm.DB, doctorID uuid.UUID, date time.Time) (*entity.DoctorSchedule, error)
}

// Resolve applies the ordered fallback chain; the first strategy whose
// schedule defines the date's weekday wins:
//
//  1. week-specific schedule covering the date
//  2. general schedule (no week bounds)
//  3. any schedule document, ignoring week bounds
//  4. hard-coded clinic default, only when the doctor has no schedule at all
//
// Resolution is a pure read path and never blocks on write locks.
func (r *Resolver) Resolve(db *gorm.DB, doctorID uuid.UUID, date time.Time) (*ResolvedDay, error) {
	weekday := entity.WeekdayName(date)

	strategies := []strategy{
		{ProvenanceWeekSpecific, r.source.FindForWeek},
		{ProvenanceGeneral, func(db *gorm.DB, doctorID uuid.UUID, _ time.Time) (*entity.DoctorSchedule, error) {
			return r.source.FindGeneral(db, doctorID)
		}},
		{ProvenanceFallback, func(db *gorm.DB, doctorID uuid.UUID, _ time.Time) (*entity.DoctorSchedule, error) {
			return r.source.FindAny(db, doctorID)
		}},
	}

	anyDocument := false
	for _, st := range strategies {
		sch, err := st.lookup(db, doctorID, date)
		if err != nil {
			return nil, err
		}
		if sch == nil {
			continue
		}
		anyDocument = true
		if day := sch.DayFor(weekday); day != nil {
			return &ResolvedDay{Day: day, Provenance: st.provenance}, nil
		}
	}

	if !anyDocument {
		day := entity.DefaultDaySchedule(weekday)
		return &ResolvedDay{Day: &day, Provenance: ProvenanceDefault}, nil
	}

	// Documents exist but none defines this weekday: no slots available.
	return &ResolvedDay{}, nil
}
