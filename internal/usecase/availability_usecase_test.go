package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"clinic-booking-api/internal/domain/entity"
	"clinic-booking-api/internal/schedule"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSlotCache struct {
	entries map[string][]byte
}

func newFakeSlotCache() *fakeSlotCache {
	return &fakeSlotCache{entries: make(map[string][]byte)}
}

func (f *fakeSlotCache) GetCachedDaySlots(_ context.Context, doctorID uuid.UUID, date string) []byte {
	return f.entries[doctorID.String()+date]
}

func (f *fakeSlotCache) CacheDaySlots(_ context.Context, doctorID uuid.UUID, date string, payload []byte) {
	f.entries[doctorID.String()+date] = payload
}

func TestGetAvailableSlots(t *testing.T) {
	doctorID := uuid.New()
	day := entity.DaySchedule{
		DayOfWeek:    entity.Monday,
		MorningStart: "09:00",
		MorningEnd:   "10:00",
		EveningStart: "14:00",
		EveningEnd:   "15:00",
		SlotDuration: 30,
	}

	newFixture := func(t *testing.T, resolved *schedule.ResolvedDay) (AvailabilityUsecase, *fakeAppointmentRepo, *fakeSlotCache) {
		repo := newFakeAppointmentRepo()
		cache := newFakeSlotCache()
		uc := NewAvailabilityUsecase(testDB(t), logrus.New(), repo, newFakeDoctorRepo(doctorID), &fakeResolver{resolved: resolved}, cache)
		return uc, repo, cache
	}

	t.Run("lists slots with booked times and provenance", func(t *testing.T) {
		uc, repo, cache := newFixture(t, &schedule.ResolvedDay{Day: &day, Provenance: schedule.ProvenanceGeneral})

		date := time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
		repo.stored[uuid.New()] = &entity.Appointment{
			ID: uuid.New(), DoctorID: doctorID, Date: date, Time: "09:30",
			Status: entity.AppointmentStatusConfirmed,
		}
		cancelledID := uuid.New()
		repo.stored[cancelledID] = &entity.Appointment{
			ID: cancelledID, DoctorID: doctorID, Date: date, Time: "14:00",
			Status: entity.AppointmentStatusCancelled,
		}

		resp, err := uc.GetAvailableSlots(context.Background(), doctorID, "2030-01-07")
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30"}, resp.Morning)
		assert.Equal(t, []string{"14:00", "14:30"}, resp.Evening)
		// Cancelled appointments no longer consume their slot.
		assert.Equal(t, []string{"09:30"}, resp.Booked)
		assert.Equal(t, string(schedule.ProvenanceGeneral), resp.Provenance)

		// The listing is cached for subsequent reads.
		assert.NotEmpty(t, cache.entries)
	})

	t.Run("serves the cached listing without resolving", func(t *testing.T) {
		uc, _, cache := newFixture(t, nil) // resolver would fail on a nil day
		want := map[string]interface{}{"doctor_id": doctorID.String(), "date": "2030-01-07"}
		payload, err := json.Marshal(want)
		require.NoError(t, err)
		cache.CacheDaySlots(context.Background(), doctorID, "2030-01-07", payload)

		resp, err := uc.GetAvailableSlots(context.Background(), doctorID, "2030-01-07")
		require.NoError(t, err)
		assert.Equal(t, "2030-01-07", resp.Date)
		assert.Equal(t, doctorID, resp.DoctorID)
	})

	t.Run("empty day yields empty lists, not nulls", func(t *testing.T) {
		uc, _, _ := newFixture(t, &schedule.ResolvedDay{})

		resp, err := uc.GetAvailableSlots(context.Background(), doctorID, "2030-01-07")
		require.NoError(t, err)
		assert.NotNil(t, resp.Morning)
		assert.NotNil(t, resp.Evening)
		assert.Empty(t, resp.Morning)
		assert.Empty(t, resp.Evening)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		uc, _, _ := newFixture(t, &schedule.ResolvedDay{Day: &day})
		_, err := uc.GetAvailableSlots(context.Background(), uuid.New(), "2030-01-07")
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("malformed date", func(t *testing.T) {
		uc, _, _ := newFixture(t, &schedule.ResolvedDay{Day: &day})
		_, err := uc.GetAvailableSlots(context.Background(), doctorID, "07-01-2030")
		assert.ErrorIs(t, err, ErrInvalidDate)
	})
}
