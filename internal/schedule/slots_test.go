package schedule

import (
	"testing"

	"clinic-booking-api/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "midnight", input: "00:00", want: 0},
		{name: "morning", input: "09:30", want: 570},
		{name: "single digit hour", input: "9:30", want: 570},
		{name: "end of day", input: "23:59", want: 1439},
		{name: "missing colon", input: "0930", wantErr: true},
		{name: "hour out of range", input: "24:00", wantErr: true},
		{name: "minute out of range", input: "10:60", wantErr: true},
		{name: "not a number", input: "ab:cd", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClockTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "09:30", FormatClock(570))
	assert.Equal(t, "23:59", FormatClock(1439))
}

func TestGenerateSlots(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		duration int
		want     []string
		wantErr  error
	}{
		{
			name:  "one hour of half-hour slots",
			start: "09:00", end: "10:00", duration: 30,
			want: []string{"09:00", "09:30"},
		},
		{
			name:  "slot touching end bound is excluded",
			start: "09:00", end: "09:30", duration: 30,
			want: []string{"09:00"},
		},
		{
			name:  "last slot may overrun the end bound",
			start: "09:00", end: "10:00", duration: 45,
			want: []string{"09:00", "09:45"},
		},
		{
			name:  "full morning",
			start: "09:00", end: "12:00", duration: 30,
			want: []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"},
		},
		{
			name:  "empty start yields no slots",
			start: "", end: "12:00", duration: 30,
			want: nil,
		},
		{
			name:  "empty end yields no slots",
			start: "09:00", end: "", duration: 30,
			want: nil,
		},
		{
			name:  "inverted window yields no slots",
			start: "12:00", end: "09:00", duration: 30,
			want: nil,
		},
		{
			name:  "equal bounds yield no slots",
			start: "09:00", end: "09:00", duration: 30,
			want: nil,
		},
		{
			name:  "zero duration is a configuration error",
			start: "09:00", end: "12:00", duration: 0,
			wantErr: ErrInvalidSlotDuration,
		},
		{
			name:  "negative duration is a configuration error",
			start: "09:00", end: "12:00", duration: -15,
			wantErr: ErrInvalidSlotDuration,
		},
		{
			name:  "malformed start",
			start: "9am", end: "12:00", duration: 30,
			wantErr: ErrInvalidClockTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateSlots(tt.start, tt.end, tt.duration)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDaySlots(t *testing.T) {
	t.Run("nil day yields nothing", func(t *testing.T) {
		morning, evening, err := DaySlots(nil)
		require.NoError(t, err)
		assert.Empty(t, morning)
		assert.Empty(t, evening)
	})

	t.Run("off day ignores window fields", func(t *testing.T) {
		day := &entity.DaySchedule{
			DayOfWeek:    entity.Monday,
			IsOffDay:     true,
			MorningStart: "09:00",
			MorningEnd:   "12:00",
			SlotDuration: 30,
		}
		morning, evening, err := DaySlots(day)
		require.NoError(t, err)
		assert.Empty(t, morning)
		assert.Empty(t, evening)
	})

	t.Run("generates both sessions from windows", func(t *testing.T) {
		day := &entity.DaySchedule{
			DayOfWeek:    entity.Monday,
			MorningStart: "09:00",
			MorningEnd:   "10:00",
			EveningStart: "14:00",
			EveningEnd:   "15:00",
			SlotDuration: 30,
		}
		morning, evening, err := DaySlots(day)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30"}, morning)
		assert.Equal(t, []string{"14:00", "14:30"}, evening)
	})

	t.Run("materialized slot caches are used verbatim", func(t *testing.T) {
		day := &entity.DaySchedule{
			DayOfWeek:    entity.Monday,
			MorningStart: "09:00",
			MorningEnd:   "10:00",
			SlotDuration: 30,
			MorningSlots: entity.SlotList{"10:00", "10:15"},
			EveningSlots: entity.SlotList{"16:00"},
		}
		morning, evening, err := DaySlots(day)
		require.NoError(t, err)
		assert.Equal(t, []string{"10:00", "10:15"}, morning)
		assert.Equal(t, []string{"16:00"}, evening)
	})

	t.Run("morning only", func(t *testing.T) {
		day := &entity.DaySchedule{
			DayOfWeek:    entity.Saturday,
			MorningStart: "09:00",
			MorningEnd:   "11:00",
			SlotDuration: 60,
		}
		morning, evening, err := DaySlots(day)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "10:00"}, morning)
		assert.Empty(t, evening)
	})
}

func TestContainsSlot(t *testing.T) {
	day := &entity.DaySchedule{
		DayOfWeek:    entity.Monday,
		MorningStart: "09:00",
		MorningEnd:   "10:00",
		EveningStart: "14:00",
		EveningEnd:   "15:00",
		SlotDuration: 30,
	}

	tests := []struct {
		time string
		want bool
	}{
		{"09:00", true},
		{"09:30", true},
		{"14:30", true},
		{"10:00", false}, // end bound, excluded
		{"09:15", false}, // between slots
		{"12:00", false}, // outside both sessions
	}

	for _, tt := range tests {
		t.Run(tt.time, func(t *testing.T) {
			got, err := ContainsSlot(day, tt.time)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
