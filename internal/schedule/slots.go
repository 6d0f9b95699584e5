package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"clinic-booking-api/internal/domain/entity"
)

var (
	ErrInvalidSlotDuration = errors.New("slot duration must be a positive number of minutes")
	ErrInvalidClockTime    = errors.New("invalid clock time, use HH:MM")
)

// ParseClock parses an "HH:MM" clock time into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, ErrInvalidClockTime
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, ErrInvalidClockTime
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, ErrInvalidClockTime
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, ErrInvalidClockTime
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// GenerateSlots produces the ordered slot start times for one session window.
//
// The window is half-open [start, end): slots begin at start, step by
// durationMinutes, and the first time >= end is excluded. An absent bound or
// start >= end yields no slots. A non-positive duration is a schedule
// configuration error, not an empty result.
func GenerateSlots(start, end string, durationMinutes int) ([]string, error) {
	if start == "" || end == "" {
		return nil, nil
	}
	if durationMinutes <= 0 {
		return nil, ErrInvalidSlotDuration
	}

	from, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	if from >= to {
		return nil, nil
	}

	slots := make([]string, 0, (to-from)/durationMinutes+1)
	for t := from; t < to; t += durationMinutes {
		slots = append(slots, FormatClock(t))
	}
	return slots, nil
}

// DaySlots returns the morning and evening slot lists for a day entry.
//
// An off day yields empty lists regardless of the window fields. The
// pre-materialized slot caches are used verbatim when present; otherwise the
// lists are generated from the window bounds and slot duration. The two
// sessions are independent and never checked against each other.
func DaySlots(day *entity.DaySchedule) (morning, evening []string, err error) {
	if day == nil || day.IsOffDay {
		return nil, nil, nil
	}

	if len(day.MorningSlots) > 0 {
		morning = day.MorningSlots
	} else {
		morning, err = GenerateSlots(day.MorningStart, day.MorningEnd, day.SlotDuration)
		if err != nil {
			return nil, nil, err
		}
	}

	if len(day.EveningSlots) > 0 {
		evening = day.EveningSlots
	} else {
		evening, err = GenerateSlots(day.EveningStart, day.EveningEnd, day.SlotDuration)
		if err != nil {
			return nil, nil, err
		}
	}

	return morning, evening, nil
}

// ContainsSlot reports whether t is one of the day's generated slots.
func ContainsSlot(day *entity.DaySchedule, t string) (bool, error) {
	morning, evening, err := DaySlots(day)
	if err != nil {
		return false, err
	}
	for _, s := range morning {
		if s == t {
			return true, nil
		}
	}
	for _, s := range evening {
		if s == t {
			return true, nil
		}
	}
	return false, nil
}
