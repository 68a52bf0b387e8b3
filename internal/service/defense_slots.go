package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Shift is a named half-day block with fixed wall-clock start times.
type Shift struct {
	Name   string
	Starts []string
}

// Shift names.
const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
)

// DefaultShifts are the defense shift tables. Consecutive starts are one
// 35 minute session apart; the lunch break is implicit in the gap.
var DefaultShifts = []Shift{
	{Name: ShiftMorning, Starts: []string{"07:15", "07:50", "08:25", "09:00", "09:35", "10:10"}},
	{Name: ShiftAfternoon, Starts: []string{"13:30", "14:05", "14:40", "15:15", "15:50", "16:25"}},
}

// ShiftSlots holds the still-bookable start instants of one shift.
type ShiftSlots struct {
	Shift  string
	Starts []time.Time
}

// FixedZone returns the regional zone used to interpret shift tables.
func FixedZone(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

// GenerateDaySlots expands shifts for the calendar date of day (read in loc)
// into absolute instants, keeping only those strictly after now. Shift order
// and the order of starts within a shift are preserved; a shift whose slots
// are all in the past is returned with no starts.
func GenerateDaySlots(day time.Time, shifts []Shift, loc *time.Location, now time.Time) []ShiftSlots {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.In(loc).Date()

	out := make([]ShiftSlots, 0, len(shifts))
	for _, shift := range shifts {
		slots := ShiftSlots{Shift: shift.Name}
		for _, clock := range shift.Starts {
			hour, minute, ok := parseClock(clock)
			if !ok {
				continue
			}
			start := time.Date(y, m, d, hour, minute, 0, 0, loc)
			if start.After(now) {
				slots.Starts = append(slots.Starts, start)
			}
		}
		out = append(out, slots)
	}
	return out
}

// IsShiftSlot reports whether t falls exactly on a start listed in shifts.
func IsShiftSlot(t time.Time, shifts []Shift, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	for _, shift := range shifts {
		for _, clock := range shift.Starts {
			hour, minute, ok := parseClock(clock)
			if ok && local.Hour() == hour && local.Minute() == minute {
				return true
			}
		}
	}
	return false
}

func parseClock(raw string) (int, int, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
