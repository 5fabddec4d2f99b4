package models

import "regexp"

// Day identifies a teaching day of the week. Sunday is never scheduled.
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
)

// Days lists teaching days in scheduling order. Placement search iterates
// this slice, so its order is part of the determinism contract.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Period is the half-day granularity used for teacher availability and
// preferences.
type Period string

const (
	Morning   Period = "morning"
	Afternoon Period = "afternoon"
)

// SlotDurationHours is the fixed length of one teaching slot.
const SlotDurationHours = 1.5

const (
	// SlotsPerDay is the slot count on an unrestricted day: three in the
	// morning (indices 0-2) and two in the afternoon (3-4).
	SlotsPerDay = 5
	// MorningSlots is the count of morning slots; indices below this value
	// fall in the morning period.
	MorningSlots = 3
)

var weekRefPattern = regexp.MustCompile(`^\d{4}-W\d{2}$`)

// IsValidDay reports whether the given value names a teaching day.
func IsValidDay(d Day) bool {
	for _, day := range Days {
		if day == d {
			return true
		}
	}
	return false
}

// SlotsFor returns the ordered valid slot indices for a day. Wednesday is
// restricted to morning slots.
func SlotsFor(day Day) []int {
	if day == Wednesday {
		return []int{0, 1, 2}
	}
	return []int{0, 1, 2, 3, 4}
}

// PeriodOf maps a slot index onto its half-day period.
func PeriodOf(slotIndex int) Period {
	if slotIndex < MorningSlots {
		return Morning
	}
	return Afternoon
}

// HasSlot reports whether slotIndex is valid on the given day.
func HasSlot(day Day, slotIndex int) bool {
	for _, idx := range SlotsFor(day) {
		if idx == slotIndex {
			return true
		}
	}
	return false
}

// IsValidWeekRef reports whether the value matches the YYYY-Www period
// format (e.g. 2024-W42).
func IsValidWeekRef(week string) bool {
	return weekRefPattern.MatchString(week)
}
