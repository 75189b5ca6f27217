package models

import "time"

// PersonAttendance records that a person attends a slot.
// A missing row means not present; rows with Present=false are treated the same way.
type PersonAttendance struct {
	ID        int64     `json:"id"`
	PersonID  int64     `json:"person_id"`
	SlotID    int64     `json:"slot_id"`
	Present   bool      `json:"present"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotKey identifies one (person, slot) cell of the attendance grid.
type SlotKey struct {
	PersonID int64 `json:"person_id"`
	SlotID   int64 `json:"slot_id"`
}

// SlotKeySet is a set of attendance cells.
type SlotKeySet map[SlotKey]struct{}

// NewSlotKeySet builds a set from keys.
func NewSlotKeySet(keys ...SlotKey) SlotKeySet {
	s := make(SlotKeySet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts k.
func (s SlotKeySet) Add(k SlotKey) {
	s[k] = struct{}{}
}

// Has reports whether k is in the set.
func (s SlotKeySet) Has(k SlotKey) bool {
	_, ok := s[k]
	return ok
}

// AttendanceView is the aggregate shown to one household.
type AttendanceView struct {
	// Household members, subject first.
	Household []*Person
	// Weekends sorted by start date, each with its ordered slots.
	Weekends []*WeekendSlots
	// PresentMap has an entry for every household member x slot.
	PresentMap map[SlotKey]bool
	// TotalsPerSlot counts present rows across all people; slots with no attendance are absent.
	TotalsPerSlot map[int64]int
	// OthersPresent holds attendance of people outside the household.
	OthersPresent SlotKeySet
	// OthersByWeekend lists, per weekend id, outsiders present on at least one of its slots,
	// ordered by person id.
	OthersByWeekend map[int64][]*Person
}
