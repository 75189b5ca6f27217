package models

import "time"

// EventWeekend is one weekend of the gathering.
type EventWeekend struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"-"`
	EndDate   time.Time `json:"-"`
}

// EventSlot is an attendable unit (a meal or evening) within a weekend.
// Slots of a weekend are ordered by (OrderIndex, ID).
type EventSlot struct {
	ID         int64     `json:"id"`
	WeekendID  int64     `json:"weekend_id"`
	Date       time.Time `json:"-"`
	Label      string    `json:"label"`
	OrderIndex int       `json:"order_index"`
}

// WeekendSlots pairs a weekend with its ordered slots.
type WeekendSlots struct {
	Weekend *EventWeekend
	Slots   []*EventSlot
}
