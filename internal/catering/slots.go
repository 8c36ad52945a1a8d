package catering

import (
	"time"
)

// MealPeriod identifies one of the platform's three daily meals.
type MealPeriod string

const (
	PeriodBreakfast MealPeriod = "BREAKFAST"
	PeriodLunch     MealPeriod = "LUNCH"
	PeriodDinner    MealPeriod = "DINNER"
)

// SlotStatus is the upstream's per-slot ordering state.
type SlotStatus string

const (
	StatusOpen       SlotStatus = "OPEN"        // open for ordering
	StatusOrdered    SlotStatus = "ORDERED"     // an order is already placed
	StatusClosed     SlotStatus = "CLOSED"      // past the modification window
	StatusNotOffered SlotStatus = "NOT_OFFERED" // upstream reports no offering
)

// TargetTime returns the fixed booking-window clock time the upstream expects
// for menu and order requests of this period. The three values are a quirk of
// the platform's booking windows and must not be changed.
func TargetTime(p MealPeriod) string {
	switch p {
	case PeriodBreakfast:
		return "07:00"
	case PeriodDinner:
		return "12:00"
	default:
		return "09:00"
	}
}

const dateLayout = "2006-01-02"

// Slot is one (date, meal period) ordering opportunity. Slots are produced
// fresh on every calendar read and never persisted.
type Slot struct {
	Date      string     `json:"date"` // YYYY-MM-DD
	Period    MealPeriod `json:"period"`
	Status    SlotStatus `json:"status"`
	Channel   string     `json:"channel"` // opaque order-channel handle
	OrderID   string     `json:"orderId,omitempty"`
	CloseTime string     `json:"closeTime,omitempty"` // "15:04" or a full datetime
	AddressID string     `json:"addressId,omitempty"` // previously used delivery address
	Namespace string     `json:"namespace,omitempty"` // corp account context for address lookups
}

// Day parses the slot's calendar date in the local timezone.
func (s Slot) Day() (time.Time, error) {
	return time.ParseInLocation(dateLayout, s.Date, time.Local)
}

// IsWeekend reports whether the slot falls on a Saturday or Sunday.
// An unparsable date counts as a weekday.
func (s Slot) IsWeekend() bool {
	d, err := s.Day()
	if err != nil {
		return false
	}
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

var closeTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Deadline resolves the slot's modification deadline, if one is present.
// A bare time of day is combined with the slot's date; otherwise the value is
// parsed as a full datetime.
func (s Slot) Deadline() (time.Time, bool) {
	if s.CloseTime == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation("15:04", s.CloseTime, time.Local); err == nil {
		day, derr := s.Day()
		if derr != nil {
			return time.Time{}, false
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), true
	}
	for _, layout := range closeTimeLayouts {
		if t, err := time.ParseInLocation(layout, s.CloseTime, time.Local); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, s.CloseTime); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Editable reports whether the slot may still be modified at the given time.
// Slots without a resolvable deadline are considered editable; past-deadline
// slots are read-only regardless of status.
func (s Slot) Editable(now time.Time) bool {
	deadline, ok := s.Deadline()
	if !ok {
		return true
	}
	return now.Before(deadline)
}
