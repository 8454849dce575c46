package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayHours holds operating hours for a single weekday. Open and Close are
// ignored when IsOpen is false.
type DayHours struct {
	IsOpen bool   `json:"is_open" yaml:"is_open"`
	Open   string `json:"open" yaml:"open"`   // "08:00"
	Close  string `json:"close" yaml:"close"` // "22:00"
}

// Resource is a bookable unit (a court) as seen by the scheduling engine.
type Resource struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	OwnerID     string                    `json:"owner_id"`
	RatePerHour decimal.Decimal           `json:"rate_per_hour"`
	Hours       map[time.Weekday]DayHours `json:"hours"`
	// ClosedDates maps YYYY-MM-DD to a reason (holidays, maintenance).
	ClosedDates map[string]string `json:"closed_dates,omitempty"`
}

// HoursFor returns operating hours for weekday. A weekday without an entry is closed.
func (r *Resource) HoursFor(weekday time.Weekday) DayHours {
	if r == nil || r.Hours == nil {
		return DayHours{}
	}
	return r.Hours[weekday]
}

// HoursOn returns operating hours for a concrete date, honoring ClosedDates.
func (r *Resource) HoursOn(date time.Time) DayHours {
	if r == nil {
		return DayHours{}
	}
	if _, closed := r.ClosedDates[date.Format(DateLayout)]; closed {
		return DayHours{}
	}
	return r.HoursFor(date.Weekday())
}
