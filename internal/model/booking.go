package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of booking dates.
const DateLayout = "2006-01-02"

// AddOn is an extra charge attached to a booking (equipment rental, lighting).
type AddOn struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Booking is a reservation of a resource for [StartTime, EndTime) on Date.
type Booking struct {
	ID                 string          `json:"id"`
	ResourceID         string          `json:"resource_id"`
	RequesterID        string          `json:"requester_id"`
	Date               time.Time       `json:"date"`
	StartTime          time.Time       `json:"start_time"`
	EndTime            time.Time       `json:"end_time"`
	DurationHours      decimal.Decimal `json:"duration_hours"`
	Status             Status          `json:"status"`
	AddOns             []AddOn         `json:"add_ons,omitempty"`
	DiscountCode       string          `json:"discount_code,omitempty"`
	BaseAmount         decimal.Decimal `json:"base_amount"`
	AdditionalCharges  decimal.Decimal `json:"additional_charges"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	Version            int64           `json:"version"`
}

// Duration returns EndTime - StartTime.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// DateKey returns the booking date as YYYY-MM-DD.
func (b *Booking) DateKey() string {
	return b.Date.Format(DateLayout)
}

// OverlapsWith reports whether both bookings share at least one instant.
// Intervals are half-open: a booking ending at 10:00 does not overlap one starting at 10:00.
func (b *Booking) OverlapsWith(other *Booking) bool {
	return b.StartTime.Before(other.EndTime) && other.StartTime.Before(b.EndTime)
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.AddOns != nil {
		c.AddOns = append([]AddOn(nil), b.AddOns...)
	}
	c.ConfirmedAt = cloneTime(b.ConfirmedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// DayStart truncates t to midnight in its own location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
