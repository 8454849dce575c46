// Package availability decides whether an interval on a resource is free of
// blocking bookings. Results are advisory: the store's atomic insert is what
// guarantees exclusivity.
package availability

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/model"
	"courtbook/internal/slots"
)

// BookingFinder is the read side of the booking store used by the checker.
type BookingFinder interface {
	FindOverlapping(ctx context.Context, resourceID string, date, start, end time.Time, statuses []model.Status) ([]model.Booking, error)
}

type Checker struct {
	finder BookingFinder
}

func NewChecker(finder BookingFinder) *Checker {
	return &Checker{finder: finder}
}

// Overlaps reports whether [s1, e1) and [s2, e2) share an instant.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// IsAvailable reports whether no Pending or Confirmed booking overlaps [start, end).
func (c *Checker) IsAvailable(ctx context.Context, resourceID string, date, start, end time.Time) (bool, error) {
	blocking, err := c.finder.FindOverlapping(ctx, resourceID, date, start, end, model.BlockingStatuses)
	if err != nil {
		return false, fmt.Errorf("find overlapping bookings: %w", err)
	}
	return len(blocking) == 0, nil
}

// AnnotateSlots returns a copy of in with Available set per slot. The store
// is queried once for the span covered by the slots.
func (c *Checker) AnnotateSlots(ctx context.Context, resourceID string, date time.Time, in []slots.TimeSlot) ([]slots.TimeSlot, error) {
	if len(in) == 0 {
		return nil, nil
	}

	spanStart, spanEnd := in[0].Start, in[0].End
	for _, s := range in[1:] {
		if s.Start.Before(spanStart) {
			spanStart = s.Start
		}
		if s.End.After(spanEnd) {
			spanEnd = s.End
		}
	}

	blocking, err := c.finder.FindOverlapping(ctx, resourceID, date, spanStart, spanEnd, model.BlockingStatuses)
	if err != nil {
		return nil, fmt.Errorf("find overlapping bookings: %w", err)
	}

	out := make([]slots.TimeSlot, len(in))
	for i, s := range in {
		s.Available = true
		for j := range blocking {
			if Overlaps(s.Start, s.End, blocking[j].StartTime, blocking[j].EndTime) {
				s.Available = false
				break
			}
		}
		out[i] = s
	}
	return out, nil
}
