// Package slots derives candidate reservable intervals from operating hours.
package slots

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"courtbook/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultGranularity is the slot length used when none is configured.
const DefaultGranularity = time.Hour

// TimeSlot is a computed interval [Start, End). Available is only meaningful
// after annotation by the availability checker.
type TimeSlot struct {
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	Available     bool            `json:"available"`
}

// SlotInfo is a simplified representation for API responses.
type SlotInfo struct {
	Start     string `json:"start"` // "10:00"
	End       string `json:"end"`   // "11:00"
	Available bool   `json:"available"`
}

// GenerateSlots returns consecutive slots of length granularity between open
// and close on date. A trailing interval shorter than granularity is dropped.
// Closed days yield no slots.
func GenerateSlots(date time.Time, hours model.DayHours, granularity time.Duration) ([]TimeSlot, error) {
	if !hours.IsOpen {
		return nil, nil
	}
	if granularity <= 0 {
		granularity = DefaultGranularity
	}

	open, closeAt, err := HoursWindow(date, hours)
	if err != nil {
		return nil, err
	}

	hoursPerSlot := HoursOf(granularity)
	var slots []TimeSlot
	for cursor := open; !cursor.Add(granularity).After(closeAt); cursor = cursor.Add(granularity) {
		slots = append(slots, TimeSlot{
			Start:         cursor,
			End:           cursor.Add(granularity),
			DurationHours: hoursPerSlot,
		})
	}

	return slots, nil
}

// HoursWindow returns the open and close instants of hours on date.
func HoursWindow(date time.Time, hours model.DayHours) (time.Time, time.Time, error) {
	open, err := ParseTimeOnDate(date, hours.Open)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse open time: %w", err)
	}
	closeAt, err := ParseTimeOnDate(date, hours.Close)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse close time: %w", err)
	}
	if !closeAt.After(open) {
		return time.Time{}, time.Time{}, fmt.Errorf("close time %s must be after open time %s", hours.Close, hours.Open)
	}
	return open, closeAt, nil
}

// WithinHours reports whether [start, end) lies entirely inside the operating
// hours of its date. Closed days contain nothing.
func WithinHours(date time.Time, hours model.DayHours, start, end time.Time) (bool, error) {
	if !hours.IsOpen {
		return false, nil
	}
	open, closeAt, err := HoursWindow(date, hours)
	if err != nil {
		return false, err
	}
	return !start.Before(open) && !end.After(closeAt), nil
}

// HoursOf converts a duration to fractional hours.
func HoursOf(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Minute)).Div(decimal.NewFromInt(60))
}

// ToSlotInfo converts slots to SlotInfo for API responses.
func ToSlotInfo(slots []TimeSlot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start:     s.Start.Format("15:04"),
			End:       s.End.Format("15:04"),
			Available: s.Available,
		}
	}
	return result
}

// AvailableOnly filters slots down to the available ones, keeping order.
func AvailableOnly(slots []TimeSlot) []TimeSlot {
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// Window is a free interval [Start, End) built from adjacent available slots.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// WindowInfo is the API form of a Window.
type WindowInfo struct {
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
}

// FreeWindows merges runs of available slots that touch end-to-start into
// maximal windows and keeps those at least minLen long.
func FreeWindows(slots []TimeSlot, minLen time.Duration) []Window {
	free := AvailableOnly(slots)
	sort.Slice(free, func(i, j int) bool { return free[i].Start.Before(free[j].Start) })

	var windows []Window
	keep := func(w Window) {
		if w.Duration() >= minLen {
			windows = append(windows, w)
		}
	}

	var cur *Window
	for _, s := range free {
		if cur != nil && s.Start.Equal(cur.End) {
			cur.End = s.End
			continue
		}
		if cur != nil {
			keep(*cur)
		}
		cur = &Window{Start: s.Start, End: s.End}
	}
	if cur != nil {
		keep(*cur)
	}
	return windows
}

// ToWindowInfo converts windows for API responses.
func ToWindowInfo(windows []Window) []WindowInfo {
	out := make([]WindowInfo, len(windows))
	for i, w := range windows {
		out[i] = WindowInfo{
			Start:           w.Start.Format("15:04"),
			End:             w.End.Format("15:04"),
			DurationMinutes: int(w.Duration() / time.Minute),
		}
	}
	return out
}

// ParseTimeOnDate places an "HH:MM" clock value on date in date's location.
func ParseTimeOnDate(date time.Time, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

// ParseClock parses "HH:MM". "24:00" is accepted as end of day.
func ParseClock(clock string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %q", clock)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute: %w", err)
	}

	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, 0, fmt.Errorf("time out of range: %q", clock)
	}
	return hour, minute, nil
}

// FormatDuration formats d as "1 h 30 min".
func FormatDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}
