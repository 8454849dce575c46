package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"courtbook/internal/model"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ResourceConfig is a single court in resources.yaml.
type ResourceConfig struct {
	ID          string                    `yaml:"id"`
	Name        string                    `yaml:"name"`
	OwnerID     string                    `yaml:"owner_id"`
	RatePerHour string                    `yaml:"rate_per_hour"` // "25.00"
	IsActive    bool                      `yaml:"is_active"`
	Hours       map[string]model.DayHours `yaml:"hours,omitempty"` // keyed by weekday name
}

// HolidayConfig closes every resource on Date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-12-25"
	Name string `yaml:"name"`
}

// DiscountConfig is a discount code entry.
type DiscountConfig struct {
	Code  string `yaml:"code"`
	Kind  string `yaml:"kind"`  // amount | percent
	Value string `yaml:"value"` // "10" or "10.50"
}

// DefaultsConfig is applied to resources without explicit hours.
type DefaultsConfig struct {
	Hours map[string]model.DayHours `yaml:"hours"`
}

// File is the root of resources.yaml.
type File struct {
	Resources []ResourceConfig `yaml:"resources"`
	Defaults  DefaultsConfig   `yaml:"defaults"`
	Holidays  []HolidayConfig  `yaml:"holidays"`
	Discounts []DiscountConfig `yaml:"discounts"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// LoadFile loads and validates the catalog file at path.
func LoadFile(path string) (*File, error) {
	if path == "" {
		path = "configs/resources.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	f.applyDefaults()

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	return &f, nil
}

// Validate checks the catalog for errors.
func (f *File) Validate() error {
	if len(f.Resources) == 0 {
		return fmt.Errorf("no resources defined")
	}

	ids := make(map[string]bool)
	for i, r := range f.Resources {
		if r.ID == "" {
			return fmt.Errorf("resource[%d]: id is required", i)
		}
		if ids[r.ID] {
			return fmt.Errorf("resource[%d]: duplicate id '%s'", i, r.ID)
		}
		ids[r.ID] = true

		if r.Name == "" {
			return fmt.Errorf("resource[%d]: name is required", i)
		}

		rate, err := decimal.NewFromString(r.RatePerHour)
		if err != nil {
			return fmt.Errorf("resource[%d]: invalid rate_per_hour '%s'", i, r.RatePerHour)
		}
		if rate.IsNegative() {
			return fmt.Errorf("resource[%d]: rate_per_hour cannot be negative", i)
		}

		if err := validateHours(r.Hours, fmt.Sprintf("resource[%d].hours", i)); err != nil {
			return err
		}
	}

	if err := validateHours(f.Defaults.Hours, "defaults.hours"); err != nil {
		return err
	}

	for i, h := range f.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse(model.DateLayout, h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	codes := make(map[string]bool)
	for i, d := range f.Discounts {
		code := strings.ToUpper(strings.TrimSpace(d.Code))
		if code == "" {
			return fmt.Errorf("discount[%d]: code is required", i)
		}
		if codes[code] {
			return fmt.Errorf("discount[%d]: duplicate code '%s'", i, d.Code)
		}
		codes[code] = true

		kind := model.DiscountKind(d.Kind)
		if kind != model.DiscountAmount && kind != model.DiscountPercent {
			return fmt.Errorf("discount[%d]: kind must be amount or percent, got '%s'", i, d.Kind)
		}
		value, err := decimal.NewFromString(d.Value)
		if err != nil {
			return fmt.Errorf("discount[%d]: invalid value '%s'", i, d.Value)
		}
		if value.IsNegative() {
			return fmt.Errorf("discount[%d]: value cannot be negative", i)
		}
		if kind == model.DiscountPercent && value.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("discount[%d]: percent cannot exceed 100", i)
		}
	}

	return nil
}

func validateHours(hours map[string]model.DayHours, prefix string) error {
	for name, h := range hours {
		if _, ok := weekdays[strings.ToLower(name)]; !ok {
			return fmt.Errorf("%s: unknown weekday '%s'", prefix, name)
		}
		if !h.IsOpen {
			continue
		}

		open, err := time.Parse("15:04", h.Open)
		if err != nil {
			return fmt.Errorf("%s.%s.open: invalid format '%s', expected HH:MM", prefix, name, h.Open)
		}
		// 24:00 is a valid closing time and does not parse as 15:04.
		if h.Close == "24:00" {
			continue
		}
		closeAt, err := time.Parse("15:04", h.Close)
		if err != nil {
			return fmt.Errorf("%s.%s.close: invalid format '%s', expected HH:MM", prefix, name, h.Close)
		}
		if !closeAt.After(open) {
			return fmt.Errorf("%s.%s: close must be after open", prefix, name)
		}
	}
	return nil
}

func (f *File) applyDefaults() {
	for i := range f.Resources {
		if len(f.Resources[i].Hours) == 0 && len(f.Defaults.Hours) > 0 {
			f.Resources[i].Hours = f.Defaults.Hours
		}
	}
}

// ActiveResources converts active entries to domain resources. Holidays are
// attached to every resource as closed dates. Call Validate first.
func (f *File) ActiveResources() []model.Resource {
	closed := make(map[string]string, len(f.Holidays))
	for _, h := range f.Holidays {
		closed[h.Date] = h.Name
	}

	result := make([]model.Resource, 0, len(f.Resources))
	for _, r := range f.Resources {
		if !r.IsActive {
			continue
		}
		hours := make(map[time.Weekday]model.DayHours, len(r.Hours))
		for name, h := range r.Hours {
			hours[weekdays[strings.ToLower(name)]] = h
		}
		result = append(result, model.Resource{
			ID:          r.ID,
			Name:        r.Name,
			OwnerID:     r.OwnerID,
			RatePerHour: decimal.RequireFromString(r.RatePerHour),
			Hours:       hours,
			ClosedDates: closed,
		})
	}
	return result
}

// DiscountList converts discount entries. Call Validate first.
func (f *File) DiscountList() []model.Discount {
	result := make([]model.Discount, 0, len(f.Discounts))
	for _, d := range f.Discounts {
		result = append(result, model.Discount{
			Code:  d.Code,
			Kind:  model.DiscountKind(d.Kind),
			Value: decimal.RequireFromString(d.Value),
		})
	}
	return result
}

// String returns a summary of the catalog.
func (f *File) String() string {
	active := 0
	for _, r := range f.Resources {
		if r.IsActive {
			active++
		}
	}
	return fmt.Sprintf("Catalog: %d resources (%d active), %d holidays, %d discounts",
		len(f.Resources), active, len(f.Holidays), len(f.Discounts))
}
