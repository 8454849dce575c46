// Package booking implements the booking lifecycle: creation with an atomic
// availability guarantee and status transitions through a fixed table.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"courtbook/internal/availability"
	"courtbook/internal/catalog"
	"courtbook/internal/events"
	"courtbook/internal/lock"
	"courtbook/internal/metrics"
	"courtbook/internal/model"
	"courtbook/internal/pricing"
	"courtbook/internal/slots"
	"courtbook/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxUpdateAttempts = 3

// Catalog provides read-only resource data.
type Catalog interface {
	GetResource(ctx context.Context, id string) (*model.Resource, error)
}

// DiscountResolver maps a discount code to its definition. Empty codes resolve to nil.
type DiscountResolver interface {
	ResolveDiscount(code string) (*model.Discount, error)
}

// Store persists bookings. InsertIfAvailable must check overlap and insert
// atomically.
type Store interface {
	Get(ctx context.Context, id string) (*model.Booking, error)
	FindOverlapping(ctx context.Context, resourceID string, date, start, end time.Time, statuses []model.Status) ([]model.Booking, error)
	ListByResourceDate(ctx context.Context, resourceID string, date time.Time) ([]model.Booking, error)
	FindElapsed(ctx context.Context, status model.Status, before time.Time, limit int) ([]model.Booking, error)
	InsertIfAvailable(ctx context.Context, b *model.Booking) (*model.Booking, error)
	Update(ctx context.Context, b *model.Booking) (*model.Booking, error)
}

// Notifier receives lifecycle events. It must not block for long.
type Notifier interface {
	Emit(ctx context.Context, event events.Event)
}

// CreateRequest is the input of Create. Date is YYYY-MM-DD, times are HH:MM.
type CreateRequest struct {
	ResourceID   string        `json:"resource_id"`
	RequesterID  string        `json:"requester_id"`
	Date         string        `json:"date"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	AddOns       []model.AddOn `json:"add_ons,omitempty"`
	DiscountCode string        `json:"discount_code,omitempty"`
}

// Options tune the booking rules.
type Options struct {
	MinDuration        time.Duration
	BillingGranularity time.Duration
	SlotGranularity    time.Duration
	Location           *time.Location
	Now                func() time.Time
}

func (o *Options) applyDefaults() {
	if o.MinDuration <= 0 {
		o.MinDuration = time.Hour
	}
	if o.BillingGranularity <= 0 {
		o.BillingGranularity = 30 * time.Minute
	}
	if o.SlotGranularity <= 0 {
		o.SlotGranularity = slots.DefaultGranularity
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Deps are the collaborators of a Manager. Locker and Notifier may be nil.
type Deps struct {
	Catalog    Catalog
	Discounts  DiscountResolver
	Store      Store
	Locker     lock.Locker
	Notifier   Notifier
	Authorizer Authorizer
}

// Manager owns every booking mutation.
type Manager struct {
	catalog    Catalog
	discounts  DiscountResolver
	store      Store
	checker    *availability.Checker
	locker     lock.Locker
	notifier   Notifier
	authorizer Authorizer
	opts       Options
	logger     zerolog.Logger
}

func NewManager(deps Deps, opts Options, logger zerolog.Logger) *Manager {
	opts.applyDefaults()
	authorizer := deps.Authorizer
	if authorizer == nil {
		authorizer = NewRoleAuthorizer(nil)
	}
	return &Manager{
		catalog:    deps.Catalog,
		discounts:  deps.Discounts,
		store:      deps.Store,
		checker:    availability.NewChecker(deps.Store),
		locker:     deps.Locker,
		notifier:   deps.Notifier,
		authorizer: authorizer,
		opts:       opts,
		logger:     logger.With().Str("component", "booking_manager").Logger(),
	}
}

// Create validates req, checks availability and price, and stores a Pending
// booking. A lost race at insert time is reported as ErrSlotUnavailable.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	started := time.Now()
	defer metrics.ObserveCreate(started)

	b, err := m.create(ctx, req)
	switch {
	case err == nil:
		metrics.IncBookingCreated("success")
	case errors.Is(err, ErrSlotUnavailable):
		metrics.IncBookingCreated("conflict")
	case IsBusinessError(err):
		metrics.IncBookingCreated("rejected")
	default:
		metrics.IncBookingCreated("error")
		m.logger.Error().Err(err).Str("resource_id", req.ResourceID).Msg("booking creation failed")
	}
	return b, err
}

func (m *Manager) create(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	date, err := m.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	start, err := slots.ParseTimeOnDate(date, req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start_time: %v", ErrValidation, err)
	}
	end, err := slots.ParseTimeOnDate(date, req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: end_time: %v", ErrValidation, err)
	}

	if date.Before(m.today()) {
		return nil, fmt.Errorf("%w: %s", ErrPastDate, req.Date)
	}

	if err := m.validateDuration(start, end); err != nil {
		return nil, err
	}

	resource, err := m.getResource(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}

	hours := resource.HoursOn(date)
	within, err := slots.WithinHours(date, hours, start, end)
	if err != nil {
		return nil, fmt.Errorf("resource %s hours: %w", resource.ID, err)
	}
	if !within {
		return nil, fmt.Errorf("%w: %s %s-%s is outside operating hours", ErrSlotUnavailable, req.Date, req.StartTime, req.EndTime)
	}

	created, err := m.reserve(ctx, resource, req, date, start, end)
	if err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("booking_id", created.ID).
		Str("resource_id", created.ResourceID).
		Str("requester_id", created.RequesterID).
		Str("date", req.Date).
		Str("start", req.StartTime).
		Str("end", req.EndTime).
		Str("total", created.TotalAmount.StringFixed(2)).
		Msg("booking created")

	m.emit(ctx, events.TypeCreated, created, req.RequesterID)
	return created, nil
}

// reserve runs the availability check and the insert under the
// (resource, date) lock. The lock is released before any event is emitted.
func (m *Manager) reserve(ctx context.Context, resource *model.Resource, req CreateRequest, date, start, end time.Time) (*model.Booking, error) {
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, req.ResourceID+"|"+date.Format(model.DateLayout))
		if err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				metrics.IncLockTimeout()
			}
			return nil, fmt.Errorf("acquire slot lock: %w", err)
		}
		defer unlock()
	}

	available, err := m.checker.IsAvailable(ctx, resource.ID, date, start, end)
	if err != nil {
		return nil, err
	}
	if !available {
		metrics.IncSlotConflict("check")
		m.logger.Warn().
			Str("resource_id", resource.ID).
			Str("date", req.Date).
			Str("start", req.StartTime).
			Str("end", req.EndTime).
			Msg("slot already booked")
		return nil, fmt.Errorf("%w: %s %s-%s", ErrSlotUnavailable, req.Date, req.StartTime, req.EndTime)
	}

	durationHours := slots.HoursOf(end.Sub(start))
	quote, err := m.price(resource, durationHours, req)
	if err != nil {
		return nil, err
	}

	now := m.opts.Now()
	candidate := &model.Booking{
		ResourceID:        resource.ID,
		RequesterID:       req.RequesterID,
		Date:              date,
		StartTime:         start,
		EndTime:           end,
		DurationHours:     durationHours,
		Status:            model.StatusPending,
		AddOns:            req.AddOns,
		DiscountCode:      strings.TrimSpace(req.DiscountCode),
		BaseAmount:        quote.BaseAmount,
		AdditionalCharges: quote.AdditionalCharges,
		DiscountAmount:    quote.DiscountAmount,
		TotalAmount:       quote.TotalAmount,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created, err := m.store.InsertIfAvailable(ctx, candidate)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			metrics.IncSlotConflict("insert")
			m.logger.Warn().
				Str("resource_id", resource.ID).
				Str("date", req.Date).
				Str("start", req.StartTime).
				Str("end", req.EndTime).
				Msg("slot taken concurrently")
			return nil, fmt.Errorf("%w: %s %s-%s", ErrSlotUnavailable, req.Date, req.StartTime, req.EndTime)
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	return created, nil
}

// UpdateStatus moves booking id to status on behalf of actor. reason is kept
// only for cancellations.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status model.Status, actor, reason string) (*model.Booking, error) {
	b, err := m.updateStatus(ctx, id, status, actor, reason, true)
	outcome := "success"
	switch {
	case err == nil:
	case IsBusinessError(err):
		outcome = "rejected"
	default:
		outcome = "error"
		m.logger.Error().Err(err).Str("booking_id", id).Str("status", status.String()).Msg("status update failed")
	}
	metrics.IncStatusTransition(status.String(), outcome)
	return b, err
}

func (m *Manager) updateStatus(ctx context.Context, id string, status model.Status, actor, reason string, authorize bool) (*model.Booking, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: booking id is required", ErrValidation)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	updated, err := m.transition(ctx, id, status, actor, reason, authorize)
	if err != nil {
		return nil, err
	}
	m.emit(ctx, events.TypeForStatus(status), updated, actor)
	return updated, nil
}

// transition applies status to booking id under the per-booking lock,
// retrying stale versions.
func (m *Manager) transition(ctx context.Context, id string, status model.Status, actor, reason string, authorize bool) (*model.Booking, error) {
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "booking|"+id)
		if err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				metrics.IncLockTimeout()
			}
			return nil, fmt.Errorf("acquire booking lock: %w", err)
		}
		defer unlock()
	}

	for attempt := 1; ; attempt++ {
		current, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if authorize {
			resource, err := m.catalog.GetResource(ctx, current.ResourceID)
			if err != nil && !errors.Is(err, catalog.ErrResourceNotFound) {
				return nil, fmt.Errorf("get resource: %w", err)
			}
			if !m.authorizer.CanTransition(ctx, actor, current, resource, status) {
				return nil, fmt.Errorf("%w: %s cannot move booking %s to %s", ErrUnauthorized, actor, id, status)
			}
		}

		if IsTerminal(current.Status) {
			return nil, fmt.Errorf("%w: booking %s is already %s", ErrInvalidTransition, id, current.Status)
		}
		if !CanTransition(current.Status, status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
		}

		next := current.Clone()
		applyTransition(next, status, reason, m.opts.Now())

		updated, err := m.store.Update(ctx, next)
		if err == nil {
			m.logger.Info().
				Str("booking_id", id).
				Str("from", current.Status.String()).
				Str("to", status.String()).
				Str("actor", actor).
				Msg("booking status changed")
			return updated, nil
		}

		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
		case errors.Is(err, store.ErrConcurrentModification) && attempt < maxUpdateAttempts:
			m.logger.Debug().Str("booking_id", id).Int("attempt", attempt).Msg("stale booking version, retrying")
			continue
		default:
			return nil, fmt.Errorf("update booking: %w", err)
		}
	}
}

func applyTransition(b *model.Booking, status model.Status, reason string, now time.Time) {
	b.Status = status
	b.UpdatedAt = now
	switch status {
	case model.StatusConfirmed:
		b.ConfirmedAt = &now
	case model.StatusCancelled:
		b.CancelledAt = &now
		b.CancellationReason = strings.TrimSpace(reason)
	case model.StatusCompleted:
		b.CompletedAt = &now
	}
}

// Get returns the booking with id.
func (m *Manager) Get(ctx context.Context, id string) (*model.Booking, error) {
	b, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns every booking of resourceID on date, any status.
func (m *Manager) ListBookings(ctx context.Context, resourceID string, date time.Time) ([]model.Booking, error) {
	if strings.TrimSpace(resourceID) == "" {
		return nil, fmt.Errorf("%w: resource_id is required", ErrValidation)
	}
	bookings, err := m.store.ListByResourceDate(ctx, resourceID, m.normalizeDate(date))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// GetAvailableSlots returns the day's slots annotated with availability. The
// result is for display and does not reserve anything.
func (m *Manager) GetAvailableSlots(ctx context.Context, resourceID string, date time.Time) ([]slots.TimeSlot, error) {
	resource, err := m.getResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	day := m.normalizeDate(date)
	generated, err := slots.GenerateSlots(day, resource.HoursOn(day), m.opts.SlotGranularity)
	if err != nil {
		return nil, fmt.Errorf("resource %s hours: %w", resource.ID, err)
	}
	return m.checker.AnnotateSlots(ctx, resource.ID, day, generated)
}

// FreeWindows returns the day's free intervals long enough to hold a booking
// of the minimum duration. Like GetAvailableSlots it reserves nothing.
func (m *Manager) FreeWindows(ctx context.Context, resourceID string, date time.Time) ([]slots.Window, error) {
	annotated, err := m.GetAvailableSlots(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	return slots.FreeWindows(annotated, m.opts.MinDuration), nil
}

// ParseDate parses YYYY-MM-DD in the manager's location.
func (m *Manager) ParseDate(s string) (time.Time, error) {
	date, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(s), m.opts.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrValidation, s)
	}
	return date, nil
}

func (m *Manager) getResource(ctx context.Context, id string) (*model.Resource, error) {
	resource, err := m.catalog.GetResource(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return nil, fmt.Errorf("%w: resource %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return resource, nil
}

func (m *Manager) price(resource *model.Resource, durationHours decimal.Decimal, req CreateRequest) (pricing.Quote, error) {
	var discount *model.Discount
	if strings.TrimSpace(req.DiscountCode) != "" {
		if m.discounts == nil {
			return pricing.Quote{}, fmt.Errorf("%w: discount codes are not accepted", ErrValidation)
		}
		d, err := m.discounts.ResolveDiscount(req.DiscountCode)
		if err != nil {
			if errors.Is(err, pricing.ErrUnknownDiscount) {
				return pricing.Quote{}, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			return pricing.Quote{}, fmt.Errorf("resolve discount: %w", err)
		}
		discount = d
	}

	quote, err := pricing.Price(resource.RatePerHour, durationHours, req.AddOns, discount)
	if err != nil {
		if errors.Is(err, pricing.ErrNegativeAmount) {
			return pricing.Quote{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return pricing.Quote{}, fmt.Errorf("price booking: %w", err)
	}
	return quote, nil
}

func (m *Manager) validateDuration(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidDuration)
	}
	d := end.Sub(start)
	if d < m.opts.MinDuration {
		return fmt.Errorf("%w: %s is shorter than the minimum %s",
			ErrInvalidDuration, slots.FormatDuration(d), slots.FormatDuration(m.opts.MinDuration))
	}
	if d%m.opts.BillingGranularity != 0 {
		return fmt.Errorf("%w: duration must be a multiple of %s",
			ErrInvalidDuration, slots.FormatDuration(m.opts.BillingGranularity))
	}
	return nil
}

func validateRequest(req CreateRequest) error {
	var missing []string
	for name, v := range map[string]string{
		"resource_id":  req.ResourceID,
		"requester_id": req.RequesterID,
		"date":         req.Date,
		"start_time":   req.StartTime,
		"end_time":     req.EndTime,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	for i, a := range req.AddOns {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("%w: add_ons[%d]: name is required", ErrValidation, i)
		}
	}
	return nil
}

func (m *Manager) today() time.Time {
	return model.DayStart(m.opts.Now().In(m.opts.Location))
}

// normalizeDate keeps the calendar date of t and moves it to midnight in the
// manager's location.
func (m *Manager) normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, m.opts.Location)
}

func (m *Manager) emit(ctx context.Context, t events.Type, b *model.Booking, actor string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Emit(ctx, events.Event{
		Type:       t,
		Booking:    *b.Clone(),
		Actor:      actor,
		OccurredAt: m.opts.Now(),
	})
}
