// Package events fans booking lifecycle events out to sinks. Delivery is
// fire-and-forget: a failing sink never affects the booking that emitted it.
package events

import (
	"context"
	"sync"
	"time"

	"courtbook/internal/metrics"
	"courtbook/internal/model"

	"github.com/rs/zerolog"
)

// Type names a lifecycle event.
type Type string

const (
	TypeCreated   Type = "booking.created"
	TypeConfirmed Type = "booking.confirmed"
	TypeCancelled Type = "booking.cancelled"
	TypeCompleted Type = "booking.completed"
)

// TypeForStatus returns the event emitted when a booking enters status.
func TypeForStatus(status model.Status) Type {
	switch status {
	case model.StatusConfirmed:
		return TypeConfirmed
	case model.StatusCancelled:
		return TypeCancelled
	case model.StatusCompleted:
		return TypeCompleted
	default:
		return TypeCreated
	}
}

// Event is a lifecycle event carrying a snapshot of the booking.
type Event struct {
	Type       Type          `json:"type"`
	Booking    model.Booking `json:"booking"`
	Actor      string        `json:"actor,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Handler reacts to an event.
type Handler func(ctx context.Context, event Event) error

type subscription struct {
	name    string
	handler Handler
}

// Bus provides in-process pub/sub for lifecycle events.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]subscription
	wildcard    []subscription
	logger      zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[Type][]subscription),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for one event type. name labels failures in
// logs and metrics.
func (b *Bus) Subscribe(eventType Type, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{name: name, handler: handler})
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, subscription{name: name, handler: handler})
}

// Emit delivers event to its subscribers. Handlers run synchronously; errors
// are logged and counted, never returned.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[event.Type]...)
	subs = append(subs, b.wildcard...)
	b.mu.RUnlock()

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	for _, s := range subs {
		if err := s.handler(ctx, event); err != nil {
			metrics.IncNotifyFailure(s.name)
			b.logger.Warn().Err(err).
				Str("sink", s.name).
				Str("event", string(event.Type)).
				Str("booking_id", event.Booking.ID).
				Msg("event delivery failed")
		}
	}
}

// LogSink writes every event as a structured log line.
func LogSink(logger zerolog.Logger) Handler {
	return func(_ context.Context, event Event) error {
		logger.Info().
			Str("event", string(event.Type)).
			Str("booking_id", event.Booking.ID).
			Str("resource_id", event.Booking.ResourceID).
			Str("status", event.Booking.Status.String()).
			Str("actor", event.Actor).
			Msg("booking event")
		return nil
	}
}
