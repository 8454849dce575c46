package events

import (
	"context"

	"courtbook/internal/metrics"

	"github.com/rs/zerolog"
)

// DefaultQueueSize is the buffer used when NewQueue gets a non-positive size.
const DefaultQueueSize = 256

type emitter interface {
	Emit(ctx context.Context, event Event)
}

type queued struct {
	ctx   context.Context
	event Event
}

// Queue hands events to a target on a single delivery goroutine so emitters
// never wait on sinks. Events are delivered in order. When the buffer is full
// new events are dropped and counted as "queue" failures.
type Queue struct {
	target emitter
	ch     chan queued
	logger zerolog.Logger
}

// NewQueue wraps target. Run must be started for events to be delivered.
func NewQueue(target emitter, size int, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		target: target,
		ch:     make(chan queued, size),
		logger: logger.With().Str("component", "event_queue").Logger(),
	}
}

// Emit enqueues event without blocking.
func (q *Queue) Emit(ctx context.Context, event Event) {
	select {
	case q.ch <- queued{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		metrics.IncNotifyFailure("queue")
		q.logger.Warn().
			Str("event", string(event.Type)).
			Str("booking_id", event.Booking.ID).
			Msg("event queue full, dropping event")
	}
}

// Run delivers queued events until ctx is done, then flushes what is
// already buffered.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.flush()
			return
		case item := <-q.ch:
			q.target.Emit(item.ctx, item.event)
		}
	}
}

func (q *Queue) flush() {
	for {
		select {
		case item := <-q.ch:
			q.target.Emit(item.ctx, item.event)
		default:
			return
		}
	}
}

// Pending returns the number of buffered events.
func (q *Queue) Pending() int {
	return len(q.ch)
}
