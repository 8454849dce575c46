package booking

import (
	"context"
	"errors"
	"time"

	"courtbook/internal/metrics"
	"courtbook/internal/model"
)

// SystemActor is recorded as the actor of transitions made by the service itself.
const SystemActor = "system"

const completionBatch = 100

// CompleteElapsed marks Confirmed bookings whose end time has passed as
// Completed and returns how many were moved. Bookings cancelled concurrently
// are skipped.
func (m *Manager) CompleteElapsed(ctx context.Context) (int, error) {
	now := m.opts.Now().In(m.opts.Location)
	elapsed, err := m.store.FindElapsed(ctx, model.StatusConfirmed, now, completionBatch)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, b := range elapsed {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		_, err := m.updateStatus(ctx, b.ID, model.StatusCompleted, SystemActor, "", false)
		switch {
		case err == nil:
			completed++
			metrics.IncStatusTransition(model.StatusCompleted.String(), "success")
		case errors.Is(err, ErrInvalidTransition):
			m.logger.Debug().Str("booking_id", b.ID).Msg("booking changed before completion, skipping")
		default:
			metrics.IncStatusTransition(model.StatusCompleted.String(), "error")
			return completed, err
		}
	}
	return completed, nil
}

// RunCompletion calls CompleteElapsed every interval until ctx is done.
func (m *Manager) RunCompletion(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", interval).Msg("completion sweep started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("completion sweep stopped")
			return
		case <-ticker.C:
			n, err := m.CompleteElapsed(ctx)
			if err != nil && ctx.Err() == nil {
				m.logger.Error().Err(err).Msg("completion sweep failed")
				continue
			}
			if n > 0 {
				m.logger.Info().Int("completed", n).Msg("elapsed bookings completed")
			}
		}
	}
}
