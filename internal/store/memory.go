package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"courtbook/internal/model"

	"github.com/google/uuid"
)

// MemoryStore keeps bookings in process memory, indexed by (resource, date).
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*model.Booking
	byDay map[string][]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*model.Booking),
		byDay: make(map[string][]string),
	}
}

// Get returns a copy of the booking with id.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

// FindOverlapping returns bookings on (resourceID, date) in one of statuses
// whose interval overlaps [start, end).
func (s *MemoryStore) FindOverlapping(
	_ context.Context, resourceID string, date, start, end time.Time, statuses []model.Status,
) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := &model.Booking{StartTime: start, EndTime: end}
	var out []model.Booking
	for _, id := range s.byDay[dateKey(resourceID, date)] {
		b := s.byID[id]
		if hasStatus(statuses, b.Status) && b.OverlapsWith(query) {
			out = append(out, *b.Clone())
		}
	}
	sortByStart(out)
	return out, nil
}

// ListByResourceDate returns every booking on (resourceID, date), any status.
func (s *MemoryStore) ListByResourceDate(_ context.Context, resourceID string, date time.Time) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byDay[dateKey(resourceID, date)]
	out := make([]model.Booking, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.byID[id].Clone())
	}
	sortByStart(out)
	return out, nil
}

// InsertIfAvailable stores b unless a blocking booking overlaps it. The check
// and the insert happen under one write lock.
func (s *MemoryStore) InsertIfAvailable(_ context.Context, b *model.Booking) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dateKey(b.ResourceID, b.Date)
	for _, id := range s.byDay[key] {
		existing := s.byID[id]
		if existing.Status.Blocks() && existing.OverlapsWith(b) {
			return nil, ErrConflict
		}
	}

	stored := b.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := s.byID[stored.ID]; exists {
		return nil, ErrConflict
	}
	stored.Version = 1

	s.byID[stored.ID] = stored
	s.byDay[key] = append(s.byDay[key], stored.ID)
	return stored.Clone(), nil
}

// Update persists the lifecycle fields of b. The write is rejected with
// ErrConcurrentModification when b.Version is stale.
func (s *MemoryStore) Update(_ context.Context, b *model.Booking) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[b.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Version != b.Version {
		return nil, ErrConcurrentModification
	}

	next := current.Clone()
	applyLifecycle(next, b.Clone())
	next.Version++

	s.byID[b.ID] = next
	return next.Clone(), nil
}

// FindElapsed returns up to limit bookings in status whose end is not after
// before, oldest first.
func (s *MemoryStore) FindElapsed(_ context.Context, status model.Status, before time.Time, limit int) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Booking
	for _, b := range s.byID {
		if b.Status == status && !b.EndTime.After(before) {
			out = append(out, *b.Clone())
		}
	}
	sortByStart(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored bookings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func applyLifecycle(dst, src *model.Booking) {
	dst.Status = src.Status
	dst.CancellationReason = src.CancellationReason
	dst.UpdatedAt = src.UpdatedAt
	dst.ConfirmedAt = src.ConfirmedAt
	dst.CancelledAt = src.CancelledAt
	dst.CompletedAt = src.CompletedAt
}

func sortByStart(bookings []model.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].StartTime.Before(bookings[j].StartTime)
	})
}
