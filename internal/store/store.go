// Package store persists bookings. Implementations guarantee that
// InsertIfAvailable never admits two overlapping blocking bookings for the
// same resource and date.
package store

import (
	"errors"
	"time"

	"courtbook/internal/model"
)

var (
	ErrNotFound               = errors.New("booking not found")
	ErrConflict               = errors.New("booking overlaps an existing booking")
	ErrConcurrentModification = errors.New("concurrent modification")
)

func dateKey(resourceID string, date time.Time) string {
	return resourceID + "|" + date.Format(model.DateLayout)
}

func hasStatus(statuses []model.Status, s model.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
