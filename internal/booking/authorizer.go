package booking

import (
	"context"

	"courtbook/internal/model"
)

// Authorizer decides whether actor may move b to status to. r is nil when the
// resource is no longer in the catalog.
type Authorizer interface {
	CanTransition(ctx context.Context, actor string, b *model.Booking, r *model.Resource, to model.Status) bool
}

// RoleAuthorizer lets managers and the resource owner perform any transition;
// the requester may only cancel their own booking.
type RoleAuthorizer struct {
	managers map[string]struct{}
}

func NewRoleAuthorizer(managers []string) *RoleAuthorizer {
	m := make(map[string]struct{}, len(managers))
	for _, id := range managers {
		if id != "" {
			m[id] = struct{}{}
		}
	}
	return &RoleAuthorizer{managers: m}
}

func (a *RoleAuthorizer) CanTransition(_ context.Context, actor string, b *model.Booking, r *model.Resource, to model.Status) bool {
	if actor == "" {
		return false
	}
	if _, ok := a.managers[actor]; ok {
		return true
	}
	if r != nil && r.OwnerID == actor {
		return true
	}
	return b.RequesterID == actor && to == model.StatusCancelled
}
