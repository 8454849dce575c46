// Package catalog serves resources and discount codes from a YAML file.
// The engine treats it as read-only; a reload swaps the whole snapshot.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"courtbook/internal/model"
	"courtbook/internal/pricing"
)

var ErrResourceNotFound = errors.New("resource not found")

type Catalog struct {
	mu        sync.RWMutex
	resources map[string]model.Resource
	discounts pricing.StaticDiscounts
}

// New builds a catalog from a validated file.
func New(f *File) *Catalog {
	c := &Catalog{}
	c.Replace(f)
	return c
}

// Replace atomically swaps the catalog contents.
func (c *Catalog) Replace(f *File) {
	resources := make(map[string]model.Resource)
	for _, r := range f.ActiveResources() {
		resources[r.ID] = r
	}
	discounts := pricing.NewStaticDiscounts(f.DiscountList())

	c.mu.Lock()
	c.resources = resources
	c.discounts = discounts
	c.mu.Unlock()
}

// GetResource returns the active resource with id.
func (c *Catalog) GetResource(_ context.Context, id string) (*model.Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.resources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, id)
	}
	return &r, nil
}

func (c *Catalog) ResolveDiscount(code string) (*model.Discount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.discounts.ResolveDiscount(code)
}

// Len returns the number of active resources.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.resources)
}
