// Package service implements price resolution and backfill orchestration.
package service

import (
	"context"
	"fmt"

	"github.com/price-oracle/internal/models"
	"github.com/price-oracle/internal/storage"
)

// Neighbors holds the nearest stored records bracketing a target timestamp.
// Either side may be nil when no record exists in that direction.
type Neighbors struct {
	Before *models.TokenPrice
	After  *models.TokenPrice
}

// InterpolationResult carries an estimated price and the records it was
// derived from. A nil side means no record existed in that direction.
type InterpolationResult struct {
	Price  float64
	Before *models.TokenPrice
	After  *models.TokenPrice
}

// Interpolate computes the linear estimate at target between two known
// points. When beforeTs == afterTs the before price is returned as-is,
// which also guards the division.
func Interpolate(target, beforeTs int64, beforePrice float64, afterTs int64, afterPrice float64) float64 {
	if beforeTs == afterTs {
		return beforePrice
	}
	return beforePrice + (afterPrice-beforePrice)*float64(target-beforeTs)/float64(afterTs-beforeTs)
}

// InterpolationEngine estimates prices from the nearest stored records.
type InterpolationEngine struct {
	store storage.Store
}

// NewInterpolationEngine creates an engine reading from store
func NewInterpolationEngine(store storage.Store) *InterpolationEngine {
	return &InterpolationEngine{store: store}
}

// FindNearest returns the stored records bracketing ts
func (e *InterpolationEngine) FindNearest(ctx context.Context, token string, network models.Network, ts int64) (*Neighbors, error) {
	before, err := e.store.NearestBefore(ctx, token, network, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to find record before target: %w", err)
	}
	after, err := e.store.NearestAfter(ctx, token, network, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to find record after target: %w", err)
	}
	return &Neighbors{Before: before, After: after}, nil
}

// Estimate computes an interpolated price at ts. When only one side has a
// record, that side's price is returned verbatim with the other side nil.
// When neither side has a record the result is nil.
func (e *InterpolationEngine) Estimate(ctx context.Context, token string, network models.Network, ts int64) (*InterpolationResult, error) {
	neighbors, err := e.FindNearest(ctx, token, network, ts)
	if err != nil {
		return nil, err
	}

	before, after := neighbors.Before, neighbors.After
	switch {
	case before == nil && after == nil:
		return nil, nil
	case before == nil:
		return &InterpolationResult{Price: after.Price, After: after}, nil
	case after == nil:
		return &InterpolationResult{Price: before.Price, Before: before}, nil
	}

	price := Interpolate(ts, before.Timestamp, before.Price, after.Timestamp, after.Price)
	return &InterpolationResult{Price: price, Before: before, After: after}, nil
}
