package storage

import (
	"context"
	"time"

	"github.com/price-oracle/internal/logging"
	"github.com/price-oracle/internal/models"
)

// PriceStats summarizes the stored price history for a token.
type PriceStats struct {
	Count     int64      `json:"totalPrices"`
	FirstDate *time.Time `json:"firstDate,omitempty"`
	LastDate  *time.Time `json:"lastDate,omitempty"`
}

// Store persists price records and backfill jobs. Lookups return nil
// (not an error) when no matching record exists.
//
// PutPrice does not deduplicate: callers are expected to check existence
// first, and a lost race results in a harmless no-op write.
type Store interface {
	PutPrice(ctx context.Context, price *models.TokenPrice) error
	GetPrice(ctx context.Context, token string, network models.Network, date time.Time) (*models.TokenPrice, error)
	GetPricesInRange(ctx context.Context, token string, network models.Network, start, end time.Time) ([]*models.TokenPrice, error)

	// NearestBefore returns the record with the greatest timestamp <= ts.
	NearestBefore(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error)
	// NearestAfter returns the record with the smallest timestamp >= ts.
	NearestAfter(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error)

	PriceStats(ctx context.Context, token string, network models.Network) (*PriceStats, error)

	CreateJob(ctx context.Context, job *models.BackfillJob) error
	GetJob(ctx context.Context, jobID string) (*models.BackfillJob, error)
	// UpdateJob applies the non-nil fields of update and returns the
	// updated job, or nil when the jobID is unknown.
	UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) (*models.BackfillJob, error)
}

// DualStore tries the durable backend first and falls back to the
// in-process store on any backend error. A write that falls back is not
// replayed against the durable backend later; the split is surfaced via
// logs only.
type DualStore struct {
	durable  Store
	fallback *MemoryStore
}

// NewDualStore creates a store backed by durable with an in-process
// fallback. durable may be nil, in which case every operation goes
// straight to the fallback.
func NewDualStore(durable Store, fallback *MemoryStore) *DualStore {
	if fallback == nil {
		fallback = NewMemoryStore()
	}
	return &DualStore{durable: durable, fallback: fallback}
}

func (s *DualStore) logFallback(ctx context.Context, op string, err error) {
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	}).Warn("durable store unavailable, using in-process fallback")
}

// PutPrice stores a price record
func (s *DualStore) PutPrice(ctx context.Context, price *models.TokenPrice) error {
	if s.durable != nil {
		err := s.durable.PutPrice(ctx, price)
		if err == nil {
			return nil
		}
		s.logFallback(ctx, "PutPrice", err)
	}
	return s.fallback.PutPrice(ctx, price)
}

// GetPrice retrieves the record for the exact calendar date
func (s *DualStore) GetPrice(ctx context.Context, token string, network models.Network, date time.Time) (*models.TokenPrice, error) {
	if s.durable != nil {
		price, err := s.durable.GetPrice(ctx, token, network, date)
		if err == nil {
			return price, nil
		}
		s.logFallback(ctx, "GetPrice", err)
	}
	return s.fallback.GetPrice(ctx, token, network, date)
}

// GetPricesInRange retrieves records in [start, end], ordered by date
func (s *DualStore) GetPricesInRange(ctx context.Context, token string, network models.Network, start, end time.Time) ([]*models.TokenPrice, error) {
	if s.durable != nil {
		prices, err := s.durable.GetPricesInRange(ctx, token, network, start, end)
		if err == nil {
			return prices, nil
		}
		s.logFallback(ctx, "GetPricesInRange", err)
	}
	return s.fallback.GetPricesInRange(ctx, token, network, start, end)
}

// NearestBefore returns the record with the greatest timestamp <= ts
func (s *DualStore) NearestBefore(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error) {
	if s.durable != nil {
		price, err := s.durable.NearestBefore(ctx, token, network, ts)
		if err == nil {
			return price, nil
		}
		s.logFallback(ctx, "NearestBefore", err)
	}
	return s.fallback.NearestBefore(ctx, token, network, ts)
}

// NearestAfter returns the record with the smallest timestamp >= ts
func (s *DualStore) NearestAfter(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error) {
	if s.durable != nil {
		price, err := s.durable.NearestAfter(ctx, token, network, ts)
		if err == nil {
			return price, nil
		}
		s.logFallback(ctx, "NearestAfter", err)
	}
	return s.fallback.NearestAfter(ctx, token, network, ts)
}

// PriceStats summarizes the stored history for a token
func (s *DualStore) PriceStats(ctx context.Context, token string, network models.Network) (*PriceStats, error) {
	if s.durable != nil {
		stats, err := s.durable.PriceStats(ctx, token, network)
		if err == nil {
			return stats, nil
		}
		s.logFallback(ctx, "PriceStats", err)
	}
	return s.fallback.PriceStats(ctx, token, network)
}

// CreateJob persists a new backfill job record
func (s *DualStore) CreateJob(ctx context.Context, job *models.BackfillJob) error {
	if s.durable != nil {
		err := s.durable.CreateJob(ctx, job)
		if err == nil {
			return nil
		}
		s.logFallback(ctx, "CreateJob", err)
	}
	return s.fallback.CreateJob(ctx, job)
}

// GetJob retrieves a backfill job by id
func (s *DualStore) GetJob(ctx context.Context, jobID string) (*models.BackfillJob, error) {
	if s.durable != nil {
		job, err := s.durable.GetJob(ctx, jobID)
		if err == nil {
			return job, nil
		}
		s.logFallback(ctx, "GetJob", err)
	}
	return s.fallback.GetJob(ctx, jobID)
}

// UpdateJob applies a partial update to a backfill job
func (s *DualStore) UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) (*models.BackfillJob, error) {
	if s.durable != nil {
		job, err := s.durable.UpdateJob(ctx, jobID, update)
		if err == nil {
			return job, nil
		}
		s.logFallback(ctx, "UpdateJob", err)
	}
	return s.fallback.UpdateJob(ctx, jobID, update)
}
