package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/price-oracle/internal/models"
)

// MemoryStore is the in-process fallback store. Contents are process-local
// and lost on restart; that durability trade-off is accepted for outages.
type MemoryStore struct {
	mu     sync.RWMutex
	prices map[string]*models.TokenPrice
	jobs   map[string]*models.BackfillJob
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices: make(map[string]*models.TokenPrice),
		jobs:   make(map[string]*models.BackfillJob),
	}
}

func priceKey(token string, network models.Network, date time.Time) string {
	return fmt.Sprintf("%s:%s:%s", token, network, models.StartOfDayUTC(date).Format("2006-01-02"))
}

// PutPrice stores a price record keyed by (token, network, date)
func (m *MemoryStore) PutPrice(ctx context.Context, price *models.TokenPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := priceKey(price.Token, price.Network, price.Date)
	if _, exists := m.prices[key]; exists {
		// Records are immutable once written; a duplicate write is a no-op.
		return nil
	}
	cp := *price
	m.prices[key] = &cp
	return nil
}

// GetPrice retrieves the record for the exact calendar date, or nil
func (m *MemoryStore) GetPrice(ctx context.Context, token string, network models.Network, date time.Time) (*models.TokenPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	price, ok := m.prices[priceKey(token, network, date)]
	if !ok {
		return nil, nil
	}
	cp := *price
	return &cp, nil
}

// GetPricesInRange retrieves records in [start, end], ordered by date
func (m *MemoryStore) GetPricesInRange(ctx context.Context, token string, network models.Network, start, end time.Time) ([]*models.TokenPrice, error) {
	startDay := models.StartOfDayUTC(start)
	endDay := models.StartOfDayUTC(end)

	m.mu.RLock()
	var results []*models.TokenPrice
	for _, price := range m.prices {
		if price.Token != token || price.Network != network {
			continue
		}
		if price.Date.Before(startDay) || price.Date.After(endDay) {
			continue
		}
		cp := *price
		results = append(results, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Date.Before(results[j].Date) })
	return results, nil
}

// NearestBefore returns the record with the greatest timestamp <= ts
func (m *MemoryStore) NearestBefore(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *models.TokenPrice
	for _, price := range m.prices {
		if price.Token != token || price.Network != network || price.Timestamp > ts {
			continue
		}
		if best == nil || price.Timestamp > best.Timestamp {
			best = price
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

// NearestAfter returns the record with the smallest timestamp >= ts
func (m *MemoryStore) NearestAfter(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *models.TokenPrice
	for _, price := range m.prices {
		if price.Token != token || price.Network != network || price.Timestamp < ts {
			continue
		}
		if best == nil || price.Timestamp < best.Timestamp {
			best = price
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

// PriceStats summarizes the stored history for a token
func (m *MemoryStore) PriceStats(ctx context.Context, token string, network models.Network) (*PriceStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &PriceStats{}
	for _, price := range m.prices {
		if price.Token != token || price.Network != network {
			continue
		}
		stats.Count++
		d := price.Date
		if stats.FirstDate == nil || d.Before(*stats.FirstDate) {
			first := d
			stats.FirstDate = &first
		}
		if stats.LastDate == nil || d.After(*stats.LastDate) {
			last := d
			stats.LastDate = &last
		}
	}
	return stats, nil
}

// CreateJob persists a new backfill job record
func (m *MemoryStore) CreateJob(ctx context.Context, job *models.BackfillJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *job
	m.jobs[job.JobID] = &cp
	return nil
}

// GetJob retrieves a backfill job by id, or nil
func (m *MemoryStore) GetJob(ctx context.Context, jobID string) (*models.BackfillJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

// UpdateJob applies a partial update and returns the updated job, or nil
// for an unknown id
func (m *MemoryStore) UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) (*models.BackfillJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	update.Apply(job)
	cp := *job
	return &cp, nil
}
