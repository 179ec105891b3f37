package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/price-oracle/internal/cache"
	apperrors "github.com/price-oracle/internal/errors"
	"github.com/price-oracle/internal/logging"
	"github.com/price-oracle/internal/models"
	"github.com/price-oracle/internal/pricesource"
	"github.com/price-oracle/internal/storage"
)

// ErrPriceNotFound is returned when no tier can produce a price.
var ErrPriceNotFound = errors.New("price not found")

// PricePoint is one bracketing record in an interpolation result
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// InterpolationDetail reports the records an estimate was derived from.
// A nil side is rendered as null so callers can see which side was missing.
type InterpolationDetail struct {
	Before *PricePoint `json:"before"`
	After  *PricePoint `json:"after"`
}

// PriceResult is a resolved price lookup
type PriceResult struct {
	Token         string               `json:"token"`
	Network       models.Network       `json:"network"`
	Price         float64              `json:"price"`
	Source        models.PriceSource   `json:"source"`
	Timestamp     int64                `json:"timestamp"`
	Cached        bool                 `json:"cached,omitempty"`
	Interpolation *InterpolationDetail `json:"interpolation,omitempty"`
}

// Resolver answers price lookups through the tiered fallback chain:
// cache, then store, then the live source, then interpolation.
type Resolver struct {
	store         storage.Store
	cache         cache.Cache
	source        pricesource.Client
	interpolation *InterpolationEngine
	cacheTTL      time.Duration
}

// NewResolver creates a resolver over the given backends
func NewResolver(store storage.Store, c cache.Cache, source pricesource.Client, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		store:         store,
		cache:         c,
		source:        source,
		interpolation: NewInterpolationEngine(store),
		cacheTTL:      cacheTTL,
	}
}

// Resolve looks up the price of token on network at ts (unix seconds).
// Returns ErrPriceNotFound when every tier comes up empty.
func (r *Resolver) Resolve(ctx context.Context, token string, network models.Network, ts int64) (*PriceResult, error) {
	token = strings.ToLower(token)
	log := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"token":     token,
		"network":   network,
		"timestamp": ts,
	})

	// Tier 1: cache.
	key := cache.PriceKey(token, network, ts)
	var cached PriceResult
	found, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		log.WithError(err).Warn("cache lookup failed, continuing to store")
	} else if found {
		cached.Cached = true
		return &cached, nil
	}

	// Tier 2: exact-date store lookup.
	date := time.Unix(ts, 0).UTC()
	stored, err := r.store.GetPrice(ctx, token, network, date)
	if err != nil {
		return nil, apperrors.NewDatabaseError("price lookup", err)
	}
	if stored != nil {
		result := &PriceResult{
			Token:     token,
			Network:   network,
			Price:     stored.Price,
			Source:    stored.Source,
			Timestamp: ts,
		}
		r.cacheResult(ctx, key, result)
		return result, nil
	}

	// Tier 3: live source. Failures and no-data both fall through.
	price, err := r.source.SpotPrice(ctx, token, network, date)
	if err != nil {
		log.WithError(err).Warn("live price fetch failed, falling back to interpolation")
	} else if price != nil {
		record := models.NewTokenPrice(token, network, date, *price, models.SourceLive)
		if err := r.store.PutPrice(ctx, record); err != nil {
			log.WithError(err).Warn("failed to persist live price")
		}
		result := &PriceResult{
			Token:     token,
			Network:   network,
			Price:     *price,
			Source:    models.SourceLive,
			Timestamp: ts,
		}
		r.cacheResult(ctx, key, result)
		return result, nil
	}

	// Tier 4: interpolation from stored neighbors.
	estimate, err := r.interpolation.Estimate(ctx, token, network, ts)
	if err != nil {
		return nil, apperrors.NewDatabaseError("interpolation lookup", err)
	}
	if estimate == nil {
		return nil, ErrPriceNotFound
	}

	result := &PriceResult{
		Token:         token,
		Network:       network,
		Price:         estimate.Price,
		Source:        models.SourceInterpolated,
		Timestamp:     ts,
		Interpolation: interpolationDetail(estimate),
	}
	r.cacheResult(ctx, key, result)
	return result, nil
}

func (r *Resolver) cacheResult(ctx context.Context, key string, result *PriceResult) {
	if err := r.cache.Set(ctx, key, result, r.cacheTTL); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("failed to cache price result")
	}
}

func interpolationDetail(estimate *InterpolationResult) *InterpolationDetail {
	detail := &InterpolationDetail{}
	if estimate.Before != nil {
		detail.Before = &PricePoint{Timestamp: estimate.Before.Timestamp, Price: estimate.Before.Price}
	}
	if estimate.After != nil {
		detail.After = &PricePoint{Timestamp: estimate.After.Timestamp, Price: estimate.After.Price}
	}
	return detail
}
