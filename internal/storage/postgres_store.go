package storage

import (
	"context"
	"time"

	"github.com/price-oracle/internal/models"
)

// PostgresStore implements Store on top of the pgx repositories
type PostgresStore struct {
	prices *PriceRepository
	jobs   *JobRepository
}

// NewPostgresStore creates a Store backed by Postgres
func NewPostgresStore(db *PostgresDB) *PostgresStore {
	return &PostgresStore{
		prices: NewPriceRepository(db),
		jobs:   NewJobRepository(db),
	}
}

func (s *PostgresStore) PutPrice(ctx context.Context, price *models.TokenPrice) error {
	return s.prices.Insert(ctx, price)
}

func (s *PostgresStore) GetPrice(ctx context.Context, token string, network models.Network, date time.Time) (*models.TokenPrice, error) {
	return s.prices.GetByDate(ctx, token, network, date)
}

func (s *PostgresStore) GetPricesInRange(ctx context.Context, token string, network models.Network, start, end time.Time) ([]*models.TokenPrice, error) {
	return s.prices.GetRange(ctx, token, network, start, end)
}

func (s *PostgresStore) NearestBefore(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error) {
	return s.prices.NearestBefore(ctx, token, network, ts)
}

func (s *PostgresStore) NearestAfter(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error) {
	return s.prices.NearestAfter(ctx, token, network, ts)
}

func (s *PostgresStore) PriceStats(ctx context.Context, token string, network models.Network) (*PriceStats, error) {
	return s.prices.Stats(ctx, token, network)
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.BackfillJob) error {
	return s.jobs.Create(ctx, job)
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*models.BackfillJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

func (s *PostgresStore) UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) (*models.BackfillJob, error) {
	return s.jobs.Update(ctx, jobID, update)
}
