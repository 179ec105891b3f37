package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/price-oracle/internal/models"
)

// PriceRepository handles token price persistence
type PriceRepository struct {
	db *PostgresDB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *PostgresDB) *PriceRepository {
	return &PriceRepository{db: db}
}

// Insert stores a price record. Inserting an existing (token, network, date)
// key is a no-op: price history is immutable once recorded and callers are
// expected to check existence first.
func (r *PriceRepository) Insert(ctx context.Context, price *models.TokenPrice) error {
	query := `
		INSERT INTO token_prices (token, network, date, price, source, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token, network, date) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		price.Token,
		price.Network,
		price.Date,
		price.Price,
		price.Source,
		price.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token price: %w", err)
	}

	return nil
}

// GetByDate retrieves the record for an exact calendar date, or nil
func (r *PriceRepository) GetByDate(ctx context.Context, token string, network models.Network, date time.Time) (*models.TokenPrice, error) {
	query := `
		SELECT token, network, date, price, source, timestamp
		FROM token_prices
		WHERE token = $1 AND network = $2 AND date = $3
	`

	price, err := r.scanOne(r.db.Pool().QueryRow(ctx, query, token, network, models.StartOfDayUTC(date)))
	if err != nil {
		return nil, fmt.Errorf("failed to get token price: %w", err)
	}
	return price, nil
}

// GetRange retrieves records with dates in [start, end], ordered by date
func (r *PriceRepository) GetRange(ctx context.Context, token string, network models.Network, start, end time.Time) ([]*models.TokenPrice, error) {
	query := `
		SELECT token, network, date, price, source, timestamp
		FROM token_prices
		WHERE token = $1 AND network = $2 AND date >= $3 AND date <= $4
		ORDER BY date ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, token, network,
		models.StartOfDayUTC(start), models.StartOfDayUTC(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query token prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.TokenPrice
	for rows.Next() {
		var price models.TokenPrice
		if err := rows.Scan(&price.Token, &price.Network, &price.Date, &price.Price, &price.Source, &price.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan token price: %w", err)
		}
		prices = append(prices, &price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token prices: %w", err)
	}

	return prices, nil
}

// NearestBefore returns the record with the greatest timestamp <= ts, or nil
func (r *PriceRepository) NearestBefore(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error) {
	query := `
		SELECT token, network, date, price, source, timestamp
		FROM token_prices
		WHERE token = $1 AND network = $2 AND timestamp <= $3
		ORDER BY timestamp DESC
		LIMIT 1
	`

	price, err := r.scanOne(r.db.Pool().QueryRow(ctx, query, token, network, ts))
	if err != nil {
		return nil, fmt.Errorf("failed to find nearest price before: %w", err)
	}
	return price, nil
}

// NearestAfter returns the record with the smallest timestamp >= ts, or nil
func (r *PriceRepository) NearestAfter(ctx context.Context, token string, network models.Network, ts int64) (*models.TokenPrice, error) {
	query := `
		SELECT token, network, date, price, source, timestamp
		FROM token_prices
		WHERE token = $1 AND network = $2 AND timestamp >= $3
		ORDER BY timestamp ASC
		LIMIT 1
	`

	price, err := r.scanOne(r.db.Pool().QueryRow(ctx, query, token, network, ts))
	if err != nil {
		return nil, fmt.Errorf("failed to find nearest price after: %w", err)
	}
	return price, nil
}

// Stats returns the count and date bounds of the stored history
func (r *PriceRepository) Stats(ctx context.Context, token string, network models.Network) (*PriceStats, error) {
	query := `
		SELECT COUNT(*), MIN(date), MAX(date)
		FROM token_prices
		WHERE token = $1 AND network = $2
	`

	var stats PriceStats
	err := r.db.Pool().QueryRow(ctx, query, token, network).Scan(&stats.Count, &stats.FirstDate, &stats.LastDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get price stats: %w", err)
	}

	return &stats, nil
}

func (r *PriceRepository) scanOne(row pgx.Row) (*models.TokenPrice, error) {
	var price models.TokenPrice
	err := row.Scan(&price.Token, &price.Network, &price.Date, &price.Price, &price.Source, &price.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &price, nil
}
