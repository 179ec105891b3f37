package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/price-oracle/internal/models"
)

const testToken = "0x1234567890123456789012345678901234567890"

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMemoryStorePutAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	price := models.NewTokenPrice(testToken, models.NetworkEthereum, day("2024-03-10"), 42.5, models.SourceLive)
	require.NoError(t, store.PutPrice(ctx, price))

	got, err := store.GetPrice(ctx, testToken, models.NetworkEthereum, day("2024-03-10"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 42.5, got.Price)
	assert.Equal(t, models.SourceLive, got.Source)
	assert.Equal(t, day("2024-03-10").Unix(), got.Timestamp)
}

func TestMemoryStoreGetMiss(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.GetPrice(context.Background(), testToken, models.NetworkEthereum, day("2024-03-10"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreDuplicatePutIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := models.NewTokenPrice(testToken, models.NetworkEthereum, day("2024-03-10"), 10.0, models.SourceLive)
	require.NoError(t, store.PutPrice(ctx, first))

	second := models.NewTokenPrice(testToken, models.NetworkEthereum, day("2024-03-10"), 99.0, models.SourceLive)
	require.NoError(t, store.PutPrice(ctx, second))

	got, err := store.GetPrice(ctx, testToken, models.NetworkEthereum, day("2024-03-10"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10.0, got.Price)
}

func TestMemoryStoreConcurrentPutSameKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			price := models.NewTokenPrice(testToken, models.NetworkEthereum, day("2024-03-10"), float64(i+1), models.SourceLive)
			assert.NoError(t, store.PutPrice(ctx, price))
		}()
	}
	wg.Wait()

	// Racing writers for one (token, network, date) key leave exactly
	// one record behind.
	stats, err := store.PriceStats(ctx, testToken, models.NetworkEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Count)
}

func TestMemoryStoreNetworkIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutPrice(ctx,
		models.NewTokenPrice(testToken, models.NetworkEthereum, day("2024-03-10"), 10.0, models.SourceLive)))

	got, err := store.GetPrice(ctx, testToken, models.NetworkPolygon, day("2024-03-10"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreGetPricesInRange(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, d := range []string{"2024-03-12", "2024-03-10", "2024-03-11", "2024-03-20"} {
		require.NoError(t, store.PutPrice(ctx,
			models.NewTokenPrice(testToken, models.NetworkEthereum, day(d), 1.0, models.SourceLive)))
	}

	prices, err := store.GetPricesInRange(ctx, testToken, models.NetworkEthereum, day("2024-03-10"), day("2024-03-12"))
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.Equal(t, day("2024-03-10"), prices[0].Date)
	assert.Equal(t, day("2024-03-11"), prices[1].Date)
	assert.Equal(t, day("2024-03-12"), prices[2].Date)
}

func TestMemoryStoreNearestNeighbors(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutPrice(ctx,
		models.NewTokenPrice(testToken, models.NetworkEthereum, day("2024-03-10"), 10.0, models.SourceLive)))
	require.NoError(t, store.PutPrice(ctx,
		models.NewTokenPrice(testToken, models.NetworkEthereum, day("2024-03-20"), 20.0, models.SourceLive)))

	midday := day("2024-03-15").Unix()

	before, err := store.NearestBefore(ctx, testToken, models.NetworkEthereum, midday)
	require.NoError(t, err)
	require.NotNil(t, before)
	assert.Equal(t, 10.0, before.Price)

	after, err := store.NearestAfter(ctx, testToken, models.NetworkEthereum, midday)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, 20.0, after.Price)

	// Exact hit satisfies both directions.
	exact := day("2024-03-10").Unix()
	before, err = store.NearestBefore(ctx, testToken, models.NetworkEthereum, exact)
	require.NoError(t, err)
	require.NotNil(t, before)
	assert.Equal(t, 10.0, before.Price)
	after, err = store.NearestAfter(ctx, testToken, models.NetworkEthereum, exact)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, 10.0, after.Price)

	none, err := store.NearestBefore(ctx, testToken, models.NetworkEthereum, day("2024-03-01").Unix())
	require.NoError(t, err)
	assert.Nil(t, none)

	none, err = store.NearestAfter(ctx, testToken, models.NetworkEthereum, day("2024-04-01").Unix())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMemoryStorePriceStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stats, err := store.PriceStats(ctx, testToken, models.NetworkEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Count)
	assert.Nil(t, stats.FirstDate)
	assert.Nil(t, stats.LastDate)

	for _, d := range []string{"2024-03-12", "2024-03-10", "2024-03-11"} {
		require.NoError(t, store.PutPrice(ctx,
			models.NewTokenPrice(testToken, models.NetworkEthereum, day(d), 1.0, models.SourceLive)))
	}

	stats, err = store.PriceStats(ctx, testToken, models.NetworkEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Count)
	require.NotNil(t, stats.FirstDate)
	require.NotNil(t, stats.LastDate)
	assert.Equal(t, day("2024-03-10"), *stats.FirstDate)
	assert.Equal(t, day("2024-03-12"), *stats.LastDate)
}

func TestMemoryStoreJobLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := &models.BackfillJob{
		JobID:        "job-1",
		Token:        testToken,
		Network:      models.NetworkEthereum,
		Status:       models.JobStatusPending,
		CreationDate: day("2024-01-01"),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.CreateJob(ctx, job))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.JobStatusPending, got.Status)

	status := models.JobStatusProcessing
	total := 30
	updated, err := store.UpdateJob(ctx, "job-1", &models.JobUpdate{Status: &status, TotalDays: &total})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.JobStatusProcessing, updated.Status)
	assert.Equal(t, 30, updated.TotalDays)
	assert.Equal(t, 0, updated.ProcessedDays)

	// Untouched fields survive subsequent partial updates.
	processed := 10
	updated, err = store.UpdateJob(ctx, "job-1", &models.JobUpdate{ProcessedDays: &processed})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.JobStatusProcessing, updated.Status)
	assert.Equal(t, 30, updated.TotalDays)
	assert.Equal(t, 10, updated.ProcessedDays)
}

func TestMemoryStoreUpdateUnknownJob(t *testing.T) {
	store := NewMemoryStore()

	status := models.JobStatusProcessing
	updated, err := store.UpdateJob(context.Background(), "missing", &models.JobUpdate{Status: &status})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutPrice(ctx,
		models.NewTokenPrice(testToken, models.NetworkEthereum, day("2024-03-10"), 10.0, models.SourceLive)))

	got, err := store.GetPrice(ctx, testToken, models.NetworkEthereum, day("2024-03-10"))
	require.NoError(t, err)
	got.Price = 999.0

	again, err := store.GetPrice(ctx, testToken, models.NetworkEthereum, day("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Price)
}
