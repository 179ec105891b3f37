package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/price-oracle/internal/config"
	"github.com/price-oracle/internal/models"
	"github.com/price-oracle/internal/storage"
)

func testBackfillConfig() *config.BackfillConfig {
	return &config.BackfillConfig{
		BatchSize:      2,
		BatchDelay:     0,
		ConcurrentJobs: 2,
	}
}

// recordingStore captures every job update in order.
type recordingStore struct {
	*storage.MemoryStore
	mu      sync.Mutex
	updates []models.JobUpdate
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: storage.NewMemoryStore()}
}

func (r *recordingStore) UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) (*models.BackfillJob, error) {
	r.mu.Lock()
	r.updates = append(r.updates, *update)
	r.mu.Unlock()
	return r.MemoryStore.UpdateJob(ctx, jobID, update)
}

func (r *recordingStore) recorded() []models.JobUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.JobUpdate, len(r.updates))
	copy(out, r.updates)
	return out
}

func waitForTerminal(t *testing.T, svc *BackfillService, jobID string) *JobStatusView {
	t.Helper()
	var view *JobStatusView
	require.Eventually(t, func() bool {
		v, err := svc.GetStatus(context.Background(), jobID)
		if err != nil || v == nil {
			return false
		}
		view = v
		return v.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return view
}

func TestBackfillEndToEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	source := &fakeSource{
		creationDate: day("2024-01-01"),
		prices: map[string]*float64{
			"2024-01-01": floatPtr(10.0),
			// 2024-01-02 has no data from the provider.
			"2024-01-03": floatPtr(12.0),
		},
	}
	svc := NewBackfillService(store, source, testBackfillConfig())
	svc.now = func() time.Time { return day("2024-01-03").Add(12 * time.Hour) }

	job, err := svc.Schedule(context.Background(), testToken, models.NetworkEthereum)
	require.NoError(t, err)
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, day("2024-01-01"), job.CreationDate)

	view := waitForTerminal(t, svc, job.JobID)
	assert.Equal(t, models.JobStatusCompleted, view.Status)
	assert.Equal(t, 3, view.TotalDays)
	assert.Equal(t, 3, view.ProcessedDays)
	assert.Equal(t, 100, view.Progress)
	assert.NotNil(t, view.StartedAt)
	assert.NotNil(t, view.CompletedAt)
	assert.Nil(t, view.Error)

	// The two days with data were stored; the no-data day was not.
	ctx := context.Background()
	p, err := store.GetPrice(ctx, testToken, models.NetworkEthereum, day("2024-01-01"))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 10.0, p.Price)

	p, err = store.GetPrice(ctx, testToken, models.NetworkEthereum, day("2024-01-02"))
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = store.GetPrice(ctx, testToken, models.NetworkEthereum, day("2024-01-03"))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 12.0, p.Price)
}

func TestBackfillSkipsExistingRecords(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutPrice(ctx,
		models.NewTokenPrice(testToken, models.NetworkEthereum, day("2024-01-01"), 5.0, models.SourceLive)))

	source := &fakeSource{
		creationDate: day("2024-01-01"),
		prices: map[string]*float64{
			"2024-01-01": floatPtr(999.0),
			"2024-01-02": floatPtr(11.0),
		},
	}
	svc := NewBackfillService(store, source, testBackfillConfig())
	svc.now = func() time.Time { return day("2024-01-02").Add(time.Hour) }

	job, err := svc.Schedule(ctx, testToken, models.NetworkEthereum)
	require.NoError(t, err)
	view := waitForTerminal(t, svc, job.JobID)
	assert.Equal(t, models.JobStatusCompleted, view.Status)

	// The pre-existing record was left untouched.
	p, err := store.GetPrice(ctx, testToken, models.NetworkEthereum, day("2024-01-01"))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 5.0, p.Price)
}

func TestBackfillCreationDateFallback(t *testing.T) {
	store := storage.NewMemoryStore()
	source := &fakeSource{creationErr: assert.AnError}
	svc := NewBackfillService(store, source, testBackfillConfig())
	svc.now = func() time.Time { return day("2020-01-02").Add(time.Hour) }

	job, err := svc.Schedule(context.Background(), testToken, models.NetworkEthereum)
	require.NoError(t, err)
	assert.Equal(t, day("2020-01-01"), job.CreationDate)

	view := waitForTerminal(t, svc, job.JobID)
	assert.Equal(t, models.JobStatusCompleted, view.Status)
	assert.Equal(t, 2, view.TotalDays)
}

func TestBackfillProgressIsBatchAlignedAndMonotonic(t *testing.T) {
	store := newRecordingStore()
	prices := make(map[string]*float64)
	start := day("2024-01-01")
	for i := 0; i < 5; i++ {
		prices[start.AddDate(0, 0, i).Format("2006-01-02")] = floatPtr(float64(i + 1))
	}
	source := &fakeSource{creationDate: start, prices: prices}

	svc := NewBackfillService(store, source, testBackfillConfig())
	svc.now = func() time.Time { return day("2024-01-05").Add(time.Hour) }

	job, err := svc.Schedule(context.Background(), testToken, models.NetworkEthereum)
	require.NoError(t, err)
	view := waitForTerminal(t, svc, job.JobID)
	assert.Equal(t, models.JobStatusCompleted, view.Status)
	assert.Equal(t, 5, view.TotalDays)

	// 5 days in batches of 2: progress updates land at 2, 4, 5.
	var seen []int
	prev := 0
	for _, u := range store.recorded() {
		if u.ProcessedDays == nil {
			continue
		}
		assert.GreaterOrEqual(t, *u.ProcessedDays, prev)
		assert.LessOrEqual(t, *u.ProcessedDays, 5)
		prev = *u.ProcessedDays
		seen = append(seen, *u.ProcessedDays)
	}
	assert.Equal(t, []int{2, 4, 5}, seen)
}

func TestBackfillRacingResolveKeepsOneRecord(t *testing.T) {
	store := storage.NewMemoryStore()
	source := &fakeSource{
		creationDate: day("2024-03-10"),
		prices:       map[string]*float64{"2024-03-10": floatPtr(9.0)},
	}
	svc := NewBackfillService(store, source, testBackfillConfig())
	svc.now = func() time.Time { return day("2024-03-10").Add(time.Hour) }
	resolver, _ := newTestResolver(store, source)
	ctx := context.Background()

	job, err := svc.Schedule(ctx, testToken, models.NetworkEthereum)
	require.NoError(t, err)

	// Resolve the same day repeatedly while the backfill is running.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Resolve(ctx, testToken, models.NetworkEthereum, day("2024-03-10").Unix())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view := waitForTerminal(t, svc, job.JobID)
	assert.Equal(t, models.JobStatusCompleted, view.Status)

	stats, err := store.PriceStats(ctx, testToken, models.NetworkEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Count)
}

func TestBackfillPerDayErrorsDoNotFailJob(t *testing.T) {
	store := storage.NewMemoryStore()
	source := &fakeSource{creationDate: day("2024-01-01"), spotErr: assert.AnError}
	svc := NewBackfillService(store, source, testBackfillConfig())
	svc.now = func() time.Time { return day("2024-01-03").Add(time.Hour) }

	job, err := svc.Schedule(context.Background(), testToken, models.NetworkEthereum)
	require.NoError(t, err)

	view := waitForTerminal(t, svc, job.JobID)
	assert.Equal(t, models.JobStatusCompleted, view.Status)
	assert.Equal(t, 3, view.ProcessedDays)
	assert.Nil(t, view.Error)
}

func TestGetStatusUnknownJob(t *testing.T) {
	svc := NewBackfillService(storage.NewMemoryStore(), &fakeSource{}, testBackfillConfig())

	view, err := svc.GetStatus(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestProgressRounding(t *testing.T) {
	assert.Equal(t, 0, progress(0, 0))
	assert.Equal(t, 0, progress(0, 3))
	assert.Equal(t, 33, progress(1, 3))
	assert.Equal(t, 67, progress(2, 3))
	assert.Equal(t, 100, progress(3, 3))
}
