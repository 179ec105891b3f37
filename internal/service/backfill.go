package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/price-oracle/internal/config"
	"github.com/price-oracle/internal/logging"
	"github.com/price-oracle/internal/models"
	"github.com/price-oracle/internal/pricesource"
	"github.com/price-oracle/internal/storage"
)

// defaultCreationDate is used when the provider cannot tell us when a
// token first appeared. Scheduling degrades to a wider backfill window
// instead of failing the request.
var defaultCreationDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// JobStatusView is the progress snapshot returned for a backfill job
type JobStatusView struct {
	JobID         string           `json:"jobId"`
	Token         string           `json:"token"`
	Network       models.Network   `json:"network"`
	Status        models.JobStatus `json:"status"`
	CreationDate  time.Time        `json:"creationDate"`
	TotalDays     int              `json:"totalDays"`
	ProcessedDays int              `json:"processedDays"`
	Progress      int              `json:"progress"`
	Error         *string          `json:"error,omitempty"`
	StartedAt     *time.Time       `json:"startedAt,omitempty"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
}

// BackfillService schedules and runs price-history backfill jobs. Each job
// walks every calendar day from the token's creation date to now, fetching
// and storing the days that are missing.
type BackfillService struct {
	store  storage.Store
	source pricesource.Client
	cfg    *config.BackfillConfig

	sem chan struct{}
	now func() time.Time
}

// NewBackfillService creates a backfill service
func NewBackfillService(store storage.Store, source pricesource.Client, cfg *config.BackfillConfig) *BackfillService {
	concurrency := cfg.ConcurrentJobs
	if concurrency < 1 {
		concurrency = 1
	}
	return &BackfillService{
		store:  store,
		source: source,
		cfg:    cfg,
		sem:    make(chan struct{}, concurrency),
		now:    time.Now,
	}
}

// Schedule creates a backfill job for token on network and starts it
// asynchronously, returning the job id immediately.
func (s *BackfillService) Schedule(ctx context.Context, token string, network models.Network) (*models.BackfillJob, error) {
	token = strings.ToLower(token)
	log := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"token":   token,
		"network": network,
	})

	creationDate, err := s.source.CreationDate(ctx, token, network)
	if err != nil {
		log.WithError(err).Warn("failed to resolve token creation date, using default")
		creationDate = defaultCreationDate
	}
	creationDate = models.StartOfDayUTC(creationDate)

	job := &models.BackfillJob{
		JobID:        uuid.New().String(),
		Token:        token,
		Network:      network,
		Status:       models.JobStatusPending,
		CreationDate: creationDate,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create backfill job: %w", err)
	}

	go s.run(job)

	return job, nil
}

// GetStatus returns the progress view for a job, or nil when the id is
// unknown.
func (s *BackfillService) GetStatus(ctx context.Context, jobID string) (*JobStatusView, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get backfill job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	return &JobStatusView{
		JobID:         job.JobID,
		Token:         job.Token,
		Network:       job.Network,
		Status:        job.Status,
		CreationDate:  job.CreationDate,
		TotalDays:     job.TotalDays,
		ProcessedDays: job.ProcessedDays,
		Progress:      progress(job.ProcessedDays, job.TotalDays),
		Error:         job.Error,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}, nil
}

func progress(processed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(processed) / float64(total)))
}

// run executes a job in the background, bounded by the job concurrency
// limit. A panic in the driving loop marks the job failed; per-day fetch
// errors do not.
func (s *BackfillService) run(job *models.BackfillJob) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	ctx := context.Background()
	log := logging.GetGlobalLogger().WithFields(map[string]interface{}{
		"jobId":   job.JobID,
		"token":   job.Token,
		"network": job.Network,
	})
	ctx = logging.WithLogger(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("backfill job panicked: %v", r)
			log.Error(msg)
			s.markFailed(ctx, job.JobID, msg)
		}
	}()

	if err := s.process(ctx, job); err != nil {
		log.WithError(err).Error("backfill job failed")
		s.markFailed(ctx, job.JobID, err.Error())
		return
	}

	log.Info("backfill job completed")
}

func (s *BackfillService) markFailed(ctx context.Context, jobID, msg string) {
	status := models.JobStatusFailed
	completedAt := s.now().UTC()
	if _, err := s.store.UpdateJob(ctx, jobID, &models.JobUpdate{
		Status:      &status,
		Error:       &msg,
		CompletedAt: &completedAt,
	}); err != nil {
		logging.FromContext(ctx).WithError(err).Error("failed to mark backfill job failed")
	}
}

func (s *BackfillService) process(ctx context.Context, job *models.BackfillJob) error {
	days := enumerateDays(job.CreationDate, s.now())
	totalDays := len(days)

	status := models.JobStatusProcessing
	startedAt := s.now().UTC()
	if _, err := s.store.UpdateJob(ctx, job.JobID, &models.JobUpdate{
		Status:    &status,
		TotalDays: &totalDays,
		StartedAt: &startedAt,
	}); err != nil {
		return fmt.Errorf("failed to start backfill job: %w", err)
	}

	processed := 0
	for start := 0; start < totalDays; start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > totalDays {
			end = totalDays
		}
		batch := days[start:end]

		s.processBatch(ctx, job, batch)

		processed += len(batch)
		processedDays := processed
		update := &models.JobUpdate{ProcessedDays: &processedDays}
		if processed == totalDays {
			done := models.JobStatusCompleted
			completedAt := s.now().UTC()
			update.Status = &done
			update.CompletedAt = &completedAt
		}
		if _, err := s.store.UpdateJob(ctx, job.JobID, update); err != nil {
			return fmt.Errorf("failed to update backfill progress: %w", err)
		}

		// Pause between batches so a long history does not hammer the
		// provider. No pause needed after the last batch.
		if processed < totalDays && s.cfg.BatchDelay > 0 {
			select {
			case <-time.After(s.cfg.BatchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if totalDays == 0 {
		done := models.JobStatusCompleted
		completedAt := s.now().UTC()
		if _, err := s.store.UpdateJob(ctx, job.JobID, &models.JobUpdate{
			Status:      &done,
			CompletedAt: &completedAt,
		}); err != nil {
			return fmt.Errorf("failed to complete backfill job: %w", err)
		}
	}

	return nil
}

// processBatch fetches and stores the days of one batch concurrently.
// A day that fails or has no data is logged and counted as attempted.
func (s *BackfillService) processBatch(ctx context.Context, job *models.BackfillJob, batch []time.Time) {
	g := new(errgroup.Group)
	for _, d := range batch {
		day := d
		g.Go(func() error {
			s.processDay(ctx, job, day)
			return nil
		})
	}
	_ = g.Wait() // nolint:errcheck // day workers never return errors
}

func (s *BackfillService) processDay(ctx context.Context, job *models.BackfillJob, day time.Time) {
	log := logging.FromContext(ctx).WithField("date", day.Format("2006-01-02"))

	existing, err := s.store.GetPrice(ctx, job.Token, job.Network, day)
	if err != nil {
		log.WithError(err).Warn("existence check failed, skipping day")
		return
	}
	if existing != nil {
		return
	}

	price, err := s.source.SpotPrice(ctx, job.Token, job.Network, day)
	if err != nil {
		log.WithError(err).Warn("price fetch failed, skipping day")
		return
	}
	if price == nil {
		log.Debug("no price data for day")
		return
	}

	record := models.NewTokenPrice(job.Token, job.Network, day, *price, models.SourceLive)
	if err := s.store.PutPrice(ctx, record); err != nil {
		log.WithError(err).Warn("failed to store price, skipping day")
	}
}

// enumerateDays lists every UTC calendar day from start through now,
// inclusive on both ends.
func enumerateDays(start, now time.Time) []time.Time {
	first := models.StartOfDayUTC(start)
	last := models.StartOfDayUTC(now)
	if first.After(last) {
		return nil
	}

	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
