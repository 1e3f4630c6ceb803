// Package scheduler runs the periodic sync and webhook-retry loops.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// SyncRunner executes one sync attempt for a connection. The orchestrator in
// the application layer satisfies this.
type SyncRunner interface {
	IncrementalSync(ctx context.Context, connectionID uuid.UUID) (*channel.SyncLog, error)
	FullSync(ctx context.Context, connectionID uuid.UUID) (*channel.SyncLog, error)
}

// WebhookRetrier re-processes webhook events whose retry time has passed.
type WebhookRetrier interface {
	RetryPending(ctx context.Context, now time.Time, limit int) (int, error)
}

// SyncSchedulerConfig holds configuration for the sync scheduler.
type SyncSchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// Tick is how often the scheduler scans for due connections
	Tick time.Duration
	// MaxConcurrent is the number of connections synced in parallel.
	// Syncs for one connection are never concurrent; the repository's
	// sync claim guarantees that independently.
	MaxConcurrent int
	// BatchSize caps how many due connections one scan picks up
	BatchSize int
	// JobTimeout is the maximum time one connection sync can run
	JobTimeout time.Duration
	// WebhookRetryTick is how often failed webhook events are re-processed
	WebhookRetryTick time.Duration
	// WebhookRetryBatch caps how many events one retry pass picks up
	WebhookRetryBatch int
}

// DefaultSyncSchedulerConfig returns default configuration.
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Enabled:           true,
		Tick:              time.Minute,
		MaxConcurrent:     4,
		BatchSize:         20,
		JobTimeout:        15 * time.Minute,
		WebhookRetryTick:  time.Minute,
		WebhookRetryBatch: 50,
	}
}

// Validate validates the configuration.
func (c *SyncSchedulerConfig) Validate() error {
	if c.Tick <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxConcurrent <= 0 {
		return ErrInvalidConfig
	}
	if c.BatchSize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.WebhookRetryTick <= 0 {
		return ErrInvalidConfig
	}
	if c.WebhookRetryBatch <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncScheduler periodically scans for connections whose next_sync_at has
// passed and runs incremental syncs for them across a bounded worker pool.
// A second ticker drives the webhook retry pass.
type SyncScheduler struct {
	config      SyncSchedulerConfig
	connections channel.ConnectionRepository
	runner      SyncRunner
	retrier     WebhookRetrier
	logger      *zap.Logger

	jobs      chan uuid.UUID
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// queued tracks connection IDs waiting in or taken from the jobs
	// channel, so one scan cannot enqueue a connection twice while a
	// previous sync for it is still pending.
	queuedMu sync.Mutex
	queued   map[uuid.UUID]struct{}
}

// NewSyncScheduler creates a new sync scheduler.
func NewSyncScheduler(
	config SyncSchedulerConfig,
	connections channel.ConnectionRepository,
	runner SyncRunner,
	retrier WebhookRetrier,
	logger *zap.Logger,
) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		config:      config,
		connections: connections,
		runner:      runner,
		retrier:     retrier,
		logger:      logger,
		jobs:        make(chan uuid.UUID, 100),
		queued:      make(map[uuid.UUID]struct{}),
	}, nil
}

// Start starts the scheduler loops and the worker pool.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrent; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.wg.Add(1)
	go s.scanLoop(ctx)

	if s.retrier != nil {
		s.wg.Add(1)
		go s.webhookRetryLoop(ctx)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrent),
		zap.Duration("tick", s.config.Tick),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit enqueues one connection for an immediate sync, bypassing the due
// scan. Used by the HTTP layer for manual sync requests.
func (s *SyncScheduler) Submit(connectionID uuid.UUID) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	if !s.markQueued(connectionID) {
		return nil
	}

	select {
	case s.jobs <- connectionID:
		return nil
	default:
		s.unmarkQueued(connectionID)
		return ErrJobQueueFull
	}
}

func (s *SyncScheduler) markQueued(id uuid.UUID) bool {
	s.queuedMu.Lock()
	defer s.queuedMu.Unlock()
	if _, ok := s.queued[id]; ok {
		return false
	}
	s.queued[id] = struct{}{}
	return true
}

func (s *SyncScheduler) unmarkQueued(id uuid.UUID) {
	s.queuedMu.Lock()
	defer s.queuedMu.Unlock()
	delete(s.queued, id)
}

// scanLoop periodically scans for due connections and enqueues them.
func (s *SyncScheduler) scanLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

// scanOnce enqueues every due connection from one scan.
func (s *SyncScheduler) scanOnce(ctx context.Context) {
	due, err := s.connections.FindDue(ctx, time.Now(), s.config.BatchSize)
	if err != nil {
		s.logger.Error("Due connection scan failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Debug("Due connections found", zap.Int("count", len(due)))

	for i := range due {
		id := due[i].ID
		if !s.markQueued(id) {
			continue
		}
		select {
		case s.jobs <- id:
		case <-ctx.Done():
			s.unmarkQueued(id)
			return
		default:
			s.unmarkQueued(id)
			s.logger.Warn("Job queue full, connection deferred to next scan",
				zap.String("connection_id", id.String()))
			return
		}
	}
}

// worker syncs connections from the queue one at a time.
func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sync worker stopping", zap.Int("worker_id", workerID))
			return
		case id, ok := <-s.jobs:
			if !ok {
				return
			}
			s.syncConnection(ctx, id, workerID)
		}
	}
}

// syncConnection runs one incremental sync with a timeout.
func (s *SyncScheduler) syncConnection(ctx context.Context, id uuid.UUID, workerID int) {
	defer s.unmarkQueued(id)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	log, err := s.runner.IncrementalSync(jobCtx, id)
	if err != nil {
		// Overlapping claims are expected with multiple scheduler instances.
		if errors.Is(err, channel.ErrSyncAlreadyRunning) {
			s.logger.Debug("Sync already in flight, skipping",
				zap.String("connection_id", id.String()))
			return
		}
		s.logger.Error("Scheduled sync failed",
			zap.Int("worker_id", workerID),
			zap.String("connection_id", id.String()),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Scheduled sync completed",
		zap.Int("worker_id", workerID),
		zap.String("connection_id", id.String()),
		zap.String("status", log.Status.String()),
		zap.Int("reservations", log.Counters.Reservations),
		zap.Int("errors", log.Counters.Errors),
	)
}

// webhookRetryLoop periodically re-processes due webhook events.
func (s *SyncScheduler) webhookRetryLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.WebhookRetryTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := s.retrier.RetryPending(ctx, time.Now(), s.config.WebhookRetryBatch)
			if err != nil {
				s.logger.Error("Webhook retry pass failed", zap.Error(err))
				continue
			}
			if processed > 0 {
				s.logger.Info("Webhook retry pass completed",
					zap.Int("processed", processed))
			}
		}
	}
}
