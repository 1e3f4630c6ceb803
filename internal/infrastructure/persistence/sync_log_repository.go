package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/persistence/models"
)

// maxErrorSummaryLen bounds stored error summaries.
const maxErrorSummaryLen = 4096

// GormSyncLogRepository implements SyncLogRepository using GORM. Sync logs
// are append-only; Update only ever closes the record it opened.
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository.
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Create appends a sync attempt record.
func (r *GormSyncLogRepository) Create(ctx context.Context, log *channel.SyncLog) error {
	model := &models.SyncLogModel{}
	model.FromDomain(log)
	model.ErrorSummary = truncateSummary(model.ErrorSummary)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update closes a sync attempt record with its final status and counters.
func (r *GormSyncLogRepository) Update(ctx context.Context, log *channel.SyncLog) error {
	model := &models.SyncLogModel{}
	model.FromDomain(log)
	model.ErrorSummary = truncateSummary(model.ErrorSummary)
	return r.db.WithContext(ctx).Save(model).Error
}

// ListByConnection lists recent sync attempts, newest first.
func (r *GormSyncLogRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]channel.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logModels []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("started_at DESC").
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, err
	}

	logs := make([]channel.SyncLog, len(logModels))
	for i := range logModels {
		logs[i] = *logModels[i].ToDomain()
	}
	return logs, nil
}

// LastSuccessfulAt returns the start time of the most recent succeeded
// attempt. Partial success counts; a connection that keeps syncing most of
// its data is not treated as never-synced.
func (r *GormSyncLogRepository) LastSuccessfulAt(ctx context.Context, connectionID uuid.UUID) (time.Time, error) {
	var model models.SyncLogModel
	err := r.db.WithContext(ctx).
		Where("connection_id = ? AND status IN ?", connectionID, []string{
			string(channel.SyncLogStatusSuccess),
			string(channel.SyncLogStatusPartialSuccess),
		}).
		Order("started_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return model.StartedAt, nil
}

// truncateSummary bounds an error summary for storage.
func truncateSummary(s string) string {
	if len(s) > maxErrorSummaryLen {
		return s[:maxErrorSummaryLen]
	}
	return s
}

// Ensure GormSyncLogRepository implements SyncLogRepository
var _ channel.SyncLogRepository = (*GormSyncLogRepository)(nil)
