package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/persistence/models"
)

// GormWebhookEventRepository implements WebhookEventRepository using GORM.
// The database-level unique index on (connection_id, event_id) is the
// authoritative dedup check; a cache in front of it is only a fast path.
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository.
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// InsertIfAbsent persists the event unless one with the same
// (connection_id, event_id) exists. Duplicate deliveries return
// ErrWebhookDuplicate without touching the stored row.
func (r *GormWebhookEventRepository) InsertIfAbsent(ctx context.Context, e *channel.WebhookEvent) error {
	model := &models.WebhookEventModel{}
	model.FromDomain(e)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "connection_id"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return channel.ErrWebhookDuplicate
	}
	return nil
}

// Update persists processing-state changes for an event.
func (r *GormWebhookEventRepository) Update(ctx context.Context, e *channel.WebhookEvent) error {
	model := &models.WebhookEventModel{}
	model.FromDomain(e)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindDueForRetry returns pending events whose next_retry_at has passed,
// oldest first. Permanently failed events are excluded; their retry budget
// is exhausted.
func (r *GormWebhookEventRepository) FindDueForRetry(ctx context.Context, now time.Time, limit int) ([]channel.WebhookEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var eventModels []models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(channel.WebhookEventStatusPending)).
		Where("next_retry_at IS NOT NULL AND next_retry_at <= ?", now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&eventModels).Error; err != nil {
		return nil, err
	}

	events := make([]channel.WebhookEvent, len(eventModels))
	for i := range eventModels {
		events[i] = *eventModels[i].ToDomain()
	}
	return events, nil
}

// Ensure GormWebhookEventRepository implements WebhookEventRepository
var _ channel.WebhookEventRepository = (*GormWebhookEventRepository)(nil)
