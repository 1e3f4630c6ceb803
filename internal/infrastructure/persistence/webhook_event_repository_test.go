package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/persistence/models"
)

func TestWebhookEventRepository_InsertIfAbsent(t *testing.T) {
	db := setupChannelTestDB(t)
	repo := NewGormWebhookEventRepository(db)
	ctx := context.Background()
	connID := uuid.New()

	first := channel.NewWebhookEvent(connID, "evt-1", "reservation.created", "BK-1", `{"id":"BK-1"}`)
	require.NoError(t, repo.InsertIfAbsent(ctx, first))

	t.Run("redelivery of the same event id is rejected", func(t *testing.T) {
		replay := channel.NewWebhookEvent(connID, "evt-1", "reservation.created", "BK-1", `{"id":"BK-1"}`)
		assert.ErrorIs(t, repo.InsertIfAbsent(ctx, replay), channel.ErrWebhookDuplicate)

		var count int64
		require.NoError(t, db.Model(&models.WebhookEventModel{}).
			Where("connection_id = ?", connID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("same event id on another connection is accepted", func(t *testing.T) {
		other := channel.NewWebhookEvent(uuid.New(), "evt-1", "reservation.created", "BK-1", `{}`)
		assert.NoError(t, repo.InsertIfAbsent(ctx, other))
	})
}

func TestWebhookEventRepository_FindDueForRetry(t *testing.T) {
	db := setupChannelTestDB(t)
	repo := NewGormWebhookEventRepository(db)
	ctx := context.Background()
	connID := uuid.New()
	now := time.Now()

	insert := func(eventID string, mutate func(*channel.WebhookEvent)) *channel.WebhookEvent {
		e := channel.NewWebhookEvent(connID, eventID, "reservation.updated", "BK-2", `{}`)
		if mutate != nil {
			mutate(e)
		}
		require.NoError(t, repo.InsertIfAbsent(ctx, e))
		return e
	}

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := insert("due", func(e *channel.WebhookEvent) {
		e.RetryCount = 1
		e.NextRetryAt = &past
	})
	insert("not-yet", func(e *channel.WebhookEvent) {
		e.NextRetryAt = &future
	})
	insert("fresh", nil) // no retry scheduled
	insert("exhausted", func(e *channel.WebhookEvent) {
		e.Status = channel.WebhookEventStatusFailed
		e.NextRetryAt = &past
	})

	found, err := repo.FindDueForRetry(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, due.EventID, found[0].EventID)
	assert.Equal(t, 1, found[0].RetryCount)
}

func TestWebhookEventRepository_Update(t *testing.T) {
	db := setupChannelTestDB(t)
	repo := NewGormWebhookEventRepository(db)
	ctx := context.Background()

	e := channel.NewWebhookEvent(uuid.New(), "evt-9", "reservation.cancelled", "BK-9", `{}`)
	require.NoError(t, repo.InsertIfAbsent(ctx, e))

	e.MarkFailed(time.Now(), "adapter unavailable", 5, 15*time.Minute)
	require.NoError(t, repo.Update(ctx, e))

	found, err := repo.FindDueForRetry(ctx, time.Now().Add(16*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "adapter unavailable", found[0].LastError)
	assert.Equal(t, 1, found[0].RetryCount)
}
