package channel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// The persistence gateway. Every sync write is an upsert keyed by
// (connection_id, external_id), plus date for calendar rows, so replaying
// the same fetch converges on the same stored state. SyncLog and
// WebhookEvent are append-only.

// ConnectionRepository manages connections and their health counters.
type ConnectionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Connection, error)
	// FindDue returns syncable connections whose next_sync_at has passed.
	// Connections in error or disconnected status are excluded.
	FindDue(ctx context.Context, now time.Time, limit int) ([]Connection, error)
	Save(ctx context.Context, conn *Connection) error
	// BeginSync atomically claims the connection for a sync attempt. It
	// returns ErrSyncAlreadyRunning when a prior attempt is still in flight
	// (single-flight guarantee).
	BeginSync(ctx context.Context, id uuid.UUID) error
	// EndSync releases the claim taken by BeginSync.
	EndSync(ctx context.Context, id uuid.UUID) error
}

// PropertyRepository upserts properties by (connection_id, external_id).
type PropertyRepository interface {
	Upsert(ctx context.Context, p *Property) error
	FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*Property, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]Property, error)
}

// RoomTypeRepository upserts room types by (connection_id, external_id).
type RoomTypeRepository interface {
	Upsert(ctx context.Context, rt *RoomType) error
	FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*RoomType, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]RoomType, error)
}

// CalendarRepository overwrites availability and rate days per
// (room_type_id, date).
type CalendarRepository interface {
	UpsertAvailability(ctx context.Context, days []AvailabilityDay) error
	UpsertRates(ctx context.Context, days []RateDay) error
	ListAvailability(ctx context.Context, roomTypeID uuid.UUID, window DateRange) ([]AvailabilityDay, error)
	ListRates(ctx context.Context, roomTypeID uuid.UUID, window DateRange) ([]RateDay, error)
}

// ReservationRepository upserts reservations by (connection_id, external_id).
type ReservationRepository interface {
	Upsert(ctx context.Context, r *Reservation) error
	FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*Reservation, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID, opts ListOptions) ([]Reservation, error)
}

// SyncLogRepository appends sync attempt records.
type SyncLogRepository interface {
	Create(ctx context.Context, log *SyncLog) error
	Update(ctx context.Context, log *SyncLog) error
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]SyncLog, error)
	// LastSuccessfulAt returns the start time of the most recent succeeded
	// attempt, or the zero time when none exists.
	LastSuccessfulAt(ctx context.Context, connectionID uuid.UUID) (time.Time, error)
}

// WebhookEventRepository stores inbound push events with insert-if-absent
// dedup on (connection_id, event_id).
type WebhookEventRepository interface {
	// InsertIfAbsent persists the event unless one with the same
	// (connection_id, event_id) already exists; duplicates return
	// ErrWebhookDuplicate.
	InsertIfAbsent(ctx context.Context, e *WebhookEvent) error
	Update(ctx context.Context, e *WebhookEvent) error
	// FindDueForRetry returns pending-or-failed events whose next_retry_at
	// has passed and whose retry budget is not exhausted.
	FindDueForRetry(ctx context.Context, now time.Time, limit int) ([]WebhookEvent, error)
}
