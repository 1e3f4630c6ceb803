package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/shared"
)

// WebhookConfig holds the operator-tunable webhook processing parameters.
type WebhookConfig struct {
	// MaxRetries is the processing attempt budget per event.
	MaxRetries int
	// RetryBackoff is the base delay before a failed event is retried. The
	// delay grows linearly with the attempt count.
	RetryBackoff time.Duration
	// DedupTTL bounds how long delivery IDs are remembered in the fast-path
	// dedup store.
	DedupTTL time.Duration
	// CalendarWindowDays bounds the refetch window for calendar events.
	CalendarWindowDays int
}

// Validate fills defaults for unset fields.
func (c *WebhookConfig) Validate() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 15 * time.Minute
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = 24 * time.Hour
	}
	if c.CalendarWindowDays <= 0 {
		c.CalendarWindowDays = 14
	}
}

// WebhookService turns inbound push payloads into targeted re-fetches.
// Events are deduplicated twice: a TTL'd fast path in the idempotency store
// and the database unique key on (connection_id, event_id), which stays
// authoritative when the fast path is degraded.
type WebhookService struct {
	connections  channel.ConnectionRepository
	properties   channel.PropertyRepository
	roomTypes    channel.RoomTypeRepository
	calendar     channel.CalendarRepository
	reservations channel.ReservationRepository
	events       channel.WebhookEventRepository
	registry     channel.AdapterRegistry
	dedup        shared.IdempotencyStore
	cfg          WebhookConfig
	logger       *zap.Logger
}

// NewWebhookService creates a webhook processing service.
func NewWebhookService(
	connections channel.ConnectionRepository,
	properties channel.PropertyRepository,
	roomTypes channel.RoomTypeRepository,
	calendar channel.CalendarRepository,
	reservations channel.ReservationRepository,
	events channel.WebhookEventRepository,
	registry channel.AdapterRegistry,
	dedup shared.IdempotencyStore,
	cfg WebhookConfig,
	logger *zap.Logger,
) *WebhookService {
	cfg.Validate()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		connections:  connections,
		properties:   properties,
		roomTypes:    roomTypes,
		calendar:     calendar,
		reservations: reservations,
		events:       events,
		registry:     registry,
		dedup:        dedup,
		cfg:          cfg,
		logger:       logger,
	}
}

// ProcessWebhook parses, deduplicates, persists, and processes one inbound
// push delivery. Duplicate deliveries return ErrWebhookDuplicate so the
// transport layer can acknowledge them without side effects. A processing
// failure leaves the event pending with a retry schedule and is not returned
// to the caller as a transport error.
func (s *WebhookService) ProcessWebhook(ctx context.Context, connectionID uuid.UUID, payload []byte, headers map[string]string) (*channel.WebhookEvent, error) {
	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.GetAdapter(conn)
	if err != nil {
		return nil, err
	}

	normalized, err := adapter.ParseWebhookPayload(payload, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", channel.ErrWebhookPayloadInvalid, err)
	}

	if s.dedup != nil {
		key := conn.ID.String() + ":" + normalized.EventID
		first, err := s.dedup.MarkProcessed(ctx, key, s.cfg.DedupTTL)
		if err != nil {
			// The database unique key below still rejects replays.
			s.logger.Warn("dedup store unavailable, relying on database dedup",
				zap.Error(err))
		} else if !first {
			return nil, channel.ErrWebhookDuplicate
		}
	}

	event := channel.NewWebhookEvent(conn.ID, normalized.EventID, normalized.Event, normalized.ExternalID, string(payload))
	if err := s.events.InsertIfAbsent(ctx, event); err != nil {
		return nil, err
	}

	s.logger.Info("webhook received",
		zap.String("connection_id", conn.ID.String()),
		zap.String("event_type", normalized.Event),
		zap.String("external_id", normalized.ExternalID))

	s.process(ctx, conn, adapter, event, normalized)
	return event, nil
}

// RetryPending re-processes events whose retry time has passed.
func (s *WebhookService) RetryPending(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.events.FindDueForRetry(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		event := &due[i]
		conn, err := s.connections.FindByID(ctx, event.ConnectionID)
		if err != nil {
			s.fail(ctx, event, err)
			continue
		}
		adapter, err := s.registry.GetAdapter(conn)
		if err != nil {
			s.fail(ctx, event, err)
			continue
		}
		normalized := &channel.NormalizedEvent{
			EventID:    event.EventID,
			Event:      event.EventType,
			ExternalID: event.ExternalID,
			Data:       []byte(event.Payload),
			Timestamp:  event.ReceivedAt,
		}
		s.process(ctx, conn, adapter, event, normalized)
		if event.Status == channel.WebhookEventStatusProcessed {
			processed++
		}
	}
	return processed, nil
}

// process dispatches the event and records the outcome on its stored record.
func (s *WebhookService) process(ctx context.Context, conn *channel.Connection, adapter channel.Adapter, event *channel.WebhookEvent, normalized *channel.NormalizedEvent) {
	if err := s.dispatch(ctx, conn, adapter, normalized); err != nil {
		s.fail(ctx, event, err)
		return
	}
	event.MarkProcessed(time.Now())
	if err := s.events.Update(ctx, event); err != nil {
		s.logger.Error("failed to mark webhook event processed", zap.Error(err))
	}
}

func (s *WebhookService) fail(ctx context.Context, event *channel.WebhookEvent, cause error) {
	event.MarkFailed(time.Now(), cause.Error(), s.cfg.MaxRetries, s.cfg.RetryBackoff)
	if err := s.events.Update(ctx, event); err != nil {
		s.logger.Error("failed to record webhook event failure", zap.Error(err))
	}
	s.logger.Warn("webhook event processing failed",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Int("retry_count", event.RetryCount),
		zap.String("status", event.Status.String()),
		zap.Error(cause))
}

// dispatch re-fetches the entity named by the event. Unknown event types are
// acknowledged without action so new provider events never wedge the queue.
func (s *WebhookService) dispatch(ctx context.Context, conn *channel.Connection, adapter channel.Adapter, normalized *channel.NormalizedEvent) error {
	switch normalized.Event {
	case channel.EventReservationCreated, channel.EventReservationUpdated:
		return s.refetchReservation(ctx, conn, adapter, normalized.ExternalID)
	case channel.EventReservationCancelled:
		return s.cancelReservation(ctx, conn, adapter, normalized.ExternalID)
	case channel.EventAvailabilityUpdated:
		return s.refetchAvailability(ctx, conn, adapter, s.roomTypeRef(normalized))
	case channel.EventRatesUpdated:
		return s.refetchRates(ctx, conn, adapter, s.roomTypeRef(normalized))
	case channel.EventPropertyUpdated:
		return s.refetchProperty(ctx, conn, adapter, normalized.ExternalID)
	default:
		s.logger.Debug("ignoring unhandled webhook event type",
			zap.String("event_type", normalized.Event))
		return nil
	}
}

// roomTypeRef prefers the dedicated room-type reference and falls back to the
// event's primary external ID.
func (s *WebhookService) roomTypeRef(normalized *channel.NormalizedEvent) string {
	if normalized.RoomTypeExternalID != "" {
		return normalized.RoomTypeExternalID
	}
	return normalized.ExternalID
}

func (s *WebhookService) refetchReservation(ctx context.Context, conn *channel.Connection, adapter channel.Adapter, externalID string) error {
	res, err := adapter.GetReservation(ctx, externalID)
	if err != nil {
		return fmt.Errorf("fetch reservation %s: %w", externalID, err)
	}
	res.ConnectionID = conn.ID
	if res.Currency == "" {
		res.Currency = conn.DefaultCurrency
	}
	return s.reservations.Upsert(ctx, res)
}

// cancelReservation re-fetches the booking for its final state. When the PMS
// has already purged it, the stored copy is marked cancelled instead.
func (s *WebhookService) cancelReservation(ctx context.Context, conn *channel.Connection, adapter channel.Adapter, externalID string) error {
	res, err := adapter.GetReservation(ctx, externalID)
	if err != nil {
		if apiErr, ok := channel.AsAPIError(err); ok && apiErr.Code == channel.ErrorCodeNotFound {
			return s.markStoredCancelled(ctx, conn, externalID)
		}
		return fmt.Errorf("fetch cancelled reservation %s: %w", externalID, err)
	}
	res.ConnectionID = conn.ID
	if res.Currency == "" {
		res.Currency = conn.DefaultCurrency
	}
	return s.reservations.Upsert(ctx, res)
}

func (s *WebhookService) markStoredCancelled(ctx context.Context, conn *channel.Connection, externalID string) error {
	stored, err := s.reservations.FindByExternalID(ctx, conn.ID, externalID)
	if err != nil {
		return err
	}
	stored.Status = channel.ReservationStatusCancelled
	return s.reservations.Upsert(ctx, stored)
}

func (s *WebhookService) refetchAvailability(ctx context.Context, conn *channel.Connection, adapter channel.Adapter, roomTypeExternalID string) error {
	rt, err := s.roomTypes.FindByExternalID(ctx, conn.ID, roomTypeExternalID)
	if err != nil {
		return fmt.Errorf("resolve room type %s: %w", roomTypeExternalID, err)
	}
	window := s.calendarWindow()
	days, err := adapter.GetAvailability(ctx, roomTypeExternalID, window)
	if err != nil {
		return fmt.Errorf("fetch availability for %s: %w", roomTypeExternalID, err)
	}
	for i := range days {
		days[i].RoomTypeID = rt.ID
	}
	return s.calendar.UpsertAvailability(ctx, days)
}

func (s *WebhookService) refetchRates(ctx context.Context, conn *channel.Connection, adapter channel.Adapter, roomTypeExternalID string) error {
	rt, err := s.roomTypes.FindByExternalID(ctx, conn.ID, roomTypeExternalID)
	if err != nil {
		return fmt.Errorf("resolve room type %s: %w", roomTypeExternalID, err)
	}
	window := s.calendarWindow()
	days, err := adapter.GetRates(ctx, roomTypeExternalID, window)
	if err != nil {
		return fmt.Errorf("fetch rates for %s: %w", roomTypeExternalID, err)
	}
	for i := range days {
		days[i].RoomTypeID = rt.ID
	}
	return s.calendar.UpsertRates(ctx, days)
}

func (s *WebhookService) refetchProperty(ctx context.Context, conn *channel.Connection, adapter channel.Adapter, externalID string) error {
	p, err := adapter.GetProperty(ctx, externalID)
	if err != nil {
		return fmt.Errorf("fetch property %s: %w", externalID, err)
	}
	p.ConnectionID = conn.ID
	if p.Currency == "" {
		p.Currency = conn.DefaultCurrency
	}
	if err := s.properties.Upsert(ctx, p); err != nil {
		return err
	}

	units, err := adapter.GetRoomTypes(ctx, externalID)
	if err != nil {
		return fmt.Errorf("fetch room types for %s: %w", externalID, err)
	}
	for i := range units {
		rt := &units[i]
		rt.ConnectionID = conn.ID
		rt.PropertyID = p.ID
		if rt.Currency == "" {
			rt.Currency = conn.DefaultCurrency
		}
		if err := s.roomTypes.Upsert(ctx, rt); err != nil {
			return err
		}
	}
	return nil
}

func (s *WebhookService) calendarWindow() channel.DateRange {
	start := time.Now().Truncate(24 * time.Hour)
	return channel.DateRange{Start: start, End: start.AddDate(0, 0, s.cfg.CalendarWindowDays-1)}
}
