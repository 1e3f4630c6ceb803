// Package sync orchestrates data synchronization between connected PMS
// platforms and local storage, and processes inbound webhook pushes.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// propertyPageSize is the page size used when walking the property list.
const propertyPageSize = 50

// Config holds the operator-tunable sync parameters.
type Config struct {
	// LookaheadDays bounds calendar fetches for full syncs.
	LookaheadDays int
	// IncrementalCalendarDays bounds calendar fetches for incremental syncs.
	IncrementalCalendarDays int
	// ErrorThreshold is the consecutive-failure count that transitions a
	// connection to error status.
	ErrorThreshold int
	// RetryAttempts is the attempt budget per PMS call for retryable errors.
	RetryAttempts int
	// RetryBackoff is the base delay between attempts, doubled each retry.
	RetryBackoff time.Duration
}

// Validate fills defaults for unset fields.
func (c *Config) Validate() {
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = 90
	}
	if c.IncrementalCalendarDays <= 0 {
		c.IncrementalCalendarDays = 14
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 5
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
}

// Orchestrator runs full and incremental syncs for one connection at a time.
// Category failures are isolated: a failing reservations fetch still lets
// properties and calendar data land, and the attempt closes as
// partial_success.
type Orchestrator struct {
	connections  channel.ConnectionRepository
	properties   channel.PropertyRepository
	roomTypes    channel.RoomTypeRepository
	calendar     channel.CalendarRepository
	reservations channel.ReservationRepository
	syncLogs     channel.SyncLogRepository
	registry     channel.AdapterRegistry
	cfg          Config
	logger       *zap.Logger

	// sleep is swappable so retry backoff is testable without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(
	connections channel.ConnectionRepository,
	properties channel.PropertyRepository,
	roomTypes channel.RoomTypeRepository,
	calendar channel.CalendarRepository,
	reservations channel.ReservationRepository,
	syncLogs channel.SyncLogRepository,
	registry channel.AdapterRegistry,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	cfg.Validate()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		connections:  connections,
		properties:   properties,
		roomTypes:    roomTypes,
		calendar:     calendar,
		reservations: reservations,
		syncLogs:     syncLogs,
		registry:     registry,
		cfg:          cfg,
		logger:       logger,
		sleep:        sleepContext,
	}
}

// FullSync re-fetches the connection's entire data set: properties, room
// types, the full lookahead calendar window, and all reservations.
func (o *Orchestrator) FullSync(ctx context.Context, connectionID uuid.UUID) (*channel.SyncLog, error) {
	return o.run(ctx, connectionID, channel.SyncTypeFull)
}

// IncrementalSync fetches only reservations modified since the last
// successful attempt and a short calendar window.
func (o *Orchestrator) IncrementalSync(ctx context.Context, connectionID uuid.UUID) (*channel.SyncLog, error) {
	return o.run(ctx, connectionID, channel.SyncTypeIncremental)
}

// run claims the connection, executes one sync attempt, and records the
// outcome on both the sync log and the connection's health counters.
func (o *Orchestrator) run(ctx context.Context, connectionID uuid.UUID, syncType channel.SyncType) (*channel.SyncLog, error) {
	conn, err := o.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.Status.Syncable() {
		return nil, channel.ErrConnectionNotSyncable
	}

	if err := o.connections.BeginSync(ctx, conn.ID); err != nil {
		return nil, err
	}
	defer func() {
		if err := o.connections.EndSync(context.WithoutCancel(ctx), conn.ID); err != nil {
			o.logger.Error("failed to release sync claim",
				zap.String("connection_id", conn.ID.String()),
				zap.Error(err))
		}
	}()

	log := channel.NewSyncLog(conn.ID, syncType)
	if err := o.syncLogs.Create(ctx, log); err != nil {
		return nil, err
	}

	adapter, err := o.registry.GetAdapter(conn)
	if err != nil {
		o.finish(ctx, conn, log, []string{err.Error()})
		return log, err
	}

	o.logger.Info("sync started",
		zap.String("connection_id", conn.ID.String()),
		zap.String("integration", conn.IntegrationCode.String()),
		zap.String("type", syncType.String()))

	var errs []string
	var roomTypes []channel.RoomType

	if conn.Toggles.Properties {
		roomTypes = o.syncProperties(ctx, conn, adapter, log, &errs)
	} else {
		// Calendar sync still needs the room-type inventory.
		roomTypes = o.loadStoredRoomTypes(ctx, conn, &errs)
	}

	window := o.calendarWindow(syncType, conn)
	if conn.Toggles.Availability {
		o.syncAvailability(ctx, adapter, roomTypes, window, log, &errs)
	}
	if conn.Toggles.Rates {
		o.syncRates(ctx, adapter, roomTypes, window, log, &errs)
	}
	if conn.Toggles.Reservations {
		o.syncReservations(ctx, conn, adapter, syncType, log, &errs)
	}

	o.finish(ctx, conn, log, errs)
	return log, nil
}

// finish closes the sync log and updates the connection's health counters.
func (o *Orchestrator) finish(ctx context.Context, conn *channel.Connection, log *channel.SyncLog, errs []string) {
	now := time.Now()
	log.Counters.Errors = len(errs)
	log.ErrorSummary = strings.Join(errs, "\n")
	log.Complete(now)
	if err := o.syncLogs.Update(ctx, log); err != nil {
		o.logger.Error("failed to close sync log", zap.Error(err))
	}

	if log.Succeeded() {
		conn.RecordSyncSuccess(now)
	} else {
		conn.RecordSyncFailure(now, log.ErrorSummary, o.cfg.ErrorThreshold)
	}
	if err := o.connections.Save(ctx, conn); err != nil {
		o.logger.Error("failed to save connection health", zap.Error(err))
	}

	o.logger.Info("sync finished",
		zap.String("connection_id", conn.ID.String()),
		zap.String("status", log.Status.String()),
		zap.Int("errors", log.Counters.Errors))
}

// syncProperties fetches properties and their room types, upserting both.
// It returns the room types for the calendar passes.
func (o *Orchestrator) syncProperties(ctx context.Context, conn *channel.Connection, adapter channel.Adapter, log *channel.SyncLog, errs *[]string) []channel.RoomType {
	var fetched []channel.Property
	for page := 1; ; page++ {
		opts := channel.ListOptions{Page: page, PageSize: propertyPageSize}
		var batch []channel.Property
		err := o.withRetry(ctx, func(ctx context.Context) error {
			var err error
			batch, err = adapter.GetProperties(ctx, opts)
			return err
		})
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("properties: %v", err))
			return o.loadStoredRoomTypes(ctx, conn, errs)
		}
		fetched = append(fetched, batch...)
		if len(batch) < propertyPageSize {
			break
		}
	}

	var roomTypes []channel.RoomType
	for i := range fetched {
		p := &fetched[i]
		p.ConnectionID = conn.ID
		if p.Currency == "" {
			p.Currency = conn.DefaultCurrency
		}
		if err := o.properties.Upsert(ctx, p); err != nil {
			*errs = append(*errs, fmt.Sprintf("property %s: %v", p.ExternalID, err))
			continue
		}
		log.Counters.Properties++

		var units []channel.RoomType
		err := o.withRetry(ctx, func(ctx context.Context) error {
			var err error
			units, err = adapter.GetRoomTypes(ctx, p.ExternalID)
			return err
		})
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("room types for %s: %v", p.ExternalID, err))
			continue
		}
		for j := range units {
			rt := &units[j]
			rt.ConnectionID = conn.ID
			rt.PropertyID = p.ID
			if rt.Currency == "" {
				rt.Currency = conn.DefaultCurrency
			}
			if err := o.roomTypes.Upsert(ctx, rt); err != nil {
				*errs = append(*errs, fmt.Sprintf("room type %s: %v", rt.ExternalID, err))
				continue
			}
			log.Counters.RoomTypes++
			roomTypes = append(roomTypes, *rt)
		}
	}
	return roomTypes
}

// loadStoredRoomTypes returns the already-persisted room-type inventory,
// used when the property pass is disabled or failed.
func (o *Orchestrator) loadStoredRoomTypes(ctx context.Context, conn *channel.Connection, errs *[]string) []channel.RoomType {
	stored, err := o.properties.ListByConnection(ctx, conn.ID)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("stored properties: %v", err))
		return nil
	}
	var roomTypes []channel.RoomType
	for i := range stored {
		units, err := o.roomTypes.ListByProperty(ctx, stored[i].ID)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("stored room types for %s: %v", stored[i].ExternalID, err))
			continue
		}
		roomTypes = append(roomTypes, units...)
	}
	return roomTypes
}

func (o *Orchestrator) syncAvailability(ctx context.Context, adapter channel.Adapter, roomTypes []channel.RoomType, window channel.DateRange, log *channel.SyncLog, errs *[]string) {
	for i := range roomTypes {
		rt := &roomTypes[i]
		var days []channel.AvailabilityDay
		err := o.withRetry(ctx, func(ctx context.Context) error {
			var err error
			days, err = adapter.GetAvailability(ctx, rt.ExternalID, window)
			return err
		})
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("availability for %s: %v", rt.ExternalID, err))
			continue
		}
		for j := range days {
			days[j].RoomTypeID = rt.ID
		}
		if err := o.calendar.UpsertAvailability(ctx, days); err != nil {
			*errs = append(*errs, fmt.Sprintf("store availability for %s: %v", rt.ExternalID, err))
			continue
		}
		log.Counters.Availability += len(days)
	}
}

func (o *Orchestrator) syncRates(ctx context.Context, adapter channel.Adapter, roomTypes []channel.RoomType, window channel.DateRange, log *channel.SyncLog, errs *[]string) {
	for i := range roomTypes {
		rt := &roomTypes[i]
		var days []channel.RateDay
		err := o.withRetry(ctx, func(ctx context.Context) error {
			var err error
			days, err = adapter.GetRates(ctx, rt.ExternalID, window)
			return err
		})
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("rates for %s: %v", rt.ExternalID, err))
			continue
		}
		for j := range days {
			days[j].RoomTypeID = rt.ID
		}
		if err := o.calendar.UpsertRates(ctx, days); err != nil {
			*errs = append(*errs, fmt.Sprintf("store rates for %s: %v", rt.ExternalID, err))
			continue
		}
		log.Counters.Rates += len(days)
	}
}

func (o *Orchestrator) syncReservations(ctx context.Context, conn *channel.Connection, adapter channel.Adapter, syncType channel.SyncType, log *channel.SyncLog, errs *[]string) {
	query := channel.ReservationQuery{}
	if syncType == channel.SyncTypeIncremental {
		since, err := o.syncLogs.LastSuccessfulAt(ctx, conn.ID)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("last successful sync: %v", err))
		} else {
			// A zero since falls back to a full reservation fetch.
			query.ModifiedSince = since
		}
	}

	var fetched []channel.Reservation
	err := o.withRetry(ctx, func(ctx context.Context) error {
		var err error
		fetched, err = adapter.GetReservations(ctx, query)
		return err
	})
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("reservations: %v", err))
		return
	}

	for i := range fetched {
		res := &fetched[i]
		res.ConnectionID = conn.ID
		if res.Currency == "" {
			res.Currency = conn.DefaultCurrency
		}
		if err := o.reservations.Upsert(ctx, res); err != nil {
			*errs = append(*errs, fmt.Sprintf("reservation %s: %v", res.ExternalID, err))
			continue
		}
		log.Counters.Reservations++
	}
}

// calendarWindow derives the fetch window from the sync type, honoring a
// per-connection lookahead override for full syncs.
func (o *Orchestrator) calendarWindow(syncType channel.SyncType, conn *channel.Connection) channel.DateRange {
	days := o.cfg.LookaheadDays
	if syncType == channel.SyncTypeIncremental {
		days = o.cfg.IncrementalCalendarDays
	} else if conn.LookaheadDays > 0 {
		days = conn.LookaheadDays
	}
	start := time.Now().Truncate(24 * time.Hour)
	return channel.DateRange{Start: start, End: start.AddDate(0, 0, days-1)}
}

// withRetry runs op, retrying retryable API failures with doubling backoff
// until the attempt budget is spent.
func (o *Orchestrator) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := o.cfg.RetryBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || !channel.IsRetryable(err) || attempt >= o.cfg.RetryAttempts {
			return err
		}
		if sleepErr := o.sleep(ctx, backoff); sleepErr != nil {
			return err
		}
		backoff *= 2
	}
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
