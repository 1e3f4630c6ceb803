package channel

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Default canonical values applied when a PMS omits a field.
const (
	// DefaultCheckInTime is used when a property payload carries no check-in time.
	DefaultCheckInTime = "15:00"
	// DefaultCheckOutTime is used when a property payload carries no check-out time.
	DefaultCheckOutTime = "11:00"
)

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

// SyncToggles enables or disables synchronization per data category.
type SyncToggles struct {
	Properties   bool `json:"properties"`
	Reservations bool `json:"reservations"`
	Availability bool `json:"availability"`
	Rates        bool `json:"rates"`
}

// AllSyncToggles returns toggles with every category enabled.
func AllSyncToggles() SyncToggles {
	return SyncToggles{Properties: true, Reservations: true, Availability: true, Rates: true}
}

// Connection links one user to one PMS. It owns the credential bag, the sync
// cadence, and the health counters that gate scheduling.
type Connection struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	IntegrationCode IntegrationCode
	// Credentials is the decrypted credential bag. Field names are generic;
	// the registry maps them to whatever the chosen adapter expects.
	Credentials Credentials
	Status      ConnectionStatus
	// SyncInterval is the cadence between scheduled syncs.
	SyncInterval time.Duration
	// Toggles enables sync per data category.
	Toggles SyncToggles
	// DefaultCurrency is used when a PMS payload omits currency.
	DefaultCurrency string
	// LookaheadDays bounds availability/rate fetches into the future.
	// Zero means the operator-configured default applies.
	LookaheadDays int

	ConsecutiveErrors int
	LastSyncAt        *time.Time
	NextSyncAt        *time.Time
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewConnection creates a pending connection for the given integration.
// Codes beyond the direct set are accepted here; whether one resolves to an
// adapter (directly or through the broker) is the registry's decision.
func NewConnection(userID uuid.UUID, code IntegrationCode, creds Credentials) (*Connection, error) {
	if code == "" {
		return nil, ErrUnknownIntegration
	}
	now := time.Now()
	return &Connection{
		ID:              uuid.New(),
		UserID:          userID,
		IntegrationCode: code,
		Credentials:     creds,
		Status:          ConnectionStatusPending,
		SyncInterval:    time.Hour,
		Toggles:         AllSyncToggles(),
		DefaultCurrency: "EUR",
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// MarkConnected records a successful credential verification.
func (c *Connection) MarkConnected() {
	if c.Status == ConnectionStatusPending || c.Status == ConnectionStatusExpired || c.Status == ConnectionStatusError {
		c.Status = ConnectionStatusConnected
	}
	c.ConsecutiveErrors = 0
	c.LastError = ""
	c.UpdatedAt = time.Now()
}

// RecordSyncSuccess resets the health counters after any successful or
// partially successful sync and schedules the next pass.
func (c *Connection) RecordSyncSuccess(now time.Time) {
	c.Status = ConnectionStatusActive
	c.ConsecutiveErrors = 0
	c.LastError = ""
	c.LastSyncAt = &now
	next := now.Add(c.SyncInterval)
	c.NextSyncAt = &next
	c.UpdatedAt = now
}

// RecordSyncFailure increments the consecutive-error counter and, once the
// threshold is crossed, transitions the connection to error status so the
// scheduler stops picking it up until manually reconnected.
func (c *Connection) RecordSyncFailure(now time.Time, errSummary string, threshold int) {
	c.ConsecutiveErrors++
	c.LastError = errSummary
	c.LastSyncAt = &now
	next := now.Add(c.SyncInterval)
	c.NextSyncAt = &next
	if threshold > 0 && c.ConsecutiveErrors >= threshold {
		c.Status = ConnectionStatusError
	}
	c.UpdatedAt = now
}

// MarkExpired flags the connection's credentials as expired.
func (c *Connection) MarkExpired() {
	c.Status = ConnectionStatusExpired
	c.UpdatedAt = time.Now()
}

// DueForSync reports whether the scheduler should sync this connection now.
func (c *Connection) DueForSync(now time.Time) bool {
	if !c.Status.Syncable() {
		return false
	}
	return c.NextSyncAt == nil || !c.NextSyncAt.After(now)
}

// ---------------------------------------------------------------------------
// Property
// ---------------------------------------------------------------------------

// Property is an external listing, keyed by (ConnectionID, ExternalID).
// Sync only ever upserts properties; deletion is managed externally.
type Property struct {
	ID           uuid.UUID
	ConnectionID uuid.UUID
	// ExternalID is the property's identifier on the PMS, unique per connection.
	ExternalID   string
	Name         string
	Address      string
	City         string
	Country      string
	Currency     string
	CheckInTime  string
	CheckOutTime string
	Amenities    []string
	// RawData retains the original PMS payload for audit and re-mapping.
	RawData   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ---------------------------------------------------------------------------
// RoomType
// ---------------------------------------------------------------------------

// RoomType is a bookable entity under a Property. For PMSs without room
// types the property is aliased as its own room type, with ExternalID equal
// to the property's.
type RoomType struct {
	ID           uuid.UUID
	ConnectionID uuid.UUID
	PropertyID   uuid.UUID
	ExternalID   string
	// PropertyExternalID links back to the parent before local IDs exist.
	PropertyExternalID string
	Name               string
	MaxGuests          int
	Bedrooms           int
	Bathrooms          int
	BasePrice          decimal.Decimal
	Currency           string
	UnitCount          int
	RawData            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ---------------------------------------------------------------------------
// Calendar entities
// ---------------------------------------------------------------------------

// AvailabilityDay is one day of a room type's calendar, overwritten on every
// sync. Keyed by (RoomTypeID, Date).
type AvailabilityDay struct {
	RoomTypeID      uuid.UUID
	Date            time.Time
	Available       bool
	UnitsAvailable  int
	MinStay         int
	MaxStay         int
	CheckInAllowed  bool
	CheckOutAllowed bool
	// Price is optional; some PMSs interleave pricing with availability.
	Price *decimal.Decimal
}

// RateDay is one day of nightly pricing for a room type. Keyed by
// (RoomTypeID, Date).
type RateDay struct {
	RoomTypeID         uuid.UUID
	Date               time.Time
	Price              decimal.Decimal
	Currency           string
	ExtraGuestFee      decimal.Decimal
	WeeklyDiscountPct  decimal.Decimal
	MonthlyDiscountPct decimal.Decimal
}

// ---------------------------------------------------------------------------
// Reservation
// ---------------------------------------------------------------------------

// Reservation is an external booking, keyed by (ConnectionID, ExternalID).
// Status transitions arrive via upsert; the PMS is the source of truth.
type Reservation struct {
	ID           uuid.UUID
	ConnectionID uuid.UUID
	ExternalID   string
	// External references to the stay's property and room type.
	PropertyExternalID string
	RoomTypeExternalID string
	CheckIn            time.Time
	CheckOut           time.Time
	GuestName          string
	GuestEmail         string
	GuestPhone         string
	Adults             int
	Children           int
	TotalPrice         decimal.Decimal
	Currency           string
	Status             ReservationStatus
	// Channel is the booking source reported by the PMS (airbnb, booking.com, direct).
	Channel   string
	Notes     string
	RawData   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Nights returns the stay length in nights.
func (r *Reservation) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// ---------------------------------------------------------------------------
// SyncLog
// ---------------------------------------------------------------------------

// SyncCounters tracks per-category item counts for one sync attempt.
type SyncCounters struct {
	Properties   int `json:"properties"`
	RoomTypes    int `json:"room_types"`
	Availability int `json:"availability"`
	Rates        int `json:"rates"`
	Reservations int `json:"reservations"`
	Errors       int `json:"errors"`
}

// SyncLog is the append-only record of one sync attempt.
type SyncLog struct {
	ID           uuid.UUID
	ConnectionID uuid.UUID
	Type         SyncType
	Status       SyncLogStatus
	Counters     SyncCounters
	// ErrorSummary holds the per-category error messages collected during the
	// attempt, newline separated, truncated by the repository if oversized.
	ErrorSummary string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// NewSyncLog opens a sync log record in the started state.
func NewSyncLog(connectionID uuid.UUID, syncType SyncType) *SyncLog {
	return &SyncLog{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		Type:         syncType,
		Status:       SyncLogStatusStarted,
		StartedAt:    time.Now(),
	}
}

// Complete closes the log with a status derived from the counters: failed if
// nothing succeeded, partial_success if errors were counted alongside
// successes, success otherwise.
func (l *SyncLog) Complete(now time.Time) {
	l.CompletedAt = &now
	synced := l.Counters.Properties + l.Counters.RoomTypes + l.Counters.Availability +
		l.Counters.Rates + l.Counters.Reservations
	switch {
	case l.Counters.Errors == 0:
		l.Status = SyncLogStatusSuccess
	case synced > 0:
		l.Status = SyncLogStatusPartialSuccess
	default:
		l.Status = SyncLogStatusFailed
	}
}

// Succeeded reports whether the attempt counts as a success for connection
// health purposes (partial success still resets the error counter).
func (l *SyncLog) Succeeded() bool {
	return l.Status == SyncLogStatusSuccess || l.Status == SyncLogStatusPartialSuccess
}

// ---------------------------------------------------------------------------
// WebhookEvent
// ---------------------------------------------------------------------------

// WebhookEvent is an inbound push payload, deduplicated by
// (ConnectionID, EventID).
type WebhookEvent struct {
	ID           uuid.UUID
	ConnectionID uuid.UUID
	// EventID is the provider-assigned delivery identifier used for dedup.
	EventID   string
	EventType string
	// ExternalID references the affected remote entity.
	ExternalID  string
	Payload     string
	Status      WebhookEventStatus
	RetryCount  int
	NextRetryAt *time.Time
	LastError   string
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

// NewWebhookEvent creates a pending webhook event record.
func NewWebhookEvent(connectionID uuid.UUID, eventID, eventType, externalID, payload string) *WebhookEvent {
	return &WebhookEvent{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		EventID:      eventID,
		EventType:    eventType,
		ExternalID:   externalID,
		Payload:      payload,
		Status:       WebhookEventStatusPending,
		ReceivedAt:   time.Now(),
	}
}

// MarkProcessed records successful processing.
func (e *WebhookEvent) MarkProcessed(now time.Time) {
	e.Status = WebhookEventStatusProcessed
	e.ProcessedAt = &now
	e.NextRetryAt = nil
	e.LastError = ""
}

// MarkFailed records a processing failure, schedules the next retry, and
// marks the event permanently failed once maxRetries is exhausted.
func (e *WebhookEvent) MarkFailed(now time.Time, errMsg string, maxRetries int, retryBackoff time.Duration) {
	e.RetryCount++
	e.LastError = errMsg
	if e.RetryCount >= maxRetries {
		e.Status = WebhookEventStatusFailed
		e.NextRetryAt = nil
		return
	}
	// Backoff grows linearly with the attempt count.
	next := now.Add(time.Duration(e.RetryCount) * retryBackoff)
	e.NextRetryAt = &next
}
