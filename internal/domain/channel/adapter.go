package channel

import (
	"context"
	"errors"
	"time"
)

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// Credentials is the generic credential bag stored on a connection. Keys are
// platform-neutral ("api_key", "account_id", "secret", "token",
// "refresh_token", "workspace_id"); the registry translates them into the
// fields each adapter's config expects.
type Credentials map[string]string

// Get returns the value for key, or "" when absent.
func (c Credentials) Get(key string) string {
	return c[key]
}

// Require returns the value for key or ErrMissingCredential when absent.
func (c Credentials) Require(key string) (string, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return "", ErrMissingCredential
	}
	return v, nil
}

// TokenInfo describes the token obtained by Authenticate.
type TokenInfo struct {
	AccessToken string
	// RefreshToken is set only by integrations using the refresh-token flow.
	RefreshToken string
	// ExpiresAt is the zero time when the token does not expire.
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// ---------------------------------------------------------------------------
// Query DTOs
// ---------------------------------------------------------------------------

// ListOptions bounds paged list fetches.
type ListOptions struct {
	// Page is 1-indexed.
	Page int
	// PageSize is clamped to [1, 100] by Validate.
	PageSize int
}

// Validate normalizes paging bounds.
func (o *ListOptions) Validate() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 || o.PageSize > 100 {
		o.PageSize = 50
	}
}

// ReservationQuery bounds reservation fetches.
type ReservationQuery struct {
	ListOptions
	// ModifiedSince limits results to reservations changed after this
	// instant. Zero means no lower bound (full fetch).
	ModifiedSince time.Time
	// PropertyExternalID optionally scopes the fetch to one property.
	PropertyExternalID string
}

// DateRange is an inclusive calendar window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate checks the window ordering.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("channel: date range start and end are required")
	}
	if r.End.Before(r.Start) {
		return errors.New("channel: date range end precedes start")
	}
	return nil
}

// Days returns the number of days in the window, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// ReservationDraft carries the writable reservation fields for create and
// update calls pushed to a PMS.
type ReservationDraft struct {
	PropertyExternalID string
	RoomTypeExternalID string
	CheckIn            time.Time
	CheckOut           time.Time
	GuestName          string
	GuestEmail         string
	GuestPhone         string
	Adults             int
	Children           int
	Notes              string
}

// ---------------------------------------------------------------------------
// NormalizedEvent
// ---------------------------------------------------------------------------

// Canonical webhook event types every adapter normalizes to.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationUpdated   = "reservation.updated"
	EventReservationCancelled = "reservation.cancelled"
	EventAvailabilityUpdated  = "availability.updated"
	EventRatesUpdated         = "rates.updated"
	EventPropertyUpdated      = "property.updated"
)

// NormalizedEvent is the provider-neutral form of an inbound webhook.
type NormalizedEvent struct {
	// EventID is the provider's delivery identifier, used for dedup. Adapters
	// whose provider sends none derive a stable one from the payload.
	EventID string
	// Event is one of the canonical event type constants.
	Event string
	// ExternalID identifies the affected remote entity.
	ExternalID string
	// RoomTypeExternalID is set for calendar events.
	RoomTypeExternalID string
	// Data is the raw provider payload.
	Data []byte
	// Timestamp is the provider-reported event time, or the receive time.
	Timestamp time.Time
}

// ---------------------------------------------------------------------------
// Adapter port
// ---------------------------------------------------------------------------

// Adapter is the capability contract every integration implements. Concrete
// adapters live in the infrastructure layer and differ only in wire protocol,
// auth strategy, and payload mapping; the orchestrator and webhook processor
// are written against this interface alone.
//
// Every network-calling method classifies failures into *APIError and never
// panics. Returned entities carry external identifiers and raw payloads; the
// caller stamps local connection/row IDs before persisting.
type Adapter interface {
	// IntegrationCode returns the code this adapter handles. For the broker
	// adapter this is the downstream PMS code it was constructed for.
	IntegrationCode() IntegrationCode

	// Authenticate verifies credentials and obtains an access token where the
	// integration's auth strategy uses one.
	Authenticate(ctx context.Context) (*TokenInfo, error)

	// TestConnection performs a cheap authenticated call to verify the
	// connection end to end.
	TestConnection(ctx context.Context) error

	// GetProperties lists the connection's properties.
	GetProperties(ctx context.Context, opts ListOptions) ([]Property, error)
	// GetProperty fetches a single property by its external ID.
	GetProperty(ctx context.Context, externalID string) (*Property, error)

	// GetRoomTypes lists the bookable units of a property. Integrations
	// without a room-type concept return the property aliased as one room type.
	GetRoomTypes(ctx context.Context, propertyExternalID string) ([]RoomType, error)

	// GetAvailability fetches the availability calendar for a room type.
	GetAvailability(ctx context.Context, roomTypeExternalID string, window DateRange) ([]AvailabilityDay, error)
	// UpdateAvailability pushes availability changes to the PMS.
	UpdateAvailability(ctx context.Context, roomTypeExternalID string, days []AvailabilityDay) error

	// GetRates fetches nightly rates for a room type.
	GetRates(ctx context.Context, roomTypeExternalID string, window DateRange) ([]RateDay, error)
	// UpdateRates pushes rate changes to the PMS.
	UpdateRates(ctx context.Context, roomTypeExternalID string, days []RateDay) error

	// GetReservations lists reservations matching the query.
	GetReservations(ctx context.Context, q ReservationQuery) ([]Reservation, error)
	// GetReservation fetches a single reservation by its external ID.
	GetReservation(ctx context.Context, externalID string) (*Reservation, error)
	// CreateReservation creates a booking on the PMS.
	CreateReservation(ctx context.Context, draft *ReservationDraft) (*Reservation, error)
	// UpdateReservation updates a booking on the PMS.
	UpdateReservation(ctx context.Context, externalID string, draft *ReservationDraft) (*Reservation, error)
	// CancelReservation cancels a booking on the PMS.
	CancelReservation(ctx context.Context, externalID, reason string) error

	// ParseWebhookPayload verifies and normalizes an inbound push payload.
	// It performs no network calls.
	ParseWebhookPayload(payload []byte, headers map[string]string) (*NormalizedEvent, error)
}

// ---------------------------------------------------------------------------
// Registry port
// ---------------------------------------------------------------------------

// AdapterRegistry resolves a connection's integration code to a configured
// adapter instance. It is an explicit, constructed object rather than an
// ambient singleton, so tests can build isolated registries.
type AdapterRegistry interface {
	// GetAdapter returns an adapter for the connection, resolving direct
	// adapters first and falling back to the broker for codes on its
	// supported-PMS list. The connection's generic credential bag is mapped
	// to adapter-specific config fields here and nowhere else.
	GetAdapter(conn *Connection) (Adapter, error)

	// SupportedCodes lists every integration code this registry can resolve.
	SupportedCodes() []IntegrationCode
}
