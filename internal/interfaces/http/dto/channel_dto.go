package dto

import (
	"time"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// CreateConnectionRequest registers a new PMS connection. Credentials is a
// generic bag; the adapter registry maps keys like "api_key", "account_id",
// "secret", "token", "refresh_token" to whatever the integration expects.
type CreateConnectionRequest struct {
	IntegrationCode string            `json:"integration_code" binding:"required,min=2,max=32"`
	Credentials     map[string]string `json:"credentials" binding:"required,min=1"`
	SyncInterval    string            `json:"sync_interval" binding:"omitempty"`
	DefaultCurrency string            `json:"default_currency" binding:"omitempty,len=3,uppercase"`
	LookaheadDays   int               `json:"lookahead_days" binding:"omitempty,min=1,max=730"`

	Toggles *SyncTogglesRequest `json:"toggles" binding:"omitempty"`
}

// SyncTogglesRequest enables or disables sync per data category.
type SyncTogglesRequest struct {
	Properties   bool `json:"properties"`
	Reservations bool `json:"reservations"`
	Availability bool `json:"availability"`
	Rates        bool `json:"rates"`
}

// UpdateConnectionRequest changes sync settings on an existing connection.
type UpdateConnectionRequest struct {
	SyncInterval    string              `json:"sync_interval" binding:"omitempty"`
	DefaultCurrency string              `json:"default_currency" binding:"omitempty,len=3,uppercase"`
	LookaheadDays   int                 `json:"lookahead_days" binding:"omitempty,min=1,max=730"`
	Toggles         *SyncTogglesRequest `json:"toggles" binding:"omitempty"`
}

// ConnectionResponse is the public view of a connection. Credentials are
// never echoed back.
type ConnectionResponse struct {
	ID                string     `json:"id"`
	IntegrationCode   string     `json:"integration_code"`
	Status            string     `json:"status"`
	SyncInterval      string     `json:"sync_interval"`
	DefaultCurrency   string     `json:"default_currency"`
	LookaheadDays     int        `json:"lookahead_days,omitempty"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	LastError         string     `json:"last_error,omitempty"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
	NextSyncAt        *time.Time `json:"next_sync_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`

	Toggles SyncTogglesRequest `json:"toggles"`
}

// NewConnectionResponse maps a domain connection to its public view.
func NewConnectionResponse(c *channel.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:                c.ID.String(),
		IntegrationCode:   c.IntegrationCode.String(),
		Status:            c.Status.String(),
		SyncInterval:      c.SyncInterval.String(),
		DefaultCurrency:   c.DefaultCurrency,
		LookaheadDays:     c.LookaheadDays,
		ConsecutiveErrors: c.ConsecutiveErrors,
		LastError:         c.LastError,
		LastSyncAt:        c.LastSyncAt,
		NextSyncAt:        c.NextSyncAt,
		CreatedAt:         c.CreatedAt,
		Toggles: SyncTogglesRequest{
			Properties:   c.Toggles.Properties,
			Reservations: c.Toggles.Reservations,
			Availability: c.Toggles.Availability,
			Rates:        c.Toggles.Rates,
		},
	}
}

// SyncLogResponse is one sync attempt in the connection's history.
type SyncLogResponse struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	Properties   int        `json:"properties"`
	RoomTypes    int        `json:"room_types"`
	Availability int        `json:"availability"`
	Rates        int        `json:"rates"`
	Reservations int        `json:"reservations"`
	Errors       int        `json:"errors"`
	ErrorSummary string     `json:"error_summary,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewSyncLogResponse maps a sync log to its public view.
func NewSyncLogResponse(l *channel.SyncLog) SyncLogResponse {
	return SyncLogResponse{
		ID:           l.ID.String(),
		Type:         l.Type.String(),
		Status:       l.Status.String(),
		Properties:   l.Counters.Properties,
		RoomTypes:    l.Counters.RoomTypes,
		Availability: l.Counters.Availability,
		Rates:        l.Counters.Rates,
		Reservations: l.Counters.Reservations,
		Errors:       l.Counters.Errors,
		ErrorSummary: l.ErrorSummary,
		StartedAt:    l.StartedAt,
		CompletedAt:  l.CompletedAt,
	}
}

// ReservationResponse is the canonical reservation view.
type ReservationResponse struct {
	ID                 string    `json:"id"`
	ExternalID         string    `json:"external_id"`
	PropertyExternalID string    `json:"property_external_id"`
	RoomTypeExternalID string    `json:"room_type_external_id,omitempty"`
	CheckIn            time.Time `json:"check_in"`
	CheckOut           time.Time `json:"check_out"`
	Nights             int       `json:"nights"`
	GuestName          string    `json:"guest_name"`
	Adults             int       `json:"adults"`
	Children           int       `json:"children"`
	TotalPrice         string    `json:"total_price"`
	Currency           string    `json:"currency"`
	Status             string    `json:"status"`
	Channel            string    `json:"channel,omitempty"`
}

// NewReservationResponse maps a reservation to its public view.
func NewReservationResponse(r *channel.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:                 r.ID.String(),
		ExternalID:         r.ExternalID,
		PropertyExternalID: r.PropertyExternalID,
		RoomTypeExternalID: r.RoomTypeExternalID,
		CheckIn:            r.CheckIn,
		CheckOut:           r.CheckOut,
		Nights:             r.Nights(),
		GuestName:          r.GuestName,
		Adults:             r.Adults,
		Children:           r.Children,
		TotalPrice:         r.TotalPrice.String(),
		Currency:           r.Currency,
		Status:             r.Status.String(),
		Channel:            r.Channel,
	}
}

// WebhookAckResponse acknowledges an inbound push delivery.
type WebhookAckResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
}
