package channel

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// Adapter resolution errors
	ErrUnknownIntegration    = errors.New("channel: unknown integration code")
	ErrMissingCredential     = errors.New("channel: required credential missing")
	ErrConnectionNotFound    = errors.New("channel: connection not found")
	ErrConnectionNotSyncable = errors.New("channel: connection is not in a syncable state")
	ErrSyncAlreadyRunning    = errors.New("channel: a sync for this connection is already running")

	// Entity errors
	ErrPropertyNotFound    = errors.New("channel: property not found")
	ErrRoomTypeNotFound    = errors.New("channel: room type not found")
	ErrReservationNotFound = errors.New("channel: reservation not found")

	// Webhook errors
	ErrWebhookPayloadInvalid = errors.New("channel: webhook payload could not be parsed")
	ErrWebhookDuplicate      = errors.New("channel: webhook event already received")
)

// ---------------------------------------------------------------------------
// ErrorCode classifies failures of outbound PMS API calls
// ---------------------------------------------------------------------------

// ErrorCode classifies a failed call to an external PMS API.
type ErrorCode string

const (
	// ErrorCodeAuthFailed indicates rejected or expired credentials (HTTP 401/403).
	ErrorCodeAuthFailed ErrorCode = "AUTH_FAILED"
	// ErrorCodeRateLimit indicates the remote API throttled the request (HTTP 429).
	ErrorCodeRateLimit ErrorCode = "RATE_LIMIT"
	// ErrorCodeNotFound indicates the requested remote entity does not exist (HTTP 404).
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeTimeout indicates the request exceeded its deadline.
	ErrorCodeTimeout ErrorCode = "TIMEOUT"
	// ErrorCodeNetwork indicates a transport-level failure before a response arrived.
	ErrorCodeNetwork ErrorCode = "NETWORK"
	// ErrorCodeUnknown covers every other failure mode.
	ErrorCodeUnknown ErrorCode = "UNKNOWN"
)

// Retryable reports whether the same call may succeed if attempted again
// after a delay.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrorCodeRateLimit, ErrorCodeTimeout, ErrorCodeNetwork:
		return true
	default:
		return false
	}
}

// String returns the string representation of ErrorCode.
func (c ErrorCode) String() string {
	return string(c)
}

// APIError is the structured failure result every adapter returns for
// expected failure modes. Adapters never panic and never surface raw
// transport errors past this type.
type APIError struct {
	// Code is the taxonomy classification of the failure.
	Code ErrorCode
	// Message is a human-readable description, including any remote error body.
	Message string
	// HTTPStatus is the remote status code, or 0 for transport failures.
	HTTPStatus int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("channel: %s (HTTP %d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("channel: %s: %s", e.Code, e.Message)
}

// Retryable reports whether the failure is worth retrying.
func (e *APIError) Retryable() bool {
	return e.Code.Retryable()
}

// NewAPIError creates a new APIError.
func NewAPIError(code ErrorCode, httpStatus int, message string) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// ClassifyHTTPStatus maps a remote HTTP status code to an ErrorCode.
func ClassifyHTTPStatus(status int) ErrorCode {
	switch {
	case status == 401 || status == 403:
		return ErrorCodeAuthFailed
	case status == 429:
		return ErrorCodeRateLimit
	case status == 404:
		return ErrorCodeNotFound
	case status == 408 || status == 504:
		return ErrorCodeTimeout
	default:
		return ErrorCodeUnknown
	}
}

// AsAPIError unwraps err to an *APIError if it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is a retryable API failure.
func IsRetryable(err error) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Retryable()
	}
	return false
}

// ---------------------------------------------------------------------------
// IntegrationCode identifies one integration target
// ---------------------------------------------------------------------------

// IntegrationCode identifies the PMS or channel manager a connection talks to.
type IntegrationCode string

const (
	// IntegrationBeds24 is the Beds24 PMS (bearer token with refresh token).
	IntegrationBeds24 IntegrationCode = "beds24"
	// IntegrationHostaway is the Hostaway PMS (OAuth2 client credentials).
	IntegrationHostaway IntegrationCode = "hostaway"
	// IntegrationLodgify is the Lodgify PMS (static API key).
	IntegrationLodgify IntegrationCode = "lodgify"
	// IntegrationSmoobu is the Smoobu PMS (static API key).
	IntegrationSmoobu IntegrationCode = "smoobu"
	// IntegrationChannex is the Channex meta-integration broker, which fronts
	// downstream PMSs behind one API. Codes not handled by a direct adapter
	// resolve through it when the downstream PMS is on its supported list.
	IntegrationChannex IntegrationCode = "channex"
)

// IsValid returns true if the code names a direct integration. Codes of
// PMSs reached through the broker are not listed here; the registry's
// supported-PMS list covers them.
func (c IntegrationCode) IsValid() bool {
	switch c {
	case IntegrationBeds24, IntegrationHostaway, IntegrationLodgify,
		IntegrationSmoobu, IntegrationChannex:
		return true
	default:
		return false
	}
}

// String returns the string representation of IntegrationCode.
func (c IntegrationCode) String() string {
	return string(c)
}

// ---------------------------------------------------------------------------
// ConnectionStatus
// ---------------------------------------------------------------------------

// ConnectionStatus is the health state of a connection.
type ConnectionStatus string

const (
	// ConnectionStatusPending indicates onboarding has started but the first
	// successful authentication has not happened yet.
	ConnectionStatusPending ConnectionStatus = "pending"
	// ConnectionStatusConnected indicates credentials verified, no sync yet.
	ConnectionStatusConnected ConnectionStatus = "connected"
	// ConnectionStatusActive indicates at least one successful sync.
	ConnectionStatusActive ConnectionStatus = "active"
	// ConnectionStatusError indicates the consecutive-error threshold was
	// crossed; the connection is excluded from scheduling until reconnected.
	ConnectionStatusError ConnectionStatus = "error"
	// ConnectionStatusExpired indicates credentials are known to be expired.
	ConnectionStatusExpired ConnectionStatus = "expired"
	// ConnectionStatusDisconnected indicates the user disabled the connection.
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// IsValid returns true if the status is valid.
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusPending, ConnectionStatusConnected, ConnectionStatusActive,
		ConnectionStatusError, ConnectionStatusExpired, ConnectionStatusDisconnected:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	return string(s)
}

// Syncable reports whether the scheduler may pick this connection up.
func (s ConnectionStatus) Syncable() bool {
	return s == ConnectionStatusConnected || s == ConnectionStatusActive
}

// ---------------------------------------------------------------------------
// Sync types and statuses
// ---------------------------------------------------------------------------

// SyncType distinguishes full from incremental synchronization passes.
type SyncType string

const (
	// SyncTypeFull re-fetches the entire data set for a connection.
	SyncTypeFull SyncType = "full"
	// SyncTypeIncremental fetches only records changed since the last
	// successful sync, plus a short rolling calendar window.
	SyncTypeIncremental SyncType = "incremental"
)

// IsValid returns true if the sync type is valid.
func (t SyncType) IsValid() bool {
	return t == SyncTypeFull || t == SyncTypeIncremental
}

// String returns the string representation of SyncType.
func (t SyncType) String() string {
	return string(t)
}

// SyncLogStatus is the outcome of one sync attempt.
type SyncLogStatus string

const (
	// SyncLogStatusStarted indicates the attempt is in flight.
	SyncLogStatusStarted SyncLogStatus = "started"
	// SyncLogStatusSuccess indicates every category synced without errors.
	SyncLogStatusSuccess SyncLogStatus = "success"
	// SyncLogStatusPartialSuccess indicates some items failed but the
	// attempt completed its planned sequence.
	SyncLogStatusPartialSuccess SyncLogStatus = "partial_success"
	// SyncLogStatusFailed indicates the attempt produced no successful writes.
	SyncLogStatusFailed SyncLogStatus = "failed"
)

// IsValid returns true if the status is valid.
func (s SyncLogStatus) IsValid() bool {
	switch s {
	case SyncLogStatusStarted, SyncLogStatusSuccess, SyncLogStatusPartialSuccess, SyncLogStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncLogStatus.
func (s SyncLogStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// ReservationStatus
// ---------------------------------------------------------------------------

// ReservationStatus is the canonical booking status.
type ReservationStatus string

const (
	ReservationStatusConfirmed  ReservationStatus = "confirmed"
	ReservationStatusPending    ReservationStatus = "pending"
	ReservationStatusCancelled  ReservationStatus = "cancelled"
	ReservationStatusCheckedIn  ReservationStatus = "checked_in"
	ReservationStatusCheckedOut ReservationStatus = "checked_out"
	ReservationStatusNoShow     ReservationStatus = "no_show"
)

// IsValid returns true if the status is valid.
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusConfirmed, ReservationStatusPending, ReservationStatusCancelled,
		ReservationStatusCheckedIn, ReservationStatusCheckedOut, ReservationStatusNoShow:
		return true
	default:
		return false
	}
}

// String returns the string representation of ReservationStatus.
func (s ReservationStatus) String() string {
	return string(s)
}

// IsFinal returns true for terminal statuses.
func (s ReservationStatus) IsFinal() bool {
	switch s {
	case ReservationStatusCancelled, ReservationStatusCheckedOut, ReservationStatusNoShow:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// WebhookEventStatus
// ---------------------------------------------------------------------------

// WebhookEventStatus is the processing state of an inbound push event.
type WebhookEventStatus string

const (
	WebhookEventStatusPending   WebhookEventStatus = "pending"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// IsValid returns true if the status is valid.
func (s WebhookEventStatus) IsValid() bool {
	switch s {
	case WebhookEventStatusPending, WebhookEventStatusProcessed, WebhookEventStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of WebhookEventStatus.
func (s WebhookEventStatus) String() string {
	return string(s)
}
