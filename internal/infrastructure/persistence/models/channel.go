package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

// ConnectionModel is the persistence model for the Connection domain entity.
// Credentials are stored sealed; the repository owns the cipher and the
// model never sees plaintext.
type ConnectionModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index:idx_connections_user"`
	IntegrationCode string    `gorm:"type:varchar(40);not null;index:idx_connections_code"`
	// CredentialsSealed holds the encrypted credential bag.
	CredentialsSealed string `gorm:"type:text;not null"`
	Status            string `gorm:"type:varchar(20);not null;index:idx_connections_status"`
	SyncIntervalSecs  int    `gorm:"not null;default:3600"`
	TogglesJSON       string `gorm:"type:jsonb;column:toggles"`
	DefaultCurrency   string `gorm:"type:varchar(3);not null;default:'EUR'"`
	LookaheadDays     int    `gorm:"not null;default:0"`
	// SyncRunning is the single-flight claim; BeginSync sets it with a
	// compare-and-swap update.
	SyncRunning       bool       `gorm:"not null;default:false"`
	ConsecutiveErrors int        `gorm:"not null;default:0"`
	LastSyncAt        *time.Time `gorm:""`
	NextSyncAt        *time.Time `gorm:"index:idx_connections_next_sync"`
	LastError         string     `gorm:"type:text"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectionModel) TableName() string {
	return "connections"
}

// ToDomain converts the persistence model to a domain Connection. The
// credential bag is left empty; the repository decrypts it separately.
func (m *ConnectionModel) ToDomain() *channel.Connection {
	conn := &channel.Connection{
		ID:                m.ID,
		UserID:            m.UserID,
		IntegrationCode:   channel.IntegrationCode(m.IntegrationCode),
		Status:            channel.ConnectionStatus(m.Status),
		SyncInterval:      time.Duration(m.SyncIntervalSecs) * time.Second,
		DefaultCurrency:   m.DefaultCurrency,
		LookaheadDays:     m.LookaheadDays,
		ConsecutiveErrors: m.ConsecutiveErrors,
		LastSyncAt:        m.LastSyncAt,
		NextSyncAt:        m.NextSyncAt,
		LastError:         m.LastError,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.TogglesJSON != "" {
		_ = json.Unmarshal([]byte(m.TogglesJSON), &conn.Toggles)
	} else {
		conn.Toggles = channel.AllSyncToggles()
	}
	return conn
}

// FromDomain populates the persistence model from a domain Connection.
// CredentialsSealed must be set by the repository afterwards.
func (m *ConnectionModel) FromDomain(conn *channel.Connection) {
	m.ID = conn.ID
	m.UserID = conn.UserID
	m.IntegrationCode = string(conn.IntegrationCode)
	m.Status = string(conn.Status)
	m.SyncIntervalSecs = int(conn.SyncInterval / time.Second)
	m.DefaultCurrency = conn.DefaultCurrency
	m.LookaheadDays = conn.LookaheadDays
	m.ConsecutiveErrors = conn.ConsecutiveErrors
	m.LastSyncAt = conn.LastSyncAt
	m.NextSyncAt = conn.NextSyncAt
	m.LastError = conn.LastError
	m.CreatedAt = conn.CreatedAt
	m.UpdatedAt = conn.UpdatedAt
	if raw, err := json.Marshal(conn.Toggles); err == nil {
		m.TogglesJSON = string(raw)
	}
}

// ---------------------------------------------------------------------------
// Property
// ---------------------------------------------------------------------------

// PropertyModel is the persistence model for the Property domain entity.
type PropertyModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	ConnectionID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_properties_conn_ext,priority:1"`
	ExternalID    string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_properties_conn_ext,priority:2"`
	Name          string    `gorm:"type:varchar(255);not null"`
	Address       string    `gorm:"type:varchar(255)"`
	City          string    `gorm:"type:varchar(100)"`
	Country       string    `gorm:"type:varchar(100)"`
	Currency      string    `gorm:"type:varchar(3)"`
	CheckInTime   string    `gorm:"type:varchar(5)"`
	CheckOutTime  string    `gorm:"type:varchar(5)"`
	AmenitiesJSON string    `gorm:"type:jsonb;column:amenities"`
	RawData       string    `gorm:"type:jsonb"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PropertyModel) TableName() string {
	return "properties"
}

// ToDomain converts the persistence model to a domain Property.
func (m *PropertyModel) ToDomain() *channel.Property {
	p := &channel.Property{
		ID:           m.ID,
		ConnectionID: m.ConnectionID,
		ExternalID:   m.ExternalID,
		Name:         m.Name,
		Address:      m.Address,
		City:         m.City,
		Country:      m.Country,
		Currency:     m.Currency,
		CheckInTime:  m.CheckInTime,
		CheckOutTime: m.CheckOutTime,
		RawData:      m.RawData,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.AmenitiesJSON != "" {
		_ = json.Unmarshal([]byte(m.AmenitiesJSON), &p.Amenities)
	}
	return p
}

// FromDomain populates the persistence model from a domain Property.
func (m *PropertyModel) FromDomain(p *channel.Property) {
	m.ID = p.ID
	m.ConnectionID = p.ConnectionID
	m.ExternalID = p.ExternalID
	m.Name = p.Name
	m.Address = p.Address
	m.City = p.City
	m.Country = p.Country
	m.Currency = p.Currency
	m.CheckInTime = p.CheckInTime
	m.CheckOutTime = p.CheckOutTime
	m.RawData = p.RawData
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
	if len(p.Amenities) > 0 {
		if raw, err := json.Marshal(p.Amenities); err == nil {
			m.AmenitiesJSON = string(raw)
		}
	} else {
		m.AmenitiesJSON = "[]"
	}
}

// ---------------------------------------------------------------------------
// RoomType
// ---------------------------------------------------------------------------

// RoomTypeModel is the persistence model for the RoomType domain entity.
type RoomTypeModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	ConnectionID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_room_types_conn_ext,priority:1"`
	PropertyID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_room_types_property"`
	ExternalID         string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_room_types_conn_ext,priority:2"`
	PropertyExternalID string          `gorm:"type:varchar(100)"`
	Name               string          `gorm:"type:varchar(255);not null"`
	MaxGuests          int             `gorm:"not null;default:0"`
	Bedrooms           int             `gorm:"not null;default:0"`
	Bathrooms          int             `gorm:"not null;default:0"`
	BasePrice          decimal.Decimal `gorm:"type:decimal(12,2)"`
	Currency           string          `gorm:"type:varchar(3)"`
	UnitCount          int             `gorm:"not null;default:1"`
	RawData            string          `gorm:"type:jsonb"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RoomTypeModel) TableName() string {
	return "room_types"
}

// ToDomain converts the persistence model to a domain RoomType.
func (m *RoomTypeModel) ToDomain() *channel.RoomType {
	return &channel.RoomType{
		ID:                 m.ID,
		ConnectionID:       m.ConnectionID,
		PropertyID:         m.PropertyID,
		ExternalID:         m.ExternalID,
		PropertyExternalID: m.PropertyExternalID,
		Name:               m.Name,
		MaxGuests:          m.MaxGuests,
		Bedrooms:           m.Bedrooms,
		Bathrooms:          m.Bathrooms,
		BasePrice:          m.BasePrice,
		Currency:           m.Currency,
		UnitCount:          m.UnitCount,
		RawData:            m.RawData,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain RoomType.
func (m *RoomTypeModel) FromDomain(rt *channel.RoomType) {
	m.ID = rt.ID
	m.ConnectionID = rt.ConnectionID
	m.PropertyID = rt.PropertyID
	m.ExternalID = rt.ExternalID
	m.PropertyExternalID = rt.PropertyExternalID
	m.Name = rt.Name
	m.MaxGuests = rt.MaxGuests
	m.Bedrooms = rt.Bedrooms
	m.Bathrooms = rt.Bathrooms
	m.BasePrice = rt.BasePrice
	m.Currency = rt.Currency
	m.UnitCount = rt.UnitCount
	m.RawData = rt.RawData
	m.CreatedAt = rt.CreatedAt
	m.UpdatedAt = rt.UpdatedAt
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

// AvailabilityDayModel is one day of a room type's availability calendar,
// keyed by (room_type_id, date) and overwritten on every sync.
type AvailabilityDayModel struct {
	RoomTypeID      uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Date            time.Time        `gorm:"type:date;primaryKey"`
	Available       bool             `gorm:"not null;default:false"`
	UnitsAvailable  int              `gorm:"not null;default:0"`
	MinStay         int              `gorm:"not null;default:0"`
	MaxStay         int              `gorm:"not null;default:0"`
	CheckInAllowed  bool             `gorm:"not null;default:true"`
	CheckOutAllowed bool             `gorm:"not null;default:true"`
	Price           *decimal.Decimal `gorm:"type:decimal(12,2)"`
	UpdatedAt       time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AvailabilityDayModel) TableName() string {
	return "availability_days"
}

// ToDomain converts the persistence model to a domain AvailabilityDay.
func (m *AvailabilityDayModel) ToDomain() channel.AvailabilityDay {
	return channel.AvailabilityDay{
		RoomTypeID:      m.RoomTypeID,
		Date:            m.Date,
		Available:       m.Available,
		UnitsAvailable:  m.UnitsAvailable,
		MinStay:         m.MinStay,
		MaxStay:         m.MaxStay,
		CheckInAllowed:  m.CheckInAllowed,
		CheckOutAllowed: m.CheckOutAllowed,
		Price:           m.Price,
	}
}

// FromDomain populates the persistence model from a domain AvailabilityDay.
func (m *AvailabilityDayModel) FromDomain(d channel.AvailabilityDay) {
	m.RoomTypeID = d.RoomTypeID
	m.Date = d.Date
	m.Available = d.Available
	m.UnitsAvailable = d.UnitsAvailable
	m.MinStay = d.MinStay
	m.MaxStay = d.MaxStay
	m.CheckInAllowed = d.CheckInAllowed
	m.CheckOutAllowed = d.CheckOutAllowed
	m.Price = d.Price
	m.UpdatedAt = time.Now()
}

// RateDayModel is one day of nightly pricing, keyed by (room_type_id, date).
type RateDayModel struct {
	RoomTypeID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Date               time.Time       `gorm:"type:date;primaryKey"`
	Price              decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency           string          `gorm:"type:varchar(3)"`
	ExtraGuestFee      decimal.Decimal `gorm:"type:decimal(12,2)"`
	WeeklyDiscountPct  decimal.Decimal `gorm:"type:decimal(5,2)"`
	MonthlyDiscountPct decimal.Decimal `gorm:"type:decimal(5,2)"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RateDayModel) TableName() string {
	return "rate_days"
}

// ToDomain converts the persistence model to a domain RateDay.
func (m *RateDayModel) ToDomain() channel.RateDay {
	return channel.RateDay{
		RoomTypeID:         m.RoomTypeID,
		Date:               m.Date,
		Price:              m.Price,
		Currency:           m.Currency,
		ExtraGuestFee:      m.ExtraGuestFee,
		WeeklyDiscountPct:  m.WeeklyDiscountPct,
		MonthlyDiscountPct: m.MonthlyDiscountPct,
	}
}

// FromDomain populates the persistence model from a domain RateDay.
func (m *RateDayModel) FromDomain(d channel.RateDay) {
	m.RoomTypeID = d.RoomTypeID
	m.Date = d.Date
	m.Price = d.Price
	m.Currency = d.Currency
	m.ExtraGuestFee = d.ExtraGuestFee
	m.WeeklyDiscountPct = d.WeeklyDiscountPct
	m.MonthlyDiscountPct = d.MonthlyDiscountPct
	m.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// Reservation
// ---------------------------------------------------------------------------

// ReservationModel is the persistence model for the Reservation domain entity.
type ReservationModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	ConnectionID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_reservations_conn_ext,priority:1"`
	ExternalID         string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_reservations_conn_ext,priority:2"`
	PropertyExternalID string          `gorm:"type:varchar(100);index:idx_reservations_property"`
	RoomTypeExternalID string          `gorm:"type:varchar(100)"`
	CheckIn            time.Time       `gorm:"type:date;not null;index:idx_reservations_check_in"`
	CheckOut           time.Time       `gorm:"type:date;not null"`
	GuestName          string          `gorm:"type:varchar(255)"`
	GuestEmail         string          `gorm:"type:varchar(255)"`
	GuestPhone         string          `gorm:"type:varchar(50)"`
	Adults             int             `gorm:"not null;default:0"`
	Children           int             `gorm:"not null;default:0"`
	TotalPrice         decimal.Decimal `gorm:"type:decimal(12,2)"`
	Currency           string          `gorm:"type:varchar(3)"`
	Status             string          `gorm:"type:varchar(20);not null;index:idx_reservations_status"`
	Channel            string          `gorm:"type:varchar(50)"`
	Notes              string          `gorm:"type:text"`
	RawData            string          `gorm:"type:jsonb"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "reservations"
}

// ToDomain converts the persistence model to a domain Reservation.
func (m *ReservationModel) ToDomain() *channel.Reservation {
	return &channel.Reservation{
		ID:                 m.ID,
		ConnectionID:       m.ConnectionID,
		ExternalID:         m.ExternalID,
		PropertyExternalID: m.PropertyExternalID,
		RoomTypeExternalID: m.RoomTypeExternalID,
		CheckIn:            m.CheckIn,
		CheckOut:           m.CheckOut,
		GuestName:          m.GuestName,
		GuestEmail:         m.GuestEmail,
		GuestPhone:         m.GuestPhone,
		Adults:             m.Adults,
		Children:           m.Children,
		TotalPrice:         m.TotalPrice,
		Currency:           m.Currency,
		Status:             channel.ReservationStatus(m.Status),
		Channel:            m.Channel,
		Notes:              m.Notes,
		RawData:            m.RawData,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Reservation.
func (m *ReservationModel) FromDomain(r *channel.Reservation) {
	m.ID = r.ID
	m.ConnectionID = r.ConnectionID
	m.ExternalID = r.ExternalID
	m.PropertyExternalID = r.PropertyExternalID
	m.RoomTypeExternalID = r.RoomTypeExternalID
	m.CheckIn = r.CheckIn
	m.CheckOut = r.CheckOut
	m.GuestName = r.GuestName
	m.GuestEmail = r.GuestEmail
	m.GuestPhone = r.GuestPhone
	m.Adults = r.Adults
	m.Children = r.Children
	m.TotalPrice = r.TotalPrice
	m.Currency = r.Currency
	m.Status = string(r.Status)
	m.Channel = r.Channel
	m.Notes = r.Notes
	m.RawData = r.RawData
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
}

// ---------------------------------------------------------------------------
// SyncLog
// ---------------------------------------------------------------------------

// SyncLogModel is the persistence model for the SyncLog domain entity.
type SyncLogModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	ConnectionID uuid.UUID  `gorm:"type:uuid;not null;index:idx_sync_logs_connection"`
	Type         string     `gorm:"type:varchar(20);not null"`
	Status       string     `gorm:"type:varchar(20);not null;index:idx_sync_logs_status"`
	CountersJSON string     `gorm:"type:jsonb;column:counters"`
	ErrorSummary string     `gorm:"type:text"`
	StartedAt    time.Time  `gorm:"not null;index:idx_sync_logs_started"`
	CompletedAt  *time.Time `gorm:""`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog.
func (m *SyncLogModel) ToDomain() *channel.SyncLog {
	log := &channel.SyncLog{
		ID:           m.ID,
		ConnectionID: m.ConnectionID,
		Type:         channel.SyncType(m.Type),
		Status:       channel.SyncLogStatus(m.Status),
		ErrorSummary: m.ErrorSummary,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}
	if m.CountersJSON != "" {
		_ = json.Unmarshal([]byte(m.CountersJSON), &log.Counters)
	}
	return log
}

// FromDomain populates the persistence model from a domain SyncLog.
func (m *SyncLogModel) FromDomain(log *channel.SyncLog) {
	m.ID = log.ID
	m.ConnectionID = log.ConnectionID
	m.Type = string(log.Type)
	m.Status = string(log.Status)
	m.ErrorSummary = log.ErrorSummary
	m.StartedAt = log.StartedAt
	m.CompletedAt = log.CompletedAt
	if raw, err := json.Marshal(log.Counters); err == nil {
		m.CountersJSON = string(raw)
	}
}

// ---------------------------------------------------------------------------
// WebhookEvent
// ---------------------------------------------------------------------------

// WebhookEventModel is the persistence model for the WebhookEvent domain
// entity. The unique (connection_id, event_id) index is the dedup anchor.
type WebhookEventModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	ConnectionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_webhook_events_conn_event,priority:1"`
	EventID      string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_webhook_events_conn_event,priority:2"`
	EventType    string     `gorm:"type:varchar(50);not null"`
	ExternalID   string     `gorm:"type:varchar(100)"`
	Payload      string     `gorm:"type:jsonb"`
	Status       string     `gorm:"type:varchar(20);not null;index:idx_webhook_events_status"`
	RetryCount   int        `gorm:"not null;default:0"`
	NextRetryAt  *time.Time `gorm:"index:idx_webhook_events_next_retry"`
	LastError    string     `gorm:"type:text"`
	ReceivedAt   time.Time  `gorm:"not null"`
	ProcessedAt  *time.Time `gorm:""`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent.
func (m *WebhookEventModel) ToDomain() *channel.WebhookEvent {
	return &channel.WebhookEvent{
		ID:           m.ID,
		ConnectionID: m.ConnectionID,
		EventID:      m.EventID,
		EventType:    m.EventType,
		ExternalID:   m.ExternalID,
		Payload:      m.Payload,
		Status:       channel.WebhookEventStatus(m.Status),
		RetryCount:   m.RetryCount,
		NextRetryAt:  m.NextRetryAt,
		LastError:    m.LastError,
		ReceivedAt:   m.ReceivedAt,
		ProcessedAt:  m.ProcessedAt,
	}
}

// FromDomain populates the persistence model from a domain WebhookEvent.
func (m *WebhookEventModel) FromDomain(e *channel.WebhookEvent) {
	m.ID = e.ID
	m.ConnectionID = e.ConnectionID
	m.EventID = e.EventID
	m.EventType = e.EventType
	m.ExternalID = e.ExternalID
	m.Payload = e.Payload
	m.Status = string(e.Status)
	m.RetryCount = e.RetryCount
	m.NextRetryAt = e.NextRetryAt
	m.LastError = e.LastError
	m.ReceivedAt = e.ReceivedAt
	m.ProcessedAt = e.ProcessedAt
}

// ChannelModels lists every model in this file for AutoMigrate.
func ChannelModels() []any {
	return []any{
		&ConnectionModel{},
		&PropertyModel{},
		&RoomTypeModel{},
		&AvailabilityDayModel{},
		&RateDayModel{},
		&ReservationModel{},
		&SyncLogModel{},
		&WebhookEventModel{},
	}
}
