package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type fakeConnectionRepo struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*channel.Connection
	// running tracks claims taken by BeginSync.
	running map[uuid.UUID]bool
}

func newFakeConnectionRepo(conns ...*channel.Connection) *fakeConnectionRepo {
	r := &fakeConnectionRepo{
		conns:   make(map[uuid.UUID]*channel.Connection),
		running: make(map[uuid.UUID]bool),
	}
	for _, c := range conns {
		cp := *c
		r.conns[c.ID] = &cp
	}
	return r
}

func (r *fakeConnectionRepo) FindByID(_ context.Context, id uuid.UUID) (*channel.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return nil, channel.ErrConnectionNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConnectionRepo) FindDue(_ context.Context, now time.Time, limit int) ([]channel.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []channel.Connection
	for _, c := range r.conns {
		if c.DueForSync(now) && !r.running[c.ID] {
			due = append(due, *c)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (r *fakeConnectionRepo) Save(_ context.Context, conn *channel.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *conn
	r.conns[conn.ID] = &cp
	return nil
}

func (r *fakeConnectionRepo) BeginSync(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return channel.ErrConnectionNotFound
	}
	if r.running[id] {
		return channel.ErrSyncAlreadyRunning
	}
	r.running[id] = true
	return nil
}

func (r *fakeConnectionRepo) EndSync(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, id)
	return nil
}

type fakePropertyRepo struct {
	mu    sync.Mutex
	props map[string]*channel.Property
}

func newFakePropertyRepo() *fakePropertyRepo {
	return &fakePropertyRepo{props: make(map[string]*channel.Property)}
}

func propKey(connectionID uuid.UUID, externalID string) string {
	return connectionID.String() + "/" + externalID
}

func (r *fakePropertyRepo) Upsert(_ context.Context, p *channel.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := propKey(p.ConnectionID, p.ExternalID)
	if existing, ok := r.props[key]; ok {
		p.ID = existing.ID
	} else if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.props[key] = &cp
	return nil
}

func (r *fakePropertyRepo) FindByExternalID(_ context.Context, connectionID uuid.UUID, externalID string) (*channel.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.props[propKey(connectionID, externalID)]
	if !ok {
		return nil, channel.ErrPropertyNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePropertyRepo) ListByConnection(_ context.Context, connectionID uuid.UUID) ([]channel.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []channel.Property
	for _, p := range r.props {
		if p.ConnectionID == connectionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeRoomTypeRepo struct {
	mu    sync.Mutex
	units map[string]*channel.RoomType
}

func newFakeRoomTypeRepo() *fakeRoomTypeRepo {
	return &fakeRoomTypeRepo{units: make(map[string]*channel.RoomType)}
}

func (r *fakeRoomTypeRepo) Upsert(_ context.Context, rt *channel.RoomType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := propKey(rt.ConnectionID, rt.ExternalID)
	if existing, ok := r.units[key]; ok {
		rt.ID = existing.ID
	} else if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	cp := *rt
	r.units[key] = &cp
	return nil
}

func (r *fakeRoomTypeRepo) FindByExternalID(_ context.Context, connectionID uuid.UUID, externalID string) (*channel.RoomType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.units[propKey(connectionID, externalID)]
	if !ok {
		return nil, channel.ErrRoomTypeNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *fakeRoomTypeRepo) ListByProperty(_ context.Context, propertyID uuid.UUID) ([]channel.RoomType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []channel.RoomType
	for _, rt := range r.units {
		if rt.PropertyID == propertyID {
			out = append(out, *rt)
		}
	}
	return out, nil
}

type fakeCalendarRepo struct {
	mu           sync.Mutex
	availability map[string]channel.AvailabilityDay
	rates        map[string]channel.RateDay
}

func newFakeCalendarRepo() *fakeCalendarRepo {
	return &fakeCalendarRepo{
		availability: make(map[string]channel.AvailabilityDay),
		rates:        make(map[string]channel.RateDay),
	}
}

func dayKey(roomTypeID uuid.UUID, date time.Time) string {
	return roomTypeID.String() + "/" + date.Format("2006-01-02")
}

func (r *fakeCalendarRepo) UpsertAvailability(_ context.Context, days []channel.AvailabilityDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range days {
		r.availability[dayKey(d.RoomTypeID, d.Date)] = d
	}
	return nil
}

func (r *fakeCalendarRepo) UpsertRates(_ context.Context, days []channel.RateDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range days {
		r.rates[dayKey(d.RoomTypeID, d.Date)] = d
	}
	return nil
}

func (r *fakeCalendarRepo) ListAvailability(_ context.Context, roomTypeID uuid.UUID, window channel.DateRange) ([]channel.AvailabilityDay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []channel.AvailabilityDay
	for _, d := range r.availability {
		if d.RoomTypeID == roomTypeID && !d.Date.Before(window.Start) && !d.Date.After(window.End) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeCalendarRepo) ListRates(_ context.Context, roomTypeID uuid.UUID, window channel.DateRange) ([]channel.RateDay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []channel.RateDay
	for _, d := range r.rates {
		if d.RoomTypeID == roomTypeID && !d.Date.Before(window.Start) && !d.Date.After(window.End) {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]*channel.Reservation
	upserts      int
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[string]*channel.Reservation)}
}

func (r *fakeReservationRepo) Upsert(_ context.Context, res *channel.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	key := propKey(res.ConnectionID, res.ExternalID)
	if existing, ok := r.reservations[key]; ok {
		res.ID = existing.ID
	} else if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	cp := *res
	r.reservations[key] = &cp
	return nil
}

func (r *fakeReservationRepo) FindByExternalID(_ context.Context, connectionID uuid.UUID, externalID string) (*channel.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[propKey(connectionID, externalID)]
	if !ok {
		return nil, channel.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *fakeReservationRepo) ListByConnection(_ context.Context, connectionID uuid.UUID, _ channel.ListOptions) ([]channel.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []channel.Reservation
	for _, res := range r.reservations {
		if res.ConnectionID == connectionID {
			out = append(out, *res)
		}
	}
	return out, nil
}

type fakeSyncLogRepo struct {
	mu   sync.Mutex
	logs map[uuid.UUID]*channel.SyncLog
	// lastSuccess overrides LastSuccessfulAt when set.
	lastSuccess time.Time
}

func newFakeSyncLogRepo() *fakeSyncLogRepo {
	return &fakeSyncLogRepo{logs: make(map[uuid.UUID]*channel.SyncLog)}
}

func (r *fakeSyncLogRepo) Create(_ context.Context, log *channel.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.logs[log.ID] = &cp
	return nil
}

func (r *fakeSyncLogRepo) Update(_ context.Context, log *channel.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.logs[log.ID] = &cp
	return nil
}

func (r *fakeSyncLogRepo) ListByConnection(_ context.Context, connectionID uuid.UUID, limit int) ([]channel.SyncLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []channel.SyncLog
	for _, l := range r.logs {
		if l.ConnectionID == connectionID {
			out = append(out, *l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSyncLogRepo) LastSuccessfulAt(_ context.Context, _ uuid.UUID) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSuccess, nil
}

type fakeWebhookEventRepo struct {
	mu     sync.Mutex
	events map[string]*channel.WebhookEvent
}

func newFakeWebhookEventRepo() *fakeWebhookEventRepo {
	return &fakeWebhookEventRepo{events: make(map[string]*channel.WebhookEvent)}
}

func (r *fakeWebhookEventRepo) InsertIfAbsent(_ context.Context, e *channel.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := propKey(e.ConnectionID, e.EventID)
	if _, ok := r.events[key]; ok {
		return channel.ErrWebhookDuplicate
	}
	cp := *e
	r.events[key] = &cp
	return nil
}

func (r *fakeWebhookEventRepo) Update(_ context.Context, e *channel.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.events[propKey(e.ConnectionID, e.EventID)] = &cp
	return nil
}

func (r *fakeWebhookEventRepo) FindDueForRetry(_ context.Context, now time.Time, limit int) ([]channel.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []channel.WebhookEvent
	for _, e := range r.events {
		if e.Status == channel.WebhookEventStatusPending && e.NextRetryAt != nil && !e.NextRetryAt.After(now) {
			out = append(out, *e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Fake adapter and registry
// ---------------------------------------------------------------------------

// fakeAdapter implements channel.Adapter with overridable function fields.
// Unset fields return empty results.
type fakeAdapter struct {
	code channel.IntegrationCode

	getPropertiesFn   func(ctx context.Context, opts channel.ListOptions) ([]channel.Property, error)
	getPropertyFn     func(ctx context.Context, externalID string) (*channel.Property, error)
	getRoomTypesFn    func(ctx context.Context, propertyExternalID string) ([]channel.RoomType, error)
	getAvailabilityFn func(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.AvailabilityDay, error)
	getRatesFn        func(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.RateDay, error)
	getReservationsFn func(ctx context.Context, q channel.ReservationQuery) ([]channel.Reservation, error)
	getReservationFn  func(ctx context.Context, externalID string) (*channel.Reservation, error)
	parseWebhookFn    func(payload []byte, headers map[string]string) (*channel.NormalizedEvent, error)
}

var _ channel.Adapter = (*fakeAdapter)(nil)

func (a *fakeAdapter) IntegrationCode() channel.IntegrationCode {
	if a.code != "" {
		return a.code
	}
	return channel.IntegrationLodgify
}

func (a *fakeAdapter) Authenticate(context.Context) (*channel.TokenInfo, error) {
	return &channel.TokenInfo{AccessToken: "fake"}, nil
}

func (a *fakeAdapter) TestConnection(context.Context) error { return nil }

func (a *fakeAdapter) GetProperties(ctx context.Context, opts channel.ListOptions) ([]channel.Property, error) {
	if a.getPropertiesFn != nil {
		return a.getPropertiesFn(ctx, opts)
	}
	return nil, nil
}

func (a *fakeAdapter) GetProperty(ctx context.Context, externalID string) (*channel.Property, error) {
	if a.getPropertyFn != nil {
		return a.getPropertyFn(ctx, externalID)
	}
	return nil, channel.NewAPIError(channel.ErrorCodeNotFound, 404, "no such property")
}

func (a *fakeAdapter) GetRoomTypes(ctx context.Context, propertyExternalID string) ([]channel.RoomType, error) {
	if a.getRoomTypesFn != nil {
		return a.getRoomTypesFn(ctx, propertyExternalID)
	}
	return nil, nil
}

func (a *fakeAdapter) GetAvailability(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.AvailabilityDay, error) {
	if a.getAvailabilityFn != nil {
		return a.getAvailabilityFn(ctx, roomTypeExternalID, window)
	}
	return nil, nil
}

func (a *fakeAdapter) UpdateAvailability(context.Context, string, []channel.AvailabilityDay) error {
	return nil
}

func (a *fakeAdapter) GetRates(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.RateDay, error) {
	if a.getRatesFn != nil {
		return a.getRatesFn(ctx, roomTypeExternalID, window)
	}
	return nil, nil
}

func (a *fakeAdapter) UpdateRates(context.Context, string, []channel.RateDay) error { return nil }

func (a *fakeAdapter) GetReservations(ctx context.Context, q channel.ReservationQuery) ([]channel.Reservation, error) {
	if a.getReservationsFn != nil {
		return a.getReservationsFn(ctx, q)
	}
	return nil, nil
}

func (a *fakeAdapter) GetReservation(ctx context.Context, externalID string) (*channel.Reservation, error) {
	if a.getReservationFn != nil {
		return a.getReservationFn(ctx, externalID)
	}
	return nil, channel.NewAPIError(channel.ErrorCodeNotFound, 404, "no such reservation")
}

func (a *fakeAdapter) CreateReservation(context.Context, *channel.ReservationDraft) (*channel.Reservation, error) {
	return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "not implemented")
}

func (a *fakeAdapter) UpdateReservation(context.Context, string, *channel.ReservationDraft) (*channel.Reservation, error) {
	return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "not implemented")
}

func (a *fakeAdapter) CancelReservation(context.Context, string, string) error { return nil }

func (a *fakeAdapter) ParseWebhookPayload(payload []byte, headers map[string]string) (*channel.NormalizedEvent, error) {
	if a.parseWebhookFn != nil {
		return a.parseWebhookFn(payload, headers)
	}
	return nil, channel.ErrWebhookPayloadInvalid
}

type fakeRegistry struct {
	adapter channel.Adapter
	err     error
}

var _ channel.AdapterRegistry = (*fakeRegistry)(nil)

func (r *fakeRegistry) GetAdapter(*channel.Connection) (channel.Adapter, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.adapter, nil
}

func (r *fakeRegistry) SupportedCodes() []channel.IntegrationCode {
	return []channel.IntegrationCode{channel.IntegrationLodgify}
}

// ---------------------------------------------------------------------------
// Builders
// ---------------------------------------------------------------------------

func testConnection() *channel.Connection {
	conn, _ := channel.NewConnection(uuid.New(), channel.IntegrationLodgify, channel.Credentials{"api_key": "k"})
	conn.Status = channel.ConnectionStatusConnected
	return conn
}

func sampleProperty(externalID string) channel.Property {
	return channel.Property{
		ExternalID: externalID,
		Name:       "Seaside Villa " + externalID,
		City:       "Lisbon",
		Country:    "PT",
	}
}

func sampleRoomType(propertyExternalID, externalID string) channel.RoomType {
	return channel.RoomType{
		ExternalID:         externalID,
		PropertyExternalID: propertyExternalID,
		Name:               "Room " + externalID,
		MaxGuests:          2,
		BasePrice:          decimal.NewFromInt(100),
	}
}

func sampleReservation(externalID string) channel.Reservation {
	checkIn := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return channel.Reservation{
		ExternalID:         externalID,
		PropertyExternalID: "p1",
		RoomTypeExternalID: "rt1",
		CheckIn:            checkIn,
		CheckOut:           checkIn.AddDate(0, 0, 3),
		GuestName:          "Ada Lovelace",
		Adults:             2,
		TotalPrice:         decimal.NewFromInt(450),
		Status:             channel.ReservationStatusConfirmed,
	}
}
