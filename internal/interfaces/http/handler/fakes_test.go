package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// ---------------------------------------------------------------------------
// Repository fakes
// ---------------------------------------------------------------------------

type fakeConnectionRepo struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*channel.Connection
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{conns: make(map[uuid.UUID]*channel.Connection)}
}

func (r *fakeConnectionRepo) FindByID(_ context.Context, id uuid.UUID) (*channel.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, channel.ErrConnectionNotFound
	}
	copied := *conn
	return &copied, nil
}

func (r *fakeConnectionRepo) FindDue(_ context.Context, _ time.Time, _ int) ([]channel.Connection, error) {
	return nil, nil
}

func (r *fakeConnectionRepo) Save(_ context.Context, conn *channel.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *conn
	r.conns[conn.ID] = &copied
	return nil
}

func (r *fakeConnectionRepo) BeginSync(_ context.Context, _ uuid.UUID) error { return nil }
func (r *fakeConnectionRepo) EndSync(_ context.Context, _ uuid.UUID) error   { return nil }

type fakeSyncLogRepo struct {
	logs []channel.SyncLog
}

func (r *fakeSyncLogRepo) Create(_ context.Context, _ *channel.SyncLog) error { return nil }
func (r *fakeSyncLogRepo) Update(_ context.Context, _ *channel.SyncLog) error { return nil }

func (r *fakeSyncLogRepo) ListByConnection(_ context.Context, connectionID uuid.UUID, limit int) ([]channel.SyncLog, error) {
	var out []channel.SyncLog
	for _, l := range r.logs {
		if l.ConnectionID == connectionID && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeSyncLogRepo) LastSuccessfulAt(_ context.Context, _ uuid.UUID) (time.Time, error) {
	return time.Time{}, nil
}

type fakeReservationRepo struct {
	reservations []channel.Reservation
}

func (r *fakeReservationRepo) Upsert(_ context.Context, _ *channel.Reservation) error { return nil }

func (r *fakeReservationRepo) FindByExternalID(_ context.Context, _ uuid.UUID, _ string) (*channel.Reservation, error) {
	return nil, channel.ErrReservationNotFound
}

func (r *fakeReservationRepo) ListByConnection(_ context.Context, connectionID uuid.UUID, _ channel.ListOptions) ([]channel.Reservation, error) {
	var out []channel.Reservation
	for _, res := range r.reservations {
		if res.ConnectionID == connectionID {
			out = append(out, res)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Adapter and registry stubs
// ---------------------------------------------------------------------------

// stubAdapter overrides only what the handlers call; everything else panics
// through the embedded nil interface, which would make a test fail loudly.
type stubAdapter struct {
	channel.Adapter
	testErr error
}

func (a *stubAdapter) TestConnection(_ context.Context) error { return a.testErr }

type stubRegistry struct {
	adapter channel.Adapter
	err     error
	codes   []channel.IntegrationCode
}

func (r *stubRegistry) GetAdapter(_ *channel.Connection) (channel.Adapter, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.adapter, nil
}

func (r *stubRegistry) SupportedCodes() []channel.IntegrationCode { return r.codes }

// ---------------------------------------------------------------------------
// Sync stubs
// ---------------------------------------------------------------------------

type stubRunner struct {
	log *channel.SyncLog
	err error

	mu  sync.Mutex
	ran []uuid.UUID
}

func (r *stubRunner) FullSync(_ context.Context, connectionID uuid.UUID) (*channel.SyncLog, error) {
	r.mu.Lock()
	r.ran = append(r.ran, connectionID)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.log, nil
}

type stubTrigger struct {
	err error

	mu        sync.Mutex
	submitted []uuid.UUID
}

func (t *stubTrigger) Submit(connectionID uuid.UUID) error {
	t.mu.Lock()
	t.submitted = append(t.submitted, connectionID)
	t.mu.Unlock()
	return t.err
}

type stubProcessor struct {
	event *channel.WebhookEvent
	err   error

	mu      sync.Mutex
	calls   int
	lastID  uuid.UUID
	payload []byte
	headers map[string]string
}

func (p *stubProcessor) ProcessWebhook(_ context.Context, connectionID uuid.UUID, payload []byte, headers map[string]string) (*channel.WebhookEvent, error) {
	p.mu.Lock()
	p.calls++
	p.lastID = connectionID
	p.payload = payload
	p.headers = headers
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.event, nil
}
