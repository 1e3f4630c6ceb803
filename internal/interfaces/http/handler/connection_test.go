package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type connectionFixture struct {
	connections  *fakeConnectionRepo
	syncLogs     *fakeSyncLogRepo
	reservations *fakeReservationRepo
	registry     *stubRegistry
	runner       *stubRunner
	trigger      *stubTrigger
	engine       *gin.Engine
}

func newConnectionFixture() *connectionFixture {
	f := &connectionFixture{
		connections:  newFakeConnectionRepo(),
		syncLogs:     &fakeSyncLogRepo{},
		reservations: &fakeReservationRepo{},
		registry: &stubRegistry{
			adapter: &stubAdapter{},
			codes:   []channel.IntegrationCode{channel.IntegrationLodgify, channel.IntegrationSmoobu},
		},
		runner:  &stubRunner{},
		trigger: &stubTrigger{},
	}

	h := NewConnectionHandler(f.connections, f.syncLogs, f.reservations, f.registry, f.runner, f.trigger)
	f.engine = gin.New()
	f.engine.GET("/integrations", h.ListIntegrations)
	f.engine.POST("/connections", h.Create)
	f.engine.GET("/connections/:id", h.Get)
	f.engine.PATCH("/connections/:id", h.Update)
	f.engine.POST("/connections/:id/reconnect", h.Reconnect)
	f.engine.POST("/connections/:id/sync", h.TriggerSync)
	f.engine.GET("/connections/:id/sync-logs", h.ListSyncLogs)
	f.engine.GET("/connections/:id/reservations", h.ListReservations)
	return f
}

func (f *connectionFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *connectionFixture) seedConnection(t *testing.T) *channel.Connection {
	t.Helper()
	conn, err := channel.NewConnection(uuid.New(), channel.IntegrationLodgify, channel.Credentials{"api_key": "k"})
	require.NoError(t, err)
	conn.Status = channel.ConnectionStatusConnected
	require.NoError(t, f.connections.Save(context.Background(), conn))
	return conn
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestConnectionHandler_Create(t *testing.T) {
	f := newConnectionFixture()

	w := f.do("POST", "/connections", gin.H{
		"integration_code": "lodgify",
		"credentials":      gin.H{"api_key": "secret-key"},
		"sync_interval":    "30m",
		"default_currency": "USD",
		"lookahead_days":   120,
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, "lodgify", data["integration_code"])
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, "30m0s", data["sync_interval"])
	assert.Equal(t, "USD", data["default_currency"])
	assert.Equal(t, float64(120), data["lookahead_days"])

	// Credentials are never echoed
	assert.NotContains(t, w.Body.String(), "secret-key")

	// The connection is persisted in connected status
	id, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)
	saved, err := f.connections.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, channel.ConnectionStatusConnected, saved.Status)
	assert.Equal(t, "secret-key", saved.Credentials.Get("api_key"))
}

func TestConnectionHandler_CreateRejectsMissingCredentials(t *testing.T) {
	f := newConnectionFixture()

	w := f.do("POST", "/connections", gin.H{"integration_code": "lodgify"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectionHandler_CreateUnknownIntegration(t *testing.T) {
	f := newConnectionFixture()
	f.registry.err = channel.ErrUnknownIntegration

	w := f.do("POST", "/connections", gin.H{
		"integration_code": "nonexistent",
		"credentials":      gin.H{"api_key": "k"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INVALID_INPUT")
}

func TestConnectionHandler_CreateRejectedCredentials(t *testing.T) {
	f := newConnectionFixture()
	f.registry.adapter = &stubAdapter{
		testErr: channel.NewAPIError(channel.ErrorCodeAuthFailed, 401, "invalid api key"),
	}

	w := f.do("POST", "/connections", gin.H{
		"integration_code": "lodgify",
		"credentials":      gin.H{"api_key": "wrong"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_UPSTREAM_REJECTED")
}

func TestConnectionHandler_CreateProviderUnreachable(t *testing.T) {
	f := newConnectionFixture()
	f.registry.adapter = &stubAdapter{
		testErr: channel.NewAPIError(channel.ErrorCodeNetwork, 0, "connection refused"),
	}

	w := f.do("POST", "/connections", gin.H{
		"integration_code": "lodgify",
		"credentials":      gin.H{"api_key": "k"},
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_UPSTREAM_UNAVAILABLE")
}

func TestConnectionHandler_Get(t *testing.T) {
	f := newConnectionFixture()
	conn := f.seedConnection(t)

	w := f.do("GET", "/connections/"+conn.ID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, conn.ID.String(), data["id"])
}

func TestConnectionHandler_GetNotFound(t *testing.T) {
	f := newConnectionFixture()

	w := f.do("GET", "/connections/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")
}

func TestConnectionHandler_GetMalformedID(t *testing.T) {
	f := newConnectionFixture()

	w := f.do("GET", "/connections/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectionHandler_Update(t *testing.T) {
	f := newConnectionFixture()
	conn := f.seedConnection(t)

	w := f.do("PATCH", "/connections/"+conn.ID.String(), gin.H{
		"sync_interval": "2h",
		"toggles": gin.H{
			"properties":   true,
			"reservations": true,
		},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved, err := f.connections.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, saved.SyncInterval)
	assert.True(t, saved.Toggles.Reservations)
	assert.False(t, saved.Toggles.Availability)
}

func TestConnectionHandler_UpdateInvalidInterval(t *testing.T) {
	f := newConnectionFixture()
	conn := f.seedConnection(t)

	w := f.do("PATCH", "/connections/"+conn.ID.String(), gin.H{"sync_interval": "soon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectionHandler_Reconnect(t *testing.T) {
	f := newConnectionFixture()
	conn := f.seedConnection(t)
	conn.Status = channel.ConnectionStatusError
	conn.ConsecutiveErrors = 5
	conn.LastError = "boom"
	require.NoError(t, f.connections.Save(context.Background(), conn))

	w := f.do("POST", "/connections/"+conn.ID.String()+"/reconnect", nil)

	require.Equal(t, http.StatusOK, w.Code)
	saved, err := f.connections.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, channel.ConnectionStatusConnected, saved.Status)
	assert.Zero(t, saved.ConsecutiveErrors)
	assert.Empty(t, saved.LastError)
}

func TestConnectionHandler_TriggerIncrementalSync(t *testing.T) {
	f := newConnectionFixture()
	conn := f.seedConnection(t)

	w := f.do("POST", "/connections/"+conn.ID.String()+"/sync", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.trigger.submitted, 1)
	assert.Equal(t, conn.ID, f.trigger.submitted[0])
	assert.Empty(t, f.runner.ran)
}

func TestConnectionHandler_TriggerFullSync(t *testing.T) {
	f := newConnectionFixture()
	conn := f.seedConnection(t)

	log := channel.NewSyncLog(conn.ID, channel.SyncTypeFull)
	log.Counters.Reservations = 3
	log.Complete(time.Now())
	f.runner.log = log

	w := f.do("POST", "/connections/"+conn.ID.String()+"/sync", gin.H{"type": "full"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, "full", data["type"])
	assert.Equal(t, "success", data["status"])
	require.Len(t, f.runner.ran, 1)
	assert.Empty(t, f.trigger.submitted)
}

func TestConnectionHandler_TriggerSyncConflict(t *testing.T) {
	f := newConnectionFixture()
	conn := f.seedConnection(t)
	f.runner.err = channel.ErrSyncAlreadyRunning

	w := f.do("POST", "/connections/"+conn.ID.String()+"/sync", gin.H{"type": "full"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_CONFLICT")
}

func TestConnectionHandler_ListSyncLogs(t *testing.T) {
	f := newConnectionFixture()
	conn := f.seedConnection(t)

	log := channel.NewSyncLog(conn.ID, channel.SyncTypeIncremental)
	log.Complete(time.Now())
	f.syncLogs.logs = []channel.SyncLog{*log}

	w := f.do("GET", "/connections/"+conn.ID.String()+"/sync-logs", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "incremental", envelope.Data[0]["type"])
}

func TestConnectionHandler_ListReservations(t *testing.T) {
	f := newConnectionFixture()
	conn := f.seedConnection(t)

	f.reservations.reservations = []channel.Reservation{{
		ID:           uuid.New(),
		ConnectionID: conn.ID,
		ExternalID:   "r1",
		CheckIn:      time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:     time.Date(2026, 10, 4, 0, 0, 0, 0, time.UTC),
		GuestName:    "Ada Lovelace",
		TotalPrice:   decimal.NewFromInt(450),
		Currency:     "EUR",
		Status:       channel.ReservationStatusConfirmed,
	}}

	w := f.do("GET", "/connections/"+conn.ID.String()+"/reservations", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "r1", envelope.Data[0]["external_id"])
	assert.Equal(t, float64(3), envelope.Data[0]["nights"])
	assert.Equal(t, "450", envelope.Data[0]["total_price"])
}

func TestConnectionHandler_ListIntegrations(t *testing.T) {
	f := newConnectionFixture()

	w := f.do("GET", "/integrations", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lodgify")
	assert.Contains(t, w.Body.String(), "smoobu")
}
