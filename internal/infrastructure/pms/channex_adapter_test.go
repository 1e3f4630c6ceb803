package pms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

func newChannexFixture(t *testing.T, pmsType string, handler http.Handler) *ChannexAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := NewChannexConfig("broker-token", "ws-1", pmsType)
	config.APIBaseURL = server.URL
	config.RequestsPerMinute = 600
	adapter, err := NewChannexAdapter(config, testLogger())
	require.NoError(t, err)
	return adapter
}

func TestChannexSendsWorkspaceAndIntegrationHeaders(t *testing.T) {
	adapter := newChannexFixture(t, "mews", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer broker-token", r.Header.Get("Authorization"))
		assert.Equal(t, "ws-1", r.Header.Get("X-Workspace-Id"))
		assert.Equal(t, "mews", r.Header.Get("X-Integration-Account"))
		w.Write([]byte(`{"data": []}`))
	}))

	_, err := adapter.GetProperties(context.Background(), channel.ListOptions{})
	require.NoError(t, err)
}

func TestChannexFlattensJSONAPIResources(t *testing.T) {
	adapter := newChannexFixture(t, "mews", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties", r.URL.Path)
		w.Write([]byte(`{"data": [{
			"id": "prop-1",
			"type": "property",
			"attributes": {
				"title": "Old Town Lofts",
				"currency": "CZK",
				"address": {"city": "Prague", "country": "CZ"}
			}
		}]}`))
	}))

	properties, err := adapter.GetProperties(context.Background(), channel.ListOptions{})
	require.NoError(t, err)
	require.Len(t, properties, 1)
	assert.Equal(t, "prop-1", properties[0].ExternalID)
	assert.Equal(t, "Old Town Lofts", properties[0].Name)
	assert.Equal(t, "CZK", properties[0].Currency)
	assert.Equal(t, "Prague", properties[0].City)
}

func TestChannexReservationMapsNestedCustomerAndOccupancy(t *testing.T) {
	adapter := newChannexFixture(t, "cloudbeds", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": {
			"id": "bk-9",
			"attributes": {
				"property_id": "prop-1",
				"arrival_date": "2026-10-02",
				"departure_date": "2026-10-06",
				"customer": {"name": "Edsger Dijkstra", "mail": "e@example.com"},
				"occupancy": {"adults": 1, "children": 0},
				"amount": "612.50",
				"status": "new",
				"ota_name": "booking.com",
				"rooms": [{"room_type_id": "rt-3"}]
			}
		}}`))
	}))

	r, err := adapter.GetReservation(context.Background(), "bk-9")
	require.NoError(t, err)
	assert.Equal(t, "bk-9", r.ExternalID)
	assert.Equal(t, "rt-3", r.RoomTypeExternalID)
	assert.Equal(t, "Edsger Dijkstra", r.GuestName)
	assert.Equal(t, 1, r.Adults)
	assert.Equal(t, channel.ReservationStatusConfirmed, r.Status)
	assert.Equal(t, "booking.com", r.Channel)
	assert.Equal(t, 4, r.Nights())
}

func signChannexPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestChannexWebhookSignatureVerification(t *testing.T) {
	adapter := newChannexFixture(t, "mews", http.NotFoundHandler())
	adapter.config.WebhookSecret = "hook-secret"

	payload := []byte(`{"id": "evt-1", "event": "booking_new", "payload": {"booking_id": "bk-9"}}`)
	headers := map[string]string{"X-Channex-Signature": signChannexPayload(payload, "hook-secret")}

	evt, err := adapter.ParseWebhookPayload(payload, headers)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", evt.EventID)
	assert.Equal(t, channel.EventReservationCreated, evt.Event)
	assert.Equal(t, "bk-9", evt.ExternalID)

	// Tampered payload must be rejected.
	tampered := []byte(`{"id": "evt-1", "event": "booking_new", "payload": {"booking_id": "bk-666"}}`)
	_, err = adapter.ParseWebhookPayload(tampered, headers)
	assert.ErrorIs(t, err, channel.ErrWebhookPayloadInvalid)

	// Missing signature must be rejected while a secret is configured.
	_, err = adapter.ParseWebhookPayload(payload, nil)
	assert.ErrorIs(t, err, channel.ErrWebhookPayloadInvalid)
}

func TestChannexWebhookEventTypes(t *testing.T) {
	adapter := newChannexFixture(t, "mews", http.NotFoundHandler())

	tests := []struct {
		event string
		want  string
	}{
		{"booking_new", channel.EventReservationCreated},
		{"booking_modification", channel.EventReservationUpdated},
		{"booking_cancellation", channel.EventReservationCancelled},
		{"ari", channel.EventAvailabilityUpdated},
		{"rate", channel.EventRatesUpdated},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			payload := []byte(`{"id": "evt", "event": "` + tt.event + `", "payload": {"booking_id": "x"}}`)
			evt, err := adapter.ParseWebhookPayload(payload, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, evt.Event)
		})
	}
}
