package pms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

func newSmoobuFixture(t *testing.T, handler http.Handler) *SmoobuAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := NewSmoobuConfig("smoobu-key")
	config.APIBaseURL = server.URL
	config.RequestsPerMinute = 600
	adapter, err := NewSmoobuAdapter(config, testLogger())
	require.NoError(t, err)
	return adapter
}

func TestSmoobuAliasesApartmentAsRoomType(t *testing.T) {
	adapter := newSmoobuFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/apartments/42", r.URL.Path)
		assert.Equal(t, "smoobu-key", r.Header.Get("Api-Key"))
		w.Write([]byte(`{
			"id": 42,
			"name": "Alpine Chalet",
			"rooms": {"maxOccupancy": 6, "bedrooms": 3, "bathrooms": 2}
		}`))
	}))

	roomTypes, err := adapter.GetRoomTypes(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, roomTypes, 1)

	rt := roomTypes[0]
	assert.Equal(t, "42", rt.ExternalID, "aliased room type shares the apartment id")
	assert.Equal(t, "42", rt.PropertyExternalID)
	assert.Equal(t, "Alpine Chalet", rt.Name)
	assert.Equal(t, 6, rt.MaxGuests)
	assert.Equal(t, 1, rt.UnitCount)
}

func TestSmoobuGetPropertiesPastFirstPageIsEmpty(t *testing.T) {
	var calls int
	adapter := newSmoobuFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{"apartments": [{"id": 42, "name": "Alpine Chalet"}]}`))
	}))

	// Unpaged endpoint: page 2 must come back empty without a round trip,
	// otherwise paging callers would re-ingest the full list forever.
	properties, err := adapter.GetProperties(context.Background(), channel.ListOptions{Page: 2})
	require.NoError(t, err)
	assert.Empty(t, properties)
	assert.Zero(t, calls)
}

func TestSmoobuRatesCarryAvailabilityAndPricing(t *testing.T) {
	adapter := newSmoobuFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rates", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("apartments[]"))
		w.Write([]byte(`{"data": {"42": {
			"2026-07-01": {"price": 120, "available": 1, "min_length_of_stay": 2},
			"2026-07-02": {"price": 120, "available": 0}
		}}}`))
	}))

	window := channel.DateRange{
		Start: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC),
	}

	days, err := adapter.GetAvailability(context.Background(), "42", window)
	require.NoError(t, err)
	require.Len(t, days, 2)

	byDate := make(map[string]channel.AvailabilityDay, len(days))
	for _, d := range days {
		byDate[d.Date.Format("2006-01-02")] = d
	}
	require.Contains(t, byDate, "2026-07-01")
	require.Contains(t, byDate, "2026-07-02")
	assert.True(t, byDate["2026-07-01"].Available)
	assert.Equal(t, 2, byDate["2026-07-01"].MinStay)
	require.NotNil(t, byDate["2026-07-01"].Price)
	assert.False(t, byDate["2026-07-02"].Available)

	rates, err := adapter.GetRates(context.Background(), "42", window)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	for _, rate := range rates {
		assert.True(t, rate.Price.Equal(decimalFromString(t, "120")))
		assert.Equal(t, "EUR", rate.Currency, "missing currency falls back to default")
	}
}

func TestSmoobuReservationCancellationType(t *testing.T) {
	adapter := newSmoobuFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"bookings": [
			{
				"id": 900,
				"apartment": {"id": 42, "name": "Alpine Chalet"},
				"arrival": "2026-07-01",
				"departure": "2026-07-04",
				"firstname": "Barbara",
				"lastname": "Liskov",
				"channel": {"id": 1, "name": "Airbnb"},
				"price": 360
			},
			{
				"id": 901,
				"type": "cancellation",
				"apartment": {"id": 42},
				"arrival": "2026-07-10",
				"departure": "2026-07-12"
			}
		]}`))
	}))

	reservations, err := adapter.GetReservations(context.Background(), channel.ReservationQuery{})
	require.NoError(t, err)
	require.Len(t, reservations, 2)

	assert.Equal(t, "Barbara Liskov", reservations[0].GuestName)
	assert.Equal(t, "42", reservations[0].RoomTypeExternalID, "room type aliases the apartment")
	assert.Equal(t, "Airbnb", reservations[0].Channel)
	assert.Equal(t, channel.ReservationStatusConfirmed, reservations[0].Status)
	assert.Equal(t, channel.ReservationStatusCancelled, reservations[1].Status)
}

func TestSmoobuParseWebhookPayload(t *testing.T) {
	adapter := newSmoobuFixture(t, http.NotFoundHandler())

	payload := []byte(`{"action": "newReservation", "data": {"id": 900, "apartment": {"id": 42}}}`)
	evt, err := adapter.ParseWebhookPayload(payload, nil)
	require.NoError(t, err)
	assert.Equal(t, channel.EventReservationCreated, evt.Event)
	assert.Equal(t, "900", evt.ExternalID)
	assert.Equal(t, "42", evt.RoomTypeExternalID)
	assert.NotEmpty(t, evt.EventID)

	// Same delivery replayed derives the same dedup id.
	replay, err := adapter.ParseWebhookPayload(payload, nil)
	require.NoError(t, err)
	assert.Equal(t, evt.EventID, replay.EventID)

	_, err = adapter.ParseWebhookPayload([]byte(`{"action": "newReservation"}`), nil)
	assert.ErrorIs(t, err, channel.ErrWebhookPayloadInvalid)
}
