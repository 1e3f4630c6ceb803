package pms

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// LodgifyAdapter implements the channel.Adapter contract for Lodgify.
// Lodgify authenticates with a static X-ApiKey header; list endpoints wrap
// results in {"count": n, "items": [...]}.
type LodgifyAdapter struct {
	config *LodgifyConfig
	client *apiClient
	logger *zap.Logger
}

// NewLodgifyAdapter creates a Lodgify adapter with the given configuration.
func NewLodgifyAdapter(config *LodgifyConfig, logger *zap.Logger) (*LodgifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &LodgifyAdapter{config: config, logger: logger.Named("lodgify")}
	auth := &apiKeyAuth{header: "X-ApiKey", key: config.APIKey}
	a.client = newAPIClient(config.APIBaseURL, config.TimeoutSeconds, config.RequestsPerMinute, auth, a.logger)
	return a, nil
}

// IntegrationCode returns the integration code this adapter handles.
func (a *LodgifyAdapter) IntegrationCode() channel.IntegrationCode {
	return channel.IntegrationLodgify
}

// Authenticate verifies the key. Static keys have no token exchange, so a
// cheap authenticated call stands in.
func (a *LodgifyAdapter) Authenticate(ctx context.Context) (*channel.TokenInfo, error) {
	if err := a.TestConnection(ctx); err != nil {
		return nil, err
	}
	return &channel.TokenInfo{AccessToken: a.config.APIKey}, nil
}

// TestConnection verifies the key with a minimal properties fetch.
func (a *LodgifyAdapter) TestConnection(ctx context.Context) error {
	query := url.Values{}
	query.Set("size", "1")
	_, err := a.client.get(ctx, "/v2/properties", query)
	return err
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// GetProperties lists the account's properties.
func (a *LodgifyAdapter) GetProperties(ctx context.Context, opts channel.ListOptions) ([]channel.Property, error) {
	opts.Validate()
	query := url.Values{}
	query.Set("page", strconv.Itoa(opts.Page))
	query.Set("size", strconv.Itoa(opts.PageSize))
	body, err := a.client.get(ctx, "/v2/properties", query)
	if err != nil {
		return nil, err
	}
	items, err := lodgifyItems(body)
	if err != nil {
		return nil, err
	}
	properties := make([]channel.Property, 0, len(items))
	for _, item := range items {
		properties = append(properties, a.mapProperty(item))
	}
	return properties, nil
}

// GetProperty fetches a single property by its external ID.
func (a *LodgifyAdapter) GetProperty(ctx context.Context, externalID string) (*channel.Property, error) {
	body, err := a.client.get(ctx, "/v2/properties/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	p := a.mapProperty(raw)
	return &p, nil
}

// GetRoomTypes lists the rooms of a property.
func (a *LodgifyAdapter) GetRoomTypes(ctx context.Context, propertyExternalID string) ([]channel.RoomType, error) {
	body, err := a.client.get(ctx, "/v2/properties/"+propertyExternalID+"/rooms", nil)
	if err != nil {
		return nil, err
	}
	items, err := lodgifyItems(body)
	if err != nil {
		return nil, err
	}
	roomTypes := make([]channel.RoomType, 0, len(items))
	for _, item := range items {
		roomTypes = append(roomTypes, a.mapRoomType(item, propertyExternalID))
	}
	return roomTypes, nil
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

// GetAvailability fetches the availability calendar for a room.
func (a *LodgifyAdapter) GetAvailability(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.AvailabilityDay, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("start", window.Start.Format("2006-01-02"))
	query.Set("end", window.End.Format("2006-01-02"))
	body, err := a.client.get(ctx, "/v2/availability/"+roomTypeExternalID, query)
	if err != nil {
		return nil, err
	}
	items, err := lodgifyItems(body)
	if err != nil {
		return nil, err
	}
	days := make([]channel.AvailabilityDay, 0, len(items))
	for _, item := range items {
		days = append(days, a.mapAvailabilityDay(item)...)
	}
	return days, nil
}

// UpdateAvailability pushes availability changes for a room.
func (a *LodgifyAdapter) UpdateAvailability(ctx context.Context, roomTypeExternalID string, days []channel.AvailabilityDay) error {
	periods := make([]map[string]any, 0, len(days))
	for _, d := range days {
		periods = append(periods, map[string]any{
			"start":     d.Date.Format("2006-01-02"),
			"end":       d.Date.Format("2006-01-02"),
			"available": availUnits(d),
			"minStay":   d.MinStay,
			"maxStay":   d.MaxStay,
		})
	}
	_, err := a.client.postJSON(ctx, "/v2/availability/"+roomTypeExternalID, periods)
	return err
}

// GetRates fetches nightly prices for a room.
func (a *LodgifyAdapter) GetRates(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.RateDay, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("roomTypeId", roomTypeExternalID)
	query.Set("startDate", window.Start.Format("2006-01-02"))
	query.Set("endDate", window.End.Format("2006-01-02"))
	body, err := a.client.get(ctx, "/v2/rates/calendar", query)
	if err != nil {
		return nil, err
	}
	items, err := lodgifyItems(body)
	if err != nil {
		return nil, err
	}
	days := make([]channel.RateDay, 0, len(items))
	for _, item := range items {
		days = append(days, a.mapRateDay(item))
	}
	return days, nil
}

// UpdateRates pushes nightly price changes for a room.
func (a *LodgifyAdapter) UpdateRates(ctx context.Context, roomTypeExternalID string, days []channel.RateDay) error {
	rates := make([]map[string]any, 0, len(days))
	for _, d := range days {
		rates = append(rates, map[string]any{
			"start":         d.Date.Format("2006-01-02"),
			"end":           d.Date.Format("2006-01-02"),
			"price_per_day": d.Price.InexactFloat64(),
		})
	}
	payload := map[string]any{
		"room_type_id": roomTypeExternalID,
		"rates":        rates,
	}
	_, err := a.client.postJSON(ctx, "/v2/rates/savewithoutavailability", payload)
	return err
}

// ---------------------------------------------------------------------------
// Reservations
// ---------------------------------------------------------------------------

// GetReservations lists bookings matching the query.
func (a *LodgifyAdapter) GetReservations(ctx context.Context, q channel.ReservationQuery) ([]channel.Reservation, error) {
	q.Validate()
	query := url.Values{}
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("size", strconv.Itoa(q.PageSize))
	if !q.ModifiedSince.IsZero() {
		query.Set("updatedSince", q.ModifiedSince.UTC().Format(time.RFC3339))
	}
	if q.PropertyExternalID != "" {
		query.Set("propertyId", q.PropertyExternalID)
	}
	body, err := a.client.get(ctx, "/v2/reservations/bookings", query)
	if err != nil {
		return nil, err
	}
	items, err := lodgifyItems(body)
	if err != nil {
		return nil, err
	}
	reservations := make([]channel.Reservation, 0, len(items))
	for _, item := range items {
		reservations = append(reservations, a.mapReservation(item))
	}
	return reservations, nil
}

// GetReservation fetches a single booking by its external ID.
func (a *LodgifyAdapter) GetReservation(ctx context.Context, externalID string) (*channel.Reservation, error) {
	body, err := a.client.get(ctx, "/v2/reservations/bookings/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	r := a.mapReservation(raw)
	return &r, nil
}

// CreateReservation creates a booking.
func (a *LodgifyAdapter) CreateReservation(ctx context.Context, draft *channel.ReservationDraft) (*channel.Reservation, error) {
	body, err := a.client.postJSON(ctx, "/v1/reservation/booking", a.draftPayload(draft))
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	r := a.mapReservation(raw)
	return &r, nil
}

// UpdateReservation updates a booking by id.
func (a *LodgifyAdapter) UpdateReservation(ctx context.Context, externalID string, draft *channel.ReservationDraft) (*channel.Reservation, error) {
	body, err := a.client.putJSON(ctx, "/v1/reservation/booking/"+externalID, a.draftPayload(draft))
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	r := a.mapReservation(raw)
	return &r, nil
}

// CancelReservation cancels a booking.
func (a *LodgifyAdapter) CancelReservation(ctx context.Context, externalID, reason string) error {
	payload := map[string]any{"message": reason}
	_, err := a.client.putJSON(ctx, "/v1/reservation/booking/"+externalID+"/decline", payload)
	return err
}

func (a *LodgifyAdapter) draftPayload(draft *channel.ReservationDraft) map[string]any {
	return map[string]any{
		"property_id":  draft.PropertyExternalID,
		"room_type_id": draft.RoomTypeExternalID,
		"arrival":      draft.CheckIn.Format("2006-01-02"),
		"departure":    draft.CheckOut.Format("2006-01-02"),
		"guest": map[string]any{
			"name":  draft.GuestName,
			"email": draft.GuestEmail,
			"phone": draft.GuestPhone,
		},
		"adults":   draft.Adults,
		"children": draft.Children,
		"messages": draft.Notes,
	}
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// ParseWebhookPayload normalizes a Lodgify webhook. Deliveries carry an
// action name plus the affected booking.
func (a *LodgifyAdapter) ParseWebhookPayload(payload []byte, _ map[string]string) (*channel.NormalizedEvent, error) {
	raw, err := decodeObject(payload)
	if err != nil {
		return nil, channel.ErrWebhookPayloadInvalid
	}
	booking := raw
	if nested, ok := nestedObject(raw, "booking", "data"); ok {
		booking = nested
	}
	externalID, ok := stringField(booking, "id", "booking_id", "bookingId")
	if !ok {
		return nil, channel.ErrWebhookPayloadInvalid
	}

	action, _ := stringField(raw, "action", "event")
	event := channel.EventReservationUpdated
	switch action {
	case "booking_new_status_booked", "booking_new_any_status", "created":
		event = channel.EventReservationCreated
	case "booking_change_status_cancelled", "cancelled":
		event = channel.EventReservationCancelled
	case "rate_change":
		event = channel.EventRatesUpdated
	case "availability_change":
		event = channel.EventAvailabilityUpdated
	}

	eventID, ok := stringField(raw, "webhook_id", "delivery_id")
	if !ok {
		eventID = payloadDigest(payload)
	}
	ts, ok := timeField(raw, "date", "timestamp")
	if !ok {
		ts = time.Now()
	}
	evt := &channel.NormalizedEvent{
		EventID:    eventID,
		Event:      event,
		ExternalID: externalID,
		Data:       payload,
		Timestamp:  ts,
	}
	evt.RoomTypeExternalID, _ = stringField(booking, "room_type_id", "roomTypeId")
	return evt, nil
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

func (a *LodgifyAdapter) mapProperty(raw map[string]any) channel.Property {
	p := channel.Property{RawData: rawJSON(raw)}
	p.ExternalID, _ = stringField(raw, "id", "property_id")
	p.Name, _ = stringField(raw, "name", "internal_name")
	if addr, ok := nestedObject(raw, "address", "location"); ok {
		p.Address, _ = stringField(addr, "address", "street")
		p.City, _ = stringField(addr, "city")
		p.Country, _ = stringField(addr, "country", "country_code")
	} else {
		p.Address, _ = stringField(raw, "address")
		p.City, _ = stringField(raw, "city")
		p.Country, _ = stringField(raw, "country", "country_code")
	}
	var ok bool
	if p.Currency, ok = stringField(raw, "currency_code", "currency"); !ok {
		p.Currency = a.config.DefaultCurrency
		a.logger.Debug("property payload missing currency, using default",
			zap.String("external_id", p.ExternalID))
	}
	if p.CheckInTime, ok = stringField(raw, "in_out", "check_in_time", "checkInTime"); !ok {
		p.CheckInTime = channel.DefaultCheckInTime
	}
	if p.CheckOutTime, ok = stringField(raw, "check_out_time", "checkOutTime"); !ok {
		p.CheckOutTime = channel.DefaultCheckOutTime
	}
	p.Amenities, _ = stringSlice(raw, "amenities")
	return p
}

func (a *LodgifyAdapter) mapRoomType(raw map[string]any, propertyExternalID string) channel.RoomType {
	rt := channel.RoomType{PropertyExternalID: propertyExternalID, RawData: rawJSON(raw)}
	rt.ExternalID, _ = stringField(raw, "id", "room_type_id")
	if rt.PropertyExternalID == "" {
		rt.PropertyExternalID, _ = stringField(raw, "property_id")
	}
	rt.Name, _ = stringField(raw, "name")
	rt.MaxGuests, _ = intField(raw, "max_people", "maxGuests")
	rt.Bedrooms, _ = intField(raw, "bedrooms")
	rt.Bathrooms, _ = intField(raw, "bathrooms")
	if rt.UnitCount, _ = intField(raw, "units", "quantity"); rt.UnitCount == 0 {
		rt.UnitCount = 1
	}
	rt.BasePrice, _ = decimalField(raw, "price_per_day", "base_price")
	var ok bool
	if rt.Currency, ok = stringField(raw, "currency_code", "currency"); !ok {
		rt.Currency = a.config.DefaultCurrency
	}
	return rt
}

// mapAvailabilityDay expands one Lodgify availability period into days.
// Periods carry a start/end span with uniform availability.
func (a *LodgifyAdapter) mapAvailabilityDay(raw map[string]any) []channel.AvailabilityDay {
	start, startOK := dateField(raw, "period_start", "start", "date")
	end, endOK := dateField(raw, "period_end", "end")
	if !startOK {
		return nil
	}
	if !endOK {
		end = start
	}
	units, hasUnits := intField(raw, "available", "units_available")
	available := units > 0
	if flag, ok := boolField(raw, "is_available"); ok {
		available = flag
		if available && !hasUnits {
			units = 1
		}
	}
	minStay, _ := intField(raw, "min_stay", "minStay")
	maxStay, _ := intField(raw, "max_stay", "maxStay")

	var days []channel.AvailabilityDay
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, channel.AvailabilityDay{
			Date:            d,
			Available:       available,
			UnitsAvailable:  units,
			MinStay:         minStay,
			MaxStay:         maxStay,
			CheckInAllowed:  true,
			CheckOutAllowed: true,
		})
	}
	return days
}

func (a *LodgifyAdapter) mapRateDay(raw map[string]any) channel.RateDay {
	day := channel.RateDay{}
	day.Date, _ = dateField(raw, "date", "start")
	day.Price, _ = decimalField(raw, "price_per_day", "price", "amount")
	var ok bool
	if day.Currency, ok = stringField(raw, "currency_code", "currency"); !ok {
		day.Currency = a.config.DefaultCurrency
	}
	day.ExtraGuestFee, _ = decimalField(raw, "price_per_additional_guest", "extra_guest_fee")
	day.WeeklyDiscountPct, _ = decimalField(raw, "weekly_discount", "discount_weekly")
	day.MonthlyDiscountPct, _ = decimalField(raw, "monthly_discount", "discount_monthly")
	return day
}

func (a *LodgifyAdapter) mapReservation(raw map[string]any) channel.Reservation {
	r := channel.Reservation{RawData: rawJSON(raw)}
	r.ExternalID, _ = stringField(raw, "id", "booking_id")
	r.PropertyExternalID, _ = stringField(raw, "property_id", "propertyId")
	if rooms, ok := objectSlice(raw, "rooms"); ok && len(rooms) > 0 {
		r.RoomTypeExternalID, _ = stringField(rooms[0], "room_type_id", "id")
	} else {
		r.RoomTypeExternalID, _ = stringField(raw, "room_type_id")
	}
	r.CheckIn, _ = dateField(raw, "arrival", "arrivalDate", "checkIn", "date_arrival")
	r.CheckOut, _ = dateField(raw, "departure", "departureDate", "checkOut", "date_departure")
	if guest, ok := nestedObject(raw, "guest"); ok {
		r.GuestName, _ = stringField(guest, "name", "guest_name")
		r.GuestEmail, _ = stringField(guest, "email")
		r.GuestPhone, _ = stringField(guest, "phone")
	} else {
		r.GuestName, _ = stringField(raw, "guest_name", "name")
		r.GuestEmail, _ = stringField(raw, "guest_email", "email")
		r.GuestPhone, _ = stringField(raw, "guest_phone", "phone")
	}
	if people, ok := nestedObject(raw, "people"); ok {
		r.Adults, _ = intField(people, "adults")
		r.Children, _ = intField(people, "children")
	} else {
		r.Adults, _ = intField(raw, "adults", "people")
		r.Children, _ = intField(raw, "children")
	}
	r.TotalPrice, _ = decimalField(raw, "total_amount", "amount", "price")
	var ok bool
	if r.Currency, ok = stringField(raw, "currency_code", "currency"); !ok {
		r.Currency = a.config.DefaultCurrency
	}
	status, _ := stringField(raw, "status")
	r.Status = mapLodgifyStatus(status)
	r.Channel, _ = stringField(raw, "source", "source_text", "channel")
	r.Notes, _ = stringField(raw, "notes", "messages")
	return r
}

// mapLodgifyStatus maps Lodgify booking statuses to canonical statuses.
func mapLodgifyStatus(status string) channel.ReservationStatus {
	switch status {
	case "Booked", "booked", "confirmed":
		return channel.ReservationStatusConfirmed
	case "Open", "open", "Tentative", "tentative", "pending":
		return channel.ReservationStatusPending
	case "Declined", "declined", "Cancelled", "cancelled":
		return channel.ReservationStatusCancelled
	default:
		return channel.ReservationStatusPending
	}
}

// ---------------------------------------------------------------------------
// Response envelopes
// ---------------------------------------------------------------------------

// lodgifyItems unwraps the {"count": n, "items": [...]} envelope; endpoints
// that return bare arrays are wrapped transparently.
func lodgifyItems(body []byte) ([]map[string]any, error) {
	if raw, err := decodeObject(body); err == nil {
		if items, ok := objectSlice(raw, "items", "data"); ok {
			return items, nil
		}
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "response carried no items array")
	}
	// Some endpoints return a top-level array.
	arr, err := decodeObjectArray(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	return arr, nil
}

var _ channel.Adapter = (*LodgifyAdapter)(nil)
