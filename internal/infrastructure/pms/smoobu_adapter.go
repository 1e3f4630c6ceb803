package pms

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// SmoobuAdapter implements the channel.Adapter contract for Smoobu.
// Smoobu authenticates with a static Api-Key header and has no room-type
// tier: each apartment is exposed as a property aliased as its own room
// type, sharing the apartment's external ID.
type SmoobuAdapter struct {
	config *SmoobuConfig
	client *apiClient
	logger *zap.Logger
}

// NewSmoobuAdapter creates a Smoobu adapter with the given configuration.
func NewSmoobuAdapter(config *SmoobuConfig, logger *zap.Logger) (*SmoobuAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &SmoobuAdapter{config: config, logger: logger.Named("smoobu")}
	auth := &apiKeyAuth{header: "Api-Key", key: config.APIKey}
	a.client = newAPIClient(config.APIBaseURL, config.TimeoutSeconds, config.RequestsPerMinute, auth, a.logger)
	return a, nil
}

// IntegrationCode returns the integration code this adapter handles.
func (a *SmoobuAdapter) IntegrationCode() channel.IntegrationCode {
	return channel.IntegrationSmoobu
}

// Authenticate verifies the key against the current-user endpoint.
func (a *SmoobuAdapter) Authenticate(ctx context.Context) (*channel.TokenInfo, error) {
	if err := a.TestConnection(ctx); err != nil {
		return nil, err
	}
	return &channel.TokenInfo{AccessToken: a.config.APIKey}, nil
}

// TestConnection verifies the key end to end.
func (a *SmoobuAdapter) TestConnection(ctx context.Context) error {
	_, err := a.client.get(ctx, "/me", nil)
	return err
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// GetProperties lists the account's apartments.
func (a *SmoobuAdapter) GetProperties(ctx context.Context, opts channel.ListOptions) ([]channel.Property, error) {
	opts.Validate()
	// The apartments endpoint is unpaged and returns everything at once;
	// report pages past the first as empty so paging callers terminate.
	if opts.Page > 1 {
		return nil, nil
	}
	body, err := a.client.get(ctx, "/apartments", nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	items, ok := objectSlice(raw, "apartments")
	if !ok {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "response carried no apartments array")
	}
	properties := make([]channel.Property, 0, len(items))
	for _, item := range items {
		// The list endpoint returns id and name only; the detail fetch fills
		// the rest.
		detail, err := a.GetProperty(ctx, mustStringField(item, "id"))
		if err != nil {
			return nil, err
		}
		properties = append(properties, *detail)
	}
	return properties, nil
}

// GetProperty fetches a single apartment by its external ID.
func (a *SmoobuAdapter) GetProperty(ctx context.Context, externalID string) (*channel.Property, error) {
	body, err := a.client.get(ctx, "/apartments/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	p := a.mapProperty(raw, externalID)
	return &p, nil
}

// GetRoomTypes aliases the apartment as its own room type: Smoobu has no
// room-type concept, so the room type shares the apartment's external ID.
func (a *SmoobuAdapter) GetRoomTypes(ctx context.Context, propertyExternalID string) ([]channel.RoomType, error) {
	body, err := a.client.get(ctx, "/apartments/"+propertyExternalID, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	return []channel.RoomType{a.mapRoomType(raw, propertyExternalID)}, nil
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

// GetAvailability derives the calendar from the rates endpoint: Smoobu
// returns availability and pricing in the same per-date map.
func (a *SmoobuAdapter) GetAvailability(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.AvailabilityDay, error) {
	byDate, err := a.ratesByDate(ctx, roomTypeExternalID, window)
	if err != nil {
		return nil, err
	}
	days := make([]channel.AvailabilityDay, 0, len(byDate))
	for date, raw := range byDate {
		day := channel.AvailabilityDay{CheckInAllowed: true, CheckOutAllowed: true}
		day.Date = date
		units, _ := intField(raw, "available")
		day.UnitsAvailable = units
		day.Available = units > 0
		day.MinStay, _ = intField(raw, "min_length_of_stay", "minLengthOfStay")
		if price, ok := decimalField(raw, "price"); ok {
			day.Price = &price
		}
		days = append(days, day)
	}
	return days, nil
}

// UpdateAvailability pushes availability changes for an apartment.
func (a *SmoobuAdapter) UpdateAvailability(ctx context.Context, roomTypeExternalID string, days []channel.AvailabilityDay) error {
	operations := make([]map[string]any, 0, len(days))
	for _, d := range days {
		operations = append(operations, map[string]any{
			"dates":              []string{d.Date.Format("2006-01-02")},
			"available":          availUnits(d),
			"min_length_of_stay": d.MinStay,
		})
	}
	payload := map[string]any{
		"apartments": []string{roomTypeExternalID},
		"operations": operations,
	}
	_, err := a.client.postJSON(ctx, "/availability", payload)
	return err
}

// GetRates fetches nightly prices for an apartment.
func (a *SmoobuAdapter) GetRates(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.RateDay, error) {
	byDate, err := a.ratesByDate(ctx, roomTypeExternalID, window)
	if err != nil {
		return nil, err
	}
	days := make([]channel.RateDay, 0, len(byDate))
	for date, raw := range byDate {
		day := channel.RateDay{Date: date, Currency: a.config.DefaultCurrency}
		day.Price, _ = decimalField(raw, "price")
		if currency, ok := stringField(raw, "currency"); ok {
			day.Currency = currency
		}
		days = append(days, day)
	}
	return days, nil
}

// UpdateRates pushes nightly price changes for an apartment.
func (a *SmoobuAdapter) UpdateRates(ctx context.Context, roomTypeExternalID string, days []channel.RateDay) error {
	operations := make([]map[string]any, 0, len(days))
	for _, d := range days {
		operations = append(operations, map[string]any{
			"dates":       []string{d.Date.Format("2006-01-02")},
			"daily_price": d.Price.InexactFloat64(),
		})
	}
	payload := map[string]any{
		"apartments": []string{roomTypeExternalID},
		"operations": operations,
	}
	_, err := a.client.postJSON(ctx, "/rates", payload)
	return err
}

// ratesByDate fetches the per-date rate map for one apartment. The response
// shape is {"data": {"<apartmentId>": {"2026-01-01": {...}, ...}}}.
func (a *SmoobuAdapter) ratesByDate(ctx context.Context, apartmentID string, window channel.DateRange) (map[time.Time]map[string]any, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("apartments[]", apartmentID)
	query.Set("start_date", window.Start.Format("2006-01-02"))
	query.Set("end_date", window.End.Format("2006-01-02"))
	body, err := a.client.get(ctx, "/rates", query)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	data, ok := nestedObject(raw, "data")
	if !ok {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "response carried no data object")
	}
	perApartment, ok := nestedObject(data, apartmentID)
	if !ok {
		return map[time.Time]map[string]any{}, nil
	}
	byDate := make(map[time.Time]map[string]any, len(perApartment))
	for dateStr, v := range perApartment {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		byDate[date.UTC()] = obj
	}
	return byDate, nil
}

// ---------------------------------------------------------------------------
// Reservations
// ---------------------------------------------------------------------------

// GetReservations lists bookings matching the query.
func (a *SmoobuAdapter) GetReservations(ctx context.Context, q channel.ReservationQuery) ([]channel.Reservation, error) {
	q.Validate()
	query := url.Values{}
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("pageSize", strconv.Itoa(q.PageSize))
	if !q.ModifiedSince.IsZero() {
		query.Set("modifiedFrom", q.ModifiedSince.UTC().Format("2006-01-02"))
	}
	if q.PropertyExternalID != "" {
		query.Set("apartmentId", q.PropertyExternalID)
	}
	body, err := a.client.get(ctx, "/reservations", query)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	items, ok := objectSlice(raw, "bookings")
	if !ok {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "response carried no bookings array")
	}
	reservations := make([]channel.Reservation, 0, len(items))
	for _, item := range items {
		reservations = append(reservations, a.mapReservation(item))
	}
	return reservations, nil
}

// GetReservation fetches a single booking by its external ID.
func (a *SmoobuAdapter) GetReservation(ctx context.Context, externalID string) (*channel.Reservation, error) {
	body, err := a.client.get(ctx, "/reservations/"+externalID, nil)
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
func (a *SmoobuAdapter) CreateReservation(ctx context.Context, draft *channel.ReservationDraft) (*channel.Reservation, error) {
	body, err := a.client.postJSON(ctx, "/reservations", a.draftPayload(draft))
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	// Create returns only the new booking id; echo the draft back with it.
	r := channel.Reservation{
		PropertyExternalID: draft.PropertyExternalID,
		RoomTypeExternalID: draft.RoomTypeExternalID,
		CheckIn:            draft.CheckIn,
		CheckOut:           draft.CheckOut,
		GuestName:          draft.GuestName,
		GuestEmail:         draft.GuestEmail,
		GuestPhone:         draft.GuestPhone,
		Adults:             draft.Adults,
		Children:           draft.Children,
		Status:             channel.ReservationStatusConfirmed,
		Currency:           a.config.DefaultCurrency,
		Notes:              draft.Notes,
		RawData:            rawJSON(raw),
	}
	r.ExternalID, _ = stringField(raw, "id", "bookingId")
	return &r, nil
}

// UpdateReservation updates a booking by id.
func (a *SmoobuAdapter) UpdateReservation(ctx context.Context, externalID string, draft *channel.ReservationDraft) (*channel.Reservation, error) {
	if _, err := a.client.putJSON(ctx, "/reservations/"+externalID, a.draftPayload(draft)); err != nil {
		return nil, err
	}
	return a.GetReservation(ctx, externalID)
}

// CancelReservation cancels a booking.
func (a *SmoobuAdapter) CancelReservation(ctx context.Context, externalID, _ string) error {
	_, err := a.client.putJSON(ctx, "/reservations/"+externalID+"/cancel", nil)
	return err
}

func (a *SmoobuAdapter) draftPayload(draft *channel.ReservationDraft) map[string]any {
	payload := map[string]any{
		"apartmentId":   draft.RoomTypeExternalID,
		"arrivalDate":   draft.CheckIn.Format("2006-01-02"),
		"departureDate": draft.CheckOut.Format("2006-01-02"),
		"firstName":     firstNamePart(draft.GuestName),
		"lastName":      lastNamePart(draft.GuestName),
		"email":         draft.GuestEmail,
		"phone":         draft.GuestPhone,
		"adults":        draft.Adults,
		"children":      draft.Children,
		"notice":        draft.Notes,
	}
	if a.config.ChannelID != "" {
		payload["channelId"] = a.config.ChannelID
	}
	return payload
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// ParseWebhookPayload normalizes a Smoobu webhook. Deliveries are
// {"action": "...", "data": {...}} with no delivery id, so a stable one is
// derived from the payload digest.
func (a *SmoobuAdapter) ParseWebhookPayload(payload []byte, _ map[string]string) (*channel.NormalizedEvent, error) {
	raw, err := decodeObject(payload)
	if err != nil {
		return nil, channel.ErrWebhookPayloadInvalid
	}
	data, ok := nestedObject(raw, "data")
	if !ok {
		return nil, channel.ErrWebhookPayloadInvalid
	}
	externalID, ok := stringField(data, "id", "bookingId")
	if !ok {
		return nil, channel.ErrWebhookPayloadInvalid
	}

	action, _ := stringField(raw, "action")
	event := channel.EventReservationUpdated
	switch action {
	case "newReservation":
		event = channel.EventReservationCreated
	case "cancelReservation":
		event = channel.EventReservationCancelled
	case "updateRates":
		event = channel.EventRatesUpdated
	}
	if t, ok := stringField(data, "type"); ok && t == "cancellation" {
		event = channel.EventReservationCancelled
	}

	ts, ok := timeField(raw, "date", "timestamp")
	if !ok {
		ts = time.Now()
	}
	evt := &channel.NormalizedEvent{
		EventID:    payloadDigest(payload),
		Event:      event,
		ExternalID: externalID,
		Data:       payload,
		Timestamp:  ts,
	}
	if apartment, ok := nestedObject(data, "apartment"); ok {
		evt.RoomTypeExternalID, _ = stringField(apartment, "id")
	}
	return evt, nil
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

func (a *SmoobuAdapter) mapProperty(raw map[string]any, externalID string) channel.Property {
	p := channel.Property{RawData: rawJSON(raw)}
	if p.ExternalID, _ = stringField(raw, "id"); p.ExternalID == "" {
		p.ExternalID = externalID
	}
	p.Name, _ = stringField(raw, "name")
	if location, ok := nestedObject(raw, "location"); ok {
		p.Address, _ = stringField(location, "street", "address")
		p.City, _ = stringField(location, "city")
		p.Country, _ = stringField(location, "country")
	}
	var ok bool
	if p.Currency, ok = stringField(raw, "currency"); !ok {
		p.Currency = a.config.DefaultCurrency
		a.logger.Debug("apartment payload missing currency, using default",
			zap.String("external_id", p.ExternalID))
	}
	if timeSettings, ok := nestedObject(raw, "timeZone", "settings"); ok {
		p.CheckInTime, _ = stringField(timeSettings, "checkInTime")
		p.CheckOutTime, _ = stringField(timeSettings, "checkOutTime")
	}
	if p.CheckInTime == "" {
		p.CheckInTime = channel.DefaultCheckInTime
	}
	if p.CheckOutTime == "" {
		p.CheckOutTime = channel.DefaultCheckOutTime
	}
	p.Amenities, _ = stringSlice(raw, "equipments", "amenities")
	return p
}

func (a *SmoobuAdapter) mapRoomType(raw map[string]any, propertyExternalID string) channel.RoomType {
	rt := channel.RoomType{PropertyExternalID: propertyExternalID, RawData: rawJSON(raw)}
	// Aliased room type shares the apartment's external id.
	if rt.ExternalID, _ = stringField(raw, "id"); rt.ExternalID == "" {
		rt.ExternalID = propertyExternalID
	}
	rt.Name, _ = stringField(raw, "name")
	if rooms, ok := nestedObject(raw, "rooms"); ok {
		rt.MaxGuests, _ = intField(rooms, "maxOccupancy")
		rt.Bedrooms, _ = intField(rooms, "bedrooms")
		rt.Bathrooms, _ = intField(rooms, "bathrooms")
	}
	rt.UnitCount = 1
	rt.BasePrice, _ = decimalField(raw, "price", "basePrice")
	var ok bool
	if rt.Currency, ok = stringField(raw, "currency"); !ok {
		rt.Currency = a.config.DefaultCurrency
	}
	return rt
}

func (a *SmoobuAdapter) mapReservation(raw map[string]any) channel.Reservation {
	r := channel.Reservation{RawData: rawJSON(raw)}
	r.ExternalID, _ = stringField(raw, "id", "bookingId")
	if apartment, ok := nestedObject(raw, "apartment"); ok {
		r.PropertyExternalID, _ = stringField(apartment, "id")
		r.RoomTypeExternalID = r.PropertyExternalID
	}
	r.CheckIn, _ = dateField(raw, "arrival", "arrivalDate", "checkIn", "check-in")
	r.CheckOut, _ = dateField(raw, "departure", "departureDate", "checkOut", "check-out")
	r.GuestName, _ = stringField(raw, "guestName", "guest-name")
	if r.GuestName == "" {
		first, _ := stringField(raw, "firstname", "firstName")
		last, _ := stringField(raw, "lastname", "lastName")
		r.GuestName = joinName(first, last)
	}
	r.GuestEmail, _ = stringField(raw, "email")
	r.GuestPhone, _ = stringField(raw, "phone")
	r.Adults, _ = intField(raw, "adults")
	r.Children, _ = intField(raw, "children")
	r.TotalPrice, _ = decimalField(raw, "price", "totalPrice")
	var ok bool
	if r.Currency, ok = stringField(raw, "currency"); !ok {
		r.Currency = a.config.DefaultCurrency
	}
	r.Status = mapSmoobuStatus(raw)
	if ch, ok := nestedObject(raw, "channel"); ok {
		r.Channel, _ = stringField(ch, "name")
	}
	r.Notes, _ = stringField(raw, "notice", "assistant-notice")
	return r
}

// mapSmoobuStatus derives the canonical status. Smoobu encodes cancellation
// as a type field rather than a status enum.
func mapSmoobuStatus(raw map[string]any) channel.ReservationStatus {
	if t, ok := stringField(raw, "type"); ok && t == "cancellation" {
		return channel.ReservationStatusCancelled
	}
	if status, ok := stringField(raw, "status"); ok {
		switch status {
		case "cancelled":
			return channel.ReservationStatusCancelled
		case "pending":
			return channel.ReservationStatusPending
		}
	}
	return channel.ReservationStatusConfirmed
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// mustStringField reads a field that the remote schema guarantees, falling
// back to "" so a malformed item surfaces as NOT_FOUND downstream instead
// of panicking.
func mustStringField(raw map[string]any, key string) string {
	s, _ := stringField(raw, key)
	return s
}

// firstNamePart returns everything before the last space of a full name.
func firstNamePart(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ' ' {
			return name[:i]
		}
	}
	return name
}

// lastNamePart returns the final word of a full name, or "" for single-word
// names.
func lastNamePart(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ' ' {
			return name[i+1:]
		}
	}
	return ""
}

var _ channel.Adapter = (*SmoobuAdapter)(nil)
