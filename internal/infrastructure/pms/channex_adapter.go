package pms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// channexSupportedPMS lists the downstream PMS codes the broker can front.
// Codes here resolve through a ChannexAdapter instance bound to that PMS;
// the broker account holds the actual downstream credentials.
var channexSupportedPMS = []channel.IntegrationCode{
	"mews", "cloudbeds", "guesty", "hostfully", "ownerrez", "uplisting",
	"tokeet", "fantasticstay", "rentals_united", "kigo", "avantio",
	"bookingsync", "supercontrol", "webrezpro", "resnexus", "little_hotelier",
	"sirvoy", "beds24_via_channex", "ezee", "djubo", "stayflexi", "hotelogix",
	"roomraccoon", "clock_pms", "apaleo", "protel", "opera", "guestline",
	"rms", "newbook", "preno", "seekom", "vreasy", "lodgix", "streamline",
	"track", "escapia", "liverez", "barefoot", "v12",
}

// ChannexSupportedPMS returns the downstream PMS codes reachable through
// the broker.
func ChannexSupportedPMS() []channel.IntegrationCode {
	out := make([]channel.IntegrationCode, len(channexSupportedPMS))
	copy(out, channexSupportedPMS)
	return out
}

// ChannexAdapter implements the channel.Adapter contract through the Channex
// broker. Channex exposes a JSON:API shaped surface ({"data": [{"id": ...,
// "attributes": {...}}]}) that is uniform across the downstream PMSs it
// fronts; one adapter instance is bound to one downstream PMS.
type ChannexAdapter struct {
	config *ChannexConfig
	client *apiClient
	auth   *brokerTokenAuth
	logger *zap.Logger
}

// NewChannexAdapter creates a broker adapter bound to config.PMSType.
func NewChannexAdapter(config *ChannexConfig, logger *zap.Logger) (*ChannexAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &ChannexAdapter{config: config, logger: logger.Named("channex")}
	a.auth = &brokerTokenAuth{
		bearerRefreshAuth: bearerRefreshAuth{
			header:       "Authorization",
			prefix:       "Bearer ",
			token:        config.Token,
			refreshToken: config.RefreshToken,
		},
		workspaceID: config.WorkspaceID,
		pmsType:     channel.IntegrationCode(config.PMSType),
	}
	a.client = newAPIClient(config.APIBaseURL, config.TimeoutSeconds, config.RequestsPerMinute, a.auth, a.logger)
	if config.RefreshToken != "" {
		a.auth.refresh = a.refreshAccessToken
	}
	return a, nil
}

// IntegrationCode returns the downstream PMS code this instance is bound
// to, falling back to the broker's own code when none was set.
func (a *ChannexAdapter) IntegrationCode() channel.IntegrationCode {
	if a.config.PMSType != "" {
		return channel.IntegrationCode(a.config.PMSType)
	}
	return channel.IntegrationChannex
}

func (a *ChannexAdapter) refreshAccessToken(ctx context.Context, refreshToken string) (*channel.TokenInfo, error) {
	return postJSONToken(ctx, a.client.httpClient, a.config.APIBaseURL+"/auth/refresh",
		map[string]string{"X-Workspace-Id": a.config.WorkspaceID},
		map[string]string{"refresh_token": refreshToken})
}

// Authenticate obtains a fresh token when a refresh token is configured,
// otherwise verifies the current one.
func (a *ChannexAdapter) Authenticate(ctx context.Context) (*channel.TokenInfo, error) {
	if a.config.RefreshToken != "" {
		info, err := a.refreshAccessToken(ctx, a.config.RefreshToken)
		if err != nil {
			return nil, err
		}
		a.auth.mu.Lock()
		a.auth.token = info.AccessToken
		a.auth.expiresAt = info.ExpiresAt
		a.auth.mu.Unlock()
		return info, nil
	}
	if err := a.TestConnection(ctx); err != nil {
		return nil, err
	}
	return &channel.TokenInfo{AccessToken: a.config.Token, ExpiresAt: jwtExpiry(a.config.Token)}, nil
}

// TestConnection verifies the token and workspace scoping end to end.
func (a *ChannexAdapter) TestConnection(ctx context.Context) error {
	query := url.Values{}
	query.Set("pagination[limit]", "1")
	_, err := a.client.get(ctx, "/properties", query)
	return err
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// GetProperties lists the workspace's properties for the bound PMS.
func (a *ChannexAdapter) GetProperties(ctx context.Context, opts channel.ListOptions) ([]channel.Property, error) {
	opts.Validate()
	query := url.Values{}
	query.Set("pagination[page]", strconv.Itoa(opts.Page))
	query.Set("pagination[limit]", strconv.Itoa(opts.PageSize))
	body, err := a.client.get(ctx, "/properties", query)
	if err != nil {
		return nil, err
	}
	items, err := channexDataList(body)
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
func (a *ChannexAdapter) GetProperty(ctx context.Context, externalID string) (*channel.Property, error) {
	body, err := a.client.get(ctx, "/properties/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	item, err := channexDataObject(body)
	if err != nil {
		return nil, err
	}
	p := a.mapProperty(item)
	return &p, nil
}

// GetRoomTypes lists the room types of a property.
func (a *ChannexAdapter) GetRoomTypes(ctx context.Context, propertyExternalID string) ([]channel.RoomType, error) {
	query := url.Values{}
	query.Set("filter[property_id]", propertyExternalID)
	body, err := a.client.get(ctx, "/room_types", query)
	if err != nil {
		return nil, err
	}
	items, err := channexDataList(body)
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

// GetAvailability fetches the availability calendar for a room type.
func (a *ChannexAdapter) GetAvailability(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.AvailabilityDay, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("filter[room_type_id]", roomTypeExternalID)
	query.Set("filter[date][gte]", window.Start.Format("2006-01-02"))
	query.Set("filter[date][lte]", window.End.Format("2006-01-02"))
	body, err := a.client.get(ctx, "/availability", query)
	if err != nil {
		return nil, err
	}
	items, err := channexDataList(body)
	if err != nil {
		return nil, err
	}
	days := make([]channel.AvailabilityDay, 0, len(items))
	for _, item := range items {
		days = append(days, a.mapAvailabilityDay(item))
	}
	return days, nil
}

// UpdateAvailability pushes availability changes for a room type.
func (a *ChannexAdapter) UpdateAvailability(ctx context.Context, roomTypeExternalID string, days []channel.AvailabilityDay) error {
	values := make([]map[string]any, 0, len(days))
	for _, d := range days {
		values = append(values, map[string]any{
			"room_type_id": roomTypeExternalID,
			"date":         d.Date.Format("2006-01-02"),
			"availability": availUnits(d),
		})
	}
	payload := map[string]any{"values": values}
	_, err := a.client.postJSON(ctx, "/availability", payload)
	return err
}

// GetRates fetches nightly prices for a room type.
func (a *ChannexAdapter) GetRates(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.RateDay, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("filter[room_type_id]", roomTypeExternalID)
	query.Set("filter[date][gte]", window.Start.Format("2006-01-02"))
	query.Set("filter[date][lte]", window.End.Format("2006-01-02"))
	body, err := a.client.get(ctx, "/restrictions", query)
	if err != nil {
		return nil, err
	}
	items, err := channexDataList(body)
	if err != nil {
		return nil, err
	}
	days := make([]channel.RateDay, 0, len(items))
	for _, item := range items {
		days = append(days, a.mapRateDay(item))
	}
	return days, nil
}

// UpdateRates pushes nightly price changes for a room type.
func (a *ChannexAdapter) UpdateRates(ctx context.Context, roomTypeExternalID string, days []channel.RateDay) error {
	values := make([]map[string]any, 0, len(days))
	for _, d := range days {
		values = append(values, map[string]any{
			"room_type_id": roomTypeExternalID,
			"date":         d.Date.Format("2006-01-02"),
			"rate":         d.Price.InexactFloat64(),
		})
	}
	payload := map[string]any{"values": values}
	_, err := a.client.postJSON(ctx, "/restrictions", payload)
	return err
}

// ---------------------------------------------------------------------------
// Reservations
// ---------------------------------------------------------------------------

// GetReservations lists bookings matching the query.
func (a *ChannexAdapter) GetReservations(ctx context.Context, q channel.ReservationQuery) ([]channel.Reservation, error) {
	q.Validate()
	query := url.Values{}
	query.Set("pagination[page]", strconv.Itoa(q.Page))
	query.Set("pagination[limit]", strconv.Itoa(q.PageSize))
	if !q.ModifiedSince.IsZero() {
		query.Set("filter[updated_at][gte]", q.ModifiedSince.UTC().Format(time.RFC3339))
	}
	if q.PropertyExternalID != "" {
		query.Set("filter[property_id]", q.PropertyExternalID)
	}
	body, err := a.client.get(ctx, "/bookings", query)
	if err != nil {
		return nil, err
	}
	items, err := channexDataList(body)
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
func (a *ChannexAdapter) GetReservation(ctx context.Context, externalID string) (*channel.Reservation, error) {
	body, err := a.client.get(ctx, "/bookings/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	item, err := channexDataObject(body)
	if err != nil {
		return nil, err
	}
	r := a.mapReservation(item)
	return &r, nil
}

// CreateReservation creates a booking through the broker.
func (a *ChannexAdapter) CreateReservation(ctx context.Context, draft *channel.ReservationDraft) (*channel.Reservation, error) {
	body, err := a.client.postJSON(ctx, "/bookings", map[string]any{"booking": a.draftPayload(draft)})
	if err != nil {
		return nil, err
	}
	item, err := channexDataObject(body)
	if err != nil {
		return nil, err
	}
	r := a.mapReservation(item)
	return &r, nil
}

// UpdateReservation updates a booking by id.
func (a *ChannexAdapter) UpdateReservation(ctx context.Context, externalID string, draft *channel.ReservationDraft) (*channel.Reservation, error) {
	body, err := a.client.putJSON(ctx, "/bookings/"+externalID, map[string]any{"booking": a.draftPayload(draft)})
	if err != nil {
		return nil, err
	}
	item, err := channexDataObject(body)
	if err != nil {
		return nil, err
	}
	r := a.mapReservation(item)
	return &r, nil
}

// CancelReservation cancels a booking.
func (a *ChannexAdapter) CancelReservation(ctx context.Context, externalID, _ string) error {
	_, err := a.client.postJSON(ctx, "/bookings/"+externalID+"/cancel", nil)
	return err
}

func (a *ChannexAdapter) draftPayload(draft *channel.ReservationDraft) map[string]any {
	return map[string]any{
		"property_id":    draft.PropertyExternalID,
		"room_type_id":   draft.RoomTypeExternalID,
		"arrival_date":   draft.CheckIn.Format("2006-01-02"),
		"departure_date": draft.CheckOut.Format("2006-01-02"),
		"customer": map[string]any{
			"name":  draft.GuestName,
			"mail":  draft.GuestEmail,
			"phone": draft.GuestPhone,
		},
		"occupancy": map[string]any{
			"adults":   draft.Adults,
			"children": draft.Children,
		},
		"notes": draft.Notes,
	}
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// ParseWebhookPayload verifies the HMAC signature when a webhook secret is
// configured and normalizes the delivery. Channex sends an event name, a
// delivery id, and the affected entity under payload.
func (a *ChannexAdapter) ParseWebhookPayload(payload []byte, headers map[string]string) (*channel.NormalizedEvent, error) {
	if a.config.WebhookSecret != "" {
		if !verifyHMACSignature(payload, headers["X-Channex-Signature"], a.config.WebhookSecret) {
			return nil, channel.ErrWebhookPayloadInvalid
		}
	}
	raw, err := decodeObject(payload)
	if err != nil {
		return nil, channel.ErrWebhookPayloadInvalid
	}
	data := raw
	if nested, ok := nestedObject(raw, "payload", "data"); ok {
		data = nested
	}
	externalID, ok := stringField(data, "booking_id", "id")
	if !ok {
		return nil, channel.ErrWebhookPayloadInvalid
	}

	eventName, _ := stringField(raw, "event")
	event := channel.EventReservationUpdated
	switch eventName {
	case "booking", "booking_new":
		event = channel.EventReservationCreated
	case "booking_modification":
		event = channel.EventReservationUpdated
	case "booking_cancellation":
		event = channel.EventReservationCancelled
	case "ari":
		event = channel.EventAvailabilityUpdated
	case "rate":
		event = channel.EventRatesUpdated
	case "property":
		event = channel.EventPropertyUpdated
	}

	eventID, ok := stringField(raw, "id", "event_id")
	if !ok {
		eventID = payloadDigest(payload)
	}
	ts, ok := timeField(raw, "timestamp", "inserted_at")
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
	evt.RoomTypeExternalID, _ = stringField(data, "room_type_id")
	return evt, nil
}

// verifyHMACSignature checks a hex-encoded HMAC-SHA256 signature in
// constant time.
func verifyHMACSignature(payload []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

// channexAttributes flattens a JSON:API resource: the id joins the
// attributes map so mapping helpers see one flat object.
func channexAttributes(item map[string]any) map[string]any {
	attrs, ok := nestedObject(item, "attributes")
	if !ok {
		return item
	}
	if _, present := attrs["id"]; !present {
		if id, ok := stringField(item, "id"); ok {
			attrs["id"] = id
		}
	}
	return attrs
}

func (a *ChannexAdapter) mapProperty(item map[string]any) channel.Property {
	raw := channexAttributes(item)
	p := channel.Property{RawData: rawJSON(item)}
	p.ExternalID, _ = stringField(raw, "id")
	p.Name, _ = stringField(raw, "title", "name")
	if addr, ok := nestedObject(raw, "address"); ok {
		p.Address, _ = stringField(addr, "address", "street")
		p.City, _ = stringField(addr, "city")
		p.Country, _ = stringField(addr, "country", "country_code")
	} else {
		p.Address, _ = stringField(raw, "address")
		p.City, _ = stringField(raw, "city")
		p.Country, _ = stringField(raw, "country")
	}
	var ok bool
	if p.Currency, ok = stringField(raw, "currency"); !ok {
		p.Currency = a.config.DefaultCurrency
		a.logger.Debug("property payload missing currency, using default",
			zap.String("external_id", p.ExternalID))
	}
	if settings, ok := nestedObject(raw, "settings"); ok {
		p.CheckInTime, _ = stringField(settings, "check_in_time")
		p.CheckOutTime, _ = stringField(settings, "check_out_time")
	}
	if p.CheckInTime == "" {
		p.CheckInTime = channel.DefaultCheckInTime
	}
	if p.CheckOutTime == "" {
		p.CheckOutTime = channel.DefaultCheckOutTime
	}
	p.Amenities, _ = stringSlice(raw, "facilities", "amenities")
	return p
}

func (a *ChannexAdapter) mapRoomType(item map[string]any, propertyExternalID string) channel.RoomType {
	raw := channexAttributes(item)
	rt := channel.RoomType{PropertyExternalID: propertyExternalID, RawData: rawJSON(item)}
	rt.ExternalID, _ = stringField(raw, "id")
	if rt.PropertyExternalID == "" {
		rt.PropertyExternalID, _ = stringField(raw, "property_id")
	}
	rt.Name, _ = stringField(raw, "title", "name")
	rt.MaxGuests, _ = intField(raw, "occ_adults", "max_guests", "occupancy")
	rt.Bedrooms, _ = intField(raw, "bedrooms")
	rt.Bathrooms, _ = intField(raw, "bathrooms")
	if rt.UnitCount, _ = intField(raw, "count_of_rooms", "units"); rt.UnitCount == 0 {
		rt.UnitCount = 1
	}
	rt.BasePrice, _ = decimalField(raw, "default_rate", "base_price")
	var ok bool
	if rt.Currency, ok = stringField(raw, "currency"); !ok {
		rt.Currency = a.config.DefaultCurrency
	}
	return rt
}

func (a *ChannexAdapter) mapAvailabilityDay(item map[string]any) channel.AvailabilityDay {
	raw := channexAttributes(item)
	day := channel.AvailabilityDay{}
	day.Date, _ = dateField(raw, "date")
	units, _ := intField(raw, "availability", "available")
	day.UnitsAvailable = units
	day.Available = units > 0
	day.MinStay, _ = intField(raw, "min_stay_arrival", "min_stay")
	day.MaxStay, _ = intField(raw, "max_stay")
	if closed, ok := boolField(raw, "closed_to_arrival"); ok {
		day.CheckInAllowed = !closed
	} else {
		day.CheckInAllowed = true
	}
	if closed, ok := boolField(raw, "closed_to_departure"); ok {
		day.CheckOutAllowed = !closed
	} else {
		day.CheckOutAllowed = true
	}
	if price, ok := decimalField(raw, "rate", "price"); ok {
		day.Price = &price
	}
	return day
}

func (a *ChannexAdapter) mapRateDay(item map[string]any) channel.RateDay {
	raw := channexAttributes(item)
	day := channel.RateDay{}
	day.Date, _ = dateField(raw, "date")
	day.Price, _ = decimalField(raw, "rate", "price")
	var ok bool
	if day.Currency, ok = stringField(raw, "currency"); !ok {
		day.Currency = a.config.DefaultCurrency
	}
	day.ExtraGuestFee, _ = decimalField(raw, "extra_guest_fee")
	return day
}

func (a *ChannexAdapter) mapReservation(item map[string]any) channel.Reservation {
	raw := channexAttributes(item)
	r := channel.Reservation{RawData: rawJSON(item)}
	r.ExternalID, _ = stringField(raw, "id", "booking_id")
	r.PropertyExternalID, _ = stringField(raw, "property_id")
	if rooms, ok := objectSlice(raw, "rooms"); ok && len(rooms) > 0 {
		r.RoomTypeExternalID, _ = stringField(rooms[0], "room_type_id")
	}
	r.CheckIn, _ = dateField(raw, "arrival_date", "arrival", "checkIn")
	r.CheckOut, _ = dateField(raw, "departure_date", "departure", "checkOut")
	if customer, ok := nestedObject(raw, "customer", "guest"); ok {
		r.GuestName, _ = stringField(customer, "name")
		if r.GuestName == "" {
			first, _ := stringField(customer, "first_name")
			last, _ := stringField(customer, "surname", "last_name")
			r.GuestName = joinName(first, last)
		}
		r.GuestEmail, _ = stringField(customer, "mail", "email")
		r.GuestPhone, _ = stringField(customer, "phone")
	}
	if occupancy, ok := nestedObject(raw, "occupancy"); ok {
		r.Adults, _ = intField(occupancy, "adults")
		r.Children, _ = intField(occupancy, "children")
	}
	r.TotalPrice, _ = decimalField(raw, "amount", "total_price")
	var ok bool
	if r.Currency, ok = stringField(raw, "currency"); !ok {
		r.Currency = a.config.DefaultCurrency
	}
	status, _ := stringField(raw, "status")
	r.Status = mapChannexStatus(status)
	r.Channel, _ = stringField(raw, "ota_name", "channel", "source")
	r.Notes, _ = stringField(raw, "notes")
	return r
}

// mapChannexStatus maps broker booking statuses to canonical statuses.
func mapChannexStatus(status string) channel.ReservationStatus {
	switch status {
	case "new", "confirmed", "modified":
		return channel.ReservationStatusConfirmed
	case "unconfirmed", "pending":
		return channel.ReservationStatusPending
	case "cancelled":
		return channel.ReservationStatusCancelled
	default:
		return channel.ReservationStatusPending
	}
}

// ---------------------------------------------------------------------------
// Response envelopes
// ---------------------------------------------------------------------------

// channexDataList unwraps {"data": [...]}.
func channexDataList(body []byte) ([]map[string]any, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	items, ok := objectSlice(raw, "data")
	if !ok {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "response carried no data array")
	}
	return items, nil
}

// channexDataObject unwraps {"data": {...}}.
func channexDataObject(body []byte) (map[string]any, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	item, ok := nestedObject(raw, "data")
	if !ok {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "response carried no data object")
	}
	return item, nil
}

var _ channel.Adapter = (*ChannexAdapter)(nil)
