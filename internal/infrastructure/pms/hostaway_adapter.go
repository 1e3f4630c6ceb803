package pms

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// HostawayAdapter implements the channel.Adapter contract for Hostaway.
// Hostaway uses OAuth2 client credentials (account id + secret) and wraps
// every response in a {"status": "...", "result": ...} envelope.
type HostawayAdapter struct {
	config *HostawayConfig
	client *apiClient
	auth   *oauthClientCredentialsAuth
	logger *zap.Logger
}

// NewHostawayAdapter creates a Hostaway adapter with the given configuration.
func NewHostawayAdapter(config *HostawayConfig, logger *zap.Logger) (*HostawayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &HostawayAdapter{config: config, logger: logger.Named("hostaway")}
	a.auth = &oauthClientCredentialsAuth{
		accountID: config.AccountID,
		secret:    config.Secret,
		tokenURL:  config.APIBaseURL + "/accessTokens",
		scope:     "general",
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}
	a.client = newAPIClient(config.APIBaseURL, config.TimeoutSeconds, config.RequestsPerMinute, a.auth, a.logger)
	return a, nil
}

// IntegrationCode returns the integration code this adapter handles.
func (a *HostawayAdapter) IntegrationCode() channel.IntegrationCode {
	return channel.IntegrationHostaway
}

// Authenticate performs the client-credentials exchange eagerly.
func (a *HostawayAdapter) Authenticate(ctx context.Context) (*channel.TokenInfo, error) {
	a.auth.mu.Lock()
	err := a.auth.fetchTokenLocked(ctx)
	token := a.auth.token
	expiresAt := a.auth.expiresAt
	a.auth.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &channel.TokenInfo{AccessToken: token, ExpiresAt: expiresAt}, nil
}

// TestConnection verifies the credentials with a minimal listings fetch.
func (a *HostawayAdapter) TestConnection(ctx context.Context) error {
	query := url.Values{}
	query.Set("limit", "1")
	_, err := a.client.get(ctx, "/listings", query)
	return err
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// GetProperties lists the account's listings. Hostaway has no separate
// room-type tier, so each listing is both a property and its own room type.
func (a *HostawayAdapter) GetProperties(ctx context.Context, opts channel.ListOptions) ([]channel.Property, error) {
	opts.Validate()
	query := url.Values{}
	query.Set("limit", strconv.Itoa(opts.PageSize))
	query.Set("offset", strconv.Itoa((opts.Page-1)*opts.PageSize))
	body, err := a.client.get(ctx, "/listings", query)
	if err != nil {
		return nil, err
	}
	items, err := hostawayResultList(body)
	if err != nil {
		return nil, err
	}
	properties := make([]channel.Property, 0, len(items))
	for _, item := range items {
		properties = append(properties, a.mapProperty(item))
	}
	return properties, nil
}

// GetProperty fetches a single listing by its external ID.
func (a *HostawayAdapter) GetProperty(ctx context.Context, externalID string) (*channel.Property, error) {
	body, err := a.client.get(ctx, "/listings/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	item, err := hostawayResultObject(body)
	if err != nil {
		return nil, err
	}
	p := a.mapProperty(item)
	return &p, nil
}

// GetRoomTypes aliases the listing as its own room type.
func (a *HostawayAdapter) GetRoomTypes(ctx context.Context, propertyExternalID string) ([]channel.RoomType, error) {
	body, err := a.client.get(ctx, "/listings/"+propertyExternalID, nil)
	if err != nil {
		return nil, err
	}
	item, err := hostawayResultObject(body)
	if err != nil {
		return nil, err
	}
	return []channel.RoomType{a.mapRoomType(item, propertyExternalID)}, nil
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

// GetAvailability fetches the listing calendar. Hostaway interleaves
// availability and pricing in the same day objects.
func (a *HostawayAdapter) GetAvailability(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.AvailabilityDay, error) {
	items, err := a.calendar(ctx, roomTypeExternalID, window)
	if err != nil {
		return nil, err
	}
	days := make([]channel.AvailabilityDay, 0, len(items))
	for _, item := range items {
		days = append(days, a.mapAvailabilityDay(item))
	}
	return days, nil
}

// UpdateAvailability pushes calendar availability changes.
func (a *HostawayAdapter) UpdateAvailability(ctx context.Context, roomTypeExternalID string, days []channel.AvailabilityDay) error {
	for _, d := range days {
		payload := map[string]any{
			"startDate":   d.Date.Format("2006-01-02"),
			"endDate":     d.Date.Format("2006-01-02"),
			"isAvailable": boolToInt(d.Available),
			"minimumStay": d.MinStay,
		}
		if _, err := a.client.putJSON(ctx, "/listings/"+roomTypeExternalID+"/calendar", payload); err != nil {
			return err
		}
	}
	return nil
}

// GetRates fetches nightly prices from the listing calendar.
func (a *HostawayAdapter) GetRates(ctx context.Context, roomTypeExternalID string, window channel.DateRange) ([]channel.RateDay, error) {
	items, err := a.calendar(ctx, roomTypeExternalID, window)
	if err != nil {
		return nil, err
	}
	days := make([]channel.RateDay, 0, len(items))
	for _, item := range items {
		days = append(days, a.mapRateDay(item))
	}
	return days, nil
}

// UpdateRates pushes nightly price changes.
func (a *HostawayAdapter) UpdateRates(ctx context.Context, roomTypeExternalID string, days []channel.RateDay) error {
	for _, d := range days {
		payload := map[string]any{
			"startDate": d.Date.Format("2006-01-02"),
			"endDate":   d.Date.Format("2006-01-02"),
			"price":     d.Price.InexactFloat64(),
		}
		if _, err := a.client.putJSON(ctx, "/listings/"+roomTypeExternalID+"/calendar", payload); err != nil {
			return err
		}
	}
	return nil
}

func (a *HostawayAdapter) calendar(ctx context.Context, listingID string, window channel.DateRange) ([]map[string]any, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("startDate", window.Start.Format("2006-01-02"))
	query.Set("endDate", window.End.Format("2006-01-02"))
	body, err := a.client.get(ctx, "/listings/"+listingID+"/calendar", query)
	if err != nil {
		return nil, err
	}
	return hostawayResultList(body)
}

// ---------------------------------------------------------------------------
// Reservations
// ---------------------------------------------------------------------------

// GetReservations lists reservations matching the query.
func (a *HostawayAdapter) GetReservations(ctx context.Context, q channel.ReservationQuery) ([]channel.Reservation, error) {
	q.Validate()
	query := url.Values{}
	query.Set("limit", strconv.Itoa(q.PageSize))
	query.Set("offset", strconv.Itoa((q.Page-1)*q.PageSize))
	if !q.ModifiedSince.IsZero() {
		query.Set("latestActivityStart", q.ModifiedSince.UTC().Format("2006-01-02 15:04:05"))
	}
	if q.PropertyExternalID != "" {
		query.Set("listingId", q.PropertyExternalID)
	}
	body, err := a.client.get(ctx, "/reservations", query)
	if err != nil {
		return nil, err
	}
	items, err := hostawayResultList(body)
	if err != nil {
		return nil, err
	}
	reservations := make([]channel.Reservation, 0, len(items))
	for _, item := range items {
		reservations = append(reservations, a.mapReservation(item))
	}
	return reservations, nil
}

// GetReservation fetches a single reservation by its external ID.
func (a *HostawayAdapter) GetReservation(ctx context.Context, externalID string) (*channel.Reservation, error) {
	body, err := a.client.get(ctx, "/reservations/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	item, err := hostawayResultObject(body)
	if err != nil {
		return nil, err
	}
	r := a.mapReservation(item)
	return &r, nil
}

// CreateReservation creates a reservation.
func (a *HostawayAdapter) CreateReservation(ctx context.Context, draft *channel.ReservationDraft) (*channel.Reservation, error) {
	body, err := a.client.postJSON(ctx, "/reservations", a.draftPayload(draft))
	if err != nil {
		return nil, err
	}
	item, err := hostawayResultObject(body)
	if err != nil {
		return nil, err
	}
	r := a.mapReservation(item)
	return &r, nil
}

// UpdateReservation updates a reservation by id.
func (a *HostawayAdapter) UpdateReservation(ctx context.Context, externalID string, draft *channel.ReservationDraft) (*channel.Reservation, error) {
	body, err := a.client.putJSON(ctx, "/reservations/"+externalID, a.draftPayload(draft))
	if err != nil {
		return nil, err
	}
	item, err := hostawayResultObject(body)
	if err != nil {
		return nil, err
	}
	r := a.mapReservation(item)
	return &r, nil
}

// CancelReservation cancels a reservation through the status endpoint.
func (a *HostawayAdapter) CancelReservation(ctx context.Context, externalID, reason string) error {
	payload := map[string]any{"cancellationReason": reason}
	_, err := a.client.putJSON(ctx, "/reservations/"+externalID+"/statuses/cancelled", payload)
	return err
}

func (a *HostawayAdapter) draftPayload(draft *channel.ReservationDraft) map[string]any {
	return map[string]any{
		"listingMapId":   draft.RoomTypeExternalID,
		"arrivalDate":    draft.CheckIn.Format("2006-01-02"),
		"departureDate":  draft.CheckOut.Format("2006-01-02"),
		"guestName":      draft.GuestName,
		"guestEmail":     draft.GuestEmail,
		"phone":          draft.GuestPhone,
		"numberOfGuests": draft.Adults + draft.Children,
		"adults":         draft.Adults,
		"children":       draft.Children,
		"comment":        draft.Notes,
	}
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// ParseWebhookPayload normalizes a Hostaway unified webhook. Deliveries
// carry an object and event field plus the affected entity under data.
func (a *HostawayAdapter) ParseWebhookPayload(payload []byte, _ map[string]string) (*channel.NormalizedEvent, error) {
	raw, err := decodeObject(payload)
	if err != nil {
		return nil, channel.ErrWebhookPayloadInvalid
	}
	data := raw
	if nested, ok := nestedObject(raw, "data", "result"); ok {
		data = nested
	}
	externalID, ok := stringField(data, "id", "reservationId")
	if !ok {
		return nil, channel.ErrWebhookPayloadInvalid
	}

	object, _ := stringField(raw, "object")
	action, _ := stringField(raw, "event")
	event := channel.EventReservationUpdated
	switch object {
	case "listing":
		event = channel.EventPropertyUpdated
	case "reservation", "":
		switch action {
		case "reservation.created", "created":
			event = channel.EventReservationCreated
		case "reservation.cancelled", "cancelled":
			event = channel.EventReservationCancelled
		}
		if status, ok := stringField(data, "status"); ok && mapHostawayStatus(status) == channel.ReservationStatusCancelled {
			event = channel.EventReservationCancelled
		}
	}

	eventID, ok := stringField(raw, "eventId", "webhookId")
	if !ok {
		eventID = payloadDigest(payload)
	}
	ts, ok := timeField(raw, "date", "timestamp")
	if !ok {
		ts = time.Now()
	}
	return &channel.NormalizedEvent{
		EventID:    eventID,
		Event:      event,
		ExternalID: externalID,
		Data:       payload,
		Timestamp:  ts,
	}, nil
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

func (a *HostawayAdapter) mapProperty(raw map[string]any) channel.Property {
	p := channel.Property{RawData: rawJSON(raw)}
	p.ExternalID, _ = stringField(raw, "id", "listingId")
	p.Name, _ = stringField(raw, "name", "internalListingName", "externalListingName")
	p.Address, _ = stringField(raw, "address", "street")
	p.City, _ = stringField(raw, "city")
	p.Country, _ = stringField(raw, "countryCode", "country")
	var ok bool
	if p.Currency, ok = stringField(raw, "currencyCode", "currency"); !ok {
		p.Currency = a.config.DefaultCurrency
		a.logger.Debug("listing payload missing currency, using default",
			zap.String("external_id", p.ExternalID))
	}
	if p.CheckInTime, ok = checkTimeField(raw, "checkInTimeStart", "checkInTime"); !ok {
		p.CheckInTime = channel.DefaultCheckInTime
	}
	if p.CheckOutTime, ok = checkTimeField(raw, "checkOutTime", "checkOutTimeEnd"); !ok {
		p.CheckOutTime = channel.DefaultCheckOutTime
	}
	p.Amenities, _ = stringSlice(raw, "listingAmenities", "amenities")
	return p
}

func (a *HostawayAdapter) mapRoomType(raw map[string]any, propertyExternalID string) channel.RoomType {
	rt := channel.RoomType{PropertyExternalID: propertyExternalID, RawData: rawJSON(raw)}
	rt.ExternalID, _ = stringField(raw, "id", "listingId")
	rt.Name, _ = stringField(raw, "name", "internalListingName")
	rt.MaxGuests, _ = intField(raw, "personCapacity", "maxGuests", "guestsIncluded")
	rt.Bedrooms, _ = intField(raw, "bedroomsNumber", "bedrooms")
	rt.Bathrooms, _ = intField(raw, "bathroomsNumber", "bathrooms")
	rt.UnitCount = 1
	rt.BasePrice, _ = decimalField(raw, "price", "basePrice")
	var ok bool
	if rt.Currency, ok = stringField(raw, "currencyCode", "currency"); !ok {
		rt.Currency = a.config.DefaultCurrency
	}
	return rt
}

func (a *HostawayAdapter) mapAvailabilityDay(raw map[string]any) channel.AvailabilityDay {
	day := channel.AvailabilityDay{}
	day.Date, _ = dateField(raw, "date", "day")
	if avail, ok := boolField(raw, "isAvailable", "available"); ok {
		day.Available = avail
	} else if status, ok := stringField(raw, "status"); ok {
		day.Available = status == "available"
	}
	if day.UnitsAvailable, _ = intField(raw, "unitsAvailable", "numAvail"); day.UnitsAvailable == 0 && day.Available {
		day.UnitsAvailable = 1
	}
	day.MinStay, _ = intField(raw, "minimumStay", "minStay")
	day.MaxStay, _ = intField(raw, "maximumStay", "maxStay")
	if closed, ok := boolField(raw, "closedOnArrival"); ok {
		day.CheckInAllowed = !closed
	} else {
		day.CheckInAllowed = true
	}
	if closed, ok := boolField(raw, "closedOnDeparture"); ok {
		day.CheckOutAllowed = !closed
	} else {
		day.CheckOutAllowed = true
	}
	if price, ok := decimalField(raw, "price", "dailyPrice"); ok {
		day.Price = &price
	}
	return day
}

func (a *HostawayAdapter) mapRateDay(raw map[string]any) channel.RateDay {
	day := channel.RateDay{}
	day.Date, _ = dateField(raw, "date", "day")
	day.Price, _ = decimalField(raw, "price", "dailyPrice")
	var ok bool
	if day.Currency, ok = stringField(raw, "currencyCode", "currency"); !ok {
		day.Currency = a.config.DefaultCurrency
	}
	day.ExtraGuestFee, _ = decimalField(raw, "priceForExtraPerson", "extraGuestFee")
	day.WeeklyDiscountPct, _ = decimalField(raw, "weeklyDiscount")
	day.MonthlyDiscountPct, _ = decimalField(raw, "monthlyDiscount")
	return day
}

func (a *HostawayAdapter) mapReservation(raw map[string]any) channel.Reservation {
	r := channel.Reservation{RawData: rawJSON(raw)}
	r.ExternalID, _ = stringField(raw, "id", "reservationId")
	r.RoomTypeExternalID, _ = stringField(raw, "listingMapId", "listingId")
	r.PropertyExternalID = r.RoomTypeExternalID
	r.CheckIn, _ = dateField(raw, "arrivalDate", "arrival", "checkIn")
	r.CheckOut, _ = dateField(raw, "departureDate", "departure", "checkOut")
	r.GuestName, _ = stringField(raw, "guestName")
	if r.GuestName == "" {
		first, _ := stringField(raw, "guestFirstName")
		last, _ := stringField(raw, "guestLastName")
		r.GuestName = joinName(first, last)
	}
	r.GuestEmail, _ = stringField(raw, "guestEmail", "email")
	r.GuestPhone, _ = stringField(raw, "phone", "guestPhone")
	r.Adults, _ = intField(raw, "adults", "numberOfGuests")
	r.Children, _ = intField(raw, "children")
	r.TotalPrice, _ = decimalField(raw, "totalPrice", "price")
	var ok bool
	if r.Currency, ok = stringField(raw, "currency", "currencyCode"); !ok {
		r.Currency = a.config.DefaultCurrency
	}
	status, _ := stringField(raw, "status")
	r.Status = mapHostawayStatus(status)
	r.Channel, _ = stringField(raw, "channelName", "channel", "source")
	r.Notes, _ = stringField(raw, "comment", "hostNote", "guestNote")
	return r
}

// mapHostawayStatus maps Hostaway reservation statuses to canonical statuses.
func mapHostawayStatus(status string) channel.ReservationStatus {
	switch status {
	case "new", "modified", "ownerStay", "accepted":
		return channel.ReservationStatusConfirmed
	case "pending", "inquiry", "inquiryPreapproved", "awaitingPayment":
		return channel.ReservationStatusPending
	case "cancelled", "declined", "expired", "inquiryDenied", "inquiryTimedout":
		return channel.ReservationStatusCancelled
	default:
		return channel.ReservationStatusPending
	}
}

// ---------------------------------------------------------------------------
// Response envelopes
// ---------------------------------------------------------------------------

// hostawayEnvelope validates the {"status": "success"} wrapper.
func hostawayEnvelope(body []byte) (map[string]any, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "unparseable response body")
	}
	if status, ok := stringField(raw, "status"); ok && status != "success" {
		msg, _ := stringField(raw, "message", "result")
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "remote reported failure: "+msg)
	}
	return raw, nil
}

// hostawayResultList unwraps {"status": "success", "result": [...]}.
func hostawayResultList(body []byte) ([]map[string]any, error) {
	raw, err := hostawayEnvelope(body)
	if err != nil {
		return nil, err
	}
	items, ok := objectSlice(raw, "result")
	if !ok {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "response carried no result array")
	}
	return items, nil
}

// hostawayResultObject unwraps {"status": "success", "result": {...}}.
func hostawayResultObject(body []byte) (map[string]any, error) {
	raw, err := hostawayEnvelope(body)
	if err != nil {
		return nil, err
	}
	item, ok := nestedObject(raw, "result")
	if !ok {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "response carried no result object")
	}
	return item, nil
}

// checkTimeField reads an hour-of-day field (Hostaway sends integers) and
// renders it as HH:MM.
func checkTimeField(raw map[string]any, keys ...string) (string, bool) {
	if hour, ok := intField(raw, keys...); ok && hour >= 0 && hour < 24 {
		return pad2(hour) + ":00", true
	}
	return stringField(raw, keys...)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ channel.Adapter = (*HostawayAdapter)(nil)
