package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	syncapp "github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/application/sync"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/persistence/models"
)

// resyncAdapter serves a fixed one-property, one-room-type inventory. Methods
// outside the sync path hit the embedded nil interface and panic, which is
// the desired failure mode in this test.
type resyncAdapter struct {
	channel.Adapter
}

func (a *resyncAdapter) GetProperties(_ context.Context, opts channel.ListOptions) ([]channel.Property, error) {
	if opts.Page > 1 {
		return nil, nil
	}
	return []channel.Property{{
		ExternalID: "prop-1",
		Name:       "Casa do Rio",
		City:       "Porto",
		Currency:   "EUR",
	}}, nil
}

func (a *resyncAdapter) GetRoomTypes(_ context.Context, propertyExternalID string) ([]channel.RoomType, error) {
	return []channel.RoomType{{
		ExternalID:         "room-1",
		PropertyExternalID: propertyExternalID,
		Name:               "Suite",
		MaxGuests:          2,
		UnitCount:          1,
	}}, nil
}

func (a *resyncAdapter) GetAvailability(_ context.Context, _ string, window channel.DateRange) ([]channel.AvailabilityDay, error) {
	return []channel.AvailabilityDay{{
		Date:            window.Start,
		Available:       true,
		UnitsAvailable:  1,
		CheckInAllowed:  true,
		CheckOutAllowed: true,
	}}, nil
}

func (a *resyncAdapter) GetRates(_ context.Context, _ string, _ channel.DateRange) ([]channel.RateDay, error) {
	return nil, nil
}

func (a *resyncAdapter) GetReservations(_ context.Context, _ channel.ReservationQuery) ([]channel.Reservation, error) {
	return nil, nil
}

type resyncRegistry struct {
	adapter channel.Adapter
}

func (r *resyncRegistry) GetAdapter(*channel.Connection) (channel.Adapter, error) {
	return r.adapter, nil
}

func (r *resyncRegistry) SupportedCodes() []channel.IntegrationCode { return nil }

// Running a full sync twice against the real repositories must converge on
// the same rows: no duplicate properties or room types, and every child row
// pointing at the id that actually survived in storage.
func TestFullSyncTwiceConvergesOnStoredRows(t *testing.T) {
	db := setupChannelTestDB(t)
	cipher := testCipher(t)
	ctx := context.Background()

	connections := NewGormConnectionRepository(db, cipher)
	properties := NewGormPropertyRepository(db)
	roomTypes := NewGormRoomTypeRepository(db)
	calendar := NewGormCalendarRepository(db)
	reservations := NewGormReservationRepository(db)
	syncLogs := NewGormSyncLogRepository(db)

	conn, err := channel.NewConnection(uuid.New(), channel.IntegrationLodgify, channel.Credentials{"api_key": "k"})
	require.NoError(t, err)
	conn.MarkConnected()
	require.NoError(t, connections.Save(ctx, conn))

	orch := syncapp.NewOrchestrator(
		connections, properties, roomTypes, calendar, reservations, syncLogs,
		&resyncRegistry{adapter: &resyncAdapter{}},
		syncapp.Config{LookaheadDays: 2},
		zap.NewNop(),
	)

	first, err := orch.FullSync(ctx, conn.ID)
	require.NoError(t, err)
	require.Equal(t, channel.SyncLogStatusSuccess, first.Status)

	storedProp, err := properties.FindByExternalID(ctx, conn.ID, "prop-1")
	require.NoError(t, err)

	second, err := orch.FullSync(ctx, conn.ID)
	require.NoError(t, err)
	require.Equal(t, channel.SyncLogStatusSuccess, second.Status)

	t.Run("property row is stable", func(t *testing.T) {
		var count int64
		require.NoError(t, db.Model(&models.PropertyModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		again, err := properties.FindByExternalID(ctx, conn.ID, "prop-1")
		require.NoError(t, err)
		assert.Equal(t, storedProp.ID, again.ID)
	})

	t.Run("room type points at the stored property row", func(t *testing.T) {
		var count int64
		require.NoError(t, db.Model(&models.RoomTypeModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		units, err := roomTypes.ListByProperty(ctx, storedProp.ID)
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, storedProp.ID, units[0].PropertyID)
	})

	t.Run("calendar rows reference the stored room type", func(t *testing.T) {
		rt, err := roomTypes.FindByExternalID(ctx, conn.ID, "room-1")
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Model(&models.AvailabilityDayModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count, "replayed sync overwrites the same day")

		var orphans int64
		require.NoError(t, db.Model(&models.AvailabilityDayModel{}).
			Where("room_type_id <> ?", rt.ID).Count(&orphans).Error)
		assert.Zero(t, orphans)
	})
}
