package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/persistence/models"
)

// upsertBatchSize bounds the rows per insert so a 90-day window for many
// room types stays under the bind-parameter limits of both drivers.
const upsertBatchSize = 500

// GormCalendarRepository implements CalendarRepository using GORM.
// Calendar rows are snapshot state keyed by (room_type_id, date): every
// sync overwrites, nothing accumulates.
type GormCalendarRepository struct {
	db *gorm.DB
}

// NewGormCalendarRepository creates a new GormCalendarRepository.
func NewGormCalendarRepository(db *gorm.DB) *GormCalendarRepository {
	return &GormCalendarRepository{db: db}
}

// UpsertAvailability overwrites availability days per (room_type_id, date).
func (r *GormCalendarRepository) UpsertAvailability(ctx context.Context, days []channel.AvailabilityDay) error {
	if len(days) == 0 {
		return nil
	}
	dayModels := make([]models.AvailabilityDayModel, len(days))
	for i, d := range days {
		dayModels[i].FromDomain(d)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "room_type_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"available", "units_available", "min_stay", "max_stay",
				"check_in_allowed", "check_out_allowed", "price", "updated_at",
			}),
		}).
		CreateInBatches(dayModels, upsertBatchSize).Error
}

// UpsertRates overwrites rate days per (room_type_id, date).
func (r *GormCalendarRepository) UpsertRates(ctx context.Context, days []channel.RateDay) error {
	if len(days) == 0 {
		return nil
	}
	dayModels := make([]models.RateDayModel, len(days))
	for i, d := range days {
		dayModels[i].FromDomain(d)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "room_type_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price", "currency", "extra_guest_fee",
				"weekly_discount_pct", "monthly_discount_pct", "updated_at",
			}),
		}).
		CreateInBatches(dayModels, upsertBatchSize).Error
}

// ListAvailability lists availability days for a room type in a window.
func (r *GormCalendarRepository) ListAvailability(ctx context.Context, roomTypeID uuid.UUID, window channel.DateRange) ([]channel.AvailabilityDay, error) {
	var dayModels []models.AvailabilityDayModel
	if err := r.db.WithContext(ctx).
		Where("room_type_id = ? AND date >= ? AND date <= ?", roomTypeID, window.Start, window.End).
		Order("date ASC").
		Find(&dayModels).Error; err != nil {
		return nil, err
	}

	days := make([]channel.AvailabilityDay, len(dayModels))
	for i := range dayModels {
		days[i] = dayModels[i].ToDomain()
	}
	return days, nil
}

// ListRates lists rate days for a room type in a window.
func (r *GormCalendarRepository) ListRates(ctx context.Context, roomTypeID uuid.UUID, window channel.DateRange) ([]channel.RateDay, error) {
	var dayModels []models.RateDayModel
	if err := r.db.WithContext(ctx).
		Where("room_type_id = ? AND date >= ? AND date <= ?", roomTypeID, window.Start, window.End).
		Order("date ASC").
		Find(&dayModels).Error; err != nil {
		return nil, err
	}

	days := make([]channel.RateDay, len(dayModels))
	for i := range dayModels {
		days[i] = dayModels[i].ToDomain()
	}
	return days, nil
}

// Ensure GormCalendarRepository implements CalendarRepository
var _ channel.CalendarRepository = (*GormCalendarRepository)(nil)
