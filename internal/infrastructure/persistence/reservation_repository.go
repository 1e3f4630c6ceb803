package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/persistence/models"
)

// GormReservationRepository implements ReservationRepository using GORM.
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository.
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// Upsert creates or updates a reservation keyed by
// (connection_id, external_id). Status transitions arrive through the same
// path as fresh bookings; the PMS is the source of truth.
func (r *GormReservationRepository) Upsert(ctx context.Context, res *channel.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	now := time.Now()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	model := &models.ReservationModel{}
	model.FromDomain(res)

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"property_external_id", "room_type_external_id", "check_in", "check_out",
				"guest_name", "guest_email", "guest_phone", "adults", "children",
				"total_price", "currency", "status", "channel", "notes",
				"raw_data", "updated_at",
			}),
		}).
		Create(model).Error
}

// FindByExternalID finds a reservation by its external ID within a connection.
func (r *GormReservationRepository) FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*channel.Reservation, error) {
	var model models.ReservationModel
	if err := r.db.WithContext(ctx).
		First(&model, "connection_id = ? AND external_id = ?", connectionID, externalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrReservationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByConnection lists reservations of a connection, newest check-in first.
func (r *GormReservationRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, opts channel.ListOptions) ([]channel.Reservation, error) {
	opts.Validate()
	var reservationModels []models.ReservationModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("check_in DESC").
		Offset((opts.Page - 1) * opts.PageSize).
		Limit(opts.PageSize).
		Find(&reservationModels).Error; err != nil {
		return nil, err
	}

	reservations := make([]channel.Reservation, len(reservationModels))
	for i := range reservationModels {
		reservations[i] = *reservationModels[i].ToDomain()
	}
	return reservations, nil
}

// Ensure GormReservationRepository implements ReservationRepository
var _ channel.ReservationRepository = (*GormReservationRepository)(nil)
