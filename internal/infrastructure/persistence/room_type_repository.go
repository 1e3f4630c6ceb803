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

// GormRoomTypeRepository implements RoomTypeRepository using GORM.
type GormRoomTypeRepository struct {
	db *gorm.DB
}

// NewGormRoomTypeRepository creates a new GormRoomTypeRepository.
func NewGormRoomTypeRepository(db *gorm.DB) *GormRoomTypeRepository {
	return &GormRoomTypeRepository{db: db}
}

// Upsert creates or updates a room type keyed by (connection_id, external_id).
func (r *GormRoomTypeRepository) Upsert(ctx context.Context, rt *channel.RoomType) error {
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	now := time.Now()
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = now
	}
	rt.UpdatedAt = now

	model := &models.RoomTypeModel{}
	model.FromDomain(rt)

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"property_id", "property_external_id", "name", "max_guests",
				"bedrooms", "bathrooms", "base_price", "currency", "unit_count",
				"raw_data", "updated_at",
			}),
		}).
		Create(model).Error; err != nil {
		return err
	}

	// Same identity read-back as the property upsert: replays keep the stored
	// row's id so calendar rows never reference a phantom room type.
	var stored models.RoomTypeModel
	if err := r.db.WithContext(ctx).
		Select("id", "created_at").
		First(&stored, "connection_id = ? AND external_id = ?", rt.ConnectionID, rt.ExternalID).Error; err != nil {
		return err
	}
	rt.ID = stored.ID
	rt.CreatedAt = stored.CreatedAt
	return nil
}

// FindByExternalID finds a room type by its external ID within a connection.
func (r *GormRoomTypeRepository) FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*channel.RoomType, error) {
	var model models.RoomTypeModel
	if err := r.db.WithContext(ctx).
		First(&model, "connection_id = ? AND external_id = ?", connectionID, externalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrRoomTypeNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByProperty lists all room types under a property.
func (r *GormRoomTypeRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]channel.RoomType, error) {
	var roomTypeModels []models.RoomTypeModel
	if err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("name ASC").
		Find(&roomTypeModels).Error; err != nil {
		return nil, err
	}

	roomTypes := make([]channel.RoomType, len(roomTypeModels))
	for i := range roomTypeModels {
		roomTypes[i] = *roomTypeModels[i].ToDomain()
	}
	return roomTypes, nil
}

// Ensure GormRoomTypeRepository implements RoomTypeRepository
var _ channel.RoomTypeRepository = (*GormRoomTypeRepository)(nil)
