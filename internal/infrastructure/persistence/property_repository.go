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

// GormPropertyRepository implements PropertyRepository using GORM.
type GormPropertyRepository struct {
	db *gorm.DB
}

// NewGormPropertyRepository creates a new GormPropertyRepository.
func NewGormPropertyRepository(db *gorm.DB) *GormPropertyRepository {
	return &GormPropertyRepository{db: db}
}

// Upsert creates or updates a property keyed by (connection_id, external_id).
// Replays converge on the same row; the original id and created_at survive.
func (r *GormPropertyRepository) Upsert(ctx context.Context, p *channel.Property) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	model := &models.PropertyModel{}
	model.FromDomain(p)

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "address", "city", "country", "currency",
				"check_in_time", "check_out_time", "amenities", "raw_data", "updated_at",
			}),
		}).
		Create(model).Error; err != nil {
		return err
	}

	// A conflicting replay updates the stored row but leaves the freshly
	// minted id on the in-memory entity. Read the surviving identity back so
	// callers stamp child rows with the stored id, not a phantom one.
	var stored models.PropertyModel
	if err := r.db.WithContext(ctx).
		Select("id", "created_at").
		First(&stored, "connection_id = ? AND external_id = ?", p.ConnectionID, p.ExternalID).Error; err != nil {
		return err
	}
	p.ID = stored.ID
	p.CreatedAt = stored.CreatedAt
	return nil
}

// FindByExternalID finds a property by its external ID within a connection.
func (r *GormPropertyRepository) FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*channel.Property, error) {
	var model models.PropertyModel
	if err := r.db.WithContext(ctx).
		First(&model, "connection_id = ? AND external_id = ?", connectionID, externalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrPropertyNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByConnection lists all properties of a connection.
func (r *GormPropertyRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]channel.Property, error) {
	var propertyModels []models.PropertyModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("name ASC").
		Find(&propertyModels).Error; err != nil {
		return nil, err
	}

	properties := make([]channel.Property, len(propertyModels))
	for i := range propertyModels {
		properties[i] = *propertyModels[i].ToDomain()
	}
	return properties, nil
}

// Ensure GormPropertyRepository implements PropertyRepository
var _ channel.PropertyRepository = (*GormPropertyRepository)(nil)
