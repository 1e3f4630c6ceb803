package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/crypto"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/persistence/models"
)

// GormConnectionRepository implements ConnectionRepository using GORM.
// Credential bags are sealed with the injected cipher before they touch the
// database and opened on the way out; plaintext credentials never persist.
type GormConnectionRepository struct {
	db     *gorm.DB
	cipher *crypto.Cipher
}

// NewGormConnectionRepository creates a new GormConnectionRepository.
func NewGormConnectionRepository(db *gorm.DB, cipher *crypto.Cipher) *GormConnectionRepository {
	return &GormConnectionRepository{db: db, cipher: cipher}
}

// FindByID finds a connection by its ID, decrypting the credential bag.
func (r *GormConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*channel.Connection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrConnectionNotFound
		}
		return nil, err
	}
	return r.toDomain(&model)
}

// FindDue returns syncable connections whose next_sync_at has passed.
// Connections already claimed by a running sync are skipped.
func (r *GormConnectionRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]channel.Connection, error) {
	var connectionModels []models.ConnectionModel
	query := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			string(channel.ConnectionStatusConnected),
			string(channel.ConnectionStatusActive),
		}).
		Where("sync_running = ?", false).
		Where("next_sync_at IS NULL OR next_sync_at <= ?", now).
		Order("next_sync_at ASC NULLS FIRST")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&connectionModels).Error; err != nil {
		return nil, err
	}

	connections := make([]channel.Connection, 0, len(connectionModels))
	for i := range connectionModels {
		conn, err := r.toDomain(&connectionModels[i])
		if err != nil {
			return nil, err
		}
		connections = append(connections, *conn)
	}
	return connections, nil
}

// Save creates or updates a connection, sealing the credential bag.
func (r *GormConnectionRepository) Save(ctx context.Context, conn *channel.Connection) error {
	model := &models.ConnectionModel{}
	model.FromDomain(conn)

	raw, err := json.Marshal(conn.Credentials)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	sealed, err := r.cipher.Seal(raw)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	model.CredentialsSealed = sealed

	return r.db.WithContext(ctx).Save(model).Error
}

// BeginSync atomically claims the connection for a sync attempt. The
// compare-and-swap on sync_running guarantees at most one sync per
// connection across all instances sharing the database.
func (r *GormConnectionRepository) BeginSync(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.ConnectionModel{}).
		Where("id = ? AND sync_running = ?", id, false).
		Updates(map[string]any{
			"sync_running": true,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the row is missing or a sync is already in flight.
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.ConnectionModel{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return channel.ErrConnectionNotFound
		}
		return channel.ErrSyncAlreadyRunning
	}
	return nil
}

// EndSync releases the claim taken by BeginSync.
func (r *GormConnectionRepository) EndSync(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ConnectionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sync_running": false,
			"updated_at":   time.Now(),
		}).Error
}

// toDomain converts a model and opens its sealed credential bag.
func (r *GormConnectionRepository) toDomain(model *models.ConnectionModel) (*channel.Connection, error) {
	conn := model.ToDomain()
	if model.CredentialsSealed == "" {
		conn.Credentials = channel.Credentials{}
		return conn, nil
	}
	raw, err := r.cipher.Open(model.CredentialsSealed)
	if err != nil {
		return nil, fmt.Errorf("open credentials for connection %s: %w", model.ID, err)
	}
	if err := json.Unmarshal(raw, &conn.Credentials); err != nil {
		return nil, fmt.Errorf("decode credentials for connection %s: %w", model.ID, err)
	}
	return conn, nil
}

// Ensure GormConnectionRepository implements ConnectionRepository
var _ channel.ConnectionRepository = (*GormConnectionRepository)(nil)
