package store

import (
	"context"
	"time"

	"vaultauth/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceStore struct{ db *gorm.DB }

func (s *Store) Devices() *DeviceStore { return &DeviceStore{db: s.DB} }

// Save upserts the device row, stamping UpdatedAt before the write. The
// write must affect exactly one row; anything else is reported as
// domain.ErrNotPersisted and leaves the in-memory device untouched apart
// from the timestamp, so the caller may retry.
func (d *DeviceStore) Save(ctx context.Context, device *domain.Device) error {
	device.UpdatedAt = time.Now().UTC()

	tx := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(device)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected != 1 {
		return domain.ErrNotPersisted
	}
	return nil
}

// Delete removes exactly the row matching the device id. After a nil
// return the caller must not reuse the device handle.
func (d *DeviceStore) Delete(ctx context.Context, deviceID string) error {
	tx := d.db.WithContext(ctx).Delete(&domain.Device{}, "id = ?", deviceID)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected != 1 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

func (d *DeviceStore) GetByID(ctx context.Context, deviceID string) (*domain.Device, error) {
	var dev domain.Device
	if err := d.db.WithContext(ctx).First(&dev, "id = ?", deviceID).Error; err != nil {
		return nil, err
	}
	return &dev, nil
}

// GetByIDForUpdate locks the device row for the rest of the transaction.
// Token issuance reads, conditionally generates, and writes the refresh
// token; two concurrent first issuances racing on the same device would
// otherwise each persist a different token.
func (d *DeviceStore) GetByIDForUpdate(ctx context.Context, deviceID string) (*domain.Device, error) {
	var dev domain.Device
	if err := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&dev, "id = ?", deviceID).Error; err != nil {
		return nil, err
	}
	return &dev, nil
}

// GetByRefreshTokenForUpdate is the only refresh-token lookup: resolving a
// device this way is always followed by a write, so the row lock is not
// optional.
func (d *DeviceStore) GetByRefreshTokenForUpdate(ctx context.Context, refreshToken string) (*domain.Device, error) {
	var dev domain.Device
	if err := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&dev, "refresh_token = ?", refreshToken).Error; err != nil {
		return nil, err
	}
	return &dev, nil
}

func (d *DeviceStore) ListByUser(ctx context.Context, userID string) ([]*domain.Device, error) {
	var devices []*domain.Device
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

func (d *DeviceStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	tx := d.db.WithContext(ctx).Delete(&domain.Device{}, "user_id = ?", userID)
	return tx.RowsAffected, tx.Error
}
