package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vaultauth/internal/domain"
	"vaultauth/internal/events"
	"vaultauth/internal/observability/metrics"
	"vaultauth/internal/service"
	"vaultauth/internal/store"

	"github.com/google/uuid"
)

var _ service.DeviceService = (*DeviceServiceImpl)(nil)

type DeviceServiceImpl struct {
	store dataStore
	now   func() time.Time
}

func NewDeviceServiceImpl(st *store.Store) *DeviceServiceImpl {
	return &DeviceServiceImpl{
		store: gormStoreAdapter{store: st},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Register creates the device record for a client installation's first
// authentication: empty refresh token, no push token, no remember token.
func (d *DeviceServiceImpl) Register(ctx context.Context, userID, name string, deviceType int) (*domain.Device, error) {
	result := "success"
	defer func() {
		metrics.DevicesRegisteredTotal.WithLabelValues(result).Inc()
	}()

	if strings.TrimSpace(userID) == "" {
		result = "failure"
		return nil, ErrEmptyDeviceUserID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		result = "failure"
		return nil, ErrEmptyDeviceName
	}

	device := domain.NewDevice(uuid.NewString(), userID, name, deviceType)
	if err := d.store.WithTx(ctx, func(tx storeTx) error {
		return tx.Devices().Save(ctx, device)
	}); err != nil {
		result = "failure"
		return nil, err
	}

	slog.Info("registered device", "event", events.DeviceRegistered{
		DeviceID: device.ID,
		UserID:   device.UserID,
		At:       device.CreatedAt,
	})
	return device, nil
}

func (d *DeviceServiceImpl) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	if deviceID == "" {
		return nil, ErrInvalidDeviceID
	}
	var device *domain.Device
	err := d.store.WithTx(ctx, func(tx storeTx) error {
		dev, err := tx.Devices().GetByID(ctx, deviceID)
		if err != nil {
			return translateDeviceErr(err)
		}
		device = dev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (d *DeviceServiceImpl) List(ctx context.Context, userID string) ([]*domain.Device, error) {
	if userID == "" {
		return nil, ErrEmptyDeviceUserID
	}
	var devices []*domain.Device
	err := d.store.WithTx(ctx, func(tx storeTx) error {
		out, err := tx.Devices().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		devices = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (d *DeviceServiceImpl) Rename(ctx context.Context, deviceID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyDeviceName
	}
	return d.mutate(ctx, deviceID, func(dev *domain.Device) {
		dev.Name = name
	})
}

func (d *DeviceServiceImpl) UpdatePushToken(ctx context.Context, deviceID, pushToken string) error {
	pushToken = strings.TrimSpace(pushToken)
	if pushToken == "" {
		return ErrEmptyPushToken
	}
	return d.mutate(ctx, deviceID, func(dev *domain.Device) {
		dev.PushToken = &pushToken
	})
}

func (d *DeviceServiceImpl) ClearPushToken(ctx context.Context, deviceID string) error {
	return d.mutate(ctx, deviceID, func(dev *domain.Device) {
		dev.PushToken = nil
	})
}

// Remove physically deletes the device row; there is no soft-delete state.
func (d *DeviceServiceImpl) Remove(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	var userID string
	err := d.store.WithTx(ctx, func(tx storeTx) error {
		dev, err := tx.Devices().GetByID(ctx, deviceID)
		if err != nil {
			return translateDeviceErr(err)
		}
		userID = dev.UserID
		return tx.Devices().Delete(ctx, deviceID)
	})
	if err != nil {
		return err
	}

	slog.Info("removed device", "event", events.DeviceRemoved{
		DeviceID: deviceID,
		UserID:   userID,
		At:       d.now(),
	})
	return nil
}

// RemoveAllForUser revokes every session for the user, e.g. on account
// deletion. Returns the number of deleted devices.
func (d *DeviceServiceImpl) RemoveAllForUser(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrEmptyDeviceUserID
	}
	var deleted int64
	err := d.store.WithTx(ctx, func(tx storeTx) error {
		n, err := tx.Devices().DeleteAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("removed all devices for user", "user_id", userID, "count", deleted)
	return deleted, nil
}

func (d *DeviceServiceImpl) mutate(ctx context.Context, deviceID string, apply func(dev *domain.Device)) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	return d.store.WithTx(ctx, func(tx storeTx) error {
		dev, err := tx.Devices().GetByIDForUpdate(ctx, deviceID)
		if err != nil {
			return translateDeviceErr(err)
		}
		apply(dev)
		return tx.Devices().Save(ctx, dev)
	})
}
