package service

import (
	"context"

	"vaultauth/internal/domain"
)

type DeviceService interface {
	Register(ctx context.Context, userID, name string, deviceType int) (*domain.Device, error)
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	List(ctx context.Context, userID string) ([]*domain.Device, error)
	Rename(ctx context.Context, deviceID, name string) error
	UpdatePushToken(ctx context.Context, deviceID, pushToken string) error
	ClearPushToken(ctx context.Context, deviceID string) error
	// Remove physically deletes the device row; the handle must not be
	// used after a nil return.
	Remove(ctx context.Context, deviceID string) error
	RemoveAllForUser(ctx context.Context, userID string) (int64, error)
}
