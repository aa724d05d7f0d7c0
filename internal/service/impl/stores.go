package impl

import (
	"context"
	"errors"

	"vaultauth/internal/domain"
	"vaultauth/internal/store"
)

// Narrow store interfaces so service tests can run against in-memory
// implementations. The gorm-backed *store.Store satisfies them through the
// adapter below.

type dataStore interface {
	WithTx(ctx context.Context, fn func(tx storeTx) error) error
}

type storeTx interface {
	Devices() deviceStore
	Users() userReader
	Organizations() orgReader
}

type deviceStore interface {
	Save(ctx context.Context, device *domain.Device) error
	Delete(ctx context.Context, deviceID string) error
	GetByID(ctx context.Context, deviceID string) (*domain.Device, error)
	GetByIDForUpdate(ctx context.Context, deviceID string) (*domain.Device, error)
	GetByRefreshTokenForUpdate(ctx context.Context, refreshToken string) (*domain.Device, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Device, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

type userReader interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}

type orgReader interface {
	ListByUser(ctx context.Context, userID string) ([]domain.UserOrganization, error)
}

type gormStoreAdapter struct {
	store *store.Store
}

func (g gormStoreAdapter) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	if g.store == nil {
		return errors.New("nil store")
	}
	return g.store.WithTx(ctx, func(tx *store.Store) error {
		return fn(gormTxAdapter{tx: tx})
	})
}

type gormTxAdapter struct {
	tx *store.Store
}

func (g gormTxAdapter) Devices() deviceStore { return g.tx.Devices() }

func (g gormTxAdapter) Users() userReader { return g.tx.Users() }

func (g gormTxAdapter) Organizations() orgReader { return g.tx.Organizations() }

func translateDeviceErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrRecordNotFound) {
		return domain.ErrDeviceNotFound
	}
	return err
}
