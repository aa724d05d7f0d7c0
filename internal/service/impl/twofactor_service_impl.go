package impl

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"vaultauth/internal/events"
	"vaultauth/internal/observability/metrics"
	"vaultauth/internal/random"
	"vaultauth/internal/service"
	"vaultauth/internal/store"
)

var _ service.TwoFactorService = (*TwoFactorServiceImpl)(nil)

// TwoFactorServiceImpl manages only the remember token that lets a
// verified device skip repeated two-factor prompts. The verification
// algorithms themselves (TOTP, WebAuthn, ...) live elsewhere.
type TwoFactorServiceImpl struct {
	store dataStore
	rand  random.Source
}

func NewTwoFactorServiceImpl(st *store.Store, src random.Source) *TwoFactorServiceImpl {
	return &TwoFactorServiceImpl{
		store: gormStoreAdapter{store: st},
		rand:  src,
	}
}

// RememberDevice mints and persists a fresh remember token. Never
// idempotent: the previous token, if any, stops working immediately.
func (t *TwoFactorServiceImpl) RememberDevice(ctx context.Context, deviceID string) (string, error) {
	result := "success"
	defer func() {
		metrics.RememberTokensTotal.WithLabelValues("issue", result).Inc()
	}()
	if deviceID == "" {
		result = "failure"
		return "", ErrInvalidDeviceID
	}

	var token string
	err := t.store.WithTx(ctx, func(tx storeTx) error {
		dev, err := tx.Devices().GetByIDForUpdate(ctx, deviceID)
		if err != nil {
			return translateDeviceErr(err)
		}
		tok, err := dev.RefreshTwoFactorRemember(t.rand)
		if err != nil {
			return err
		}
		if err := tx.Devices().Save(ctx, dev); err != nil {
			return err
		}
		token = tok
		return nil
	})
	if err != nil {
		result = "failure"
		return "", err
	}

	slog.Info("issued remember token", "event", events.RememberIssued{
		DeviceID: deviceID,
		At:       time.Now().UTC(),
	})
	return token, nil
}

// VerifyRemember checks a presented remember token against the stored one
// in constant time. A device without a remember token always fails.
func (t *TwoFactorServiceImpl) VerifyRemember(ctx context.Context, deviceID, token string) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	return t.store.WithTx(ctx, func(tx storeTx) error {
		dev, err := tx.Devices().GetByID(ctx, deviceID)
		if err != nil {
			return translateDeviceErr(err)
		}
		if dev.TwoFactorRemember == nil {
			return ErrNoRememberToken
		}
		if subtle.ConstantTimeCompare([]byte(*dev.TwoFactorRemember), []byte(token)) != 1 {
			return ErrRememberMismatch
		}
		return nil
	})
}

// Forget clears the device's remember token, forcing two-factor
// verification on the next login.
func (t *TwoFactorServiceImpl) Forget(ctx context.Context, deviceID string) error {
	result := "success"
	defer func() {
		metrics.RememberTokensTotal.WithLabelValues("forget", result).Inc()
	}()
	if deviceID == "" {
		result = "failure"
		return ErrInvalidDeviceID
	}

	err := t.store.WithTx(ctx, func(tx storeTx) error {
		dev, err := tx.Devices().GetByIDForUpdate(ctx, deviceID)
		if err != nil {
			return translateDeviceErr(err)
		}
		dev.DeleteTwoFactorRemember()
		return tx.Devices().Save(ctx, dev)
	})
	if err != nil {
		result = "failure"
		return err
	}

	slog.Info("forgot remember token", "event", events.RememberForgotten{
		DeviceID: deviceID,
		At:       time.Now().UTC(),
	})
	return nil
}

// ForgetAllForUser clears remember tokens on every device the user owns.
// Used on logout-all-devices and password change.
func (t *TwoFactorServiceImpl) ForgetAllForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyDeviceUserID
	}
	err := t.store.WithTx(ctx, func(tx storeTx) error {
		devices, err := tx.Devices().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, dev := range devices {
			if dev.TwoFactorRemember == nil {
				continue
			}
			dev.DeleteTwoFactorRemember()
			if err := tx.Devices().Save(ctx, dev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("forgot remember tokens for user", "user_id", userID)
	return nil
}
