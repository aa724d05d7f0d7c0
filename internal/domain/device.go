package domain

import (
	"encoding/base64"
	"fmt"
	"time"

	"vaultauth/internal/random"
)

const (
	// Sizes of the raw secrets before encoding. The refresh token is the
	// long-lived bearer secret identifying a device session; the remember
	// token lets a device skip repeated two-factor prompts.
	refreshTokenBytes  = 64
	rememberTokenBytes = 180
)

type Device struct {
	ID                string    `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	UserID            string    `gorm:"type:uuid;index" db:"user_id" json:"userId"`
	Name              string    `gorm:"type:text;not null" db:"name" json:"name"`
	DeviceType        int       `gorm:"not null" db:"device_type" json:"deviceType"`
	PushToken         *string   `gorm:"type:text" db:"push_token" json:"pushToken"`
	RefreshToken      string    `gorm:"type:text;not null;index:ix_devices_refresh_token" db:"refresh_token" json:"-"`
	TwoFactorRemember *string   `gorm:"type:text" db:"two_factor_remember" json:"-"`
	CreatedAt         time.Time `gorm:"not null" db:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" db:"updated_at"`
}

func (Device) TableName() string { return "devices" }

// NewDevice builds a device that has never issued tokens: empty refresh
// token, no push token, no remember token.
func NewDevice(id, userID, name string, deviceType int) *Device {
	now := time.Now().UTC()
	return &Device{
		ID:         id,
		UserID:     userID,
		Name:       name,
		DeviceType: deviceType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// EnsureRefreshToken returns the device's refresh token, generating it on
// first use. The token is issued exactly once; later calls reuse it, since
// regenerating would silently invalidate other clients holding the same
// token. UpdatedAt is bumped either way because this call is always part of
// minting a fresh access token.
func (d *Device) EnsureRefreshToken(src random.Source) (string, error) {
	if d.RefreshToken == "" {
		raw, err := src.Bytes(refreshTokenBytes)
		if err != nil {
			return "", fmt.Errorf("generate refresh token: %w", err)
		}
		d.RefreshToken = base64.URLEncoding.EncodeToString(raw)
	}
	d.UpdatedAt = time.Now().UTC()
	return d.RefreshToken, nil
}

// RefreshTwoFactorRemember always mints a brand-new remember token,
// discarding any previous one. It is only called right after a successful
// two-factor verification, so there is never an existing token worth keeping.
func (d *Device) RefreshTwoFactorRemember(src random.Source) (string, error) {
	raw, err := src.Bytes(rememberTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate remember token: %w", err)
	}
	token := base64.StdEncoding.EncodeToString(raw)
	d.TwoFactorRemember = &token
	return token, nil
}

// DeleteTwoFactorRemember clears the remember token so the next login must
// pass two-factor verification again. Persistence is the caller's job.
func (d *Device) DeleteTwoFactorRemember() {
	d.TwoFactorRemember = nil
}
