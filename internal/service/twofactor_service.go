package service

import "context"

type TwoFactorService interface {
	// RememberDevice mints a fresh remember token for the device right
	// after a successful two-factor verification. Always generates a new
	// token; any previous one stops working.
	RememberDevice(ctx context.Context, deviceID string) (string, error)
	VerifyRemember(ctx context.Context, deviceID, token string) error
	Forget(ctx context.Context, deviceID string) error
	ForgetAllForUser(ctx context.Context, userID string) error
}
