package domain

import "errors"

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrNotPersisted   = errors.New("write did not affect exactly one row")
	ErrInvalidToken   = errors.New("invalid token")
	ErrStaleToken     = errors.New("token security stamp is stale")
)
