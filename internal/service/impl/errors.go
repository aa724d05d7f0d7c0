package impl

import "errors"

var (
	ErrEmptyDeviceUserID  = errors.New("empty device user id")
	ErrEmptyDeviceName    = errors.New("empty device name")
	ErrInvalidDeviceID    = errors.New("invalid device id")
	ErrEmptyPushToken     = errors.New("empty push token")
	ErrEmptySigningSecret = errors.New("empty signing secret")
	ErrRememberMismatch   = errors.New("remember token mismatch")
	ErrNoRememberToken    = errors.New("device has no remember token")
)
