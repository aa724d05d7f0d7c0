package events

import "time"

type DeviceRegistered struct {
	DeviceID string    `json:"deviceId"`
	UserID   string    `json:"userId"`
	At       time.Time `json:"at"`
}

type DeviceRemoved struct {
	DeviceID string    `json:"deviceId"`
	UserID   string    `json:"userId"`
	At       time.Time `json:"at"`
}
