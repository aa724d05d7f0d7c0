package events

import "time"

type RememberIssued struct {
	DeviceID string    `json:"deviceId"`
	At       time.Time `json:"at"`
}

type RememberForgotten struct {
	DeviceID string    `json:"deviceId"`
	At       time.Time `json:"at"`
}
