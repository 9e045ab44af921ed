package types

import (
	"room-bridge/backend/internal/command"
)

// HealthResponse reports the reachability of the bridge's dependencies.
type HealthResponse struct {
	// Database is true when the state store answers a ping
	Database bool `json:"database"`
	// MQTT is true while the broker session is connected
	MQTT bool `json:"mqtt"`
	// Subscribers is the number of live channel connections
	Subscribers int `json:"subscribers"`
}

// CommandStatus is the outcome of a command request.
type CommandStatus string

const (
	CommandStatusSent CommandStatus = "sent"
)

// CommandResponse echoes the normalized payload that was published.
type CommandResponse struct {
	Status  CommandStatus   `json:"status"`
	Payload command.Command `json:"payload"`
}
