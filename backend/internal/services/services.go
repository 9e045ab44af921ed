package services

import (
	"log/slog"

	"room-bridge/backend/internal/command"
	"room-bridge/backend/internal/hub"
	"room-bridge/backend/internal/store"
)

// Broker reports whether the broker session is usable.
type Broker interface {
	IsConnected() bool
}

// Services holds all service instances used by the HTTP handlers.
type Services struct {
	l         *slog.Logger
	Core      *CoreService
	Telemetry *TelemetryService
	Commands  *command.Gateway
	Hub       *hub.Hub
}

// NewServices creates a new services instance.
func NewServices(l *slog.Logger, st store.Store, broker Broker, h *hub.Hub, gw *command.Gateway) *Services {
	return &Services{
		l:         l.With(slog.String("module", "services")),
		Core:      NewCoreService(l, st, broker, h),
		Telemetry: NewTelemetryService(l, st),
		Commands:  gw,
		Hub:       h,
	}
}
