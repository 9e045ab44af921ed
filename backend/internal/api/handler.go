package api

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"room-bridge/backend/internal/services"
)

const (
	CoreGroup      = "Core"
	TelemetryGroup = "Telemetry"
	DeviceGroup    = "Devices"
	CommandGroup   = "Commands"
	LiveGroup      = "Live"
)

// LiveOptions tunes the websocket live channel.
type LiveOptions struct {
	// PingInterval is how often the server pings the viewer; a missing pong within twice the interval
	// closes the connection.
	PingInterval time.Duration
	// CheckOrigin overrides the default check, which accepts same-host origins and requests without
	// an Origin header.
	CheckOrigin func(origin string) bool
}

// Handler represents the bridge API handler.
type Handler struct {
	l        *slog.Logger
	svc      *services.Services
	live     LiveOptions
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler.
func NewHandler(l *slog.Logger, svc *services.Services, live LiveOptions) *Handler {
	if live.PingInterval <= 0 {
		live.PingInterval = defaultPingInterval
	}

	h := &Handler{
		l:    l.With(slog.String("component", "api")),
		svc:  svc,
		live: live,
	}

	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
	}

	return h
}
