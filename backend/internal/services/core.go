package services

import (
	"context"
	"log/slog"

	"room-bridge/backend/internal/hub"
	"room-bridge/backend/internal/store"
	"room-bridge/backend/pkg/utils"
)

// CoreService reports the health of the bridge's dependencies.
type CoreService struct {
	l      *slog.Logger
	broker Broker
	store  store.Store
	hub    *hub.Hub
}

func NewCoreService(l *slog.Logger, st store.Store, broker Broker, h *hub.Hub) *CoreService {
	return &CoreService{
		l:      l.With(slog.String("service", "core")),
		broker: broker,
		store:  st,
		hub:    h,
	}
}

type HealthStatus struct {
	Database    bool
	MQTT        bool
	Subscribers int
}

// Healthy reports whether both the database and the broker session are usable.
func (h HealthStatus) Healthy() bool {
	return h.Database && h.MQTT
}

func (s *CoreService) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Database: true,
		MQTT:     true,
	}

	if err := s.store.Ping(ctx); err != nil {
		s.l.Error("database unreachable", utils.ErrAttr(err))
		status.Database = false
	}

	if !s.broker.IsConnected() {
		s.l.Error("mqtt broker unreachable")
		status.MQTT = false
	}

	if s.hub != nil {
		status.Subscribers = s.hub.Subscribers()
	}

	return status
}
