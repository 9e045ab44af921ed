package services

import (
	"context"
	"fmt"
	"log/slog"

	"room-bridge/backend/internal/store"
	"room-bridge/backend/internal/telemetry"
)

// TelemetryService serves the latest stored values.
type TelemetryService struct {
	l     *slog.Logger
	store store.Store
}

func NewTelemetryService(l *slog.Logger, st store.Store) *TelemetryService {
	return &TelemetryService{
		l:     l.With(slog.String("service", "telemetry")),
		store: st,
	}
}

func (s *TelemetryService) Sensor(ctx context.Context) (telemetry.SensorReading, error) {
	r, err := s.store.LatestSensor(ctx)
	if err != nil {
		return telemetry.SensorReading{}, fmt.Errorf("failed to read latest sensor reading: %w", err)
	}

	return r, nil
}

func (s *TelemetryService) Connection(ctx context.Context) (telemetry.ConnectionState, error) {
	c, err := s.store.LatestConnection(ctx)
	if err != nil {
		return telemetry.ConnectionState{}, fmt.Errorf("failed to read latest connection state: %w", err)
	}

	return c, nil
}

func (s *TelemetryService) System(ctx context.Context) (telemetry.SystemHealth, error) {
	h, err := s.store.LatestSystem(ctx)
	if err != nil {
		return telemetry.SystemHealth{}, fmt.Errorf("failed to read latest system health: %w", err)
	}

	return h, nil
}

// Devices returns the latest state of every device that has reported, ordered by device id.
func (s *TelemetryService) Devices(ctx context.Context) ([]telemetry.DeviceState, error) {
	d, err := s.store.LatestDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read device states: %w", err)
	}

	if d == nil {
		d = []telemetry.DeviceState{}
	}

	return d, nil
}

func (s *TelemetryService) Device(ctx context.Context, deviceID string) (telemetry.DeviceState, error) {
	d, err := s.store.LatestDevice(ctx, deviceID)
	if err != nil {
		return telemetry.DeviceState{}, fmt.Errorf("failed to read state of device %s: %w", deviceID, err)
	}

	return d, nil
}

// Snapshot returns the latest value of every class.
func (s *TelemetryService) Snapshot(ctx context.Context) (telemetry.Snapshot, error) {
	return store.Snapshot(ctx, s.store)
}
