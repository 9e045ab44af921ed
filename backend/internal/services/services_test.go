package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"room-bridge/backend/internal/hub"
	"room-bridge/backend/internal/store"
	"room-bridge/backend/internal/telemetry"
)

type fakeBroker bool

func (b fakeBroker) IsConnected() bool { return bool(b) }

type unreachableStore struct {
	*store.Memory
}

func (unreachableStore) Ping(context.Context) error { return errors.New("connection refused") }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		store  store.Store
		broker Broker
		want   HealthStatus
	}{
		{name: "healthy", store: store.NewMemory(), broker: fakeBroker(true), want: HealthStatus{Database: true, MQTT: true}},
		{name: "broker down", store: store.NewMemory(), broker: fakeBroker(false), want: HealthStatus{Database: true}},
		{name: "database down", store: unreachableStore{store.NewMemory()}, broker: fakeBroker(true), want: HealthStatus{MQTT: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := hub.New(discardLogger(), func(ctx context.Context) (telemetry.Snapshot, error) {
				return store.Snapshot(ctx, tt.store)
			}, hub.Options{})
			t.Cleanup(h.Close)

			svc := NewServices(discardLogger(), tt.store, tt.broker, h, nil)

			got := svc.Core.Health(context.Background())
			if got != tt.want {
				t.Errorf("Health() = %+v, want %+v", got, tt.want)
			}

			if got.Healthy() != (tt.want.Database && tt.want.MQTT) {
				t.Errorf("Healthy() = %v", got.Healthy())
			}
		})
	}
}

func TestTelemetryDevicesNeverNil(t *testing.T) {
	t.Parallel()

	svc := NewTelemetryService(discardLogger(), store.NewMemory())

	devices, err := svc.Devices(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if devices == nil {
		t.Error("Devices() returned nil, want empty slice")
	}

	d, err := svc.Device(context.Background(), "fan")
	if err != nil || d.State != telemetry.StateUnknown {
		t.Errorf("Device(fan) = %+v, %v", d, err)
	}
}
