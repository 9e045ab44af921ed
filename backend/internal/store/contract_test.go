package store

import (
	"context"
	"testing"
	"time"

	"room-bridge/backend/internal/telemetry"
)

//nolint:gochecknoglobals // Test fixture
var t0 = time.Date(2025, 3, 14, 9, 0, 0, 123456000, time.UTC)

// testStoreContract exercises the behaviour every Store implementation must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("defaults when empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		sensor, err := s.LatestSensor(ctx)
		if err != nil || sensor != (telemetry.SensorReading{}) {
			t.Errorf("LatestSensor() = %+v, %v; want zero value", sensor, err)
		}

		conn, err := s.LatestConnection(ctx)
		if err != nil || conn.Status != telemetry.StatusOffline {
			t.Errorf("LatestConnection() = %+v, %v; want offline", conn, err)
		}

		sys, err := s.LatestSystem(ctx)
		if err != nil || sys != (telemetry.SystemHealth{}) {
			t.Errorf("LatestSystem() = %+v, %v; want zero value", sys, err)
		}

		dev, err := s.LatestDevice(ctx, "fan")
		if err != nil || dev.Device != "fan" || dev.State != telemetry.StateUnknown {
			t.Errorf("LatestDevice() = %+v, %v; want fan/unknown", dev, err)
		}

		devices, err := s.LatestDevices(ctx)
		if err != nil || devices == nil || len(devices) != 0 {
			t.Errorf("LatestDevices() = %v, %v; want empty slice", devices, err)
		}
	})

	t.Run("latest write wins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := range 3 {
			r := telemetry.SensorReading{Temperature: 20 + float64(i), Humidity: 40, ObservedAt: t0.Add(time.Duration(i) * time.Second)}
			if err := s.SaveSensor(ctx, r); err != nil {
				t.Fatalf("SaveSensor() error = %v", err)
			}
		}

		got, err := s.LatestSensor(ctx)
		if err != nil {
			t.Fatalf("LatestSensor() error = %v", err)
		}

		if got.Temperature != 22 || got.Humidity != 40 || !got.ObservedAt.Equal(t0.Add(2*time.Second)) {
			t.Errorf("LatestSensor() = %+v", got)
		}

		// Arrival order wins even when the observation time goes backwards
		if err := s.SaveConnection(ctx, telemetry.ConnectionState{Status: "online", ObservedAt: t0.Add(time.Hour)}); err != nil {
			t.Fatalf("SaveConnection() error = %v", err)
		}

		if err := s.SaveConnection(ctx, telemetry.ConnectionState{Status: "reconnecting", ObservedAt: t0}); err != nil {
			t.Fatalf("SaveConnection() error = %v", err)
		}

		conn, err := s.LatestConnection(ctx)
		if err != nil || conn.Status != "reconnecting" {
			t.Errorf("LatestConnection() = %+v, %v; want reconnecting", conn, err)
		}

		health := telemetry.SystemHealth{UptimeMs: 1234, FreeHeapBytes: 4096, SignalStrength: -67.5, ObservedAt: t0}
		if err := s.SaveSystem(ctx, health); err != nil {
			t.Fatalf("SaveSystem() error = %v", err)
		}

		sys, err := s.LatestSystem(ctx)
		if err != nil || sys.UptimeMs != 1234 || sys.FreeHeapBytes != 4096 || sys.SignalStrength != -67.5 {
			t.Errorf("LatestSystem() = %+v, %v", sys, err)
		}
	})

	t.Run("devices keyed by id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		events := []telemetry.DeviceState{
			{Device: "humidifier", State: "off", ObservedAt: t0},
			{Device: "fan", State: "on", ObservedAt: t0},
			{Device: "humidifier", State: "on", ObservedAt: t0.Add(time.Second)},
			{Device: "fan", State: "off", ObservedAt: t0.Add(2 * time.Second)},
			{Device: "humidifier", State: "off", ObservedAt: t0.Add(3 * time.Second)},
		}

		for _, e := range events {
			if err := s.SaveDevice(ctx, e); err != nil {
				t.Fatalf("SaveDevice() error = %v", err)
			}
		}

		if err := s.SaveDevice(ctx, telemetry.DeviceState{State: "on"}); err == nil {
			t.Error("SaveDevice() expected error for empty device id")
		}

		hum, err := s.LatestDevice(ctx, "humidifier")
		if err != nil || hum.State != "off" || !hum.ObservedAt.Equal(t0.Add(3*time.Second)) {
			t.Errorf("LatestDevice(humidifier) = %+v, %v", hum, err)
		}

		devices, err := s.LatestDevices(ctx)
		if err != nil {
			t.Fatalf("LatestDevices() error = %v", err)
		}

		if len(devices) != 2 || devices[0].Device != "fan" || devices[0].State != "off" ||
			devices[1].Device != "humidifier" || devices[1].State != "off" {
			t.Errorf("LatestDevices() = %+v", devices)
		}
	})

	t.Run("save dispatch and snapshot", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		evs := []telemetry.Event{
			telemetry.NewSensorEvent(telemetry.SensorReading{Temperature: 23.5, Humidity: 41, ObservedAt: t0}),
			telemetry.NewConnectionEvent(telemetry.ConnectionState{Status: "online", ObservedAt: t0}),
			telemetry.NewSystemEvent(telemetry.SystemHealth{SignalStrength: -60, ObservedAt: t0}),
			telemetry.NewDeviceEvent(telemetry.DeviceState{Device: "fan", State: "on", ObservedAt: t0}),
		}

		for _, e := range evs {
			if err := Save(ctx, s, e); err != nil {
				t.Fatalf("Save(%s) error = %v", e.Kind, err)
			}
		}

		if err := Save(ctx, s, telemetry.Event{Kind: telemetry.KindSensor}); err == nil {
			t.Error("Save() expected error for event without payload")
		}

		snap, err := Snapshot(ctx, s)
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}

		if snap.Sensor.Temperature != 23.5 || snap.Connection.Status != "online" || snap.System.SignalStrength != -60 {
			t.Errorf("Snapshot() = %+v", snap)
		}

		if len(snap.Devices) != 1 || snap.Devices[0].State != "on" {
			t.Errorf("Snapshot().Devices = %+v", snap.Devices)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	testStoreContract(t, func(*testing.T) Store { return NewMemory() })
}
