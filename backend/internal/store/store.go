// Package store keeps the latest known record per entity class. Reads on an empty store return the
// documented defaults instead of an error.
package store

import (
	"context"
	"errors"
	"fmt"

	"room-bridge/backend/internal/telemetry"
)

// ErrUnsupportedEvent is returned by Save for events that carry no storable payload.
var ErrUnsupportedEvent = errors.New("unsupported event")

// Store persists sensor readings, device states, connection states and system health records.
// Every Save overwrites the class's latest value; reads return the most recently written record.
type Store interface {
	SaveSensor(ctx context.Context, r telemetry.SensorReading) error
	SaveDevice(ctx context.Context, d telemetry.DeviceState) error
	SaveConnection(ctx context.Context, c telemetry.ConnectionState) error
	SaveSystem(ctx context.Context, s telemetry.SystemHealth) error

	LatestSensor(ctx context.Context) (telemetry.SensorReading, error)
	LatestDevice(ctx context.Context, deviceID string) (telemetry.DeviceState, error)
	LatestDevices(ctx context.Context) ([]telemetry.DeviceState, error)
	LatestConnection(ctx context.Context) (telemetry.ConnectionState, error)
	LatestSystem(ctx context.Context) (telemetry.SystemHealth, error)

	Ping(ctx context.Context) error
	Close() error
}

// Save writes the payload of e to the matching class.
func Save(ctx context.Context, s Store, e telemetry.Event) error {
	switch {
	case e.Kind == telemetry.KindSensor && e.Sensor != nil:
		return s.SaveSensor(ctx, *e.Sensor)
	case e.Kind == telemetry.KindDevice && e.Device != nil:
		return s.SaveDevice(ctx, *e.Device)
	case e.Kind == telemetry.KindConnection && e.Connection != nil:
		return s.SaveConnection(ctx, *e.Connection)
	case e.Kind == telemetry.KindSystem && e.System != nil:
		return s.SaveSystem(ctx, *e.System)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, e.Kind)
	}
}

// Snapshot reads the latest value of every class.
func Snapshot(ctx context.Context, s Store) (telemetry.Snapshot, error) {
	var (
		snap telemetry.Snapshot
		err  error
	)

	if snap.Sensor, err = s.LatestSensor(ctx); err != nil {
		return telemetry.Snapshot{}, err
	}

	if snap.Connection, err = s.LatestConnection(ctx); err != nil {
		return telemetry.Snapshot{}, err
	}

	if snap.System, err = s.LatestSystem(ctx); err != nil {
		return telemetry.Snapshot{}, err
	}

	if snap.Devices, err = s.LatestDevices(ctx); err != nil {
		return telemetry.Snapshot{}, err
	}

	return snap, nil
}

func defaultConnection() telemetry.ConnectionState {
	return telemetry.ConnectionState{Status: telemetry.StatusOffline}
}

func defaultDevice(deviceID string) telemetry.DeviceState {
	return telemetry.DeviceState{Device: deviceID, State: telemetry.StateUnknown}
}
