package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"room-bridge/backend/internal/telemetry"
)

// Memory is a Store that keeps only the latest values in process memory.
type Memory struct {
	mu         sync.RWMutex
	sensor     telemetry.SensorReading
	connection telemetry.ConnectionState
	system     telemetry.SystemHealth
	devices    map[string]telemetry.DeviceState
	hasConn    bool
}

func NewMemory() *Memory {
	return &Memory{devices: make(map[string]telemetry.DeviceState)}
}

func (m *Memory) SaveSensor(_ context.Context, r telemetry.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sensor = r

	return nil
}

func (m *Memory) SaveDevice(_ context.Context, d telemetry.DeviceState) error {
	if d.Device == "" {
		return errors.New("device id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.devices[d.Device] = d

	return nil
}

func (m *Memory) SaveConnection(_ context.Context, c telemetry.ConnectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connection = c
	m.hasConn = true

	return nil
}

func (m *Memory) SaveSystem(_ context.Context, s telemetry.SystemHealth) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.system = s

	return nil
}

func (m *Memory) LatestSensor(context.Context) (telemetry.SensorReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sensor, nil
}

func (m *Memory) LatestDevice(_ context.Context, deviceID string) (telemetry.DeviceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if d, ok := m.devices[deviceID]; ok {
		return d, nil
	}

	return defaultDevice(deviceID), nil
}

func (m *Memory) LatestDevices(context.Context) ([]telemetry.DeviceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]telemetry.DeviceState, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}

	slices.SortFunc(devices, func(a, b telemetry.DeviceState) int { return strings.Compare(a.Device, b.Device) })

	return devices, nil
}

func (m *Memory) LatestConnection(context.Context) (telemetry.ConnectionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.hasConn {
		return defaultConnection(), nil
	}

	return m.connection, nil
}

func (m *Memory) LatestSystem(context.Context) (telemetry.SystemHealth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.system, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
