// Package telemetry defines the bridge's internal event envelope and the per-topic normalization of
// raw broker payloads into it.
package telemetry

import (
	"encoding/json"
	"errors"
	"time"
)

// Kind identifies the entity class an Event carries.
type Kind string

const (
	KindSensor     Kind = "sensor"
	KindDevice     Kind = "device"
	KindConnection Kind = "connection"
	KindSystem     Kind = "system"
	KindSnapshot   Kind = "snapshot"
)

const (
	// StatusOffline is reported when no usable connection status was received.
	StatusOffline = "offline"
	// StateUnknown is reported for devices that never published a state.
	StateUnknown = "unknown"
)

var errEmptyEvent = errors.New("event has no payload for its kind")

// SensorReading is the latest temperature/humidity sample.
type SensorReading struct {
	// Temperature in degrees Celsius
	Temperature float64 `json:"temperature"`
	// Relative humidity in percent
	Humidity float64 `json:"humidity"`
	// When the bridge received the reading
	ObservedAt time.Time `json:"observedAt"`
}

// DeviceState is the latest reported state of one actuator.
type DeviceState struct {
	// Device identifier (e.g. "humidifier", "fan")
	Device string `json:"device"`
	// State as reported by the firmware (e.g. "on", "off", "120")
	State string `json:"state"`
	// When the bridge received the state
	ObservedAt time.Time `json:"observedAt"`
}

// ConnectionState is the fleet's self-reported reachability.
type ConnectionState struct {
	// Status such as "online" or "offline"
	Status string `json:"status"`
	// When the bridge received the status
	ObservedAt time.Time `json:"observedAt"`
}

// SystemHealth is the latest health beacon from the device.
type SystemHealth struct {
	// Milliseconds since device boot
	UptimeMs int64 `json:"uptime_ms"`
	// Free heap in bytes
	FreeHeapBytes int64 `json:"free_heap"`
	// WiFi signal strength in dBm
	SignalStrength float64 `json:"rssi"`
	// When the bridge received the beacon
	ObservedAt time.Time `json:"observedAt"`
}

// Event is the envelope carried from ingress to the fan-out hub. Exactly one payload field,
// matching Kind, is set.
type Event struct {
	Kind       Kind
	Sensor     *SensorReading
	Device     *DeviceState
	Connection *ConnectionState
	System     *SystemHealth
}

func NewSensorEvent(r SensorReading) Event       { return Event{Kind: KindSensor, Sensor: &r} }
func NewDeviceEvent(d DeviceState) Event         { return Event{Kind: KindDevice, Device: &d} }
func NewConnectionEvent(c ConnectionState) Event { return Event{Kind: KindConnection, Connection: &c} }
func NewSystemEvent(s SystemHealth) Event        { return Event{Kind: KindSystem, System: &s} }

// MarshalJSON flattens the payload next to a "type" discriminator, e.g.
// {"type":"connection","status":"online","observedAt":"..."}.
func (e Event) MarshalJSON() ([]byte, error) {
	switch {
	case e.Kind == KindSensor && e.Sensor != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			SensorReading
		}{e.Kind, *e.Sensor})
	case e.Kind == KindDevice && e.Device != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			DeviceState
		}{e.Kind, *e.Device})
	case e.Kind == KindConnection && e.Connection != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			ConnectionState
		}{e.Kind, *e.Connection})
	case e.Kind == KindSystem && e.System != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			SystemHealth
		}{e.Kind, *e.System})
	default:
		return nil, errEmptyEvent
	}
}

// Snapshot is the current state pushed to a viewer when it connects.
type Snapshot struct {
	Sensor     SensorReading   `json:"sensor"`
	Connection ConnectionState `json:"connection"`
	System     SystemHealth    `json:"system"`
	Devices    []DeviceState   `json:"devices"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot

	devices := s.Devices
	if devices == nil {
		devices = []DeviceState{}
	}

	p := plain(s)
	p.Devices = devices

	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{KindSnapshot, p})
}
