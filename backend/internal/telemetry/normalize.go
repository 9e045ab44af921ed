package telemetry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"room-bridge/backend/pkg/utils"
)

// TopicClass is the shape family of an inbound topic.
type TopicClass string

const (
	ClassSensor     TopicClass = "sensor"
	ClassConnection TopicClass = "connection"
	ClassNetwork    TopicClass = "network"
	ClassSystem     TopicClass = "system"
	ClassDevice     TopicClass = "device"
)

var (
	// ErrMalformed means the payload could not be decoded into the shape its topic requires.
	ErrMalformed = errors.New("malformed payload")
	// ErrIncomplete means a required field was absent or null.
	ErrIncomplete = errors.New("incomplete payload")
	// ErrUnknownClass means the topic class has no normalization rule.
	ErrUnknownClass = errors.New("unknown topic class")
)

// deviceIDKeys lists, in order of preference, the fields that may carry the device identifier.
//
//nolint:gochecknoglobals // Read-only lookup table
var deviceIDKeys = []string{"device", "type", "id"}

// Normalize maps a raw payload received on a topic of the given class into an Event stamped with now.
// Errors wrap ErrMalformed, ErrIncomplete or ErrUnknownClass.
func Normalize(class TopicClass, payload []byte, now time.Time) (Event, error) {
	if !utf8.Valid(payload) {
		return Event{}, fmt.Errorf("%w: not valid UTF-8", ErrMalformed)
	}

	text := strings.TrimSpace(string(payload))
	doc, parseErr := utils.FromJSON[any]([]byte(text))
	now = now.UTC()

	switch class {
	case ClassSensor:
		return normalizeSensor(doc, parseErr, now)
	case ClassConnection, ClassNetwork:
		return NewConnectionEvent(ConnectionState{Status: connectionStatus(text, doc, parseErr), ObservedAt: now}), nil
	case ClassSystem:
		return normalizeSystem(doc, parseErr, now)
	case ClassDevice:
		return normalizeDevice(doc, parseErr, now)
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
}

func normalizeSensor(doc any, parseErr error, now time.Time) (Event, error) {
	obj, err := object(doc, parseErr)
	if err != nil {
		return Event{}, err
	}

	temp, err := requiredNumber(obj, "temperature")
	if err != nil {
		return Event{}, err
	}

	hum, err := requiredNumber(obj, "humidity")
	if err != nil {
		return Event{}, err
	}

	return NewSensorEvent(SensorReading{Temperature: temp, Humidity: hum, ObservedAt: now}), nil
}

func normalizeSystem(doc any, parseErr error, now time.Time) (Event, error) {
	obj, err := object(doc, parseErr)
	if err != nil {
		return Event{}, err
	}

	rssi, err := requiredNumber(obj, "rssi")
	if err != nil {
		return Event{}, err
	}

	return NewSystemEvent(SystemHealth{
		UptimeMs:       counter(obj["uptime_ms"]),
		FreeHeapBytes:  counter(obj["free_heap"]),
		SignalStrength: rssi,
		ObservedAt:     now,
	}), nil
}

func normalizeDevice(doc any, parseErr error, now time.Time) (Event, error) {
	obj, err := object(doc, parseErr)
	if err != nil {
		return Event{}, err
	}

	var device string
	for _, key := range deviceIDKeys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			device = strings.TrimSpace(s)
			break
		}
	}

	if device == "" {
		return Event{}, fmt.Errorf("%w: missing device identifier", ErrIncomplete)
	}

	state := scalarText(obj["state"])
	if state == "" {
		return Event{}, fmt.Errorf("%w: missing state for device %q", ErrIncomplete, device)
	}

	return NewDeviceEvent(DeviceState{Device: device, State: state, ObservedAt: now}), nil
}

// connectionStatus accepts {"status": "..."}, a JSON string, or bare text. Anything unusable is offline.
func connectionStatus(text string, doc any, parseErr error) string {
	var raw string

	switch v := doc.(type) {
	case map[string]any:
		raw, _ = v["status"].(string)
	case string:
		raw = v
	default:
		if parseErr != nil || doc != nil {
			raw = text
		}
	}

	raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
	if raw == "" {
		return StatusOffline
	}

	return cases.Lower(language.Und).String(raw)
}

func object(doc any, parseErr error) (map[string]any, error) {
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, parseErr)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	return obj, nil
}

func requiredNumber(obj map[string]any, key string) (float64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: missing %s", ErrIncomplete, key)
	}

	n, ok := number(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not numeric", ErrMalformed, key)
	}

	return n, nil
}

// counter reads a non-negative integer, defaulting to 0.
func counter(v any) int64 {
	n, ok := number(v)
	if !ok || n < 0 {
		return 0
	}

	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if n >= math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(n)
}

func number(v any) (float64, bool) {
	var f float64

	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}

		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}

func scalarText(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
