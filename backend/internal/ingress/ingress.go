// Package ingress turns broker messages into stored records and hub events.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"room-bridge/backend/internal/metrics"
	"room-bridge/backend/internal/store"
	"room-bridge/backend/internal/telemetry"
	"room-bridge/backend/pkg/mqtt"
	"room-bridge/backend/pkg/utils"
)

const storeWriteTimeout = 5 * time.Second

// Topics holds the inbound topic of each class.
type Topics struct {
	Sensors string
	Status  string
	Network string
	System  string
	Devices string
}

// DefaultTopics returns the firmware's topic layout under prefix.
func DefaultTopics(prefix string) Topics {
	return Topics{
		Sensors: prefix + "/sensors",
		Status:  prefix + "/status",
		Network: prefix + "/network",
		System:  prefix + "/system",
		Devices: prefix + "/devices",
	}
}

// Registrar is the part of the broker session the adapter subscribes through.
type Registrar interface {
	RegisterSubscribe(topic string, spec mqtt.SubscriptionSpec) error
}

// Enqueuer receives every accepted event.
type Enqueuer interface {
	Enqueue(e telemetry.Event)
}

type Adapter struct {
	l     *slog.Logger
	store store.Store
	hub   Enqueuer
	m     *metrics.Metrics
	now   func() time.Time
}

func New(l *slog.Logger, s store.Store, hub Enqueuer, m *metrics.Metrics) *Adapter {
	return &Adapter{
		l:     l.With(slog.String("component", "ingress")),
		store: s,
		hub:   hub,
		m:     m,
		now:   time.Now,
	}
}

// Register subscribes every topic class on the session. The session re-applies the subscriptions on
// each reconnect.
func (a *Adapter) Register(r Registrar, topics Topics) error {
	subs := []struct {
		topic   string
		class   telemetry.TopicClass
		id      string
		summary string
	}{
		{topics.Sensors, telemetry.ClassSensor, "subscribeSensorTelemetry", "Temperature and humidity readings"},
		{topics.Status, telemetry.ClassConnection, "subscribeConnectionStatus", "Device fleet connection status"},
		{topics.Network, telemetry.ClassNetwork, "subscribeNetworkStatus", "Device fleet network status"},
		{topics.System, telemetry.ClassSystem, "subscribeSystemHealth", "Controller uptime, heap and signal strength"},
		{topics.Devices, telemetry.ClassDevice, "subscribeDeviceStatus", "Actuator state reports"},
	}

	for _, sub := range subs {
		if sub.topic == "" {
			return fmt.Errorf("no topic configured for %s messages", sub.class)
		}

		class := sub.class

		err := r.RegisterSubscribe(sub.topic, mqtt.SubscriptionSpec{
			OperationID: sub.id,
			Summary:     sub.summary,
			QoS:         mqtt.QoSAtLeastOnce,
			Handler: func(topic string, payload []byte) {
				a.Handle(class, topic, payload)
			},
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe %s: %w", sub.topic, err)
		}
	}

	return nil
}

// Handle normalizes one message, writes it through the store and enqueues it. Failures are logged and
// never propagate to the session.
func (a *Adapter) Handle(class telemetry.TopicClass, topic string, payload []byte) {
	l := a.l.With(slog.String("topic", topic), slog.String("class", string(class)))

	event, err := telemetry.Normalize(class, payload, a.now())
	if err != nil {
		a.m.MessageRejected(string(class), rejectReason(err))
		l.Warn("Dropping message", slog.String("payload", truncate(payload)), utils.ErrAttr(err))

		return
	}

	a.m.MessageReceived(string(class))

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	if err := store.Save(ctx, a.store, event); err != nil {
		a.m.StoreError()
		l.Error("Failed to store event", utils.ErrAttr(err))
	}

	a.hub.Enqueue(event)
	l.Debug("Event accepted", slog.String("kind", string(event.Kind)))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, telemetry.ErrIncomplete):
		return "incomplete"
	case errors.Is(err, telemetry.ErrMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}

const maxLoggedPayload = 256

func truncate(payload []byte) string {
	if len(payload) <= maxLoggedPayload {
		return string(payload)
	}

	return string(payload[:maxLoggedPayload]) + "..."
}
