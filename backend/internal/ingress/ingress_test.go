package ingress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"room-bridge/backend/internal/store"
	"room-bridge/backend/internal/telemetry"
	"room-bridge/backend/pkg/mqtt"
	"room-bridge/backend/pkg/mqtt/mqtttest"
	"room-bridge/backend/pkg/utils"
)

//nolint:gochecknoglobals // Test fixture
var received = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type recordingHub struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (h *recordingHub) Enqueue(e telemetry.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, e)
}

func (h *recordingHub) Events() []telemetry.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]telemetry.Event(nil), h.events...)
}

// failingStore rejects every write.
type failingStore struct {
	*store.Memory
}

func (failingStore) SaveConnection(context.Context, telemetry.ConnectionState) error {
	return errors.New("disk full")
}

func newAdapter(s store.Store) (*Adapter, *recordingHub) {
	hub := &recordingHub{}
	a := New(slog.New(slog.NewTextHandler(io.Discard, nil)), s, hub, nil)
	a.now = func() time.Time { return received }

	return a, hub
}

func TestHandleSensor(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	a, hub := newAdapter(s)
	ctx := context.Background()

	a.Handle(telemetry.ClassSensor, "room_01/sensors", []byte(`{"temperature": 21.5, "humidity": 40}`))

	got, err := s.LatestSensor(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := telemetry.SensorReading{Temperature: 21.5, Humidity: 40, ObservedAt: received}
	if got != want {
		t.Errorf("LatestSensor() = %+v, want %+v", got, want)
	}

	// Missing humidity leaves the stored reading untouched
	a.Handle(telemetry.ClassSensor, "room_01/sensors", []byte(`{"temperature": 30}`))

	if got, _ := s.LatestSensor(ctx); got != want {
		t.Errorf("LatestSensor() after incomplete payload = %+v, want %+v", got, want)
	}

	if n := len(hub.Events()); n != 1 {
		t.Errorf("enqueued %d events, want 1", n)
	}
}

func TestHandleDeviceLastWriteWins(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	a, hub := newAdapter(s)

	for _, state := range []string{"on", "off", "on", "off"} {
		a.Handle(telemetry.ClassDevice, "room_01/devices", []byte(`{"device":"fan","state":"`+state+`"}`))
	}

	got, err := s.LatestDevice(context.Background(), "fan")
	if err != nil {
		t.Fatal(err)
	}

	if got.State != "off" {
		t.Errorf("LatestDevice() state = %s, want off", got.State)
	}

	if n := len(hub.Events()); n != 4 {
		t.Errorf("enqueued %d events, want 4", n)
	}
}

func TestHandleBareConnectionStatus(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	a, hub := newAdapter(s)

	a.Handle(telemetry.ClassConnection, "room_01/status", []byte("online"))

	got, err := s.LatestConnection(context.Background())
	if err != nil || got.Status != "online" {
		t.Fatalf("LatestConnection() = %+v, %v", got, err)
	}

	events := hub.Events()
	if len(events) != 1 {
		t.Fatalf("enqueued %d events, want 1", len(events))
	}

	frame, err := utils.ToJSON(events[0])
	if err != nil {
		t.Fatal(err)
	}

	if want := `{"type":"connection","status":"online","observedAt":"2025-03-14T09:26:53Z"}`; string(frame) != want {
		t.Errorf("frame = %s, want %s", frame, want)
	}
}

func TestHandleStoreFailureStillEnqueues(t *testing.T) {
	t.Parallel()

	a, hub := newAdapter(failingStore{store.NewMemory()})

	a.Handle(telemetry.ClassNetwork, "room_01/network", []byte(`{"status":"online"}`))

	if n := len(hub.Events()); n != 1 {
		t.Errorf("enqueued %d events, want 1", n)
	}
}

func TestHandleMalformedIsDropped(t *testing.T) {
	t.Parallel()

	a, hub := newAdapter(store.NewMemory())

	a.Handle(telemetry.ClassSystem, "room_01/system", []byte(`{"uptime_ms": 10`))
	a.Handle(telemetry.ClassDevice, "room_01/devices", []byte(`{"state":"on"}`))
	a.Handle(telemetry.ClassSensor, "room_01/sensors", []byte{0xff, 0xfe})

	if n := len(hub.Events()); n != 0 {
		t.Errorf("enqueued %d events, want 0", n)
	}
}

func TestRejectReason(t *testing.T) {
	t.Parallel()

	tests := map[string]error{
		"incomplete": telemetry.ErrIncomplete,
		"malformed":  telemetry.ErrMalformed,
		"unknown":    telemetry.ErrUnknownClass,
	}

	for want, err := range tests {
		if got := rejectReason(err); got != want {
			t.Errorf("rejectReason(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestRegisterRequiresTopics(t *testing.T) {
	t.Parallel()

	a, _ := newAdapter(store.NewMemory())

	s, err := mqtt.NewSession(slog.New(slog.NewTextHandler(io.Discard, nil)), mqtt.SessionOptions{
		BrokerURL: "tcp://127.0.0.1:1",
		ClientID:  "ingress-test-" + utils.ShortID(8),
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(s.Close)

	topics := DefaultTopics("room_01")
	topics.System = ""

	if err := a.Register(s, topics); err == nil {
		t.Error("Register() expected error for missing topic")
	}
}

func TestAdapterThroughBroker(t *testing.T) {
	t.Parallel()

	broker := mqtttest.Start(t, "")
	s := store.NewMemory()
	a, hub := newAdapter(s)

	session, err := mqtt.NewSession(slog.New(slog.NewTextHandler(io.Discard, nil)), mqtt.SessionOptions{
		BrokerURL:  broker.URL,
		ClientID:   "ingress-test-" + utils.ShortID(8),
		RetryDelay: 10 * time.Millisecond,
		RetryLimit: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(session.Close)

	if err := a.Register(session, DefaultTopics("room_01")); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}

	publish := func(topic, payload string) {
		t.Helper()

		if err := broker.Publish(topic, []byte(payload), false, 1); err != nil {
			t.Fatalf("broker Publish() unexpected error: %v", err)
		}
	}

	publish("room_01/sensors", `{"temperature":"22.5","humidity":55}`)
	publish("room_01/system", `{"uptime_ms":1200,"free_heap":40000,"rssi":-61}`)
	publish("room_01/devices", `{"type":"humidifier","state":"on"}`)
	publish("room_01/status", `"ONLINE"`)

	mqtttest.Eventually(t, 5*time.Second, func() bool { return len(hub.Events()) == 4 }, "all four events enqueued")

	kinds := make([]telemetry.Kind, 0, 4)
	for _, e := range hub.Events() {
		kinds = append(kinds, e.Kind)
	}

	want := []telemetry.Kind{telemetry.KindSensor, telemetry.KindSystem, telemetry.KindDevice, telemetry.KindConnection}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event kinds = %v, want %v", kinds, want)
		}
	}

	snap, err := store.Snapshot(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}

	if snap.Sensor.Temperature != 22.5 || snap.System.SignalStrength != -61 || snap.Connection.Status != "online" {
		t.Errorf("Snapshot() = %+v", snap)
	}

	if len(snap.Devices) != 1 || snap.Devices[0].Device != "humidifier" {
		t.Errorf("Snapshot().Devices = %+v", snap.Devices)
	}
}
