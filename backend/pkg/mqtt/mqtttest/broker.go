// Package mqtttest runs an in-process MQTT broker for tests.
package mqtttest

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Broker is an embedded broker listening on a loopback TCP port.
type Broker struct {
	*mqttbroker.Server

	Addr string
	URL  string

	closeOnce sync.Once
	closeErr  error
}

// FreeAddr returns a loopback address with a currently unused port.
func FreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}

	addr := ln.Addr().String()

	if err := ln.Close(); err != nil {
		t.Fatalf("failed to release port: %v", err)
	}

	return addr
}

// Start starts a broker on addr, or on a free port when addr is empty. The broker is closed when the
// test ends.
func Start(t *testing.T, addr string) *Broker {
	t.Helper()

	if addr == "" {
		addr = FreeAddr(t)
	}

	server := mqttbroker.New(&mqttbroker.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("failed to add auth hook: %v", err)
	}

	if err := server.AddListener(listeners.NewTCP(listeners.Config{ID: "test", Address: addr})); err != nil {
		t.Fatalf("failed to add listener: %v", err)
	}

	if err := server.Serve(); err != nil {
		t.Fatalf("failed to start broker: %v", err)
	}

	b := &Broker{Server: server, Addr: addr, URL: "tcp://" + addr}

	t.Cleanup(func() { _ = b.Close() })

	return b
}

// Close stops the broker and drops every client connection. It is safe to call more than once.
func (b *Broker) Close() error {
	b.closeOnce.Do(func() { b.closeErr = b.Server.Close() })

	return b.closeErr
}

// Recorder collects payloads delivered to an inline subscription.
type Recorder struct {
	mu       sync.Mutex
	messages [][]byte
	notify   chan struct{}
}

// Record subscribes to filter on the broker's inline client.
func (b *Broker) Record(t *testing.T, filter string) *Recorder {
	t.Helper()

	r := &Recorder{notify: make(chan struct{}, 1)}

	err := b.Subscribe(filter, 1, func(_ *mqttbroker.Client, _ packets.Subscription, pk packets.Packet) {
		r.mu.Lock()
		r.messages = append(r.messages, append([]byte(nil), pk.Payload...))
		r.mu.Unlock()

		select {
		case r.notify <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("failed to subscribe %s: %v", filter, err)
	}

	return r
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([][]byte(nil), r.messages...)
}

// WaitFor blocks until at least n messages were recorded or timeout elapses.
func (r *Recorder) WaitFor(t *testing.T, n int, timeout time.Duration) [][]byte {
	t.Helper()

	deadline := time.After(timeout)

	for {
		if msgs := r.Messages(); len(msgs) >= n {
			return msgs
		}

		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, got %d", n, len(r.Messages()))
		}
	}
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, msg)
		}

		time.Sleep(10 * time.Millisecond)
	}
}
