package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics

	m.MessageReceived("sensor")
	m.MessageRejected("sensor", "malformed")
	m.StoreError()
	m.SetSubscribers(3)
	m.SetQueueDepth(1)
	m.Delivered(2)
	m.Overflowed()
	m.SubscriberPruned()
	m.CommandSent("fan")
	m.CommandFailed("validation")
	m.SetBrokerConnected(true)

	if m.Registry() != nil {
		t.Error("Registry() on nil Metrics should be nil")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("nil Handler() status = %d, want 404", rec.Code)
	}
}

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()

	m.MessageReceived("sensor")
	m.MessageReceived("sensor")
	m.CommandSent("fan")
	m.SetBrokerConnected(true)
	m.SetSubscribers(2)

	if got := testutil.ToFloat64(m.messagesReceived.WithLabelValues("sensor")); got != 2 {
		t.Errorf("messages_total{class=sensor} = %v, want 2", got)
	}

	if got := testutil.ToFloat64(m.brokerConnected); got != 1 {
		t.Errorf("mqtt_connected = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"room_bridge_ingress_messages_total", "room_bridge_hub_subscribers 2", "room_bridge_command_sent_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("exposition missing %q", name)
		}
	}
}
