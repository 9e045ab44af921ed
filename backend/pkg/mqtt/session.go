package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"

	"room-bridge/backend/pkg/utils"
)

const (
	defaultRetryDelay     = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
	keepAlive             = 30 * time.Second
	subscribeTimeout      = 10 * time.Second
	disconnectQuiesceMs   = 250
)

var (
	// ErrNotConnected is returned by Publish when the session has no live broker connection.
	ErrNotConnected = errors.New("not connected to MQTT broker")
	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("mqtt session closed")

	errAlreadyConnecting = errors.New("session is already connecting or connected")
	errConnectTimeout    = errors.New("timed out waiting for broker CONNACK")
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SessionOptions contains configuration for creating a Session.
type SessionOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// RetryDelay is the fixed delay between connection attempts.
	RetryDelay time.Duration
	// RetryLimit bounds the number of retries after the first failed attempt. 0 means a single attempt.
	RetryLimit uint64
	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration
	// OnStateChange, when set, is called after every state transition.
	OnStateChange func(State)
}

// Session owns one broker connection. Subscriptions registered before the first Connect are
// (re-)applied on every successful connect; a lost connection is retried with a fixed delay up to
// RetryLimit times, after which the session stays disconnected until Connect is called again.
type Session struct {
	l      *slog.Logger
	opts   SessionOptions
	client paho.Client

	operationIDs  map[string]struct{}
	publications  map[string]*PublicationSpec
	subscriptions map[string]*SubscriptionSpec

	mu    sync.Mutex
	state State

	started atomic.Bool
	closed  atomic.Bool
	ctx     context.Context //nolint:containedctx // Lifetime of the session, cancelled by Close
	cancel  context.CancelFunc
}

// NewSession creates a disconnected session with the given broker configuration.
func NewSession(l *slog.Logger, opts SessionOptions) (*Session, error) {
	l = l.With(slog.String("component", "mqtt-session"))

	if opts.BrokerURL == "" {
		return nil, errors.New("broker URL is required")
	}

	if opts.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	broker, err := url.Parse(opts.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %w", err)
	}

	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}

	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		l:             l,
		opts:          opts,
		operationIDs:  make(map[string]struct{}),
		publications:  make(map[string]*PublicationSpec),
		subscriptions: make(map[string]*SubscriptionSpec),
		state:         StateDisconnected,
		ctx:           ctx,
		cancel:        cancel,
	}

	// Reconnects are driven by the session itself so the retry policy stays bounded and observable
	clientOpts := paho.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(false)
	clientOpts.SetConnectRetry(false)
	clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	clientOpts.SetKeepAlive(keepAlive)
	clientOpts.SetCleanSession(true)
	clientOpts.SetOrderMatters(true)
	clientOpts.SetConnectionLostHandler(s.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}

	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	switch broker.Scheme {
	case "ssl", "tls", "mqtts":
		clientOpts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	s.client = paho.NewClient(clientOpts)

	l.Info("MQTT session created", slog.String("broker", opts.BrokerURL), slog.String("clientID", opts.ClientID))

	return s, nil
}

// RegisterPublish registers a publication operation.
func (s *Session) RegisterPublish(topic string, spec PublicationSpec) error {
	if s.started.Load() {
		return errors.New("cannot register publication after connecting to MQTT broker")
	}

	if err := validateTopicPattern(topic); err != nil {
		return fmt.Errorf("invalid topic pattern: %w", err)
	}

	if err := validatePublicationSpec(spec); err != nil {
		return fmt.Errorf("invalid publication spec: %w", err)
	}

	if _, exists := s.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	spec.TopicMQTT = convertTopicToMQTT(topic)
	s.operationIDs[spec.OperationID] = struct{}{}
	s.publications[spec.OperationID] = &spec

	s.l.Info("Registered MQTT publication", slog.String("operationID", spec.OperationID), slog.String("topic", topic))

	return nil
}

// RegisterSubscribe registers a subscription operation. It is applied on every successful connect.
func (s *Session) RegisterSubscribe(topic string, spec SubscriptionSpec) error {
	if s.started.Load() {
		return errors.New("cannot register subscription after connecting to MQTT broker")
	}

	if err := validateTopicPattern(topic); err != nil {
		return fmt.Errorf("invalid topic pattern: %w", err)
	}

	if err := validateSubscriptionSpec(spec); err != nil {
		return fmt.Errorf("invalid subscription spec: %w", err)
	}

	if _, exists := s.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	spec.TopicMQTT = convertTopicToMQTT(topic)
	s.operationIDs[spec.OperationID] = struct{}{}
	s.subscriptions[spec.OperationID] = &spec

	s.l.Info("Registered MQTT subscription", slog.String("operationID", spec.OperationID), slog.String("topic", topic))

	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// IsConnected reports whether the session currently holds a live broker connection.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected && s.client.IsConnectionOpen()
}

// Connect moves the session from disconnected to connecting and retries until connected, the retry
// budget is spent, ctx is cancelled, or the session is closed. On failure the session is left
// disconnected.
func (s *Session) Connect(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.started.Store(true)

	if !s.transition(StateDisconnected, StateConnecting) {
		return errAlreadyConnecting
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.RetryDelay), s.opts.RetryLimit),
		ctx,
	)

	s.l.Info("Connecting to MQTT broker", slog.Uint64("retryLimit", s.opts.RetryLimit), slog.Duration("retryDelay", s.opts.RetryDelay))

	err := backoff.RetryNotify(s.attempt, policy, func(err error, next time.Duration) {
		s.l.Warn("MQTT connection attempt failed", utils.ErrAttr(err), slog.Duration("retryIn", next))
	})
	if err != nil {
		s.setState(StateDisconnected)

		if s.closed.Load() {
			return ErrClosed
		}

		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return nil
}

// attempt performs one connect and re-applies every registered subscription.
func (s *Session) attempt() error {
	if s.closed.Load() {
		return backoff.Permanent(ErrClosed)
	}

	token := s.client.Connect()
	if !token.WaitTimeout(s.opts.ConnectTimeout) {
		return errConnectTimeout
	}

	if err := token.Error(); err != nil {
		return err
	}

	s.subscribeAll()

	if !s.markConnected() {
		return errors.New("connection dropped while subscribing")
	}

	s.l.Info("Connected to MQTT broker", slog.Int("subscriptionCount", len(s.subscriptions)))

	return nil
}

func (s *Session) subscribeAll() {
	for _, spec := range s.subscriptions {
		handler := spec.Handler

		token := s.client.Subscribe(spec.TopicMQTT, byte(spec.QoS), func(_ paho.Client, m paho.Message) {
			handler(m.Topic(), m.Payload())
		})

		if !token.WaitTimeout(subscribeTimeout) {
			s.l.Error("Timed out subscribing", slog.String("topic", spec.TopicMQTT), slog.String("operationID", spec.OperationID))
			continue
		}

		if err := token.Error(); err != nil {
			s.l.Error("Failed to subscribe", slog.String("topic", spec.TopicMQTT), slog.String("operationID", spec.OperationID), utils.ErrAttr(err))
			continue
		}

		s.l.Debug("Subscribed", slog.String("topic", spec.TopicMQTT), slog.String("operationID", spec.OperationID))
	}
}

// markConnected moves the session to connected if the client connection is still open. The check
// and the transition share s.mu with onConnectionLost, and the client marks the connection closed
// before invoking that handler, so a drop is either seen here or handled as a lost connection.
func (s *Session) markConnected() bool {
	s.mu.Lock()
	if !s.client.IsConnectionOpen() {
		s.mu.Unlock()
		return false
	}

	changed := s.state != StateConnected
	s.state = StateConnected
	s.mu.Unlock()

	if changed {
		s.notify(StateConnected)
	}

	return true
}

// onConnectionLost is called by the client when an established connection drops.
func (s *Session) onConnectionLost(_ paho.Client, err error) {
	s.l.Warn("Connection to MQTT broker lost", utils.ErrAttr(err))

	// A drop while still connecting fails markConnected and is retried by the running Connect loop
	if !s.transition(StateConnected, StateDisconnected) || s.closed.Load() {
		return
	}

	go func() {
		if err := s.Connect(s.ctx); err != nil && !errors.Is(err, ErrClosed) {
			s.l.Error("Giving up on MQTT broker", utils.ErrAttr(err))
		}
	}()
}

// Close stops any reconnect loop and disconnects from the broker. It is safe to call more than once.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}

	s.cancel()

	if s.client.IsConnected() {
		s.l.Info("Disconnecting from MQTT broker...")
		s.client.Disconnect(disconnectQuiesceMs)
	}

	s.setState(StateDisconnected)
	s.l.Info("MQTT session closed")
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}

	s.state = to
	s.mu.Unlock()

	s.notify(to)

	return true
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	if s.state == to {
		s.mu.Unlock()
		return
	}

	s.state = to
	s.mu.Unlock()

	s.notify(to)
}

func (s *Session) notify(state State) {
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}
