// Package hub fans normalized events out to a dynamic set of live subscribers.
//
// Events are drained one at a time in enqueue order. Each event is pushed to every subscriber
// registered at the time it is drained, concurrently and with a per-subscriber timeout; subscribers
// whose push fails are removed before the next event is drained. A new subscriber receives a
// snapshot of the current state before any event drained after its registration.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"room-bridge/backend/internal/metrics"
	"room-bridge/backend/internal/telemetry"
	"room-bridge/backend/pkg/utils"
)

const defaultSendTimeout = 5 * time.Second

// ErrClosed is returned by Register after Close.
var ErrClosed = errors.New("hub closed")

// Sink is the write side of one live viewer connection.
type Sink interface {
	// Send writes one frame. Implementations should honour the ctx deadline.
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// SnapshotFunc returns the current state pushed to new subscribers.
type SnapshotFunc func(ctx context.Context) (telemetry.Snapshot, error)

// Options tunes queueing and delivery.
type Options struct {
	// QueueLimit bounds the pending queue; when full the oldest event is dropped. 0 means unbounded.
	QueueLimit int
	// SendTimeout bounds a single push to a single subscriber.
	SendTimeout time.Duration
	Metrics     *metrics.Metrics
}

// Subscriber is a registered sink.
type Subscriber struct {
	id   string
	sink Sink

	// held while writing, so the snapshot and broadcast frames never interleave
	mu sync.Mutex
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() string { return s.id }

func (s *Subscriber) send(ctx context.Context, frame []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.sink.Send(ctx, frame)
}

type Hub struct {
	l        *slog.Logger
	snapshot SnapshotFunc
	opts     Options
	m        *metrics.Metrics

	mu     sync.Mutex
	subs   map[string]*Subscriber
	queue  []telemetry.Event
	closed bool

	wake chan struct{}
	done chan struct{}
}

// New creates a hub. Run must be started for queued events to be delivered.
func New(l *slog.Logger, snapshot SnapshotFunc, opts Options) *Hub {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}

	if opts.QueueLimit < 0 {
		opts.QueueLimit = 0
	}

	return &Hub{
		l:        l.With(slog.String("component", "hub")),
		snapshot: snapshot,
		opts:     opts,
		m:        opts.Metrics,
		subs:     make(map[string]*Subscriber),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Register adds sink to the live set and pushes the current snapshot to it. When the snapshot
// cannot be read or sent the subscriber is removed, its sink closed, and the error returned.
func (h *Hub) Register(ctx context.Context, sink Sink) (*Subscriber, error) {
	sub := &Subscriber{id: utils.NewUUID(), sink: sink}

	// Hold the write lock across insertion and snapshot so no drained event can overtake it
	sub.mu.Lock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.mu.Unlock()

		return nil, ErrClosed
	}

	h.subs[sub.id] = sub
	count := len(h.subs)
	h.mu.Unlock()

	h.m.SetSubscribers(count)

	err := h.sendSnapshot(ctx, sub)
	sub.mu.Unlock()

	if err != nil {
		h.Unregister(sub)
		return nil, err
	}

	h.l.Debug("Subscriber registered", slog.String("subscriberID", sub.id), slog.Int("subscribers", count))

	return sub, nil
}

// sendSnapshot runs with sub.mu held, so both the read and the write are bounded by SendTimeout
// to keep a stuck store from stalling broadcasts to everyone else.
func (h *Hub) sendSnapshot(ctx context.Context, sub *Subscriber) error {
	readCtx, cancelRead := context.WithTimeout(ctx, h.opts.SendTimeout)
	defer cancelRead()

	snap, err := h.snapshot(readCtx)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	frame, err := utils.ToJSON(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, h.opts.SendTimeout)
	defer cancel()

	if err := sub.sink.Send(sendCtx, frame); err != nil {
		return fmt.Errorf("failed to send snapshot: %w", err)
	}

	return nil
}

// Unregister removes sub from the live set and closes its sink. Removing an unknown or already
// removed subscriber is a no-op.
func (h *Hub) Unregister(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	_, ok := h.subs[sub.id]
	delete(h.subs, sub.id)
	count := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.m.SetSubscribers(count)
	utils.LogOnError(h.l, sub.sink.Close, "failed to close subscriber sink")
	h.l.Debug("Subscriber unregistered", slog.String("subscriberID", sub.id), slog.Int("subscribers", count))
}

// Enqueue appends e to the delivery queue and wakes the drain loop. It never waits on subscriber I/O.
func (h *Hub) Enqueue(e telemetry.Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}

	if h.opts.QueueLimit > 0 && len(h.queue) >= h.opts.QueueLimit {
		h.queue[0] = telemetry.Event{}
		h.queue = h.queue[1:]
		h.m.Overflowed()
		h.l.Warn("Hub queue full, dropping oldest event", slog.Int("limit", h.opts.QueueLimit))
	}

	h.queue = append(h.queue, e)
	depth := len(h.queue)
	h.mu.Unlock()

	h.m.SetQueueDepth(depth)

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled or the hub is closed.
func (h *Hub) Run(ctx context.Context) {
	h.l.Info("Hub drain loop started")
	defer h.l.Info("Hub drain loop stopped")

	for {
		e, ok := h.pop()
		if ok {
			h.broadcast(ctx, e)
			continue
		}

		select {
		case <-h.wake:
		case <-ctx.Done():
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) pop() (telemetry.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.queue) == 0 {
		return telemetry.Event{}, false
	}

	e := h.queue[0]
	h.queue[0] = telemetry.Event{}
	h.queue = h.queue[1:]

	if len(h.queue) == 0 {
		h.queue = nil
	}

	h.m.SetQueueDepth(len(h.queue))

	return e, true
}

// broadcast pushes e to every current subscriber and prunes the ones that failed.
func (h *Hub) broadcast(ctx context.Context, e telemetry.Event) {
	frame, err := utils.ToJSON(e)
	if err != nil {
		h.l.Error("Failed to encode event", slog.String("kind", string(e.Kind)), utils.ErrAttr(err))
		return
	}

	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []*Subscriber
	)

	for _, sub := range subs {
		wg.Go(func() {
			if err := sub.send(ctx, frame, h.opts.SendTimeout); err != nil {
				h.l.Info("Dropping subscriber after failed push", slog.String("subscriberID", sub.id), utils.ErrAttr(err))

				mu.Lock()
				failed = append(failed, sub)
				mu.Unlock()
			}
		})
	}

	wg.Wait()

	for _, sub := range failed {
		h.Unregister(sub)
		h.m.SubscriberPruned()
	}

	h.m.Delivered(len(subs) - len(failed))
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Pending returns the number of queued, undrained events.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.queue)
}

// Close stops the drain loop, drops queued events, and closes every live sink. Further Register
// calls fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}

	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscriber)
	h.queue = nil
	close(h.done)
	h.mu.Unlock()

	for _, sub := range subs {
		utils.LogOnError(h.l, sub.sink.Close, "failed to close subscriber sink")
	}

	h.m.SetSubscribers(0)
	h.m.SetQueueDepth(0)
	h.l.Info("Hub closed", slog.Int("subscribers", len(subs)))
}
