package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apicommon "room-bridge/backend/internal/shared/api"
	"room-bridge/backend/pkg/router"
	"room-bridge/backend/pkg/utils"
)

const (
	defaultPingInterval = 30 * time.Second
	handshakeTimeout    = 10 * time.Second
	controlWriteWait    = 5 * time.Second
	defaultWriteWait    = 10 * time.Second

	// Viewers only send keepalive chatter
	maxInboundFrame = 4096
)

// wsSink adapts a websocket connection to hub.Sink.
type wsSink struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func newWSSink(conn *websocket.Conn) *wsSink {
	return &wsSink{conn: conn}
}

// Send writes one text frame. The hub serializes calls per subscriber.
func (s *wsSink) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteWait)
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *wsSink) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteWait))
}

// Close sends a close frame on a best-effort basis and closes the connection. Safe to call repeatedly.
func (s *wsSink) Close() error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}

// Live upgrades the request to a websocket, registers it on the hub and keeps it until the viewer
// leaves or a push fails.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) error {
	l := apicommon.GetLogger(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		l.Warn("websocket upgrade failed", utils.ErrAttr(err))
		return nil
	}

	sink := newWSSink(conn)
	defer utils.LogOnError(l, sink.Close, "failed to close websocket")

	sub, err := h.svc.Hub.Register(r.Context(), sink)
	if err != nil {
		l.Warn("failed to register live subscriber", utils.ErrAttr(err))
		return nil
	}
	defer h.svc.Hub.Unregister(sub)

	l = l.With(slog.String("subscriberID", sub.ID()))
	l.Info("live viewer connected")

	pongWait := 2 * h.live.PingInterval

	conn.SetReadLimit(maxInboundFrame)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return nil
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go h.keepAlive(l, sink, done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				l.Debug("live viewer read ended", utils.ErrAttr(err))
			}

			break
		}

		l.Debug("live viewer frame ignored", slog.Int("bytes", len(msg)))
	}

	l.Info("live viewer disconnected")

	return nil
}

func (h *Handler) keepAlive(l *slog.Logger, sink *wsSink, done <-chan struct{}) {
	ticker := time.NewTicker(h.live.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sink.ping(); err != nil {
				l.Debug("live viewer ping failed", utils.ErrAttr(err))
				// Unblocks the read loop
				_ = sink.Close()

				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if h.live.CheckOrigin != nil {
		return h.live.CheckOrigin(origin)
	}

	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return strings.EqualFold(u.Host, r.Host)
}

func (h *Handler) RegisterLive(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "live",
		Summary:     "Live telemetry channel",
		Description: "Websocket that sends one snapshot frame followed by every accepted event",
		Group:       LiveGroup,
		Handler:     apicommon.ErrorHandler(h.Live),
	})
}
