// Package command validates operator commands against the device vocabulary and publishes them to
// the device fleet.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"room-bridge/backend/internal/metrics"
	"room-bridge/backend/pkg/mqtt"
	"room-bridge/backend/pkg/utils"
)

// PublishOperationID identifies the command publication on the broker session.
const PublishOperationID = "publishDeviceCommand"

const defaultPublishTimeout = 5 * time.Second

// ErrPublish wraps broker failures of an attempted publish.
var ErrPublish = errors.New("failed to publish command")

// Publisher is the part of the broker session the gateway needs.
type Publisher interface {
	IsConnected() bool
	Publish(ctx context.Context, operationID string, actualTopic string, payload any) error
}

type Gateway struct {
	l       *slog.Logger
	pub     Publisher
	vocab   *Vocabulary
	topic   string
	timeout time.Duration
	m       *metrics.Metrics
}

func NewGateway(l *slog.Logger, pub Publisher, vocab *Vocabulary, topic string, timeout time.Duration, m *metrics.Metrics) *Gateway {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	return &Gateway{
		l:       l.With(slog.String("component", "command-gateway")),
		pub:     pub,
		vocab:   vocab,
		topic:   topic,
		timeout: timeout,
		m:       m,
	}
}

// RegisterPublish declares the command publication on the session. It must run before the session
// connects.
func (g *Gateway) RegisterPublish(s *mqtt.Session) error {
	return s.RegisterPublish(g.topic, mqtt.PublicationSpec{
		OperationID: PublishOperationID,
		Summary:     "Device command",
		QoS:         mqtt.QoSAtLeastOnce,
		Retained:    false,
	})
}

// Vocabulary returns the device vocabulary commands are validated against.
func (g *Gateway) Vocabulary() *Vocabulary {
	return g.vocab
}

// Send normalizes req and publishes it. Errors wrap ErrValidation, mqtt.ErrNotConnected or ErrPublish.
// Nothing is published unless validation passed and the session is connected.
func (g *Gateway) Send(ctx context.Context, req Request) (Command, error) {
	cmd, err := g.vocab.Normalize(req)
	if err != nil {
		g.m.CommandFailed("validation")
		return Command{}, err
	}

	if !g.pub.IsConnected() {
		g.m.CommandFailed("not_connected")
		return Command{}, mqtt.ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.pub.Publish(ctx, PublishOperationID, g.topic, cmd); err != nil {
		g.m.CommandFailed("publish")

		// The session may have dropped between the check and the publish
		if errors.Is(err, mqtt.ErrNotConnected) {
			return Command{}, err
		}

		g.l.Error("Failed to publish command", slog.String("device", cmd.Type), utils.ErrAttr(err))

		return Command{}, fmt.Errorf("%w: %w", ErrPublish, err)
	}

	g.m.CommandSent(cmd.Type)
	g.l.Info("Command sent", slog.String("device", cmd.Type), slog.String("state", cmd.State.String()))

	return cmd, nil
}
