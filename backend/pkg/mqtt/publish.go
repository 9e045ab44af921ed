package mqtt

import (
	"context"
	"fmt"

	"room-bridge/backend/pkg/utils"
)

// Publish sends payload, serialized as JSON, to actualTopic using the publication spec identified
// by operationID. It waits for the broker acknowledgement required by the spec's QoS or until ctx
// is done. It does not validate the topic or payload.
func (s *Session) Publish(ctx context.Context, operationID string, actualTopic string, payload any) error {
	pub, ok := s.publications[operationID]
	if !ok {
		return fmt.Errorf("publication not found for operationID %s", operationID)
	}

	if !s.IsConnected() {
		return ErrNotConnected
	}

	bytes, err := utils.ToJSON(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	token := s.client.Publish(actualTopic, byte(pub.QoS), pub.Retained, bytes)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("failed to publish to topic %s: %w", actualTopic, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", actualTopic, err)
	}

	return nil
}
