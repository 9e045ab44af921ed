package mqtt

// QoS represents MQTT quality of service levels.
type QoS byte

const (
	// QoSAtMostOnce means the message is delivered at most once, or it may not be delivered at all.
	QoSAtMostOnce QoS = 0
	// QoSAtLeastOnce means the message is always delivered at least once.
	QoSAtLeastOnce QoS = 1
	// QoSExactlyOnce means the message is always delivered exactly once.
	QoSExactlyOnce QoS = 2
)

// MessageHandler is called, in broker delivery order, for every message on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// PublicationSpec describes an MQTT publication operation.
type PublicationSpec struct {
	OperationID string // OperationID is a unique identifier for this publication operation (e.g., "publishCommand").
	TopicMQTT   string // TopicMQTT is the MQTT wildcard format (e.g., devices/+/commands).
	Summary     string // Summary is a short description of the publication.
	QoS         QoS    // QoS is the quality of service level for this publication.
	Retained    bool   // Retained indicates whether the message should be retained by the broker.
}

// SubscriptionSpec describes an MQTT subscription operation.
type SubscriptionSpec struct {
	OperationID string         // OperationID is a unique identifier for this subscription operation (e.g., "subscribeSensors").
	TopicMQTT   string         // TopicMQTT is the MQTT wildcard format (e.g., devices/+/temperature).
	Summary     string         // Summary is a short description of the subscription.
	Handler     MessageHandler // Handler is the function that will be called when a message is received.
	QoS         QoS            // QoS is the quality of service level for this subscription.
}
