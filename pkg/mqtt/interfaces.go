package mqtt

import "context"

// Client is the broker connection the agent, the health checker and the
// replay tool share
type Client interface {
	// Connect dials the broker and waits for the session
	Connect(ctx context.Context) error

	// Disconnect closes the session after a short quiesce period
	Disconnect()

	// Subscribe routes messages on topic to handler. Wildcards are allowed.
	Subscribe(topic string, qos byte, handler MessageHandler) error

	// Publish sends payload and waits for the broker to take it
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// IsConnected reports whether the session is up
	IsConnected() bool
}

// MessageHandler receives messages for a subscription
type MessageHandler func(Message)

// Message is an inbound publish
type Message interface {
	Topic() string
	Payload() []byte

	// Retained is true when the broker delivered a stored message
	Retained() bool
}
