package messaging

import (
	"context"
)

// Broker moves outbox payloads to downstream consumers. Topic is the event
// type recorded on the outbox row; payloads are already-encoded JSON.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}
