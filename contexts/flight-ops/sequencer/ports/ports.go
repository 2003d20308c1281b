package ports

import (
	"context"
	"time"

	v1 "skyward/contracts/messages/v1"
)

// Requester issues a bus query and suspends until its response or the
// timeout.
type Requester interface {
	Request(ctx context.Context, env v1.Envelope, timeout time.Duration) (v1.Envelope, error)
}

// EventPublisher publishes broadcast events to the system bus.
type EventPublisher interface {
	Publish(ctx context.Context, env v1.Envelope) error
}

// BusSubscriber registers a named handler on a bus topic.
type BusSubscriber interface {
	Subscribe(topic, name string, handler func(ctx context.Context, env v1.Envelope) error) func()
}
