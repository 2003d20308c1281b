package ports

import (
	"context"
	"time"

	v1 "skyward/contracts/messages/v1"
)

// EventPublisher publishes dock diagnostics and charging events.
type EventPublisher interface {
	Publish(ctx context.Context, env v1.Envelope) error
}

// BusSubscriber registers a named handler on a bus topic.
type BusSubscriber interface {
	Subscribe(topic, name string, handler func(ctx context.Context, env v1.Envelope) error) func()
}

// Responder answers a bus query.
type Responder interface {
	Respond(ctx context.Context, request v1.Envelope, source string, payload any) error
}

type Clock interface {
	Now() time.Time
}
