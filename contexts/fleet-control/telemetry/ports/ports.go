package ports

import (
	"context"
	"time"

	"skyward/contexts/fleet-control/telemetry/domain/entities"
	v1 "skyward/contracts/messages/v1"
)

// FleetWriter pushes normalized samples into the fleet state so the
// allocator ranks drones on fresh battery figures.
type FleetWriter interface {
	RecordSample(ctx context.Context, sample entities.Sample) error
}

// SnapshotMirror checkpoints the latest sample per drone to the
// external store.
type SnapshotMirror interface {
	SaveSnapshot(ctx context.Context, sample entities.Sample) error
}

// EventPublisher publishes broadcast events to the system bus.
type EventPublisher interface {
	Publish(ctx context.Context, env v1.Envelope) error
}

// BusSubscriber registers a named handler on a bus topic.
type BusSubscriber interface {
	Subscribe(topic, name string, handler func(ctx context.Context, env v1.Envelope) error) func()
}

type Clock interface {
	Now() time.Time
}
