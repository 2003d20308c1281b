package ports

import (
	"context"
	"time"

	"skyward/contexts/flight-ops/orchestrator/domain/entities"
	v1 "skyward/contracts/messages/v1"
)

// MissionRepository is the authoritative mission state while missions
// are active.
type MissionRepository interface {
	CreateMission(ctx context.Context, mission entities.Mission) error
	UpdateMission(ctx context.Context, mission entities.Mission) error
	GetMission(ctx context.Context, missionID string) (entities.Mission, error)
	ListActiveMissions(ctx context.Context) ([]entities.Mission, error)
}

// MissionMirror checkpoints mission state to the external store. Mirror
// failures are logged, never fatal.
type MissionMirror interface {
	SaveMission(ctx context.Context, mission entities.Mission) error
}

// OutboxEvent is one lifecycle event awaiting relay to the bus. The
// outbox ID becomes the published envelope's message ID, so redelivery
// after a relay crash dedupes downstream.
type OutboxEvent struct {
	OutboxID  string
	Topic     string
	Action    string
	Payload   []byte
	CreatedAt time.Time
}

// OutboxWriter appends a lifecycle event in the same step as the state
// change it announces.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, event OutboxEvent) error
}

// OutboxRepository feeds the relay worker.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// SessionOutcome is the terminal result one drone session reports back.
type SessionOutcome struct {
	DroneID string
	Status  string
	Step    string
	Fault   *v1.Fault
}

// SessionRunner drives one drone through the command protocol. Closing
// the abort channel interrupts the session at whatever step is in
// flight.
type SessionRunner interface {
	Run(
		ctx context.Context,
		missionID, droneID, missionType string,
		waypoints []v1.Waypoint,
		abort <-chan struct{},
	) SessionOutcome
}

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

// Responder answers a bus query.
type Responder interface {
	Respond(ctx context.Context, request v1.Envelope, source string, payload any) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
