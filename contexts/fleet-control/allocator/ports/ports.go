package ports

import (
	"context"
	"time"

	"skyward/contexts/fleet-control/allocator/domain/entities"
	v1 "skyward/contracts/messages/v1"
)

// FleetRepository is the authoritative fleet state. Every method is
// atomic with respect to the others; the cross-call allocate/release
// serialization lives in the use cases behind one shared guard.
type FleetRepository interface {
	ListDrones(ctx context.Context) ([]entities.DroneState, error)
	GetDrone(ctx context.Context, droneID string) (entities.DroneState, error)
	SetStatus(ctx context.Context, droneID string, status entities.DroneStatus) (entities.DroneState, error)
	UpdateTelemetry(ctx context.Context, droneID string, snapshot entities.TelemetrySnapshot) (entities.DroneState, error)

	// ReserveDrones flips every listed drone to reserved and records the
	// reservation in one step; it fails without side effects if any drone
	// is no longer available or the mission already holds a reservation.
	ReserveDrones(ctx context.Context, reservation entities.Reservation) error

	// ReleaseMission returns the mission's reserved/in-mission drones to
	// available and deletes the reservation, reporting the status each
	// drone held before the release. Releasing an unknown mission is a
	// no-op returning an empty slice.
	ReleaseMission(ctx context.Context, missionID string) ([]entities.ReleasedDrone, error)

	GetReservation(ctx context.Context, missionID string) (entities.Reservation, bool, error)
}

// FleetMirror checkpoints fleet state to the external store. Mirror
// failures are logged, never fatal: the in-memory state stays the source
// of truth while the station runs.
type FleetMirror interface {
	SaveFleet(ctx context.Context, drones []entities.DroneState) error
	SaveReservation(ctx context.Context, reservation entities.Reservation) error
	DeleteReservation(ctx context.Context, missionID string) error
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
