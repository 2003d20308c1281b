package entities

import (
	"time"

	v1 "skyward/contracts/messages/v1"
)

// Sample is one normalized telemetry observation.
type Sample struct {
	DroneID   string
	MissionID string
	Position  v1.Position
	Battery   float64
	Velocity  float64
	Status    string
	At        time.Time
}

// TrackedDrone is the monitor's view of one drone: the latest sample
// plus the anomaly latches. A latch stays set while the underlying
// value is still out of bounds, so one excursion produces one event.
type TrackedDrone struct {
	DroneID  string
	Last     Sample
	LastSeen time.Time

	Offline         bool
	LowBatteryLatch bool
	AltitudeLatch   bool
}
