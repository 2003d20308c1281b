package entities

import "time"

// DroneStatus is the fleet availability state of one drone.
type DroneStatus string

const (
	StatusAvailable   DroneStatus = "available"
	StatusReserved    DroneStatus = "reserved"
	StatusInMission   DroneStatus = "in_mission"
	StatusUnavailable DroneStatus = "unavailable"
	StatusCharging    DroneStatus = "charging"
	StatusUnknown     DroneStatus = "unknown"
)

// TelemetrySnapshot is the last normalized telemetry sample for a drone.
type TelemetrySnapshot struct {
	Lat      float64
	Lon      float64
	Alt      float64
	Battery  float64
	Velocity float64
	Status   string
	At       time.Time
}

// DroneState is the allocator-owned record of one fleet drone.
// Availability transitions belong to the allocator; telemetry-derived
// fields are written through the same store by the telemetry monitor.
type DroneState struct {
	DroneID       string
	Status        DroneStatus
	Capabilities  []string
	Telemetry     TelemetrySnapshot
	LastHeartbeat time.Time
}

// HasCapabilities reports whether the drone carries every required
// capability.
func (d DroneState) HasCapabilities(required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range d.Capabilities {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Reservation binds a mission to a set of drones for a time window.
type Reservation struct {
	MissionID   string
	DroneIDs    []string
	WindowStart time.Time
	WindowEnd   time.Time
	CreatedAt   time.Time
}

// ReleasedDrone records one drone handed back to the pool together with
// the status it held when the release ran, so the status.changed event
// can carry the real transition.
type ReleasedDrone struct {
	DroneID string
	From    DroneStatus
}
