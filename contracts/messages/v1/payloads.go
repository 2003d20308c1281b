package v1

import "time"

// Waypoint is one point of a mission route.
type Waypoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Position is the last-known location reported by a drone.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Window bounds a mission or reservation in time.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ---------------------------------------------------------------------------
// Mission surface
// ---------------------------------------------------------------------------

// SubmitTask is the task.submit query payload.
type SubmitTask struct {
	TaskID       string     `json:"task_id"`
	Name         string     `json:"name,omitempty"`
	MissionType  string     `json:"mission_type,omitempty"`
	DroneCount   int        `json:"drone_count"`
	MinBattery   float64    `json:"min_battery,omitempty"`
	Capabilities []string   `json:"capabilities,omitempty"`
	Window       Window     `json:"window"`
	Waypoints    []Waypoint `json:"waypoints"`
}

// SubmitResult answers task.submit.
type SubmitResult struct {
	Accepted  bool   `json:"accepted"`
	MissionID string `json:"mission_id,omitempty"`
	Fault     *Fault `json:"fault,omitempty"`
}

// CancelMission is the mission.cancel query payload.
type CancelMission struct {
	MissionID string `json:"mission_id"`
	Reason    string `json:"reason,omitempty"`
}

// CancelResult answers mission.cancel.
type CancelResult struct {
	Cancelled bool   `json:"cancelled"`
	MissionID string `json:"mission_id"`
	Fault     *Fault `json:"fault,omitempty"`
}

// GetMission is the mission.get query payload.
type GetMission struct {
	MissionID string `json:"mission_id"`
}

// MissionView answers mission.get.
type MissionView struct {
	Found     bool           `json:"found"`
	MissionID string         `json:"mission_id"`
	State     string         `json:"state,omitempty"`
	DroneIDs  []string       `json:"drone_ids,omitempty"`
	Outcomes  []DroneOutcome `json:"outcomes,omitempty"`
	Fault     *Fault         `json:"fault,omitempty"`
}

// DroneOutcome is one drone's terminal result within a mission.
type DroneOutcome struct {
	DroneID string `json:"drone_id"`
	Status  string `json:"status"`
	Step    string `json:"step,omitempty"`
	Fault   *Fault `json:"fault,omitempty"`
}

// ---------------------------------------------------------------------------
// Fleet surface
// ---------------------------------------------------------------------------

// Constraints narrow which drones satisfy an allocation.
type Constraints struct {
	Capabilities []string `json:"capabilities,omitempty"`
	MinBattery   float64  `json:"min_battery,omitempty"`
}

// AllocateRequest is the fleet.allocate query payload.
type AllocateRequest struct {
	MissionID     string      `json:"mission_id"`
	RequiredCount int         `json:"required_count"`
	Constraints   Constraints `json:"constraints"`
	Window        Window      `json:"window"`
}

// AllocateResult answers fleet.allocate. Allocation is all-or-nothing:
// on a shortage Granted is empty and Fault carries DRONE_NOT_AVAILABLE.
type AllocateResult struct {
	Granted []string `json:"granted"`
	Fault   *Fault   `json:"fault,omitempty"`
}

// ReleaseRequest is the fleet.release query payload.
type ReleaseRequest struct {
	MissionID string `json:"mission_id"`
}

// ReleaseResult answers fleet.release.
type ReleaseResult struct {
	Released []string `json:"released"`
}

// FleetStatus answers fleet.get_status.
type FleetStatus struct {
	FleetSize   int `json:"fleet_size"`
	Available   int `json:"available"`
	Reserved    int `json:"reserved"`
	InMission   int `json:"in_mission"`
	Charging    int `json:"charging"`
	Unavailable int `json:"unavailable"`
	Unknown     int `json:"unknown"`
}

// ---------------------------------------------------------------------------
// Robot integration
// ---------------------------------------------------------------------------

// Terminal statuses of the robot command set. Any other status in a
// response is a protocol violation and counts as a step failure.
const (
	StatusAccepted       = "accepted"
	StatusRejected       = "rejected"
	StatusArmed          = "armed"
	StatusInAir          = "in_air"
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusAbortAck       = "abort_ack"
	StatusHealthOK       = "health.ok"
	StatusHealthDegraded = "health.degraded"
)

// DroneCommand addresses one robot command at one drone.
type DroneCommand struct {
	MissionID string     `json:"mission_id"`
	DroneID   string     `json:"drone_id"`
	Waypoints []Waypoint `json:"waypoints,omitempty"`
}

// CommandResult is the uniform response shape of the robot and dock
// command sets: a terminal status plus an optional fault.
type CommandResult struct {
	Status string `json:"status"`
	Fault  *Fault `json:"fault,omitempty"`
}

// ---------------------------------------------------------------------------
// Docking-facility integration
// ---------------------------------------------------------------------------

// Dock terminal statuses.
const (
	StatusReserved        = "reserved"
	StatusPreflightOK     = "preflight.ok"
	StatusPreflightFailed = "preflight.failed"
	StatusChargeCompleted = "charge.completed"
	StatusChargeTimeout   = "charge.timeout"
	StatusReleaseAck      = "release_ack"
	StatusSlotAssigned    = "slot_assigned"
	StatusDenied          = "denied"
	StatusDocked          = "docked"
	StatusEmergencyAck    = "emergency_ack"
	StatusChargingStarted = "charging.started"
	StatusChargeNotNeeded = "charging.not_required"
)

// DockRequest is the payload of the group-level dock facility queries.
type DockRequest struct {
	MissionID  string   `json:"mission_id"`
	DroneIDs   []string `json:"drone_ids,omitempty"`
	DroneID    string   `json:"drone_id,omitempty"`
	MinBattery float64  `json:"min_battery,omitempty"`
	Window     Window   `json:"window,omitempty"`
}

// DockResult answers the dock facility queries.
type DockResult struct {
	Status  string   `json:"status"`
	PortIDs []string `json:"port_ids,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
	Fault   *Fault   `json:"fault,omitempty"`
}

// ---------------------------------------------------------------------------
// Telemetry
// ---------------------------------------------------------------------------

// TelemetryUpdate is one telemetry sample pushed by the robot integration.
type TelemetryUpdate struct {
	Timestamp time.Time `json:"timestamp"`
	DroneID   string    `json:"drone_id"`
	MissionID string    `json:"mission_id,omitempty"`
	Position  Position  `json:"position"`
	Battery   float64   `json:"battery"`
	Status    string    `json:"status"`
	Velocity  float64   `json:"velocity"`
}

// ---------------------------------------------------------------------------
// Broadcast event payloads
// ---------------------------------------------------------------------------

// MissionEvent accompanies every mission lifecycle event.
type MissionEvent struct {
	MissionID string         `json:"mission_id"`
	State     string         `json:"state"`
	DroneIDs  []string       `json:"drone_ids,omitempty"`
	Outcomes  []DroneOutcome `json:"outcomes,omitempty"`
	Fault     *Fault         `json:"fault,omitempty"`
}

// GroupFormed announces the allocated drone group for a mission.
type GroupFormed struct {
	MissionID string   `json:"mission_id"`
	DroneIDs  []string `json:"drone_ids"`
}

// DroneStatusChanged announces a fleet availability transition.
type DroneStatusChanged struct {
	DroneID string `json:"drone_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// BatteryLow announces a drone crossing the configured battery floor.
type BatteryLow struct {
	DroneID string  `json:"drone_id"`
	Battery float64 `json:"battery"`
}

// AnomalyDetected is a pure observation of a telemetry value outside its
// configured bounds.
type AnomalyDetected struct {
	DroneID   string  `json:"drone_id"`
	MissionID string  `json:"mission_id,omitempty"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
	Bound     float64 `json:"bound"`
}

// DroneOffline announces a staleness-window expiry for a drone.
type DroneOffline struct {
	DroneID  string    `json:"drone_id"`
	LastSeen time.Time `json:"last_seen"`
}

// RobotProgress reports waypoint progress for an executing mission.
type RobotProgress struct {
	MissionID string  `json:"mission_id"`
	DroneID   string  `json:"drone_id"`
	Progress  float64 `json:"progress"`
	Status    string  `json:"status"`
}

// Heartbeat is the liveness beacon of a bus participant.
type Heartbeat struct {
	Source string    `json:"source"`
	SentAt time.Time `json:"sent_at"`
}
