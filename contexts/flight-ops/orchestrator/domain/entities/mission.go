package entities

import (
	"time"

	v1 "skyward/contracts/messages/v1"
)

// MissionState is the lifecycle state of a mission.
type MissionState string

const (
	StateReceived         MissionState = "received"
	StatePlanned          MissionState = "planned"
	StateAllocating       MissionState = "allocating"
	StateAllocated        MissionState = "allocated"
	StateExecuting        MissionState = "executing"
	StateCompleted        MissionState = "completed"
	StatePlanningFailed   MissionState = "planning_failed"
	StateAllocationFailed MissionState = "allocation_failed"
	StateExecutionFailed  MissionState = "execution_failed"
	StateCancelled        MissionState = "cancelled"
)

// Terminal reports whether the state ends the mission lifecycle.
func (s MissionState) Terminal() bool {
	switch s {
	case StateCompleted, StatePlanningFailed, StateAllocationFailed, StateExecutionFailed, StateCancelled:
		return true
	}
	return false
}

// Mission is the orchestrator-owned unit of work. The in-memory copy is
// authoritative while the mission is active; the external store only
// mirrors it.
type Mission struct {
	MissionID   string
	TaskID      string
	Name        string
	MissionType string
	State       MissionState

	RequiredCount int
	MinBattery    float64
	Capabilities  []string
	WindowStart   time.Time
	WindowEnd     time.Time
	Waypoints     []v1.Waypoint

	DroneIDs []string
	Outcomes []v1.DroneOutcome
	Fault    *v1.Fault

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Plan is the resource requirement derived from the mission task.
type Plan struct {
	RequiredCount int
	Constraints   v1.Constraints
	Window        v1.Window
}
