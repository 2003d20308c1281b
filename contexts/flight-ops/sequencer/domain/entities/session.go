package entities

import (
	"time"

	v1 "skyward/contracts/messages/v1"
)

// Step names the stages of the per-drone command protocol.
type Step string

const (
	StepHealthCheck   Step = "health.check"
	StepUploadMission Step = "upload_mission"
	StepArm           Step = "arm"
	StepTakeoff       Step = "takeoff"
	StepProgress      Step = "mission_progress"
	StepLand          Step = "land"
	StepReturnToBase  Step = "return_to_base"
	StepAbort         Step = "abort"
)

// SessionStatus is the terminal outcome of one drone session.
type SessionStatus string

const (
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionAborted   SessionStatus = "aborted"
)

// StepSpec declares one command step: where it goes, how long to wait,
// which response statuses close it successfully, and whether a failure
// may be retried. Physically consequential commands are never retried.
type StepSpec struct {
	Step      Step
	Route     v1.Route
	Accept    []string
	Retryable bool
}

// Accepted reports whether the response status terminates the step
// successfully.
func (s StepSpec) Accepted(status string) bool {
	for _, ok := range s.Accept {
		if ok == status {
			return true
		}
	}
	return false
}

// Session tracks one in-flight command sequence for one drone.
type Session struct {
	MissionID   string
	DroneID     string
	CurrentStep Step
	Deadline    time.Time
	Retries     int
}

// Outcome is the terminal result of a session, reported upward to the
// orchestrator.
type Outcome struct {
	MissionID string
	DroneID   string
	Status    SessionStatus
	Step      Step
	Fault     *v1.Fault
}

// LaunchSteps is the fixed pre-flight portion of the canonical sequence.
func LaunchSteps() []StepSpec {
	return []StepSpec{
		{Step: StepHealthCheck, Route: v1.RouteDroneHealthCheck, Accept: []string{v1.StatusHealthOK}, Retryable: true},
		{Step: StepUploadMission, Route: v1.RouteDroneUploadMission, Accept: []string{v1.StatusAccepted}},
		{Step: StepArm, Route: v1.RouteDroneArm, Accept: []string{v1.StatusArmed}},
		{Step: StepTakeoff, Route: v1.RouteDroneTakeoff, Accept: []string{v1.StatusInAir}},
	}
}

// FinalStep selects the post-mission step for the mission type: one-way
// missions land at the destination, everything else returns to base.
func FinalStep(missionType string) StepSpec {
	if missionType == "one_way" {
		return StepSpec{Step: StepLand, Route: v1.RouteDroneLand, Accept: []string{v1.StatusCompleted}}
	}
	return StepSpec{Step: StepReturnToBase, Route: v1.RouteDroneReturnToBase, Accept: []string{v1.StatusCompleted}}
}

// AbortStep is injectable at any point of the sequence.
func AbortStep() StepSpec {
	return StepSpec{Step: StepAbort, Route: v1.RouteDroneAbort, Accept: []string{v1.StatusAbortAck}}
}
