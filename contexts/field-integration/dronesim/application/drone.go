package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"skyward/contexts/field-integration/dronesim/ports"
	v1 "skyward/contracts/messages/v1"
)

// Script injects faults into one simulated drone. FailActions maps a
// command action to the terminal status it should answer instead of
// succeeding; FailMissionAt, when positive, fails the flight once
// progress reaches that percentage; Mute stops the telemetry loop so
// the staleness sweeper sees the drone disappear.
type Script struct {
	FailActions   map[string]string
	FailMissionAt float64
	Degraded      bool
	Mute          bool
}

// Drone is one simulated vehicle: it answers the robot command set
// addressed at its ID and pushes telemetry at a fixed cadence.
type Drone struct {
	ID        string
	Publisher ports.EventPublisher
	Responder ports.Responder
	Clock     ports.Clock
	Cadence   time.Duration
	StepDrain float64
	Logger    *slog.Logger

	mu        sync.Mutex
	battery   float64
	position  v1.Position
	status    string
	missionID string
	waypoints []v1.Waypoint
	flying    bool
	abort     chan struct{}
	script    Script
}

func NewDrone(id string, battery float64, position v1.Position) *Drone {
	return &Drone{
		ID:       id,
		battery:  battery,
		position: position,
		status:   "idle",
	}
}

// SetScript swaps the fault script. Takes effect on the next command.
func (d *Drone) SetScript(script Script) {
	d.mu.Lock()
	d.script = script
	d.mu.Unlock()
}

// Battery reports the current battery level.
func (d *Drone) Battery() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.battery
}

// Handle answers one robot command addressed at this drone.
func (d *Drone) Handle(ctx context.Context, env v1.Envelope) error {
	if env.Type != v1.TypeQuery && env.Type != v1.TypeCommand {
		return nil
	}

	if status, ok := d.scripted(env.Action); ok {
		return d.Responder.Respond(ctx, env, d.ID, v1.CommandResult{
			Status: status,
			Fault:  v1.NewFault(v1.CodeInternalError, "injected "+env.Action+" failure", false),
		})
	}

	switch env.Action {
	case v1.RouteDroneHealthCheck.Action:
		status := v1.StatusHealthOK
		d.mu.Lock()
		if d.script.Degraded {
			status = v1.StatusHealthDegraded
		}
		d.mu.Unlock()
		return d.Responder.Respond(ctx, env, d.ID, v1.CommandResult{Status: status})

	case v1.RouteDroneUploadMission.Action:
		command, err := v1.Decode[v1.DroneCommand](env)
		if err != nil {
			return d.Responder.Respond(ctx, env, d.ID, v1.CommandResult{
				Status: v1.StatusRejected,
				Fault:  v1.NewFault(v1.CodeValidationError, err.Error(), false),
			})
		}
		d.mu.Lock()
		d.missionID = command.MissionID
		d.waypoints = command.Waypoints
		d.status = "mission_loaded"
		d.mu.Unlock()
		return d.Responder.Respond(ctx, env, d.ID, v1.CommandResult{Status: v1.StatusAccepted})

	case v1.RouteDroneArm.Action:
		d.transition("armed")
		return d.Responder.Respond(ctx, env, d.ID, v1.CommandResult{Status: v1.StatusArmed})

	case v1.RouteDroneTakeoff.Action:
		d.mu.Lock()
		d.status = "in_air"
		d.flying = true
		d.abort = make(chan struct{})
		missionID := d.missionID
		abort := d.abort
		d.mu.Unlock()
		go d.fly(missionID, abort)
		return d.Responder.Respond(ctx, env, d.ID, v1.CommandResult{Status: v1.StatusInAir})

	case v1.RouteDroneLand.Action, v1.RouteDroneReturnToBase.Action:
		d.land("idle")
		return d.Responder.Respond(ctx, env, d.ID, v1.CommandResult{Status: v1.StatusCompleted})

	case v1.RouteDroneAbort.Action:
		d.interrupt()
		d.land("aborted")
		return d.Responder.Respond(ctx, env, d.ID, v1.CommandResult{Status: v1.StatusAbortAck})

	default:
		return d.Responder.Respond(ctx, env, d.ID, v1.CommandResult{
			Status: v1.StatusRejected,
			Fault:  v1.NewFault(v1.CodeValidationError, "unknown drone action "+env.Action, false),
		})
	}
}

// StartTelemetry pushes samples at the configured cadence until the
// context ends. A muted drone keeps flying but stops reporting.
func (d *Drone) StartTelemetry(ctx context.Context) {
	cadence := d.Cadence
	if cadence <= 0 {
		cadence = 250 * time.Millisecond
	}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.publishSample(ctx)
		}
	}
}

func (d *Drone) publishSample(ctx context.Context) {
	d.mu.Lock()
	if d.script.Mute {
		d.mu.Unlock()
		return
	}
	update := v1.TelemetryUpdate{
		Timestamp: d.Clock.Now().UTC(),
		DroneID:   d.ID,
		MissionID: d.missionID,
		Position:  d.position,
		Battery:   d.battery,
		Status:    d.status,
	}
	d.mu.Unlock()

	env, err := v1.NewEvent(v1.RouteTelemetryUpdate, d.ID, update)
	if err == nil {
		err = d.Publisher.Publish(ctx, env)
	}
	if err != nil && d.Logger != nil {
		d.Logger.Error("telemetry publish failed",
			"event", "dronesim_telemetry_publish_failed",
			"module", "field-integration/dronesim",
			"layer", "application",
			"drone_id", d.ID,
			"error", err.Error(),
		)
	}
}

// fly walks the waypoints, reporting progress quarters and the terminal
// status. The sequencer treats 100 percent or a completed status as the
// flight finishing.
func (d *Drone) fly(missionID string, abort chan struct{}) {
	cadence := d.Cadence
	if cadence <= 0 {
		cadence = 250 * time.Millisecond
	}

	for _, progress := range []float64{25, 50, 75, 100} {
		select {
		case <-abort:
			return
		case <-time.After(cadence):
		}

		d.mu.Lock()
		failAt := d.script.FailMissionAt
		drain := d.StepDrain
		if drain <= 0 {
			drain = 2
		}
		d.battery -= drain
		if len(d.waypoints) > 0 {
			target := d.waypoints[(len(d.waypoints)-1)*int(progress)/100]
			d.position = v1.Position{Lat: target.Lat, Lon: target.Lon, Alt: target.Alt}
		}
		d.mu.Unlock()

		status := "flying"
		if failAt > 0 && progress >= failAt {
			status = v1.StatusFailed
		} else if progress >= 100 {
			status = v1.StatusCompleted
		}
		d.publishProgress(missionID, progress, status)
		if status != "flying" {
			return
		}
	}
}

func (d *Drone) publishProgress(missionID string, progress float64, status string) {
	env, err := v1.NewEvent(v1.RouteRobotMissionProgress, d.ID, v1.RobotProgress{
		MissionID: missionID,
		DroneID:   d.ID,
		Progress:  progress,
		Status:    status,
	})
	if err == nil {
		err = d.Publisher.Publish(context.Background(), env)
	}
	if err != nil && d.Logger != nil {
		d.Logger.Error("progress publish failed",
			"event", "dronesim_progress_publish_failed",
			"module", "field-integration/dronesim",
			"layer", "application",
			"drone_id", d.ID,
			"error", err.Error(),
		)
	}
}

func (d *Drone) scripted(action string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status, ok := d.script.FailActions[action]
	return status, ok
}

func (d *Drone) transition(status string) {
	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
}

func (d *Drone) interrupt() {
	d.mu.Lock()
	if d.abort != nil {
		select {
		case <-d.abort:
		default:
			close(d.abort)
		}
	}
	d.mu.Unlock()
}

func (d *Drone) land(status string) {
	d.mu.Lock()
	d.flying = false
	d.status = status
	d.missionID = ""
	d.waypoints = nil
	d.mu.Unlock()
}
