package application

import (
	"context"
	"testing"
	"time"

	"skyward/contexts/flight-ops/sequencer/domain/entities"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

func testTimeouts() Timeouts {
	return Timeouts{
		HealthCheck:   200 * time.Millisecond,
		UploadMission: 200 * time.Millisecond,
		Arm:           200 * time.Millisecond,
		Takeoff:       200 * time.Millisecond,
		Land:          200 * time.Millisecond,
		ReturnToBase:  200 * time.Millisecond,
		Abort:         200 * time.Millisecond,
		Execution:     2 * time.Second,
		HealthRetries: 1,
		HealthBackoff: 10 * time.Millisecond,
	}
}

// scriptedDrone answers the robot command set on the bus under its
// drone ID. Overrides swap the response status for one action; flying
// missions report progress until someone listens.
type scriptedDrone struct {
	bus          *messaging.Bus
	droneID      string
	overrides    map[string]string
	silentFlight bool
}

func (d *scriptedDrone) start(t *testing.T, ctx context.Context) func() {
	t.Helper()
	return d.bus.Subscribe(v1.TopicDrone, d.droneID, func(handlerCtx context.Context, env v1.Envelope) error {
		status, ok := d.overrides[env.Action]
		if !ok {
			switch env.Action {
			case v1.RouteDroneHealthCheck.Action:
				status = v1.StatusHealthOK
			case v1.RouteDroneUploadMission.Action:
				status = v1.StatusAccepted
			case v1.RouteDroneArm.Action:
				status = v1.StatusArmed
			case v1.RouteDroneTakeoff.Action:
				status = v1.StatusInAir
			case v1.RouteDroneLand.Action, v1.RouteDroneReturnToBase.Action:
				status = v1.StatusCompleted
			case v1.RouteDroneAbort.Action:
				status = v1.StatusAbortAck
			default:
				status = v1.StatusRejected
			}
		}
		if env.Action == v1.RouteDroneTakeoff.Action && status == v1.StatusInAir && !d.silentFlight {
			command, err := v1.Decode[v1.DroneCommand](env)
			if err != nil {
				return err
			}
			go d.reportProgress(ctx, command.MissionID)
		}
		return d.bus.Respond(handlerCtx, env, d.droneID, v1.CommandResult{Status: status})
	})
}

// reportProgress republishes completion every few milliseconds; the hub
// drops samples published before the session registers, so one-shot
// reporting would race the runner.
func (d *scriptedDrone) reportProgress(ctx context.Context, missionID string) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			env, err := v1.NewEvent(v1.RouteRobotMissionProgress, d.droneID, v1.RobotProgress{
				MissionID: missionID,
				DroneID:   d.droneID,
				Progress:  100,
				Status:    v1.StatusCompleted,
			})
			if err != nil {
				return
			}
			_ = d.bus.Publish(ctx, env)
		}
	}
}

func newTestRunner(t *testing.T, bus *messaging.Bus) Runner {
	t.Helper()
	hub := NewProgressHub(bus, nil)
	stop := hub.Start(context.Background())
	t.Cleanup(stop)
	return Runner{
		Requester: bus,
		Publisher: bus,
		Progress:  hub,
		Timeouts:  testTimeouts(),
	}
}

func TestRunnerCompletesFullSequence(t *testing.T) {
	bus := messaging.NewBus(nil)
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drone := &scriptedDrone{bus: bus, droneID: "drone-01"}
	defer drone.start(t, ctx)()

	runner := newTestRunner(t, bus)
	outcome := runner.Run(ctx, "mission-1", "drone-01", "survey",
		[]v1.Waypoint{{Lat: 47.39, Lon: 8.54, Alt: 50}}, make(chan struct{}))

	if outcome.Status != entities.SessionCompleted {
		t.Fatalf("status = %q (step %q, fault %v), want completed", outcome.Status, outcome.Step, outcome.Fault)
	}
	if outcome.Step != entities.StepReturnToBase {
		t.Fatalf("final step = %q, want return_to_base", outcome.Step)
	}
}

func TestRunnerLandsOneWayMissions(t *testing.T) {
	bus := messaging.NewBus(nil)
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drone := &scriptedDrone{bus: bus, droneID: "drone-01"}
	defer drone.start(t, ctx)()

	runner := newTestRunner(t, bus)
	outcome := runner.Run(ctx, "mission-1", "drone-01", "one_way",
		[]v1.Waypoint{{Lat: 47.39, Lon: 8.54, Alt: 50}}, make(chan struct{}))

	if outcome.Status != entities.SessionCompleted || outcome.Step != entities.StepLand {
		t.Fatalf("outcome = %q/%q, want completed at land", outcome.Status, outcome.Step)
	}
}

func TestRunnerFailsWhenStepRejected(t *testing.T) {
	bus := messaging.NewBus(nil)
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drone := &scriptedDrone{
		bus:       bus,
		droneID:   "drone-01",
		overrides: map[string]string{v1.RouteDroneArm.Action: v1.StatusRejected},
	}
	defer drone.start(t, ctx)()

	runner := newTestRunner(t, bus)
	outcome := runner.Run(ctx, "mission-1", "drone-01", "survey", nil, make(chan struct{}))

	if outcome.Status != entities.SessionFailed {
		t.Fatalf("status = %q, want failed", outcome.Status)
	}
	if outcome.Step != entities.StepArm {
		t.Fatalf("failing step = %q, want arm", outcome.Step)
	}
	if outcome.Fault == nil || outcome.Fault.ErrorCode != v1.CodeMissionRejected {
		t.Fatalf("fault = %v, want MISSION_REJECTED", outcome.Fault)
	}
}

func TestRunnerTimesOutAgainstSilentDrone(t *testing.T) {
	bus := messaging.NewBus(nil)
	defer bus.Close()

	// No drone subscribed: every health check attempt times out.
	runner := newTestRunner(t, bus)
	outcome := runner.Run(context.Background(), "mission-1", "drone-09", "survey", nil, make(chan struct{}))

	if outcome.Status != entities.SessionFailed {
		t.Fatalf("status = %q, want failed", outcome.Status)
	}
	if outcome.Step != entities.StepHealthCheck {
		t.Fatalf("failing step = %q, want health.check", outcome.Step)
	}
	if outcome.Fault == nil || outcome.Fault.ErrorCode != v1.CodeCommandTimeout {
		t.Fatalf("fault = %v, want COMMAND_TIMEOUT", outcome.Fault)
	}
}

func TestRunnerAbortInterruptsFlight(t *testing.T) {
	bus := messaging.NewBus(nil)
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The drone takes off but never reports progress, so the session
	// parks in the progress wait until aborted.
	drone := &scriptedDrone{bus: bus, droneID: "drone-01", silentFlight: true}
	defer drone.start(t, ctx)()

	abort := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(abort)
	}()

	runner := newTestRunner(t, bus)
	outcome := runner.Run(ctx, "mission-1", "drone-01", "survey", nil, abort)

	if outcome.Status != entities.SessionAborted {
		t.Fatalf("status = %q (fault %v), want aborted", outcome.Status, outcome.Fault)
	}
	if outcome.Step != entities.StepAbort {
		t.Fatalf("step = %q, want abort", outcome.Step)
	}
	if outcome.Fault != nil {
		t.Fatalf("acknowledged abort carries fault %v", outcome.Fault)
	}
}
