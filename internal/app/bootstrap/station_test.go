package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"skyward/contexts/field-integration/dockport"
	"skyward/contexts/field-integration/dronesim"
	dronesimapp "skyward/contexts/field-integration/dronesim/application"
	"skyward/contexts/fleet-control/allocator"
	allocmemory "skyward/contexts/fleet-control/allocator/adapters/memory"
	allocentities "skyward/contexts/fleet-control/allocator/domain/entities"
	"skyward/contexts/fleet-control/telemetry"
	telemetryapp "skyward/contexts/fleet-control/telemetry/application"
	"skyward/contexts/flight-ops/orchestrator"
	orchapp "skyward/contexts/flight-ops/orchestrator/application"
	orchentities "skyward/contexts/flight-ops/orchestrator/domain/entities"
	"skyward/contexts/flight-ops/sequencer"
	seqapp "skyward/contexts/flight-ops/sequencer/application"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

// station assembles the whole ground control station over one bus with
// simulated drones and dock, the way the composition root wires it.
type station struct {
	bus    *messaging.Bus
	fleet  *allocmemory.Store
	orch   orchestrator.Module
	drones dronesim.Module
}

func newStation(t *testing.T, cadence time.Duration) *station {
	t.Helper()
	bus := messaging.NewBus(nil)
	t.Cleanup(bus.Close)

	now := time.Now().UTC()
	fleetStore := allocmemory.NewStore([]allocentities.DroneState{
		{DroneID: "drone-01", Status: allocentities.StatusAvailable, Capabilities: []string{"camera"}, Telemetry: allocentities.TelemetrySnapshot{Battery: 90, At: now}, LastHeartbeat: now},
		{DroneID: "drone-02", Status: allocentities.StatusAvailable, Capabilities: []string{"camera"}, Telemetry: allocentities.TelemetrySnapshot{Battery: 85, At: now}, LastHeartbeat: now},
	})

	alloc := allocator.NewModule(allocator.Dependencies{
		Fleet:      fleetStore,
		Publisher:  bus,
		Subscriber: bus,
		Responder:  bus,
		Clock:      systemClock{},
	})

	seq := sequencer.NewModule(sequencer.Dependencies{
		Requester:  bus,
		Publisher:  bus,
		Subscriber: bus,
		Timeouts: seqapp.Timeouts{
			HealthCheck:   time.Second,
			UploadMission: time.Second,
			Arm:           time.Second,
			Takeoff:       time.Second,
			Land:          time.Second,
			ReturnToBase:  time.Second,
			Abort:         time.Second,
			Execution:     10 * time.Second,
			HealthRetries: 1,
			HealthBackoff: 10 * time.Millisecond,
		},
	})

	orch := orchestrator.NewInMemoryModule(bus, sequencerSessions{runner: seq.Runner}, orchapp.Config{
		AllocateTimeout:   2 * time.Second,
		ReleaseTimeout:    2 * time.Second,
		DockTimeout:       2 * time.Second,
		MaxActiveMission:  20 * time.Second,
		DefaultMinBattery: 30,
	}, nil)

	tele := telemetry.NewModule(telemetry.Dependencies{
		Fleet:      fleetTelemetryWriter{fleet: fleetStore},
		Publisher:  bus,
		Subscriber: bus,
		Clock:      systemClock{},
		Thresholds: telemetryapp.Thresholds{
			BatteryFloor: 20,
			AltitudeMax:  120,
			Staleness:    5 * time.Second,
		},
		SweepInterval: 100 * time.Millisecond,
	})

	drones := dronesim.NewModule([]dronesim.Seed{
		{DroneID: "drone-01", Battery: 90, Position: v1.Position{Lat: 47.3977, Lon: 8.5456}},
		{DroneID: "drone-02", Battery: 85, Position: v1.Position{Lat: 47.3978, Lon: 8.5457}},
	}, dronesim.Dependencies{
		Publisher: bus,
		Responder: bus,
		Clock:     systemClock{},
		Cadence:   cadence,
	})
	dock := dockport.NewModule(dockport.Dependencies{
		Publisher: bus,
		Responder: bus,
		Slots:     4,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	for _, stop := range []func(){
		alloc.Consumer.Start(ctx),
		alloc.Signals.Start(ctx),
		orch.Consumer.Start(ctx),
		orch.Reactor.Start(ctx),
		seq.Progress.Start(ctx),
		tele.Consumer.Start(ctx),
		dock.Start(bus),
		drones.Start(ctx, bus),
	} {
		t.Cleanup(stop)
	}
	go orch.Relay.Start(ctx)
	go tele.Sweeper.Start(ctx)

	return &station{bus: bus, fleet: fleetStore, orch: orch, drones: drones}
}

func (s *station) submit(t *testing.T, task v1.SubmitTask) v1.SubmitResult {
	t.Helper()
	env, err := v1.NewQuery(v1.RouteTaskSubmit, "test", "", task)
	if err != nil {
		t.Fatalf("new submit query: %v", err)
	}
	response, err := s.bus.Request(context.Background(), env, 2*time.Second)
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	result, err := v1.Decode[v1.SubmitResult](response)
	if err != nil {
		t.Fatalf("decode submit result: %v", err)
	}
	return result
}

func (s *station) missionView(t *testing.T, missionID string) v1.MissionView {
	t.Helper()
	env, err := v1.NewQuery(v1.RouteMissionGet, "test", "", v1.GetMission{MissionID: missionID})
	if err != nil {
		t.Fatalf("new get query: %v", err)
	}
	response, err := s.bus.Request(context.Background(), env, 2*time.Second)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	view, err := v1.Decode[v1.MissionView](response)
	if err != nil {
		t.Fatalf("decode mission view: %v", err)
	}
	return view
}

func (s *station) waitForMissionState(t *testing.T, missionID, want string) v1.MissionView {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	var view v1.MissionView
	for time.Now().Before(deadline) {
		view = s.missionView(t, missionID)
		if view.State == want {
			return view
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("mission state = %q, want %q", view.State, want)
	return v1.MissionView{}
}

func (s *station) fleetStatus(t *testing.T) v1.FleetStatus {
	t.Helper()
	env, err := v1.NewQuery(v1.RouteFleetStatus, "test", "", v1.FleetStatus{})
	if err != nil {
		t.Fatalf("new status query: %v", err)
	}
	response, err := s.bus.Request(context.Background(), env, 2*time.Second)
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	status, err := v1.Decode[v1.FleetStatus](response)
	if err != nil {
		t.Fatalf("decode fleet status: %v", err)
	}
	return status
}

func (s *station) waitForAvailable(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.fleetStatus(t).Available == want {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("fleet available = %d, want %d", s.fleetStatus(t).Available, want)
}

func demoTask(drones int) v1.SubmitTask {
	return v1.SubmitTask{
		TaskID:      "task-1",
		Name:        "survey run",
		MissionType: "survey",
		DroneCount:  drones,
		MinBattery:  30,
		Waypoints: []v1.Waypoint{
			{Lat: 47.3980, Lon: 8.5460, Alt: 50},
			{Lat: 47.3990, Lon: 8.5470, Alt: 60},
		},
	}
}

func TestStationFliesMissionEndToEnd(t *testing.T) {
	s := newStation(t, 20*time.Millisecond)

	var mu sync.Mutex
	lifecycle := map[string]bool{}
	stop := s.bus.Subscribe(v1.TopicEvents, "test-collector", func(_ context.Context, env v1.Envelope) error {
		mu.Lock()
		lifecycle[env.Action] = true
		mu.Unlock()
		return nil
	})
	defer stop()

	result := s.submit(t, demoTask(2))
	if !result.Accepted || result.MissionID == "" {
		t.Fatalf("submit result = %+v, want acceptance with a mission id", result)
	}

	view := s.waitForMissionState(t, result.MissionID, string(orchentities.StateCompleted))
	if len(view.DroneIDs) != 2 {
		t.Fatalf("drone ids = %v, want both drones", view.DroneIDs)
	}
	if len(view.Outcomes) != 2 {
		t.Fatalf("outcomes = %v, want one per drone", view.Outcomes)
	}
	for _, outcome := range view.Outcomes {
		if outcome.Status != "completed" {
			t.Fatalf("outcome %+v, want completed", outcome)
		}
	}

	s.waitForAvailable(t, 2)

	// Lifecycle events reach the bus through the outbox relay.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := lifecycle[v1.RouteMissionCreated.Action] &&
			lifecycle[v1.RouteMissionStarted.Action] &&
			lifecycle[v1.RouteMissionCompleted.Action]
		mu.Unlock()
		if done {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	t.Fatalf("lifecycle events seen = %v, want created/started/completed", lifecycle)
}

func TestStationAbortsGroupWhenOneDroneFails(t *testing.T) {
	s := newStation(t, 20*time.Millisecond)

	drone, ok := s.drones.Drone("drone-02")
	if !ok {
		t.Fatal("drone-02 missing from the simulator roster")
	}
	drone.SetScript(dronesimapp.Script{
		FailActions: map[string]string{v1.RouteDroneArm.Action: v1.StatusRejected},
	})

	result := s.submit(t, demoTask(2))
	if !result.Accepted {
		t.Fatalf("submit result = %+v", result)
	}

	view := s.waitForMissionState(t, result.MissionID, string(orchentities.StateExecutionFailed))
	statuses := map[string]string{}
	for _, outcome := range view.Outcomes {
		statuses[outcome.DroneID] = outcome.Status
	}
	if statuses["drone-02"] != "failed" {
		t.Fatalf("drone-02 outcome = %q, want failed", statuses["drone-02"])
	}
	if statuses["drone-01"] != "aborted" && statuses["drone-01"] != "completed" {
		t.Fatalf("drone-01 outcome = %q, want aborted (or completed if it won the race)", statuses["drone-01"])
	}

	// The failed mission hands its drones back.
	s.waitForAvailable(t, 2)
}

func TestStationCancelsMissionMidFlight(t *testing.T) {
	s := newStation(t, 250*time.Millisecond)

	result := s.submit(t, demoTask(2))
	if !result.Accepted {
		t.Fatalf("submit result = %+v", result)
	}
	s.waitForMissionState(t, result.MissionID, string(orchentities.StateExecuting))

	env, err := v1.NewQuery(v1.RouteMissionCancel, "test", "", v1.CancelMission{
		MissionID: result.MissionID,
		Reason:    "operator abort",
	})
	if err != nil {
		t.Fatalf("new cancel query: %v", err)
	}
	response, err := s.bus.Request(context.Background(), env, 2*time.Second)
	if err != nil {
		t.Fatalf("cancel request: %v", err)
	}
	cancelResult, err := v1.Decode[v1.CancelResult](response)
	if err != nil {
		t.Fatalf("decode cancel result: %v", err)
	}
	if !cancelResult.Cancelled {
		t.Fatalf("cancel result = %+v, want cancelled", cancelResult)
	}

	s.waitForMissionState(t, result.MissionID, string(orchentities.StateCancelled))
	s.waitForAvailable(t, 2)
}

func TestStationRejectsOversizedMission(t *testing.T) {
	s := newStation(t, 20*time.Millisecond)

	result := s.submit(t, demoTask(3)) // only two drones exist
	if !result.Accepted {
		t.Fatalf("submit result = %+v, want asynchronous acceptance", result)
	}

	view := s.waitForMissionState(t, result.MissionID, string(orchentities.StateAllocationFailed))
	if view.Fault == nil || view.Fault.ErrorCode != v1.CodeDroneNotAvailable {
		t.Fatalf("fault = %v, want DRONE_NOT_AVAILABLE", view.Fault)
	}
	s.waitForAvailable(t, 2)
}
