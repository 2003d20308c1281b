package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"skyward/contexts/flight-ops/orchestrator/domain/entities"
	domainerrors "skyward/contexts/flight-ops/orchestrator/domain/errors"
	"skyward/contexts/flight-ops/orchestrator/ports"
	v1 "skyward/contracts/messages/v1"
)

const sourceName = "orchestrator"

// Config carries the orchestration deadlines and planning defaults.
type Config struct {
	AllocateTimeout   time.Duration
	ReleaseTimeout    time.Duration
	DockTimeout       time.Duration
	MaxActiveMission  time.Duration
	DefaultMinBattery float64
}

// MissionRunner owns the mission state machine. One goroutine drives
// one mission from received to a terminal state; no two goroutines
// mutate the same mission. Missions are independent of each other;
// the only cross-mission state is fleet state behind the allocator.
type MissionRunner struct {
	Missions  ports.MissionRepository
	Mirror    ports.MissionMirror
	Outbox    ports.OutboxWriter
	Publisher ports.EventPublisher
	Requester ports.Requester
	Sessions  ports.SessionRunner
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Config    Config
	Logger    *slog.Logger

	mu     sync.Mutex
	active map[string]*execution
}

// execution is the live control block of one executing mission: one
// abort channel per drone session plus the cancellation flag.
type execution struct {
	mu        sync.Mutex
	aborts    map[string]chan struct{}
	forced    map[string]*v1.Fault
	cancelled bool
	cancel    context.CancelFunc
}

func (e *execution) prepare(droneIDs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, droneID := range droneIDs {
		e.aborts[droneID] = make(chan struct{})
	}
}

func (e *execution) abortChan(droneID string) <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborts[droneID]
}

func (e *execution) abortDrone(droneID string, fault *v1.Fault) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.aborts[droneID]
	if !ok {
		return
	}
	if fault != nil {
		if _, forced := e.forced[droneID]; !forced {
			e.forced[droneID] = fault
		}
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (e *execution) abortAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.aborts))
	for droneID := range e.aborts {
		ids = append(ids, droneID)
	}
	e.mu.Unlock()
	for _, droneID := range ids {
		e.abortDrone(droneID, nil)
	}
}

func (e *execution) forcedFault(droneID string) *v1.Fault {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forced[droneID]
}

func (e *execution) markCancelled() {
	e.mu.Lock()
	e.cancelled = true
	e.mu.Unlock()
}

func (e *execution) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// Launch starts the state machine for a freshly received mission. The
// maximum active-mission timeout bounds the whole run so no mission can
// be left in a non-terminal state forever.
func (r *MissionRunner) Launch(mission entities.Mission) {
	runCtx, cancel := context.WithTimeout(context.Background(), r.Config.MaxActiveMission)

	exec := &execution{
		aborts: make(map[string]chan struct{}),
		forced: make(map[string]*v1.Fault),
		cancel: cancel,
	}
	r.mu.Lock()
	if r.active == nil {
		r.active = make(map[string]*execution)
	}
	r.active[mission.MissionID] = exec
	r.mu.Unlock()

	go func() {
		defer cancel()
		defer func() {
			r.mu.Lock()
			delete(r.active, mission.MissionID)
			r.mu.Unlock()
		}()
		r.run(runCtx, mission, exec)
	}()
}

// Cancel moves an active mission toward cancelled: every outstanding
// session is aborted and the state machine finalizes the mission.
func (r *MissionRunner) Cancel(ctx context.Context, missionID string) error {
	mission, err := r.Missions.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if mission.State.Terminal() {
		return domainerrors.ErrMissionTerminal
	}

	r.mu.Lock()
	exec := r.active[missionID]
	r.mu.Unlock()

	if exec == nil {
		// No live goroutine for a non-terminal mission: finalize here.
		r.finishCancelled(ctx, &mission, nil)
		return nil
	}
	exec.markCancelled()
	exec.abortAll()
	return nil
}

// FailDrone applies a telemetry verdict to an in-flight session: the
// drone's session is interrupted immediately instead of waiting for
// its current step to time out.
func (r *MissionRunner) FailDrone(missionID, droneID string, fault *v1.Fault) {
	r.mu.Lock()
	exec := r.active[missionID]
	r.mu.Unlock()
	if exec == nil || exec.isCancelled() {
		return
	}
	exec.abortDrone(droneID, fault)
}

// HasActiveDrone reports whether the mission is live and flying the
// drone.
func (r *MissionRunner) HasActiveDrone(missionID, droneID string) bool {
	r.mu.Lock()
	exec := r.active[missionID]
	r.mu.Unlock()
	if exec == nil {
		return false
	}
	exec.mu.Lock()
	defer exec.mu.Unlock()
	_, ok := exec.aborts[droneID]
	return ok
}

func (r *MissionRunner) run(ctx context.Context, mission entities.Mission, exec *execution) {
	plan, err := r.plan(mission)
	if err != nil {
		mission.Fault = v1.NewFault(v1.CodeValidationError, err.Error(), false)
		r.persist(ctx, &mission, entities.StatePlanningFailed)
		r.emitLifecycle(ctx, mission, v1.RouteMissionFailed)
		return
	}
	mission.RequiredCount = plan.RequiredCount
	r.persist(ctx, &mission, entities.StatePlanned)

	if exec.isCancelled() {
		r.finishCancelled(ctx, &mission, exec)
		return
	}

	r.persist(ctx, &mission, entities.StateAllocating)
	granted, fault := r.allocate(ctx, mission, plan)
	if fault != nil {
		mission.Fault = fault
		r.persist(ctx, &mission, entities.StateAllocationFailed)
		r.emitLifecycle(ctx, mission, v1.RouteMissionFailed)
		return
	}
	mission.DroneIDs = granted
	r.persist(ctx, &mission, entities.StateAllocated)
	r.publishDirect(ctx, v1.RouteGroupFormed, v1.GroupFormed{MissionID: mission.MissionID, DroneIDs: granted})

	if exec.isCancelled() {
		r.finishCancelled(ctx, &mission, exec)
		return
	}

	if fault := r.prelaunch(ctx, mission, plan); fault != nil {
		mission.Fault = fault
		r.persist(ctx, &mission, entities.StateExecutionFailed)
		r.emitLifecycle(ctx, mission, v1.RouteMissionFailed)
		r.publishDirect(ctx, v1.RouteExecutionFailed, v1.MissionEvent{
			MissionID: mission.MissionID,
			State:     string(entities.StateExecutionFailed),
			Fault:     fault,
		})
		r.releaseFleet(ctx, mission.MissionID)
		return
	}

	if exec.isCancelled() {
		r.finishCancelled(ctx, &mission, exec)
		return
	}

	r.persist(ctx, &mission, entities.StateExecuting)
	r.emitLifecycle(ctx, mission, v1.RouteMissionStarted)
	r.publishDirect(ctx, v1.RouteExecutionStarted, v1.GroupFormed{MissionID: mission.MissionID, DroneIDs: granted})

	outcomes := r.execute(ctx, mission, exec)
	mission.Outcomes = outcomes

	if exec.isCancelled() {
		r.finishCancelled(ctx, &mission, exec)
		return
	}

	if failed := firstFailure(outcomes); failed != nil {
		mission.Fault = failed.Fault
		r.persist(ctx, &mission, entities.StateExecutionFailed)
		r.emitLifecycle(ctx, mission, v1.RouteMissionFailed)
		r.publishDirect(ctx, v1.RouteExecutionFailed, v1.MissionEvent{
			MissionID: mission.MissionID,
			State:     string(entities.StateExecutionFailed),
			Outcomes:  outcomes,
			Fault:     failed.Fault,
		})
		r.releaseFleet(ctx, mission.MissionID)
		return
	}

	r.persist(ctx, &mission, entities.StateCompleted)
	r.emitLifecycle(ctx, mission, v1.RouteMissionCompleted)
	r.publishDirect(ctx, v1.RouteExecutionCompleted, v1.MissionEvent{
		MissionID: mission.MissionID,
		State:     string(entities.StateCompleted),
		Outcomes:  outcomes,
	})
	r.releaseFleet(ctx, mission.MissionID)
}

func (r *MissionRunner) plan(mission entities.Mission) (entities.Plan, error) {
	if len(mission.Waypoints) == 0 {
		return entities.Plan{}, domainerrors.ErrInvalidTask
	}
	if !mission.WindowEnd.IsZero() && mission.WindowEnd.Before(mission.WindowStart) {
		return entities.Plan{}, domainerrors.ErrInvalidTask
	}
	count := mission.RequiredCount
	if count < 1 {
		count = 1
	}
	minBattery := mission.MinBattery
	if minBattery <= 0 {
		minBattery = r.Config.DefaultMinBattery
	}
	return entities.Plan{
		RequiredCount: count,
		Constraints: v1.Constraints{
			Capabilities: mission.Capabilities,
			MinBattery:   minBattery,
		},
		Window: v1.Window{Start: mission.WindowStart, End: mission.WindowEnd},
	}, nil
}

func (r *MissionRunner) allocate(ctx context.Context, mission entities.Mission, plan entities.Plan) ([]string, *v1.Fault) {
	env, err := v1.NewQuery(v1.RouteFleetAllocate, sourceName, "", v1.AllocateRequest{
		MissionID:     mission.MissionID,
		RequiredCount: plan.RequiredCount,
		Constraints:   plan.Constraints,
		Window:        plan.Window,
	})
	if err != nil {
		return nil, v1.NewFault(v1.CodeInternalError, err.Error(), false)
	}
	response, err := r.Requester.Request(ctx, env, r.Config.AllocateTimeout)
	if err != nil {
		return nil, v1.NewFault(v1.CodeCommandTimeout, "fleet.allocate: "+err.Error(), true)
	}
	result, err := v1.Decode[v1.AllocateResult](response)
	if err != nil {
		return nil, v1.NewFault(v1.CodeInternalError, err.Error(), false)
	}
	if result.Fault != nil {
		return nil, result.Fault
	}
	if len(result.Granted) == 0 {
		return nil, v1.NewFault(v1.CodeDroneNotAvailable, "allocator granted no drones", true)
	}
	return result.Granted, nil
}

// prelaunch walks the dock facility through slot reservation, preflight
// checks, charging to the mission battery floor, and release for
// takeoff.
func (r *MissionRunner) prelaunch(ctx context.Context, mission entities.Mission, plan entities.Plan) *v1.Fault {
	request := v1.DockRequest{
		MissionID:  mission.MissionID,
		DroneIDs:   mission.DroneIDs,
		MinBattery: plan.Constraints.MinBattery,
		Window:     plan.Window,
	}
	steps := []struct {
		route  v1.Route
		accept string
	}{
		{v1.RouteDockReserveSlots, v1.StatusReserved},
		{v1.RouteDockPreflightCheck, v1.StatusPreflightOK},
		{v1.RouteDockChargeToThreshold, v1.StatusChargeCompleted},
		{v1.RouteDockReleaseForTakeoff, v1.StatusReleaseAck},
	}
	for _, step := range steps {
		if fault := r.dockQuery(ctx, step.route, step.accept, request); fault != nil {
			return fault
		}
	}
	return nil
}

func (r *MissionRunner) dockQuery(ctx context.Context, route v1.Route, accept string, request v1.DockRequest) *v1.Fault {
	env, err := v1.NewQuery(route, sourceName, "", request)
	if err != nil {
		return v1.NewFault(v1.CodeInternalError, err.Error(), false)
	}
	response, err := r.Requester.Request(ctx, env, r.Config.DockTimeout)
	if err != nil {
		return v1.NewFault(v1.CodeCommandTimeout, route.Action+": no response from dock", true)
	}
	result, err := v1.Decode[v1.DockResult](response)
	if err != nil {
		return v1.NewFault(v1.CodeInternalError, err.Error(), false)
	}
	if result.Status != accept {
		if result.Fault != nil {
			return result.Fault
		}
		return v1.NewFault(v1.CodePortUnavailable, route.Action+" answered "+result.Status, false)
	}
	return nil
}

// execute runs one sequencer session per allocated drone. Sessions run
// concurrently; the first unrecoverable failure aborts every other
// in-flight session of this mission.
func (r *MissionRunner) execute(ctx context.Context, mission entities.Mission, exec *execution) []v1.DroneOutcome {
	exec.prepare(mission.DroneIDs)

	var (
		mu       sync.Mutex
		outcomes []v1.DroneOutcome
	)

	group := new(errgroup.Group)
	for _, droneID := range mission.DroneIDs {
		droneID := droneID
		group.Go(func() error {
			outcome := r.Sessions.Run(ctx, mission.MissionID, droneID, mission.MissionType, mission.Waypoints, exec.abortChan(droneID))

			// A session interrupted by a telemetry verdict surfaces as
			// aborted; the verdict fault makes it the drone's failure.
			status := outcome.Status
			fault := outcome.Fault
			if forced := exec.forcedFault(droneID); forced != nil && status == "aborted" {
				status = "failed"
				fault = forced
			}

			mu.Lock()
			outcomes = append(outcomes, v1.DroneOutcome{
				DroneID: droneID,
				Status:  status,
				Step:    outcome.Step,
				Fault:   fault,
			})
			mu.Unlock()

			if status == "failed" && !exec.isCancelled() {
				exec.abortAll()
			}
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

func (r *MissionRunner) finishCancelled(ctx context.Context, mission *entities.Mission, exec *execution) {
	if exec != nil {
		exec.abortAll()
	}
	r.persist(ctx, mission, entities.StateCancelled)
	r.emitLifecycle(ctx, *mission, v1.RouteMissionCancelled)
	r.emergencyReceive(ctx, *mission)
	r.releaseFleet(ctx, mission.MissionID)
}

// emergencyReceive asks the dock facility to take back every drone of a
// cancelled mission.
func (r *MissionRunner) emergencyReceive(ctx context.Context, mission entities.Mission) {
	if len(mission.DroneIDs) == 0 {
		return
	}
	logger := ResolveLogger(r.Logger)
	for _, droneID := range mission.DroneIDs {
		env, err := v1.NewQuery(v1.RouteDockEmergencyReceive, sourceName, "", v1.DockRequest{
			MissionID: mission.MissionID,
			DroneID:   droneID,
		})
		if err != nil {
			continue
		}
		if _, err := r.Requester.Request(ctx, env, r.Config.DockTimeout); err != nil {
			logger.Warn("emergency receive not acknowledged",
				"event", "orchestrator_emergency_receive_failed",
				"module", "flight-ops/orchestrator",
				"layer", "application",
				"mission_id", mission.MissionID,
				"drone_id", droneID,
				"error", err.Error(),
			)
		}
	}
}

func (r *MissionRunner) releaseFleet(ctx context.Context, missionID string) {
	env, err := v1.NewQuery(v1.RouteFleetRelease, sourceName, "", v1.ReleaseRequest{MissionID: missionID})
	if err == nil {
		_, err = r.Requester.Request(ctx, env, r.Config.ReleaseTimeout)
	}
	if err != nil {
		ResolveLogger(r.Logger).Error("fleet release failed",
			"event", "orchestrator_fleet_release_failed",
			"module", "flight-ops/orchestrator",
			"layer", "application",
			"mission_id", missionID,
			"error", err.Error(),
		)
	}
}

// persist applies the transition to the authoritative copy and
// checkpoints the mirror.
func (r *MissionRunner) persist(ctx context.Context, mission *entities.Mission, state entities.MissionState) {
	logger := ResolveLogger(r.Logger)
	previous := mission.State
	mission.State = state
	mission.UpdatedAt = r.Clock.Now().UTC()

	if err := r.Missions.UpdateMission(ctx, *mission); err != nil {
		logger.Error("mission update failed",
			"event", "orchestrator_mission_update_failed",
			"module", "flight-ops/orchestrator",
			"layer", "application",
			"mission_id", mission.MissionID,
			"state", string(state),
			"error", err.Error(),
		)
	}
	if r.Mirror != nil {
		if err := r.Mirror.SaveMission(ctx, *mission); err != nil {
			logger.Error("mission mirror checkpoint failed",
				"event", "orchestrator_mission_mirror_failed",
				"module", "flight-ops/orchestrator",
				"layer", "application",
				"mission_id", mission.MissionID,
				"error", err.Error(),
			)
		}
	}

	logger.Info("mission state changed",
		"event", "orchestrator_mission_state_changed",
		"module", "flight-ops/orchestrator",
		"layer", "application",
		"mission_id", mission.MissionID,
		"from", string(previous),
		"to", string(state),
	)
}

// emitLifecycle appends the lifecycle event to the outbox; the relay
// worker publishes it exactly once.
func (r *MissionRunner) emitLifecycle(ctx context.Context, mission entities.Mission, route v1.Route) {
	EmitLifecycle(ctx, r.Outbox, r.IDGen, r.Clock, r.Logger, mission, route)
}

func (r *MissionRunner) publishDirect(ctx context.Context, route v1.Route, payload any) {
	env, err := v1.NewEvent(route, sourceName, payload)
	if err == nil {
		err = r.Publisher.Publish(ctx, env)
	}
	if err != nil {
		ResolveLogger(r.Logger).Error("orchestration event publish failed",
			"event", "orchestrator_event_publish_failed",
			"module", "flight-ops/orchestrator",
			"layer", "application",
			"action", route.Action,
			"error", err.Error(),
		)
	}
}

func firstFailure(outcomes []v1.DroneOutcome) *v1.DroneOutcome {
	for i := range outcomes {
		if outcomes[i].Status == "failed" {
			return &outcomes[i]
		}
	}
	return nil
}

// EmitLifecycle writes one mission lifecycle event to the outbox. Shared
// with the submit use case, which emits mission.created before the state
// machine starts.
func EmitLifecycle(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	clock ports.Clock,
	logger *slog.Logger,
	mission entities.Mission,
	route v1.Route,
) {
	log := ResolveLogger(logger)
	payload, err := json.Marshal(v1.MissionEvent{
		MissionID: mission.MissionID,
		State:     string(mission.State),
		DroneIDs:  mission.DroneIDs,
		Outcomes:  mission.Outcomes,
		Fault:     mission.Fault,
	})
	if err != nil {
		log.Error("lifecycle payload marshal failed",
			"event", "orchestrator_lifecycle_marshal_failed",
			"module", "flight-ops/orchestrator",
			"layer", "application",
			"mission_id", mission.MissionID,
			"error", err.Error(),
		)
		return
	}
	outboxID, err := idGen.NewID(ctx)
	if err != nil {
		log.Error("lifecycle outbox id failed",
			"event", "orchestrator_lifecycle_id_failed",
			"module", "flight-ops/orchestrator",
			"layer", "application",
			"mission_id", mission.MissionID,
			"error", err.Error(),
		)
		return
	}
	if err := outbox.AppendOutbox(ctx, ports.OutboxEvent{
		OutboxID:  outboxID,
		Topic:     route.Topic,
		Action:    route.Action,
		Payload:   payload,
		CreatedAt: clock.Now().UTC(),
	}); err != nil {
		log.Error("lifecycle outbox append failed",
			"event", "orchestrator_lifecycle_append_failed",
			"module", "flight-ops/orchestrator",
			"layer", "application",
			"mission_id", mission.MissionID,
			"action", route.Action,
			"error", err.Error(),
		)
	}
}
