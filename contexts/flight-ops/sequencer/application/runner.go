package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"skyward/contexts/flight-ops/sequencer/domain/entities"
	"skyward/contexts/flight-ops/sequencer/ports"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

const sourceName = "sequencer"

// Timeouts is the per-step deadline and retry configuration. Only
// idempotent steps carry a retry budget; arm/takeoff/land/return fail
// on the first miss.
type Timeouts struct {
	HealthCheck   time.Duration
	UploadMission time.Duration
	Arm           time.Duration
	Takeoff       time.Duration
	Land          time.Duration
	ReturnToBase  time.Duration
	Abort         time.Duration
	Execution     time.Duration
	HealthRetries int
	HealthBackoff time.Duration
}

// Runner drives one drone through the command protocol: health check,
// upload, arm, takeoff, waypoint progress, then land or return. Steps
// run strictly in order; each waits for its terminal response before
// the next is issued. An abort signal interrupts whatever is in flight.
type Runner struct {
	Requester ports.Requester
	Publisher ports.EventPublisher
	Progress  *ProgressHub
	Timeouts  Timeouts
	Logger    *slog.Logger
}

func (r Runner) Run(
	ctx context.Context,
	missionID, droneID, missionType string,
	waypoints []v1.Waypoint,
	abort <-chan struct{},
) entities.Outcome {
	logger := ResolveLogger(r.Logger)

	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-abort:
			cancel()
		case <-stepCtx.Done():
		}
	}()

	for _, spec := range entities.LaunchSteps() {
		if outcome, terminal := r.runStep(stepCtx, spec, missionID, droneID, waypoints, abort); terminal {
			return r.finish(ctx, outcome, logger)
		}
	}

	if outcome, terminal := r.awaitProgress(stepCtx, missionID, droneID, abort); terminal {
		return r.finish(ctx, outcome, logger)
	}

	final := entities.FinalStep(missionType)
	if outcome, terminal := r.runStep(stepCtx, final, missionID, droneID, nil, abort); terminal {
		return r.finish(ctx, outcome, logger)
	}

	return r.finish(ctx, entities.Outcome{
		MissionID: missionID,
		DroneID:   droneID,
		Status:    entities.SessionCompleted,
		Step:      final.Step,
	}, logger)
}

// runStep issues one command and waits for its terminal response. The
// second return is true when the session must stop here: every failure
// and abort is terminal, a success only terminates after the final
// step (handled by the caller receiving terminal=false).
func (r Runner) runStep(
	ctx context.Context,
	spec entities.StepSpec,
	missionID, droneID string,
	waypoints []v1.Waypoint,
	abort <-chan struct{},
) (entities.Outcome, bool) {
	attempts := 1
	if spec.Retryable && r.Timeouts.HealthRetries > 0 {
		attempts += r.Timeouts.HealthRetries
	}

	var fault *v1.Fault
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.backoff(attempt)):
			case <-ctx.Done():
				return r.abortOutcome(missionID, droneID, spec.Step, abort), true
			}
		}

		env, err := v1.NewQuery(spec.Route, sourceName, droneID, v1.DroneCommand{
			MissionID: missionID,
			DroneID:   droneID,
			Waypoints: waypoints,
		})
		if err != nil {
			fault = v1.NewFault(v1.CodeInternalError, err.Error(), false)
			break
		}

		response, err := r.Requester.Request(ctx, env, r.timeoutFor(spec.Step))
		switch {
		case errors.Is(err, messaging.ErrRequestTimeout):
			fault = v1.NewFault(v1.CodeCommandTimeout, string(spec.Step)+" timed out", spec.Retryable)
			continue
		case err != nil:
			return r.abortOutcome(missionID, droneID, spec.Step, abort), true
		}

		result, err := v1.Decode[v1.CommandResult](response)
		if err != nil {
			fault = v1.NewFault(v1.CodeInternalError, err.Error(), false)
			break
		}
		if spec.Accepted(result.Status) {
			return entities.Outcome{}, false
		}
		fault = result.Fault
		if fault == nil {
			fault = v1.NewFault(v1.CodeMissionRejected, string(spec.Step)+" answered "+result.Status, false)
		}
		if !spec.Retryable || !fault.Retryable {
			break
		}
	}

	return entities.Outcome{
		MissionID: missionID,
		DroneID:   droneID,
		Status:    entities.SessionFailed,
		Step:      spec.Step,
		Fault:     fault,
	}, true
}

// awaitProgress suspends until the drone reports mission completion,
// the execution deadline lapses, or the session is aborted.
func (r Runner) awaitProgress(ctx context.Context, missionID, droneID string, abort <-chan struct{}) (entities.Outcome, bool) {
	updates, unregister := r.Progress.Register(missionID, droneID)
	defer unregister()

	deadline := time.NewTimer(r.Timeouts.Execution)
	defer deadline.Stop()

	for {
		select {
		case sample := <-updates:
			if sample.Status == v1.StatusFailed {
				return entities.Outcome{
					MissionID: missionID,
					DroneID:   droneID,
					Status:    entities.SessionFailed,
					Step:      entities.StepProgress,
					Fault:     v1.NewFault(v1.CodeInternalError, "drone reported mission failure", false),
				}, true
			}
			if sample.Progress >= 100 || sample.Status == v1.StatusCompleted {
				return entities.Outcome{}, false
			}
		case <-deadline.C:
			return entities.Outcome{
				MissionID: missionID,
				DroneID:   droneID,
				Status:    entities.SessionFailed,
				Step:      entities.StepProgress,
				Fault:     v1.NewFault(v1.CodeCommandTimeout, "mission execution deadline lapsed", false),
			}, true
		case <-ctx.Done():
			return r.abortOutcome(missionID, droneID, entities.StepProgress, abort), true
		}
	}
}

// abortOutcome distinguishes an abort signal from a plain context
// cancellation and, for aborts, issues the abort command to the drone
// on a fresh deadline so the interrupt reaches the vehicle even though
// the session context is gone.
func (r Runner) abortOutcome(missionID, droneID string, step entities.Step, abort <-chan struct{}) entities.Outcome {
	select {
	case <-abort:
	default:
		return entities.Outcome{
			MissionID: missionID,
			DroneID:   droneID,
			Status:    entities.SessionFailed,
			Step:      step,
			Fault:     v1.NewFault(v1.CodeInternalError, "session context cancelled", false),
		}
	}

	spec := entities.AbortStep()
	abortCtx, cancel := context.WithTimeout(context.Background(), r.Timeouts.Abort)
	defer cancel()

	outcome := entities.Outcome{
		MissionID: missionID,
		DroneID:   droneID,
		Status:    entities.SessionAborted,
		Step:      entities.StepAbort,
	}

	env, err := v1.NewQuery(spec.Route, sourceName, droneID, v1.DroneCommand{
		MissionID: missionID,
		DroneID:   droneID,
	})
	if err != nil {
		outcome.Fault = v1.NewFault(v1.CodeInternalError, err.Error(), false)
		return outcome
	}

	response, err := r.Requester.Request(abortCtx, env, r.Timeouts.Abort)
	if err != nil {
		outcome.Fault = v1.NewFault(v1.CodeCommandTimeout, "abort not acknowledged", false)
		return outcome
	}
	result, err := v1.Decode[v1.CommandResult](response)
	if err != nil || !spec.Accepted(result.Status) {
		outcome.Fault = v1.NewFault(v1.CodeInternalError, "abort rejected by drone", false)
	}
	return outcome
}

func (r Runner) finish(ctx context.Context, outcome entities.Outcome, logger *slog.Logger) entities.Outcome {
	logger.Info("drone session finished",
		"event", "sequencer_session_finished",
		"module", "flight-ops/sequencer",
		"layer", "application",
		"mission_id", outcome.MissionID,
		"drone_id", outcome.DroneID,
		"status", string(outcome.Status),
		"step", string(outcome.Step),
		"fault", outcome.Fault.String(),
	)

	if outcome.Status == entities.SessionFailed {
		if env, err := v1.NewEvent(v1.RouteRobotError, sourceName, v1.DroneOutcome{
			DroneID: outcome.DroneID,
			Status:  string(outcome.Status),
			Step:    string(outcome.Step),
			Fault:   outcome.Fault,
		}); err == nil {
			if err := r.Publisher.Publish(ctx, env); err != nil {
				logger.Error("robot.error publish failed",
					"event", "sequencer_robot_error_publish_failed",
					"module", "flight-ops/sequencer",
					"layer", "application",
					"drone_id", outcome.DroneID,
					"error", err.Error(),
				)
			}
		}
	}
	return outcome
}

func (r Runner) timeoutFor(step entities.Step) time.Duration {
	switch step {
	case entities.StepHealthCheck:
		return r.Timeouts.HealthCheck
	case entities.StepUploadMission:
		return r.Timeouts.UploadMission
	case entities.StepArm:
		return r.Timeouts.Arm
	case entities.StepTakeoff:
		return r.Timeouts.Takeoff
	case entities.StepLand:
		return r.Timeouts.Land
	case entities.StepReturnToBase:
		return r.Timeouts.ReturnToBase
	case entities.StepAbort:
		return r.Timeouts.Abort
	default:
		return r.Timeouts.Execution
	}
}

func (r Runner) backoff(attempt int) time.Duration {
	delay := r.Timeouts.HealthBackoff
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
