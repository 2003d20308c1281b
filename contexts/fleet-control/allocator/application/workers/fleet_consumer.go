package workers

import (
	"context"
	"errors"
	"log/slog"

	application "skyward/contexts/fleet-control/allocator/application"
	"skyward/contexts/fleet-control/allocator/application/commands"
	"skyward/contexts/fleet-control/allocator/application/queries"
	domainerrors "skyward/contexts/fleet-control/allocator/domain/errors"
	"skyward/contexts/fleet-control/allocator/ports"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

const subscriberName = "allocator"

// FleetConsumer serves the fleet.allocate / fleet.release /
// fleet.get_status queries on the fleet topic.
type FleetConsumer struct {
	Subscriber ports.BusSubscriber
	Responder  ports.Responder
	Allocate   commands.AllocateUseCase
	Release    commands.ReleaseUseCase
	Status     queries.FleetStatusUseCase
	Dedup      *messaging.Dedup
	Logger     *slog.Logger
}

func (c FleetConsumer) Start(_ context.Context) func() {
	return c.Subscriber.Subscribe(v1.TopicFleet, subscriberName, c.handle)
}

func (c FleetConsumer) handle(ctx context.Context, env v1.Envelope) error {
	if env.Type != v1.TypeQuery && env.Type != v1.TypeCommand {
		return nil
	}
	if c.Dedup.Seen(env.MessageID) {
		return nil
	}

	switch env.Action {
	case v1.RouteFleetAllocate.Action:
		return c.handleAllocate(ctx, env)
	case v1.RouteFleetRelease.Action:
		return c.handleRelease(ctx, env)
	case v1.RouteFleetStatus.Action:
		return c.handleStatus(ctx, env)
	default:
		application.ResolveLogger(c.Logger).Warn("unknown fleet action discarded",
			"event", "fleet_unknown_action",
			"module", "fleet-control/allocator",
			"layer", "worker",
			"action", env.Action,
			"message_id", env.MessageID,
		)
		return nil
	}
}

func (c FleetConsumer) handleAllocate(ctx context.Context, env v1.Envelope) error {
	request, err := v1.Decode[v1.AllocateRequest](env)
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.AllocateResult{
			Fault: v1.NewFault(v1.CodeValidationError, err.Error(), false),
		})
	}

	result, err := c.Allocate.Execute(ctx, commands.AllocateCommand{
		MissionID:     request.MissionID,
		RequiredCount: request.RequiredCount,
		Constraints:   request.Constraints,
		WindowStart:   request.Window.Start,
		WindowEnd:     request.Window.End,
	})
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.AllocateResult{Fault: allocationFault(err)})
	}
	return c.Responder.Respond(ctx, env, subscriberName, v1.AllocateResult{Granted: result.Granted})
}

func (c FleetConsumer) handleRelease(ctx context.Context, env v1.Envelope) error {
	request, err := v1.Decode[v1.ReleaseRequest](env)
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.ReleaseResult{})
	}
	result, err := c.Release.Execute(ctx, commands.ReleaseCommand{MissionID: request.MissionID})
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.ReleaseResult{})
	}
	return c.Responder.Respond(ctx, env, subscriberName, v1.ReleaseResult{Released: result.Released})
}

func (c FleetConsumer) handleStatus(ctx context.Context, env v1.Envelope) error {
	status, err := c.Status.Execute(ctx)
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.FleetStatus{})
	}
	return c.Responder.Respond(ctx, env, subscriberName, status)
}

func allocationFault(err error) *v1.Fault {
	switch {
	case errors.Is(err, domainerrors.ErrFleetShortage),
		errors.Is(err, domainerrors.ErrDroneNotAvailable):
		return v1.NewFault(v1.CodeDroneNotAvailable, err.Error(), true)
	case errors.Is(err, domainerrors.ErrDuplicateReservation):
		return v1.NewFault(v1.CodeMissionRejected, err.Error(), false)
	case errors.Is(err, domainerrors.ErrInvalidAllocationInput):
		return v1.NewFault(v1.CodeValidationError, err.Error(), false)
	default:
		return v1.NewFault(v1.CodeInternalError, err.Error(), false)
	}
}
