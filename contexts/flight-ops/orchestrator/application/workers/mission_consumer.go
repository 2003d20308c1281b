package workers

import (
	"context"
	"errors"
	"log/slog"

	application "skyward/contexts/flight-ops/orchestrator/application"
	"skyward/contexts/flight-ops/orchestrator/application/commands"
	"skyward/contexts/flight-ops/orchestrator/application/queries"
	domainerrors "skyward/contexts/flight-ops/orchestrator/domain/errors"
	"skyward/contexts/flight-ops/orchestrator/ports"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

const subscriberName = "orchestrator"

// MissionConsumer serves the task.submit / mission.cancel / mission.get
// queries on the mission topic.
type MissionConsumer struct {
	Subscriber ports.BusSubscriber
	Responder  ports.Responder
	Submit     commands.SubmitMissionUseCase
	Cancel     commands.CancelMissionUseCase
	Get        queries.GetMissionUseCase
	Dedup      *messaging.Dedup
	Logger     *slog.Logger
}

func (c MissionConsumer) Start(_ context.Context) func() {
	return c.Subscriber.Subscribe(v1.TopicMission, subscriberName, c.handle)
}

func (c MissionConsumer) handle(ctx context.Context, env v1.Envelope) error {
	if env.Type != v1.TypeQuery && env.Type != v1.TypeCommand {
		return nil
	}
	if c.Dedup.Seen(env.MessageID) {
		return nil
	}

	switch env.Action {
	case v1.RouteTaskSubmit.Action:
		return c.handleSubmit(ctx, env)
	case v1.RouteMissionCancel.Action:
		return c.handleCancel(ctx, env)
	case v1.RouteMissionGet.Action:
		return c.handleGet(ctx, env)
	default:
		application.ResolveLogger(c.Logger).Warn("unknown mission action discarded",
			"event", "orchestrator_unknown_action",
			"module", "flight-ops/orchestrator",
			"layer", "worker",
			"action", env.Action,
			"message_id", env.MessageID,
		)
		return nil
	}
}

func (c MissionConsumer) handleSubmit(ctx context.Context, env v1.Envelope) error {
	task, err := v1.Decode[v1.SubmitTask](env)
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.SubmitResult{
			Fault: v1.NewFault(v1.CodeValidationError, err.Error(), false),
		})
	}
	result, err := c.Submit.Execute(ctx, commands.SubmitMissionCommand{Task: task})
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.SubmitResult{Fault: submitFault(err)})
	}
	return c.Responder.Respond(ctx, env, subscriberName, v1.SubmitResult{
		Accepted:  true,
		MissionID: result.MissionID,
	})
}

func (c MissionConsumer) handleCancel(ctx context.Context, env v1.Envelope) error {
	request, err := v1.Decode[v1.CancelMission](env)
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.CancelResult{
			Fault: v1.NewFault(v1.CodeValidationError, err.Error(), false),
		})
	}
	if err := c.Cancel.Execute(ctx, commands.CancelMissionCommand{
		MissionID: request.MissionID,
		Reason:    request.Reason,
	}); err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.CancelResult{
			MissionID: request.MissionID,
			Fault:     cancelFault(err),
		})
	}
	return c.Responder.Respond(ctx, env, subscriberName, v1.CancelResult{
		Cancelled: true,
		MissionID: request.MissionID,
	})
}

func (c MissionConsumer) handleGet(ctx context.Context, env v1.Envelope) error {
	request, err := v1.Decode[v1.GetMission](env)
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.MissionView{
			Fault: v1.NewFault(v1.CodeValidationError, err.Error(), false),
		})
	}
	view, err := c.Get.Execute(ctx, request.MissionID)
	if err != nil {
		return c.Responder.Respond(ctx, env, subscriberName, v1.MissionView{
			MissionID: request.MissionID,
			Fault:     v1.NewFault(v1.CodeInternalError, err.Error(), false),
		})
	}
	return c.Responder.Respond(ctx, env, subscriberName, view)
}

func submitFault(err error) *v1.Fault {
	switch {
	case errors.Is(err, domainerrors.ErrInvalidTask):
		return v1.NewFault(v1.CodeValidationError, err.Error(), false)
	case errors.Is(err, domainerrors.ErrMissionExists):
		return v1.NewFault(v1.CodeMissionRejected, err.Error(), false)
	default:
		return v1.NewFault(v1.CodeInternalError, err.Error(), false)
	}
}

func cancelFault(err error) *v1.Fault {
	switch {
	case errors.Is(err, domainerrors.ErrMissionNotFound):
		return v1.NewFault(v1.CodeValidationError, err.Error(), false)
	case errors.Is(err, domainerrors.ErrMissionTerminal):
		return v1.NewFault(v1.CodeMissionRejected, err.Error(), false)
	case errors.Is(err, domainerrors.ErrInvalidTask):
		return v1.NewFault(v1.CodeValidationError, err.Error(), false)
	default:
		return v1.NewFault(v1.CodeInternalError, err.Error(), false)
	}
}
