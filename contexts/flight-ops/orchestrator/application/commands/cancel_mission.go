package commands

import (
	"context"
	"log/slog"
	"strings"

	application "skyward/contexts/flight-ops/orchestrator/application"
	domainerrors "skyward/contexts/flight-ops/orchestrator/domain/errors"
	"skyward/contexts/flight-ops/orchestrator/ports"
)

type CancelMissionCommand struct {
	MissionID string
	Reason    string
}

// CancelMissionUseCase requests cancellation of an active mission. The
// state machine aborts every in-flight session and finalizes the
// mission as cancelled; a mission already in a terminal state is
// rejected.
type CancelMissionUseCase struct {
	Missions ports.MissionRepository
	Runner   *application.MissionRunner
	Logger   *slog.Logger
}

func (uc CancelMissionUseCase) Execute(ctx context.Context, cmd CancelMissionCommand) error {
	if strings.TrimSpace(cmd.MissionID) == "" {
		return domainerrors.ErrInvalidTask
	}
	if err := uc.Runner.Cancel(ctx, cmd.MissionID); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("mission cancellation requested",
		"event", "orchestrator_mission_cancel_requested",
		"module", "flight-ops/orchestrator",
		"layer", "application",
		"mission_id", cmd.MissionID,
		"reason", cmd.Reason,
	)
	return nil
}
