package commands

import (
	"context"
	"log/slog"
	"strings"

	application "skyward/contexts/flight-ops/orchestrator/application"
	"skyward/contexts/flight-ops/orchestrator/domain/entities"
	domainerrors "skyward/contexts/flight-ops/orchestrator/domain/errors"
	"skyward/contexts/flight-ops/orchestrator/ports"
	v1 "skyward/contracts/messages/v1"
)

type SubmitMissionCommand struct {
	Task v1.SubmitTask
}

type SubmitMissionResult struct {
	MissionID string
	State     entities.MissionState
}

// SubmitMissionUseCase accepts a task, persists the mission in its
// initial state and hands it to the state machine. The caller gets an
// acceptance immediately; planning, allocation and execution proceed
// asynchronously and surface as lifecycle events.
type SubmitMissionUseCase struct {
	Missions ports.MissionRepository
	Mirror   ports.MissionMirror
	Outbox   ports.OutboxWriter
	Runner   *application.MissionRunner
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func (uc SubmitMissionUseCase) Execute(ctx context.Context, cmd SubmitMissionCommand) (SubmitMissionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	task := cmd.Task
	if strings.TrimSpace(task.TaskID) == "" || task.DroneCount < 0 {
		return SubmitMissionResult{}, domainerrors.ErrInvalidTask
	}

	missionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return SubmitMissionResult{}, err
	}

	now := uc.Clock.Now().UTC()
	mission := entities.Mission{
		MissionID:     missionID,
		TaskID:        task.TaskID,
		Name:          task.Name,
		MissionType:   task.MissionType,
		State:         entities.StateReceived,
		RequiredCount: task.DroneCount,
		MinBattery:    task.MinBattery,
		Capabilities:  task.Capabilities,
		WindowStart:   task.Window.Start,
		WindowEnd:     task.Window.End,
		Waypoints:     task.Waypoints,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.Missions.CreateMission(ctx, mission); err != nil {
		return SubmitMissionResult{}, err
	}
	if uc.Mirror != nil {
		if err := uc.Mirror.SaveMission(ctx, mission); err != nil {
			logger.Error("mission mirror checkpoint failed",
				"event", "orchestrator_mission_mirror_failed",
				"module", "flight-ops/orchestrator",
				"layer", "application",
				"mission_id", missionID,
				"error", err.Error(),
			)
		}
	}
	application.EmitLifecycle(ctx, uc.Outbox, uc.IDGen, uc.Clock, uc.Logger, mission, v1.RouteMissionCreated)

	uc.Runner.Launch(mission)

	logger.Info("mission accepted",
		"event", "orchestrator_mission_accepted",
		"module", "flight-ops/orchestrator",
		"layer", "application",
		"mission_id", missionID,
		"task_id", task.TaskID,
		"drone_count", task.DroneCount,
	)
	return SubmitMissionResult{MissionID: missionID, State: entities.StateReceived}, nil
}
