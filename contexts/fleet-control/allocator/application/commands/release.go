package commands

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	application "skyward/contexts/fleet-control/allocator/application"
	"skyward/contexts/fleet-control/allocator/domain/entities"
	domainerrors "skyward/contexts/fleet-control/allocator/domain/errors"
	"skyward/contexts/fleet-control/allocator/ports"
)

type ReleaseCommand struct {
	MissionID string
}

type ReleaseResult struct {
	Released []string
}

// ReleaseUseCase returns a mission's drones to the pool. Idempotent:
// releasing a mission that holds no reservation is a no-op.
type ReleaseUseCase struct {
	Fleet     ports.FleetRepository
	Mirror    ports.FleetMirror
	Publisher ports.EventPublisher
	Guard     *sync.Mutex
	Logger    *slog.Logger
}

func (uc ReleaseUseCase) Execute(ctx context.Context, cmd ReleaseCommand) (ReleaseResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.MissionID) == "" {
		return ReleaseResult{}, domainerrors.ErrInvalidAllocationInput
	}

	uc.Guard.Lock()
	released, err := uc.Fleet.ReleaseMission(ctx, cmd.MissionID)
	uc.Guard.Unlock()
	if err != nil {
		return ReleaseResult{}, err
	}

	// The mirror can hold a reservation the in-memory state no longer
	// knows about (restart from a partial checkpoint), so the delete
	// runs even when nothing was released here.
	if uc.Mirror != nil {
		if err := uc.Mirror.DeleteReservation(ctx, cmd.MissionID); err != nil {
			logger.Error("reservation mirror delete failed",
				"event", "reservation_mirror_delete_failed",
				"module", "fleet-control/allocator",
				"layer", "application",
				"mission_id", cmd.MissionID,
				"error", err.Error(),
			)
		}
	}
	if len(released) == 0 {
		return ReleaseResult{}, nil
	}

	ids := make([]string, 0, len(released))
	for _, item := range released {
		PublishStatusChanged(ctx, uc.Publisher, logger, item.DroneID, item.From, entities.StatusAvailable)
		ids = append(ids, item.DroneID)
	}

	if uc.Mirror != nil {
		if drones, listErr := uc.Fleet.ListDrones(ctx); listErr == nil {
			if mirrorErr := uc.Mirror.SaveFleet(ctx, drones); mirrorErr != nil {
				logger.Error("fleet mirror checkpoint failed",
					"event", "fleet_mirror_checkpoint_failed",
					"module", "fleet-control/allocator",
					"layer", "application",
					"mission_id", cmd.MissionID,
					"error", mirrorErr.Error(),
				)
			}
		}
	}

	logger.Info("fleet released",
		"event", "fleet_released",
		"module", "fleet-control/allocator",
		"layer", "application",
		"mission_id", cmd.MissionID,
		"released", ids,
	)
	return ReleaseResult{Released: ids}, nil
}
