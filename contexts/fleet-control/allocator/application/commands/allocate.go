package commands

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	application "skyward/contexts/fleet-control/allocator/application"
	"skyward/contexts/fleet-control/allocator/domain/entities"
	domainerrors "skyward/contexts/fleet-control/allocator/domain/errors"
	"skyward/contexts/fleet-control/allocator/ports"
	v1 "skyward/contracts/messages/v1"
)

type AllocateCommand struct {
	MissionID     string
	RequiredCount int
	Constraints   v1.Constraints
	WindowStart   time.Time
	WindowEnd     time.Time
}

type AllocateResult struct {
	Granted []string
}

// AllocateUseCase reserves drones for a mission, all-or-nothing. Guard
// is the single logical lock over fleet state shared with the release
// use case so no two concurrent allocations can both observe the same
// drone as available.
type AllocateUseCase struct {
	Fleet     ports.FleetRepository
	Mirror    ports.FleetMirror
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Guard     *sync.Mutex
	Logger    *slog.Logger
}

func (uc AllocateUseCase) Execute(ctx context.Context, cmd AllocateCommand) (AllocateResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.MissionID) == "" || cmd.RequiredCount < 1 {
		return AllocateResult{}, domainerrors.ErrInvalidAllocationInput
	}

	uc.Guard.Lock()
	granted, err := uc.reserve(ctx, cmd)
	uc.Guard.Unlock()
	if err != nil {
		logger.Info("fleet allocation rejected",
			"event", "fleet_allocation_rejected",
			"module", "fleet-control/allocator",
			"layer", "application",
			"mission_id", cmd.MissionID,
			"required_count", cmd.RequiredCount,
			"error", err.Error(),
		)
		return AllocateResult{}, err
	}

	uc.publishAllocated(ctx, cmd.MissionID, granted)
	uc.checkpoint(ctx, cmd.MissionID)

	logger.Info("fleet allocated",
		"event", "fleet_allocated",
		"module", "fleet-control/allocator",
		"layer", "application",
		"mission_id", cmd.MissionID,
		"granted", granted,
	)
	return AllocateResult{Granted: granted}, nil
}

func (uc AllocateUseCase) reserve(ctx context.Context, cmd AllocateCommand) ([]string, error) {
	if _, held, err := uc.Fleet.GetReservation(ctx, cmd.MissionID); err != nil {
		return nil, err
	} else if held {
		return nil, domainerrors.ErrDuplicateReservation
	}

	drones, err := uc.Fleet.ListDrones(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]entities.DroneState, 0, len(drones))
	for _, drone := range drones {
		if drone.Status != entities.StatusAvailable {
			continue
		}
		if !drone.HasCapabilities(cmd.Constraints.Capabilities) {
			continue
		}
		if cmd.Constraints.MinBattery > 0 && drone.Telemetry.Battery < cmd.Constraints.MinBattery {
			continue
		}
		candidates = append(candidates, drone)
	}

	// Battery descending, then id, for a deterministic grant order.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Telemetry.Battery != candidates[j].Telemetry.Battery {
			return candidates[i].Telemetry.Battery > candidates[j].Telemetry.Battery
		}
		return candidates[i].DroneID < candidates[j].DroneID
	})

	if len(candidates) < cmd.RequiredCount {
		return nil, domainerrors.ErrFleetShortage
	}

	granted := make([]string, 0, cmd.RequiredCount)
	for _, drone := range candidates[:cmd.RequiredCount] {
		granted = append(granted, drone.DroneID)
	}

	reservation := entities.Reservation{
		MissionID:   cmd.MissionID,
		DroneIDs:    granted,
		WindowStart: cmd.WindowStart,
		WindowEnd:   cmd.WindowEnd,
		CreatedAt:   uc.Clock.Now().UTC(),
	}
	if err := uc.Fleet.ReserveDrones(ctx, reservation); err != nil {
		return nil, err
	}
	return granted, nil
}

func (uc AllocateUseCase) publishAllocated(ctx context.Context, missionID string, granted []string) {
	logger := application.ResolveLogger(uc.Logger)

	if env, err := v1.NewEvent(v1.RouteFleetAllocated, "allocator", v1.GroupFormed{
		MissionID: missionID,
		DroneIDs:  granted,
	}); err == nil {
		if err := uc.Publisher.Publish(ctx, env); err != nil {
			logger.Error("fleet.allocated publish failed",
				"event", "fleet_allocated_publish_failed",
				"module", "fleet-control/allocator",
				"layer", "application",
				"mission_id", missionID,
				"error", err.Error(),
			)
		}
	}

	for _, droneID := range granted {
		PublishStatusChanged(ctx, uc.Publisher, logger, droneID, entities.StatusAvailable, entities.StatusReserved)
	}
}

func (uc AllocateUseCase) checkpoint(ctx context.Context, missionID string) {
	if uc.Mirror == nil {
		return
	}
	logger := application.ResolveLogger(uc.Logger)
	drones, err := uc.Fleet.ListDrones(ctx)
	if err == nil {
		err = uc.Mirror.SaveFleet(ctx, drones)
	}
	if err == nil {
		if reservation, held, resErr := uc.Fleet.GetReservation(ctx, missionID); resErr != nil {
			err = resErr
		} else if held {
			err = uc.Mirror.SaveReservation(ctx, reservation)
		}
	}
	if err != nil {
		logger.Error("fleet mirror checkpoint failed",
			"event", "fleet_mirror_checkpoint_failed",
			"module", "fleet-control/allocator",
			"layer", "application",
			"mission_id", missionID,
			"error", err.Error(),
		)
	}
}

// PublishStatusChanged emits the fleet.drone.status.changed event shared
// by the allocate/release use cases and the fleet signal consumer.
func PublishStatusChanged(
	ctx context.Context,
	publisher ports.EventPublisher,
	logger *slog.Logger,
	droneID string,
	from, to entities.DroneStatus,
) {
	env, err := v1.NewEvent(v1.RouteFleetDroneStatusChanged, "allocator", v1.DroneStatusChanged{
		DroneID: droneID,
		From:    string(from),
		To:      string(to),
	})
	if err == nil {
		err = publisher.Publish(ctx, env)
	}
	if err != nil {
		logger.Error("fleet.drone.status.changed publish failed",
			"event", "fleet_status_changed_publish_failed",
			"module", "fleet-control/allocator",
			"layer", "application",
			"drone_id", droneID,
			"error", err.Error(),
		)
	}
}
