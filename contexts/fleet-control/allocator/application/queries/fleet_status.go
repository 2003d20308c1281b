package queries

import (
	"context"
	"log/slog"

	"skyward/contexts/fleet-control/allocator/domain/entities"
	"skyward/contexts/fleet-control/allocator/ports"
	v1 "skyward/contracts/messages/v1"
)

// FleetStatusUseCase summarizes fleet availability counts.
type FleetStatusUseCase struct {
	Fleet  ports.FleetRepository
	Logger *slog.Logger
}

func (uc FleetStatusUseCase) Execute(ctx context.Context) (v1.FleetStatus, error) {
	drones, err := uc.Fleet.ListDrones(ctx)
	if err != nil {
		return v1.FleetStatus{}, err
	}

	status := v1.FleetStatus{FleetSize: len(drones)}
	for _, drone := range drones {
		switch drone.Status {
		case entities.StatusAvailable:
			status.Available++
		case entities.StatusReserved:
			status.Reserved++
		case entities.StatusInMission:
			status.InMission++
		case entities.StatusCharging:
			status.Charging++
		case entities.StatusUnavailable:
			status.Unavailable++
		default:
			status.Unknown++
		}
	}
	return status, nil
}
