package queries

import (
	"context"
	"errors"
	"log/slog"

	domainerrors "skyward/contexts/flight-ops/orchestrator/domain/errors"
	"skyward/contexts/flight-ops/orchestrator/ports"
	v1 "skyward/contracts/messages/v1"
)

// GetMissionUseCase answers mission.get with the current lifecycle
// snapshot. An unknown mission yields Found=false rather than an error
// so callers can poll without special-casing.
type GetMissionUseCase struct {
	Missions ports.MissionRepository
	Logger   *slog.Logger
}

func (uc GetMissionUseCase) Execute(ctx context.Context, missionID string) (v1.MissionView, error) {
	mission, err := uc.Missions.GetMission(ctx, missionID)
	if errors.Is(err, domainerrors.ErrMissionNotFound) {
		return v1.MissionView{Found: false, MissionID: missionID}, nil
	}
	if err != nil {
		return v1.MissionView{}, err
	}
	return v1.MissionView{
		Found:     true,
		MissionID: mission.MissionID,
		State:     string(mission.State),
		DroneIDs:  mission.DroneIDs,
		Outcomes:  mission.Outcomes,
		Fault:     mission.Fault,
	}, nil
}
