package workers

import (
	"context"
	"log/slog"

	application "skyward/contexts/flight-ops/orchestrator/application"
	"skyward/contexts/flight-ops/orchestrator/ports"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

// TelemetryReactor turns telemetry verdicts into session interrupts. A
// drone that goes offline or breaches its battery floor mid-mission is
// failed immediately instead of flying until its next command times
// out. Altitude excursions stay advisory.
type TelemetryReactor struct {
	Subscriber ports.BusSubscriber
	Missions   ports.MissionRepository
	Runner     *application.MissionRunner
	Dedup      *messaging.Dedup
	Logger     *slog.Logger
}

func (w TelemetryReactor) Start(_ context.Context) func() {
	return w.Subscriber.Subscribe(v1.TopicEvents, "orchestrator-reactor", w.handle)
}

func (w TelemetryReactor) handle(ctx context.Context, env v1.Envelope) error {
	if env.Type != v1.TypeEvent {
		return nil
	}
	if w.Dedup.Seen(env.MessageID) {
		return nil
	}

	switch env.Action {
	case v1.RouteTelemetryDroneOffline.Action:
		offline, err := v1.Decode[v1.DroneOffline](env)
		if err != nil {
			return err
		}
		return w.failDrone(ctx, "", offline.DroneID,
			v1.NewFault(v1.CodeDroneNotAvailable, "drone went offline mid-mission", false))
	case v1.RouteTelemetryAnomaly.Action:
		anomaly, err := v1.Decode[v1.AnomalyDetected](env)
		if err != nil {
			return err
		}
		if anomaly.Kind != "battery" {
			return nil
		}
		return w.failDrone(ctx, anomaly.MissionID, anomaly.DroneID,
			v1.NewFault(v1.CodeDroneNotAvailable, "battery below mission floor", false))
	default:
		return nil
	}
}

// failDrone resolves the mission when the event does not carry one, then
// interrupts the drone's session.
func (w TelemetryReactor) failDrone(ctx context.Context, missionID, droneID string, fault *v1.Fault) error {
	if missionID == "" {
		active, err := w.Missions.ListActiveMissions(ctx)
		if err != nil {
			return err
		}
		for _, mission := range active {
			if w.Runner.HasActiveDrone(mission.MissionID, droneID) {
				missionID = mission.MissionID
				break
			}
		}
	}
	if missionID == "" || !w.Runner.HasActiveDrone(missionID, droneID) {
		return nil
	}

	w.Runner.FailDrone(missionID, droneID, fault)
	application.ResolveLogger(w.Logger).Warn("drone session interrupted by telemetry verdict",
		"event", "orchestrator_drone_interrupted",
		"module", "flight-ops/orchestrator",
		"layer", "worker",
		"mission_id", missionID,
		"drone_id", droneID,
		"error_code", fault.ErrorCode,
	)
	return nil
}
