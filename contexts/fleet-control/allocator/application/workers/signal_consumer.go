package workers

import (
	"context"
	"log/slog"
	"sync"

	application "skyward/contexts/fleet-control/allocator/application"
	"skyward/contexts/fleet-control/allocator/application/commands"
	"skyward/contexts/fleet-control/allocator/domain/entities"
	"skyward/contexts/fleet-control/allocator/ports"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

// FleetSignalConsumer reacts to orchestration and telemetry events that
// change drone availability: execution start flips reserved drones to
// in-mission, offline drones become unknown, critically low batteries
// raise fleet.drone.battery.low.
type FleetSignalConsumer struct {
	Subscriber ports.BusSubscriber
	Fleet      ports.FleetRepository
	Publisher  ports.EventPublisher
	Guard      *sync.Mutex
	Dedup      *messaging.Dedup
	Logger     *slog.Logger
}

func (c FleetSignalConsumer) Start(_ context.Context) func() {
	return c.Subscriber.Subscribe(v1.TopicEvents, "allocator-signals", c.handle)
}

func (c FleetSignalConsumer) handle(ctx context.Context, env v1.Envelope) error {
	if env.Type != v1.TypeEvent {
		return nil
	}
	if c.Dedup.Seen(env.MessageID) {
		return nil
	}

	switch env.Action {
	case v1.RouteExecutionStarted.Action:
		return c.markInMission(ctx, env)
	case v1.RouteTelemetryDroneOffline.Action:
		return c.markOffline(ctx, env)
	case v1.RouteTelemetryAnomaly.Action:
		return c.relayBatteryLow(ctx, env)
	default:
		return nil
	}
}

func (c FleetSignalConsumer) markInMission(ctx context.Context, env v1.Envelope) error {
	event, err := v1.Decode[v1.GroupFormed](env)
	if err != nil {
		return err
	}
	logger := application.ResolveLogger(c.Logger)

	c.Guard.Lock()
	defer c.Guard.Unlock()
	for _, droneID := range event.DroneIDs {
		drone, err := c.Fleet.GetDrone(ctx, droneID)
		if err != nil || drone.Status != entities.StatusReserved {
			continue
		}
		if _, err := c.Fleet.SetStatus(ctx, droneID, entities.StatusInMission); err != nil {
			logger.Error("mark in-mission failed",
				"event", "fleet_mark_in_mission_failed",
				"module", "fleet-control/allocator",
				"layer", "worker",
				"drone_id", droneID,
				"error", err.Error(),
			)
			continue
		}
		commands.PublishStatusChanged(ctx, c.Publisher, logger, droneID, entities.StatusReserved, entities.StatusInMission)
	}
	return nil
}

func (c FleetSignalConsumer) markOffline(ctx context.Context, env v1.Envelope) error {
	event, err := v1.Decode[v1.DroneOffline](env)
	if err != nil {
		return err
	}
	logger := application.ResolveLogger(c.Logger)

	c.Guard.Lock()
	drone, err := c.Fleet.GetDrone(ctx, event.DroneID)
	if err == nil && drone.Status != entities.StatusUnknown {
		_, err = c.Fleet.SetStatus(ctx, event.DroneID, entities.StatusUnknown)
	}
	c.Guard.Unlock()
	if err != nil {
		return err
	}

	unavailable, err := v1.NewEvent(v1.RouteFleetDroneUnavailable, "allocator", v1.DroneStatusChanged{
		DroneID: event.DroneID,
		From:    string(drone.Status),
		To:      string(entities.StatusUnknown),
	})
	if err != nil {
		return err
	}
	if err := c.Publisher.Publish(ctx, unavailable); err != nil {
		return err
	}

	logger.Info("drone marked unknown after offline signal",
		"event", "fleet_drone_offline",
		"module", "fleet-control/allocator",
		"layer", "worker",
		"drone_id", event.DroneID,
	)
	return nil
}

func (c FleetSignalConsumer) relayBatteryLow(ctx context.Context, env v1.Envelope) error {
	event, err := v1.Decode[v1.AnomalyDetected](env)
	if err != nil {
		return err
	}
	if event.Kind != "battery" {
		return nil
	}
	low, err := v1.NewEvent(v1.RouteFleetDroneBatteryLow, "allocator", v1.BatteryLow{
		DroneID: event.DroneID,
		Battery: event.Value,
	})
	if err != nil {
		return err
	}
	return c.Publisher.Publish(ctx, low)
}
