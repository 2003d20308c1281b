package workers

import (
	"context"
	"log/slog"
	"time"

	application "skyward/contexts/fleet-control/telemetry/application"
	"skyward/contexts/fleet-control/telemetry/ports"
	v1 "skyward/contracts/messages/v1"
)

// StalenessSweeper expires drones that stopped reporting. Each outage
// produces exactly one telemetry.drone.offline event; the tracker
// re-arms when the drone reports again.
type StalenessSweeper struct {
	Tracker   *application.Tracker
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Interval  time.Duration
	Logger    *slog.Logger
}

func (w StalenessSweeper) Start(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w StalenessSweeper) RunOnce(ctx context.Context) {
	logger := application.ResolveLogger(w.Logger)
	expired := w.Tracker.Sweep(w.Clock.Now())

	for _, drone := range expired {
		env, err := v1.NewEvent(v1.RouteTelemetryDroneOffline, subscriberName, v1.DroneOffline{
			DroneID:  drone.DroneID,
			LastSeen: drone.LastSeen,
		})
		if err == nil {
			err = w.Publisher.Publish(ctx, env)
		}
		if err != nil {
			logger.Error("drone offline publish failed",
				"event", "telemetry_offline_publish_failed",
				"module", "fleet-control/telemetry",
				"layer", "worker",
				"drone_id", drone.DroneID,
				"error", err.Error(),
			)
			continue
		}
		logger.Warn("drone telemetry went stale",
			"event", "telemetry_drone_offline",
			"module", "fleet-control/telemetry",
			"layer", "worker",
			"drone_id", drone.DroneID,
			"last_seen", drone.LastSeen,
		)
	}
}
