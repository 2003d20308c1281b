package workers

import (
	"context"
	"log/slog"

	application "skyward/contexts/fleet-control/telemetry/application"
	"skyward/contexts/fleet-control/telemetry/domain/entities"
	"skyward/contexts/fleet-control/telemetry/ports"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

const subscriberName = "telemetry-monitor"

// TelemetryConsumer ingests telemetry.update samples: it folds them
// into the tracker, forwards them to the fleet state, checkpoints the
// external snapshot, and publishes whatever the tracker's verdict says.
type TelemetryConsumer struct {
	Subscriber ports.BusSubscriber
	Fleet      ports.FleetWriter
	Mirror     ports.SnapshotMirror
	Tracker    *application.Tracker
	Publisher  ports.EventPublisher
	Dedup      *messaging.Dedup
	Logger     *slog.Logger
}

func (c TelemetryConsumer) Start(_ context.Context) func() {
	return c.Subscriber.Subscribe(v1.TopicTelemetry, subscriberName, c.handle)
}

func (c TelemetryConsumer) handle(ctx context.Context, env v1.Envelope) error {
	if env.Action != v1.RouteTelemetryUpdate.Action {
		return nil
	}
	if c.Dedup.Seen(env.MessageID) {
		return nil
	}

	logger := application.ResolveLogger(c.Logger)
	update, err := v1.Decode[v1.TelemetryUpdate](env)
	if err != nil {
		logger.Warn("malformed telemetry sample discarded",
			"event", "telemetry_sample_malformed",
			"module", "fleet-control/telemetry",
			"layer", "worker",
			"message_id", env.MessageID,
			"error", err.Error(),
		)
		return nil
	}
	if update.DroneID == "" {
		return nil
	}

	sample := entities.Sample{
		DroneID:   update.DroneID,
		MissionID: update.MissionID,
		Position:  update.Position,
		Battery:   update.Battery,
		Velocity:  update.Velocity,
		Status:    update.Status,
		At:        update.Timestamp,
	}
	verdict := c.Tracker.Observe(sample)

	if err := c.Fleet.RecordSample(ctx, sample); err != nil {
		logger.Warn("fleet telemetry update failed",
			"event", "telemetry_fleet_update_failed",
			"module", "fleet-control/telemetry",
			"layer", "worker",
			"drone_id", sample.DroneID,
			"error", err.Error(),
		)
	}
	if c.Mirror != nil {
		if err := c.Mirror.SaveSnapshot(ctx, sample); err != nil {
			logger.Error("telemetry mirror checkpoint failed",
				"event", "telemetry_mirror_failed",
				"module", "fleet-control/telemetry",
				"layer", "worker",
				"drone_id", sample.DroneID,
				"error", err.Error(),
			)
		}
	}

	if verdict.Recovered {
		logger.Info("drone reporting again",
			"event", "telemetry_drone_recovered",
			"module", "fleet-control/telemetry",
			"layer", "worker",
			"drone_id", sample.DroneID,
		)
	}
	if verdict.BatteryAnomaly != nil {
		c.publishAnomaly(ctx, *verdict.BatteryAnomaly)
	}
	if verdict.AltitudeAnomaly != nil {
		c.publishAnomaly(ctx, *verdict.AltitudeAnomaly)
	}
	return nil
}

func (c TelemetryConsumer) publishAnomaly(ctx context.Context, anomaly v1.AnomalyDetected) {
	logger := application.ResolveLogger(c.Logger)
	env, err := v1.NewEvent(v1.RouteTelemetryAnomaly, subscriberName, anomaly)
	if err == nil {
		err = c.Publisher.Publish(ctx, env)
	}
	if err != nil {
		logger.Error("anomaly publish failed",
			"event", "telemetry_anomaly_publish_failed",
			"module", "fleet-control/telemetry",
			"layer", "worker",
			"drone_id", anomaly.DroneID,
			"kind", anomaly.Kind,
			"error", err.Error(),
		)
		return
	}
	logger.Warn("telemetry anomaly detected",
		"event", "telemetry_anomaly_detected",
		"module", "fleet-control/telemetry",
		"layer", "worker",
		"drone_id", anomaly.DroneID,
		"kind", anomaly.Kind,
		"value", anomaly.Value,
		"bound", anomaly.Bound,
	)
}
