package telemetry

import (
	"log/slog"
	"time"

	"skyward/contexts/fleet-control/telemetry/application"
	"skyward/contexts/fleet-control/telemetry/application/workers"
	"skyward/contexts/fleet-control/telemetry/ports"
	"skyward/internal/platform/messaging"
)

type Module struct {
	Tracker  *application.Tracker
	Consumer workers.TelemetryConsumer
	Sweeper  workers.StalenessSweeper
}

type Dependencies struct {
	Fleet         ports.FleetWriter
	Mirror        ports.SnapshotMirror
	Publisher     ports.EventPublisher
	Subscriber    ports.BusSubscriber
	Clock         ports.Clock
	Thresholds    application.Thresholds
	SweepInterval time.Duration
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	tracker := application.NewTracker(deps.Thresholds)
	return Module{
		Tracker: tracker,
		Consumer: workers.TelemetryConsumer{
			Subscriber: deps.Subscriber,
			Fleet:      deps.Fleet,
			Mirror:     deps.Mirror,
			Tracker:    tracker,
			Publisher:  deps.Publisher,
			Dedup:      messaging.NewDedup(16384),
			Logger:     deps.Logger,
		},
		Sweeper: workers.StalenessSweeper{
			Tracker:   tracker,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Interval:  deps.SweepInterval,
			Logger:    deps.Logger,
		},
	}
}
