package sequencer

import (
	"log/slog"

	"skyward/contexts/flight-ops/sequencer/application"
	"skyward/contexts/flight-ops/sequencer/ports"
)

type Module struct {
	Runner   application.Runner
	Progress *application.ProgressHub
}

type Dependencies struct {
	Requester  ports.Requester
	Publisher  ports.EventPublisher
	Subscriber ports.BusSubscriber
	Timeouts   application.Timeouts
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	hub := application.NewProgressHub(deps.Subscriber, deps.Logger)
	return Module{
		Runner: application.Runner{
			Requester: deps.Requester,
			Publisher: deps.Publisher,
			Progress:  hub,
			Timeouts:  deps.Timeouts,
			Logger:    deps.Logger,
		},
		Progress: hub,
	}
}
