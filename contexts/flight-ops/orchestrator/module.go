package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"skyward/contexts/flight-ops/orchestrator/adapters/memory"
	"skyward/contexts/flight-ops/orchestrator/application"
	"skyward/contexts/flight-ops/orchestrator/application/commands"
	"skyward/contexts/flight-ops/orchestrator/application/queries"
	"skyward/contexts/flight-ops/orchestrator/application/workers"
	"skyward/contexts/flight-ops/orchestrator/ports"
	"skyward/internal/platform/messaging"
)

type Module struct {
	Runner   *application.MissionRunner
	Submit   commands.SubmitMissionUseCase
	Cancel   commands.CancelMissionUseCase
	Get      queries.GetMissionUseCase
	Consumer workers.MissionConsumer
	Relay    workers.OutboxRelay
	Reactor  workers.TelemetryReactor
	Store    *memory.Store
}

type Dependencies struct {
	Missions   ports.MissionRepository
	Mirror     ports.MissionMirror
	Outbox     ports.OutboxWriter
	OutboxRepo ports.OutboxRepository
	Publisher  ports.EventPublisher
	Requester  ports.Requester
	Subscriber ports.BusSubscriber
	Responder  ports.Responder
	Sessions   ports.SessionRunner
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Config     application.Config
	RelayBatch int
	RelayEvery time.Duration
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	runner := &application.MissionRunner{
		Missions:  deps.Missions,
		Mirror:    deps.Mirror,
		Outbox:    deps.Outbox,
		Publisher: deps.Publisher,
		Requester: deps.Requester,
		Sessions:  deps.Sessions,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Config:    deps.Config,
		Logger:    deps.Logger,
	}

	submit := commands.SubmitMissionUseCase{
		Missions: deps.Missions,
		Mirror:   deps.Mirror,
		Outbox:   deps.Outbox,
		Runner:   runner,
		Clock:    deps.Clock,
		IDGen:    deps.IDGen,
		Logger:   deps.Logger,
	}
	cancel := commands.CancelMissionUseCase{
		Missions: deps.Missions,
		Runner:   runner,
		Logger:   deps.Logger,
	}
	get := queries.GetMissionUseCase{
		Missions: deps.Missions,
		Logger:   deps.Logger,
	}

	return Module{
		Runner: runner,
		Submit: submit,
		Cancel: cancel,
		Get:    get,
		Consumer: workers.MissionConsumer{
			Subscriber: deps.Subscriber,
			Responder:  deps.Responder,
			Submit:     submit,
			Cancel:     cancel,
			Get:        get,
			Dedup:      messaging.NewDedup(4096),
			Logger:     deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.OutboxRepo,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.RelayBatch,
			Interval:  deps.RelayEvery,
			Logger:    deps.Logger,
		},
		Reactor: workers.TelemetryReactor{
			Subscriber: deps.Subscriber,
			Missions:   deps.Missions,
			Runner:     runner,
			Dedup:      messaging.NewDedup(8192),
			Logger:     deps.Logger,
		},
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type uuidGenerator struct{}

func (uuidGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// NewInMemoryModule wires the module over the in-memory mission store.
// Used by tests and the self-contained simulator process.
func NewInMemoryModule(
	bus *messaging.Bus,
	sessions ports.SessionRunner,
	cfg application.Config,
	logger *slog.Logger,
) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Missions:   store,
		Outbox:     store,
		OutboxRepo: store,
		Publisher:  bus,
		Requester:  bus,
		Subscriber: bus,
		Responder:  bus,
		Sessions:   sessions,
		Clock:      systemClock{},
		IDGen:      uuidGenerator{},
		Config:     cfg,
		Logger:     logger,
	})
	module.Store = store
	return module
}
