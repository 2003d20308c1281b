package allocator

import (
	"log/slog"
	"sync"
	"time"

	"skyward/contexts/fleet-control/allocator/adapters/memory"
	"skyward/contexts/fleet-control/allocator/application/commands"
	"skyward/contexts/fleet-control/allocator/application/queries"
	"skyward/contexts/fleet-control/allocator/application/workers"
	"skyward/contexts/fleet-control/allocator/domain/entities"
	"skyward/contexts/fleet-control/allocator/ports"
	"skyward/internal/platform/messaging"
)

type Module struct {
	Allocate commands.AllocateUseCase
	Release  commands.ReleaseUseCase
	Status   queries.FleetStatusUseCase
	Consumer workers.FleetConsumer
	Signals  workers.FleetSignalConsumer
	Store    *memory.Store
}

type Dependencies struct {
	Fleet      ports.FleetRepository
	Mirror     ports.FleetMirror
	Publisher  ports.EventPublisher
	Subscriber ports.BusSubscriber
	Responder  ports.Responder
	Clock      ports.Clock
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	// One logical lock over fleet state: every allocate/release and
	// every availability transition serializes on it.
	guard := &sync.Mutex{}

	allocate := commands.AllocateUseCase{
		Fleet:     deps.Fleet,
		Mirror:    deps.Mirror,
		Publisher: deps.Publisher,
		Clock:     deps.Clock,
		Guard:     guard,
		Logger:    deps.Logger,
	}
	release := commands.ReleaseUseCase{
		Fleet:     deps.Fleet,
		Mirror:    deps.Mirror,
		Publisher: deps.Publisher,
		Guard:     guard,
		Logger:    deps.Logger,
	}
	status := queries.FleetStatusUseCase{
		Fleet:  deps.Fleet,
		Logger: deps.Logger,
	}

	return Module{
		Allocate: allocate,
		Release:  release,
		Status:   status,
		Consumer: workers.FleetConsumer{
			Subscriber: deps.Subscriber,
			Responder:  deps.Responder,
			Allocate:   allocate,
			Release:    release,
			Status:     status,
			Dedup:      messaging.NewDedup(4096),
			Logger:     deps.Logger,
		},
		Signals: workers.FleetSignalConsumer{
			Subscriber: deps.Subscriber,
			Fleet:      deps.Fleet,
			Publisher:  deps.Publisher,
			Guard:      guard,
			Dedup:      messaging.NewDedup(4096),
			Logger:     deps.Logger,
		},
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewInMemoryModule wires the module over the in-memory fleet store,
// seeded with the given drones. Used by tests and the self-contained
// simulator process.
func NewInMemoryModule(seed []entities.DroneState, bus *messaging.Bus, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Fleet:      store,
		Publisher:  bus,
		Subscriber: bus,
		Responder:  bus,
		Clock:      systemClock{},
		Logger:     logger,
	})
	module.Store = store
	return module
}
