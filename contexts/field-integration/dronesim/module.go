package dronesim

import (
	"context"
	"log/slog"
	"time"

	"skyward/contexts/field-integration/dronesim/application"
	"skyward/contexts/field-integration/dronesim/ports"
	v1 "skyward/contracts/messages/v1"
)

// Seed describes one simulated drone at startup.
type Seed struct {
	DroneID  string
	Battery  float64
	Position v1.Position
}

type Module struct {
	drones map[string]*application.Drone
	subs   []func()
}

type Dependencies struct {
	Publisher ports.EventPublisher
	Responder ports.Responder
	Clock     ports.Clock
	Cadence   time.Duration
	StepDrain float64
	Logger    *slog.Logger
}

// NewModule builds one simulated drone per seed. Each drone subscribes
// under its own ID, so commands targeted at one drone reach only it.
func NewModule(seeds []Seed, deps Dependencies) Module {
	drones := make(map[string]*application.Drone, len(seeds))
	for _, seed := range seeds {
		drone := application.NewDrone(seed.DroneID, seed.Battery, seed.Position)
		drone.Publisher = deps.Publisher
		drone.Responder = deps.Responder
		drone.Clock = deps.Clock
		drone.Cadence = deps.Cadence
		drone.StepDrain = deps.StepDrain
		drone.Logger = deps.Logger
		drones[seed.DroneID] = drone
	}
	return Module{drones: drones}
}

// Start registers the command subscriptions and launches the telemetry
// loops. The returned func tears both down.
func (m *Module) Start(ctx context.Context, subscriber ports.BusSubscriber) func() {
	telemetryCtx, cancel := context.WithCancel(ctx)
	for _, drone := range m.drones {
		m.subs = append(m.subs, subscriber.Subscribe(v1.TopicDrone, drone.ID, drone.Handle))
		go drone.StartTelemetry(telemetryCtx)
	}
	return func() {
		cancel()
		for _, unsubscribe := range m.subs {
			unsubscribe()
		}
		m.subs = nil
	}
}

// Drone exposes one simulated drone, mainly so tests and the simulator
// CLI can inject fault scripts.
func (m Module) Drone(droneID string) (*application.Drone, bool) {
	drone, ok := m.drones[droneID]
	return drone, ok
}
