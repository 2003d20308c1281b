package dockport

import (
	"log/slog"
	"time"

	"skyward/contexts/field-integration/dockport/application"
	"skyward/contexts/field-integration/dockport/ports"
	v1 "skyward/contracts/messages/v1"
)

type Module struct {
	Dock *application.Dock
}

type Dependencies struct {
	Publisher   ports.EventPublisher
	Responder   ports.Responder
	Slots       int
	ChargeDelay time.Duration
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	dock := application.NewDock(deps.Slots)
	dock.Publisher = deps.Publisher
	dock.Responder = deps.Responder
	dock.ChargeDelay = deps.ChargeDelay
	dock.Logger = deps.Logger
	return Module{Dock: dock}
}

// Start registers the facility on its topic. The returned func removes
// the subscription.
func (m Module) Start(subscriber ports.BusSubscriber) func() {
	return subscriber.Subscribe(v1.TopicDockport, "dockport", m.Dock.Handle)
}
