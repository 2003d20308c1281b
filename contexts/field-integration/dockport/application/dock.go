package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"skyward/contexts/field-integration/dockport/ports"
	v1 "skyward/contracts/messages/v1"
)

const sourceName = "dockport"

// Script injects faults into the simulated docking facility.
type Script struct {
	DenyReservations bool
	PreflightFail    map[string][]string
	ChargeTimeout    bool
}

// Dock simulates the docking facility: a fixed number of launch ports,
// group preflight diagnostics, and charging up to the mission battery
// floor. It answers the dock command set on the facility topic.
type Dock struct {
	Publisher   ports.EventPublisher
	Responder   ports.Responder
	Slots       int
	ChargeDelay time.Duration
	Logger      *slog.Logger

	mu       sync.Mutex
	reserved map[string][]string
	script   Script
}

func NewDock(slots int) *Dock {
	if slots <= 0 {
		slots = 4
	}
	return &Dock{
		Slots:    slots,
		reserved: make(map[string][]string),
	}
}

// SetScript swaps the fault script. Takes effect on the next command.
func (d *Dock) SetScript(script Script) {
	d.mu.Lock()
	d.script = script
	d.mu.Unlock()
}

// Handle answers one dock command.
func (d *Dock) Handle(ctx context.Context, env v1.Envelope) error {
	if env.Type != v1.TypeQuery && env.Type != v1.TypeCommand {
		return nil
	}
	request, err := v1.Decode[v1.DockRequest](env)
	if err != nil {
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{
			Status: v1.StatusDenied,
			Fault:  v1.NewFault(v1.CodeValidationError, err.Error(), false),
		})
	}

	switch env.Action {
	case v1.RouteDockReserveSlots.Action:
		return d.reserveSlots(ctx, env, request)
	case v1.RouteDockPreflightCheck.Action:
		return d.preflightCheck(ctx, env, request)
	case v1.RouteDockChargeToThreshold.Action:
		return d.chargeToThreshold(ctx, env, request)
	case v1.RouteDockReleaseForTakeoff.Action:
		return d.releaseForTakeoff(ctx, env, request)
	case v1.RouteDockRequestLandingSlot.Action:
		return d.requestLandingSlot(ctx, env, request)
	case v1.RouteDockDock.Action:
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{Status: v1.StatusDocked})
	case v1.RouteDockEmergencyReceive.Action:
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{Status: v1.StatusEmergencyAck})
	case v1.RouteDockHealthCheck.Action:
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{Status: v1.StatusHealthOK})
	default:
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{
			Status: v1.StatusDenied,
			Fault:  v1.NewFault(v1.CodeValidationError, "unknown dock action "+env.Action, false),
		})
	}
}

func (d *Dock) reserveSlots(ctx context.Context, env v1.Envelope, request v1.DockRequest) error {
	d.mu.Lock()
	denied := d.script.DenyReservations
	inUse := 0
	for _, portIDs := range d.reserved {
		inUse += len(portIDs)
	}
	free := d.Slots - inUse
	if !denied && free >= len(request.DroneIDs) && len(request.DroneIDs) > 0 {
		portIDs := make([]string, 0, len(request.DroneIDs))
		for i := range request.DroneIDs {
			portIDs = append(portIDs, fmt.Sprintf("port-%02d", inUse+i+1))
		}
		d.reserved[request.MissionID] = portIDs
		d.mu.Unlock()
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{
			Status:  v1.StatusReserved,
			PortIDs: portIDs,
		})
	}
	d.mu.Unlock()

	reason := fmt.Sprintf("%d ports free, %d requested", free, len(request.DroneIDs))
	if denied {
		reason = "facility closed for reservations"
	}
	return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{
		Status: v1.StatusDenied,
		Fault:  v1.NewFault(v1.CodePortResourceBusy, reason, true),
	})
}

func (d *Dock) preflightCheck(ctx context.Context, env v1.Envelope, request v1.DockRequest) error {
	d.mu.Lock()
	var reasons []string
	for _, droneID := range request.DroneIDs {
		for _, reason := range d.script.PreflightFail[droneID] {
			reasons = append(reasons, droneID+": "+reason)
		}
	}
	d.mu.Unlock()

	if len(reasons) > 0 {
		d.publishEvent(ctx, v1.RouteDockDiagnosticsFailed, v1.DockResult{
			Status:  v1.StatusPreflightFailed,
			Reasons: reasons,
		})
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{
			Status:  v1.StatusPreflightFailed,
			Reasons: reasons,
			Fault:   v1.NewFault(v1.CodePortPrecheckFail, "preflight diagnostics failed", false),
		})
	}

	d.publishEvent(ctx, v1.RouteDockDiagnosticsOK, v1.DockResult{Status: v1.StatusPreflightOK})
	return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{Status: v1.StatusPreflightOK})
}

func (d *Dock) chargeToThreshold(ctx context.Context, env v1.Envelope, request v1.DockRequest) error {
	d.mu.Lock()
	timedOut := d.script.ChargeTimeout
	d.mu.Unlock()

	if timedOut {
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{
			Status: v1.StatusChargeTimeout,
			Fault:  v1.NewFault(v1.CodePortChargeTimeout, "charge did not reach threshold in time", true),
		})
	}
	if request.MinBattery <= 0 {
		d.publishEvent(ctx, v1.RouteDockChargingNotRequired, v1.DockResult{Status: v1.StatusChargeNotNeeded})
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{Status: v1.StatusChargeCompleted})
	}

	d.publishEvent(ctx, v1.RouteDockChargingStarted, v1.DockResult{Status: v1.StatusChargingStarted})
	if d.ChargeDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.ChargeDelay):
		}
	}
	return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{Status: v1.StatusChargeCompleted})
}

func (d *Dock) releaseForTakeoff(ctx context.Context, env v1.Envelope, request v1.DockRequest) error {
	d.mu.Lock()
	delete(d.reserved, request.MissionID)
	d.mu.Unlock()
	return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{Status: v1.StatusReleaseAck})
}

func (d *Dock) requestLandingSlot(ctx context.Context, env v1.Envelope, request v1.DockRequest) error {
	d.mu.Lock()
	inUse := 0
	for _, portIDs := range d.reserved {
		inUse += len(portIDs)
	}
	free := d.Slots - inUse
	d.mu.Unlock()

	if free < 1 {
		return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{
			Status: v1.StatusDenied,
			Fault:  v1.NewFault(v1.CodePortResourceBusy, "no landing slot free", true),
		})
	}
	return d.Responder.Respond(ctx, env, sourceName, v1.DockResult{
		Status:  v1.StatusSlotAssigned,
		PortIDs: []string{fmt.Sprintf("port-%02d", inUse+1)},
	})
}

func (d *Dock) publishEvent(ctx context.Context, route v1.Route, payload any) {
	env, err := v1.NewEvent(route, sourceName, payload)
	if err == nil {
		err = d.Publisher.Publish(ctx, env)
	}
	if err != nil && d.Logger != nil {
		d.Logger.Error("dock event publish failed",
			"event", "dockport_event_publish_failed",
			"module", "field-integration/dockport",
			"layer", "application",
			"action", route.Action,
			"error", err.Error(),
		)
	}
}
