package application

import (
	"context"
	"sync"
	"testing"

	v1 "skyward/contracts/messages/v1"
)

type captureResponder struct {
	mu      sync.Mutex
	results []v1.DockResult
}

func (r *captureResponder) Respond(_ context.Context, _ v1.Envelope, _ string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, payload.(v1.DockResult))
	return nil
}

func (r *captureResponder) last(t *testing.T) v1.DockResult {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		t.Fatal("no response recorded")
	}
	return r.results[len(r.results)-1]
}

type captureEvents struct {
	mu      sync.Mutex
	actions []string
}

func (p *captureEvents) Publish(_ context.Context, env v1.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, env.Action)
	return nil
}

func (p *captureEvents) has(action string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range p.actions {
		if item == action {
			return true
		}
	}
	return false
}

func newTestDock(slots int) (*Dock, *captureResponder, *captureEvents) {
	responder := &captureResponder{}
	events := &captureEvents{}
	dock := NewDock(slots)
	dock.Responder = responder
	dock.Publisher = events
	return dock, responder, events
}

func dockQuery(t *testing.T, route v1.Route, request v1.DockRequest) v1.Envelope {
	t.Helper()
	env, err := v1.NewQuery(route, "test", "dockport", request)
	if err != nil {
		t.Fatalf("new query: %v", err)
	}
	return env
}

func TestReserveSlotsExhaustsCapacity(t *testing.T) {
	dock, responder, _ := newTestDock(3)
	ctx := context.Background()

	env := dockQuery(t, v1.RouteDockReserveSlots, v1.DockRequest{
		MissionID: "mission-1",
		DroneIDs:  []string{"drone-01", "drone-02"},
	})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	result := responder.last(t)
	if result.Status != v1.StatusReserved || len(result.PortIDs) != 2 {
		t.Fatalf("result = %+v, want two reserved ports", result)
	}

	// Only one port remains; a two-drone mission must be denied.
	env = dockQuery(t, v1.RouteDockReserveSlots, v1.DockRequest{
		MissionID: "mission-2",
		DroneIDs:  []string{"drone-03", "drone-04"},
	})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	result = responder.last(t)
	if result.Status != v1.StatusDenied {
		t.Fatalf("status = %q, want denied on exhausted capacity", result.Status)
	}
	if result.Fault == nil || result.Fault.ErrorCode != v1.CodePortResourceBusy || !result.Fault.Retryable {
		t.Fatalf("fault = %+v, want retryable PORT_RESOURCE_BUSY", result.Fault)
	}

	// Releasing the first mission frees its ports for the second.
	env = dockQuery(t, v1.RouteDockReleaseForTakeoff, v1.DockRequest{MissionID: "mission-1"})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if responder.last(t).Status != v1.StatusReleaseAck {
		t.Fatalf("release status = %q", responder.last(t).Status)
	}

	env = dockQuery(t, v1.RouteDockReserveSlots, v1.DockRequest{
		MissionID: "mission-2",
		DroneIDs:  []string{"drone-03", "drone-04"},
	})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if responder.last(t).Status != v1.StatusReserved {
		t.Fatalf("status after release = %q, want reserved", responder.last(t).Status)
	}
}

func TestPreflightScriptFailsNamedDrones(t *testing.T) {
	dock, responder, events := newTestDock(4)
	ctx := context.Background()
	dock.SetScript(Script{PreflightFail: map[string][]string{"drone-02": {"imu drift"}}})

	env := dockQuery(t, v1.RouteDockPreflightCheck, v1.DockRequest{
		MissionID: "mission-1",
		DroneIDs:  []string{"drone-01", "drone-02"},
	})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}

	result := responder.last(t)
	if result.Status != v1.StatusPreflightFailed {
		t.Fatalf("status = %q, want preflight.failed", result.Status)
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != "drone-02: imu drift" {
		t.Fatalf("reasons = %v", result.Reasons)
	}
	if result.Fault == nil || result.Fault.ErrorCode != v1.CodePortPrecheckFail {
		t.Fatalf("fault = %v, want PORT_PRECHECK_FAILED", result.Fault)
	}
	if !events.has(v1.RouteDockDiagnosticsFailed.Action) {
		t.Fatal("diagnostics.failed event not published")
	}

	// Clearing the script passes the same group.
	dock.SetScript(Script{})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if responder.last(t).Status != v1.StatusPreflightOK {
		t.Fatalf("status = %q, want preflight.ok", responder.last(t).Status)
	}
	if !events.has(v1.RouteDockDiagnosticsOK.Action) {
		t.Fatal("diagnostics.ok event not published")
	}
}

func TestChargeToThreshold(t *testing.T) {
	dock, responder, events := newTestDock(4)
	ctx := context.Background()

	// No battery floor: charging is skipped.
	env := dockQuery(t, v1.RouteDockChargeToThreshold, v1.DockRequest{MissionID: "mission-1"})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if responder.last(t).Status != v1.StatusChargeCompleted {
		t.Fatalf("status = %q, want charge.completed", responder.last(t).Status)
	}
	if !events.has(v1.RouteDockChargingNotRequired.Action) {
		t.Fatal("charging.not_required event not published")
	}

	// With a floor the facility charges, then completes.
	env = dockQuery(t, v1.RouteDockChargeToThreshold, v1.DockRequest{MissionID: "mission-1", MinBattery: 30})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if responder.last(t).Status != v1.StatusChargeCompleted {
		t.Fatalf("status = %q, want charge.completed", responder.last(t).Status)
	}
	if !events.has(v1.RouteDockChargingStarted.Action) {
		t.Fatal("charging.started event not published")
	}

	// Scripted charger fault.
	dock.SetScript(Script{ChargeTimeout: true})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	result := responder.last(t)
	if result.Status != v1.StatusChargeTimeout {
		t.Fatalf("status = %q, want charge.timeout", result.Status)
	}
	if result.Fault == nil || result.Fault.ErrorCode != v1.CodePortChargeTimeout || !result.Fault.Retryable {
		t.Fatalf("fault = %+v, want retryable PORT_CHARGE_TIMEOUT", result.Fault)
	}
}

func TestLandingSlotAssignment(t *testing.T) {
	dock, responder, _ := newTestDock(1)
	ctx := context.Background()

	env := dockQuery(t, v1.RouteDockRequestLandingSlot, v1.DockRequest{DroneID: "drone-01"})
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	result := responder.last(t)
	if result.Status != v1.StatusSlotAssigned || len(result.PortIDs) != 1 {
		t.Fatalf("result = %+v, want one assigned slot", result)
	}

	// Fill the single port, then the next landing request is denied.
	reserve := dockQuery(t, v1.RouteDockReserveSlots, v1.DockRequest{MissionID: "mission-1", DroneIDs: []string{"drone-02"}})
	if err := dock.Handle(ctx, reserve); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := dock.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if responder.last(t).Status != v1.StatusDenied {
		t.Fatalf("status = %q, want denied when no slot is free", responder.last(t).Status)
	}
}

func TestUnknownActionIsRejected(t *testing.T) {
	dock, responder, _ := newTestDock(4)

	env := dockQuery(t, v1.Route{Topic: v1.TopicDockport, Action: "refuel"}, v1.DockRequest{})
	if err := dock.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	result := responder.last(t)
	if result.Status != v1.StatusDenied || result.Fault == nil || result.Fault.ErrorCode != v1.CodeValidationError {
		t.Fatalf("result = %+v, want validation denial", result)
	}
}
