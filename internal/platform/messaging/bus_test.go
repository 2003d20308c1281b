package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	v1 "skyward/contracts/messages/v1"
)

func TestRequestReceivesSingleResponse(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	unsubscribe := bus.Subscribe(v1.TopicFleet, "responder", func(ctx context.Context, env v1.Envelope) error {
		// Answer twice: the duplicate must be discarded, not delivered.
		if err := bus.Respond(ctx, env, "responder", v1.FleetStatus{Available: 3}); err != nil {
			t.Errorf("respond: %v", err)
		}
		return bus.Respond(ctx, env, "responder", v1.FleetStatus{Available: 99})
	})
	defer unsubscribe()

	env, err := v1.NewQuery(v1.RouteFleetStatus, "test", "", v1.FleetStatus{})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}
	response, err := bus.Request(context.Background(), env, 2*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if response.CorrelationID != env.MessageID {
		t.Fatalf("correlation id = %q, want %q", response.CorrelationID, env.MessageID)
	}
	status, err := v1.Decode[v1.FleetStatus](response)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Available != 3 {
		t.Fatalf("available = %d, want first response to win", status.Available)
	}
}

func TestRequestTimesOutWithoutResponder(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	env, err := v1.NewQuery(v1.RouteFleetStatus, "test", "", v1.FleetStatus{})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}
	if _, err := bus.Request(context.Background(), env, 50*time.Millisecond); err != ErrRequestTimeout {
		t.Fatalf("err = %v, want ErrRequestTimeout", err)
	}
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	const count = 200
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	unsubscribe := bus.Subscribe(v1.TopicEvents, "collector", func(_ context.Context, env v1.Envelope) error {
		mu.Lock()
		got = append(got, env.MessageID)
		if len(got) == count {
			close(done)
		}
		mu.Unlock()
		return nil
	})
	defer unsubscribe()

	var want []string
	for i := 0; i < count; i++ {
		env, err := v1.NewEvent(v1.RouteHeartbeat, "test", v1.Heartbeat{Source: "test"})
		if err != nil {
			t.Fatalf("new event: %v", err)
		}
		want = append(want, env.MessageID)
		if err := bus.Publish(context.Background(), env); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %d envelopes", count)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("envelope %d delivered out of order", i)
		}
	}
}

func TestPublishTargetNarrowsDelivery(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	received := make(chan string, 2)
	handler := func(name string) Handler {
		return func(_ context.Context, _ v1.Envelope) error {
			received <- name
			return nil
		}
	}
	defer bus.Subscribe(v1.TopicDrone, "drone-01", handler("drone-01"))()
	defer bus.Subscribe(v1.TopicDrone, "drone-02", handler("drone-02"))()

	env, err := v1.NewCommand(v1.RouteDroneArm, "test", "drone-02", v1.DroneCommand{DroneID: "drone-02"})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	if err := bus.Publish(context.Background(), env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case name := <-received:
		if name != "drone-02" {
			t.Fatalf("delivered to %q, want drone-02", name)
		}
	case <-time.After(time.Second):
		t.Fatal("targeted envelope never delivered")
	}
	select {
	case name := <-received:
		t.Fatalf("unexpected second delivery to %q", name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPanickingSubscriberDoesNotStopOthers(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	defer bus.Subscribe(v1.TopicEvents, "panicky", func(_ context.Context, _ v1.Envelope) error {
		panic("boom")
	})()

	healthy := make(chan struct{}, 2)
	defer bus.Subscribe(v1.TopicEvents, "healthy", func(_ context.Context, _ v1.Envelope) error {
		healthy <- struct{}{}
		return nil
	})()

	for i := 0; i < 2; i++ {
		env, err := v1.NewEvent(v1.RouteHeartbeat, "test", v1.Heartbeat{Source: "test"})
		if err != nil {
			t.Fatalf("new event: %v", err)
		}
		if err := bus.Publish(context.Background(), env); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-healthy:
		case <-time.After(time.Second):
			t.Fatal("healthy subscriber starved by panicking peer")
		}
	}
}

func TestRequestAfterCloseFails(t *testing.T) {
	bus := NewBus(nil)
	bus.Close()

	env, err := v1.NewQuery(v1.RouteFleetStatus, "test", "", v1.FleetStatus{})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}
	if _, err := bus.Request(context.Background(), env, time.Second); err != ErrBusClosed {
		t.Fatalf("err = %v, want ErrBusClosed", err)
	}
}
