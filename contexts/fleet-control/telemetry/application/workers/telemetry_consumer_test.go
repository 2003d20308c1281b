package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	application "skyward/contexts/fleet-control/telemetry/application"
	"skyward/contexts/fleet-control/telemetry/domain/entities"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

type countingFleetWriter struct {
	mu      sync.Mutex
	samples []entities.Sample
}

func (w *countingFleetWriter) RecordSample(_ context.Context, sample entities.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, sample)
	return nil
}

func (w *countingFleetWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

type eventRecorder struct {
	mu        sync.Mutex
	envelopes []v1.Envelope
}

func (p *eventRecorder) Publish(_ context.Context, env v1.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *eventRecorder) anomalies(t *testing.T) []v1.AnomalyDetected {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []v1.AnomalyDetected
	for _, env := range p.envelopes {
		if env.Action != v1.RouteTelemetryAnomaly.Action {
			continue
		}
		anomaly, err := v1.Decode[v1.AnomalyDetected](env)
		if err != nil {
			t.Fatalf("decode anomaly: %v", err)
		}
		out = append(out, anomaly)
	}
	return out
}

func newTestConsumer() (TelemetryConsumer, *countingFleetWriter, *eventRecorder) {
	fleet := &countingFleetWriter{}
	publisher := &eventRecorder{}
	consumer := TelemetryConsumer{
		Fleet: fleet,
		Tracker: application.NewTracker(application.Thresholds{
			BatteryFloor: 20,
			AltitudeMax:  120,
			Staleness:    3 * time.Second,
		}),
		Publisher: publisher,
		Dedup:     messaging.NewDedup(64),
	}
	return consumer, fleet, publisher
}

func updateEnvelope(t *testing.T, battery float64) v1.Envelope {
	t.Helper()
	env, err := v1.NewEvent(v1.RouteTelemetryUpdate, "drone-01", v1.TelemetryUpdate{
		Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		DroneID:   "drone-01",
		MissionID: "mission-1",
		Position:  v1.Position{Lat: 47.3977, Lon: 8.5456, Alt: 50},
		Battery:   battery,
		Status:    "in_air",
	})
	if err != nil {
		t.Fatalf("new update event: %v", err)
	}
	return env
}

func TestRedeliveredUpdateIsAppliedOnce(t *testing.T) {
	consumer, fleet, publisher := newTestConsumer()
	ctx := context.Background()

	env := updateEnvelope(t, 15) // below the battery floor
	if err := consumer.handle(ctx, env); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := consumer.handle(ctx, env); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if fleet.count() != 1 {
		t.Fatalf("recorded %d samples, want the redelivery discarded", fleet.count())
	}
	anomalies := publisher.anomalies(t)
	if len(anomalies) != 1 {
		t.Fatalf("published %d anomalies, want exactly one", len(anomalies))
	}
	if anomalies[0].Kind != "battery" || anomalies[0].Value != 15 {
		t.Fatalf("anomaly = %+v, want the battery dip", anomalies[0])
	}

	// A fresh sample with its own message id is applied, but the latched
	// battery dip stays silent.
	if err := consumer.handle(ctx, updateEnvelope(t, 14)); err != nil {
		t.Fatalf("fresh delivery: %v", err)
	}
	if fleet.count() != 2 {
		t.Fatalf("recorded %d samples after a fresh delivery, want 2", fleet.count())
	}
	if len(publisher.anomalies(t)) != 1 {
		t.Fatal("latched anomaly reported again")
	}
}

func TestConsumerIgnoresMalformedAndForeignTraffic(t *testing.T) {
	consumer, fleet, _ := newTestConsumer()
	ctx := context.Background()

	offline, err := v1.NewEvent(v1.RouteTelemetryDroneOffline, "sweeper", v1.DroneOffline{DroneID: "drone-01"})
	if err != nil {
		t.Fatalf("new offline event: %v", err)
	}
	if err := consumer.handle(ctx, offline); err != nil {
		t.Fatalf("offline event: %v", err)
	}

	broken := updateEnvelope(t, 80)
	broken.Payload = []byte(`{not json`)
	if err := consumer.handle(ctx, broken); err != nil {
		t.Fatalf("broken payload: %v", err)
	}

	blank := updateEnvelope(t, 80)
	blank.Payload = []byte(`{"drone_id":""}`)
	if err := consumer.handle(ctx, blank); err != nil {
		t.Fatalf("blank drone id: %v", err)
	}

	if fleet.count() != 0 {
		t.Fatalf("recorded %d samples, want none", fleet.count())
	}
}
