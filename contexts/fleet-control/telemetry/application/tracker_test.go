package application

import (
	"testing"
	"time"

	"skyward/contexts/fleet-control/telemetry/domain/entities"
	v1 "skyward/contracts/messages/v1"
)

func testThresholds() Thresholds {
	return Thresholds{
		BatteryFloor: 20,
		AltitudeMax:  120,
		Staleness:    3 * time.Second,
	}
}

func sampleAt(at time.Time, battery, alt float64) entities.Sample {
	return entities.Sample{
		DroneID:  "drone-01",
		Battery:  battery,
		Position: v1.Position{Lat: 47.39, Lon: 8.54, Alt: alt},
		Status:   "in_air",
		At:       at,
	}
}

func TestObserveLatchesBatteryAnomaly(t *testing.T) {
	tracker := NewTracker(testThresholds())
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	verdict := tracker.Observe(sampleAt(now, 15, 50))
	if verdict.BatteryAnomaly == nil {
		t.Fatal("first sample below floor produced no anomaly")
	}
	if verdict.BatteryAnomaly.Kind != "battery" || verdict.BatteryAnomaly.Value != 15 || verdict.BatteryAnomaly.Bound != 20 {
		t.Fatalf("anomaly = %+v, want battery 15 against bound 20", verdict.BatteryAnomaly)
	}

	// Still below the floor: the latch holds, no duplicate anomaly.
	verdict = tracker.Observe(sampleAt(now.Add(time.Second), 12, 50))
	if verdict.BatteryAnomaly != nil {
		t.Fatalf("latched anomaly re-reported: %+v", verdict.BatteryAnomaly)
	}

	// Recovery re-arms the latch, so the next dip reports again.
	tracker.Observe(sampleAt(now.Add(2*time.Second), 45, 50))
	verdict = tracker.Observe(sampleAt(now.Add(3*time.Second), 10, 50))
	if verdict.BatteryAnomaly == nil {
		t.Fatal("anomaly after recovery not re-reported")
	}
}

func TestObserveJudgesAltitudeIndependently(t *testing.T) {
	tracker := NewTracker(testThresholds())
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	verdict := tracker.Observe(sampleAt(now, 10, 150))
	if verdict.BatteryAnomaly == nil || verdict.AltitudeAnomaly == nil {
		t.Fatalf("verdict = %+v, want both anomalies", verdict)
	}
	if verdict.AltitudeAnomaly.Kind != "altitude" || verdict.AltitudeAnomaly.Value != 150 {
		t.Fatalf("altitude anomaly = %+v", verdict.AltitudeAnomaly)
	}

	// Altitude recovers while battery stays latched.
	verdict = tracker.Observe(sampleAt(now.Add(time.Second), 10, 100))
	if verdict.BatteryAnomaly != nil || verdict.AltitudeAnomaly != nil {
		t.Fatalf("verdict = %+v, want no new anomalies", verdict)
	}
	verdict = tracker.Observe(sampleAt(now.Add(2*time.Second), 10, 150))
	if verdict.AltitudeAnomaly == nil {
		t.Fatal("altitude re-crossing not reported after recovery")
	}
	if verdict.BatteryAnomaly != nil {
		t.Fatal("battery latch lost while value stayed below floor")
	}
}

func TestSweepReportsEachOutageOnce(t *testing.T) {
	tracker := NewTracker(testThresholds())
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	tracker.Observe(sampleAt(now, 80, 50))

	if expired := tracker.Sweep(now.Add(2 * time.Second)); len(expired) != 0 {
		t.Fatalf("drone expired inside the staleness window: %v", expired)
	}

	expired := tracker.Sweep(now.Add(5 * time.Second))
	if len(expired) != 1 || expired[0].DroneID != "drone-01" {
		t.Fatalf("expired = %v, want drone-01", expired)
	}

	// Repeated sweeps in the same outage stay quiet.
	if expired := tracker.Sweep(now.Add(10 * time.Second)); len(expired) != 0 {
		t.Fatalf("same outage reported twice: %v", expired)
	}

	// A fresh sample brings the drone back and re-arms expiry.
	verdict := tracker.Observe(sampleAt(now.Add(11*time.Second), 80, 50))
	if !verdict.Recovered {
		t.Fatal("sample after outage did not report recovery")
	}
	expired = tracker.Sweep(now.Add(20 * time.Second))
	if len(expired) != 1 {
		t.Fatalf("second outage not reported: %v", expired)
	}
}

func TestSnapshotReflectsLastSample(t *testing.T) {
	tracker := NewTracker(testThresholds())
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	if _, ok := tracker.Snapshot("drone-01"); ok {
		t.Fatal("snapshot of unseen drone reported as found")
	}

	tracker.Observe(sampleAt(now, 77, 60))
	snapshot, ok := tracker.Snapshot("drone-01")
	if !ok {
		t.Fatal("snapshot missing after observe")
	}
	if snapshot.Last.Battery != 77 || !snapshot.LastSeen.Equal(now) {
		t.Fatalf("snapshot = %+v, want last sample retained", snapshot)
	}
}
