package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"

	"skyward/contexts/fleet-control/allocator/domain/entities"
)

func newTestMirror(t *testing.T) (*Mirror, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMirror(client), server
}

func TestSaveFleetWritesEveryDrone(t *testing.T) {
	mirror, server := newTestMirror(t)

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	err := mirror.SaveFleet(context.Background(), []entities.DroneState{
		{DroneID: "drone-01", Status: entities.StatusAvailable, Capabilities: []string{"camera"}, Telemetry: entities.TelemetrySnapshot{Battery: 95}, LastHeartbeat: now},
		{DroneID: "drone-02", Status: entities.StatusReserved, Telemetry: entities.TelemetrySnapshot{Battery: 80}, LastHeartbeat: now},
	})
	if err != nil {
		t.Fatalf("save fleet: %v", err)
	}

	raw, err := server.Get(fleetKey)
	if err != nil {
		t.Fatalf("read fleet key: %v", err)
	}
	var records map[string]droneRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		t.Fatalf("decode fleet mirror: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("mirrored %d drones, want 2", len(records))
	}
	if records["drone-01"].Status != "available" || records["drone-01"].Battery != 95 {
		t.Fatalf("drone-01 record = %+v", records["drone-01"])
	}
}

func TestReservationLifecycle(t *testing.T) {
	mirror, server := newTestMirror(t)

	reservation := entities.Reservation{
		MissionID: "mission-1",
		DroneIDs:  []string{"drone-01", "drone-02"},
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := mirror.SaveReservation(context.Background(), reservation); err != nil {
		t.Fatalf("save reservation: %v", err)
	}

	if !server.Exists(reservationPrefix + "mission-1") {
		t.Fatal("reservation key missing after save")
	}
	members, err := server.SMembers(reservationIndex)
	if err != nil || len(members) != 1 || members[0] != "mission-1" {
		t.Fatalf("reservation index = %v (%v), want [mission-1]", members, err)
	}

	if err := mirror.DeleteReservation(context.Background(), "mission-1"); err != nil {
		t.Fatalf("delete reservation: %v", err)
	}
	if server.Exists(reservationPrefix + "mission-1") {
		t.Fatal("reservation key survived delete")
	}
	members, _ = server.SMembers(reservationIndex)
	if len(members) != 0 {
		t.Fatalf("reservation index after delete = %v, want empty", members)
	}
}
