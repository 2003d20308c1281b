package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"skyward/contexts/fleet-control/allocator/domain/entities"
)

const (
	fleetKey          = "gcs:fleet"
	reservationPrefix = "gcs:reservation:"
	reservationIndex  = "gcs:reservations"
)

type droneRecord struct {
	DroneID       string    `json:"drone_id"`
	Status        string    `json:"status"`
	Capabilities  []string  `json:"capabilities,omitempty"`
	Battery       float64   `json:"battery"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

type reservationRecord struct {
	MissionID   string    `json:"mission_id"`
	DroneIDs    []string  `json:"drone_ids"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	CreatedAt   time.Time `json:"created_at"`
}

// Mirror checkpoints fleet state to Redis. The durable copy is a
// recovery aid for the external collaborators, never the source of
// truth during an active mission.
type Mirror struct {
	client *redis.Client
}

func NewMirror(client *redis.Client) *Mirror {
	return &Mirror{client: client}
}

func (m *Mirror) SaveFleet(ctx context.Context, drones []entities.DroneState) error {
	records := make(map[string]droneRecord, len(drones))
	for _, drone := range drones {
		records[drone.DroneID] = droneRecord{
			DroneID:       drone.DroneID,
			Status:        string(drone.Status),
			Capabilities:  drone.Capabilities,
			Battery:       drone.Telemetry.Battery,
			LastHeartbeat: drone.LastHeartbeat,
		}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal fleet mirror: %w", err)
	}
	if err := m.client.Set(ctx, fleetKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("save fleet mirror: %w", err)
	}
	return nil
}

func (m *Mirror) SaveReservation(ctx context.Context, reservation entities.Reservation) error {
	raw, err := json.Marshal(reservationRecord{
		MissionID:   reservation.MissionID,
		DroneIDs:    reservation.DroneIDs,
		WindowStart: reservation.WindowStart,
		WindowEnd:   reservation.WindowEnd,
		CreatedAt:   reservation.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal reservation mirror: %w", err)
	}
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, reservationPrefix+reservation.MissionID, raw, 0)
	pipe.SAdd(ctx, reservationIndex, reservation.MissionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save reservation mirror: %w", err)
	}
	return nil
}

func (m *Mirror) DeleteReservation(ctx context.Context, missionID string) error {
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, reservationPrefix+missionID)
	pipe.SRem(ctx, reservationIndex, missionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete reservation mirror: %w", err)
	}
	return nil
}
