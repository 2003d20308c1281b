package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"skyward/contexts/fleet-control/telemetry/domain/entities"
	v1 "skyward/contracts/messages/v1"
)

const snapshotPrefix = "gcs:telemetry:"

// Snapshots arrive at drone cadence, so the record is msgpack rather
// than JSON and each key carries a TTL slightly past the staleness
// window. A key that expired is a drone that stopped reporting.
type snapshotRecord struct {
	DroneID   string    `msgpack:"drone_id"`
	MissionID string    `msgpack:"mission_id,omitempty"`
	Lat       float64   `msgpack:"lat"`
	Lon       float64   `msgpack:"lon"`
	Alt       float64   `msgpack:"alt"`
	Battery   float64   `msgpack:"battery"`
	Velocity  float64   `msgpack:"velocity"`
	Status    string    `msgpack:"status"`
	At        time.Time `msgpack:"at"`
}

type Mirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMirror(client *redis.Client, ttl time.Duration) *Mirror {
	return &Mirror{client: client, ttl: ttl}
}

func (m *Mirror) SaveSnapshot(ctx context.Context, sample entities.Sample) error {
	raw, err := msgpack.Marshal(snapshotRecord{
		DroneID:   sample.DroneID,
		MissionID: sample.MissionID,
		Lat:       sample.Position.Lat,
		Lon:       sample.Position.Lon,
		Alt:       sample.Position.Alt,
		Battery:   sample.Battery,
		Velocity:  sample.Velocity,
		Status:    sample.Status,
		At:        sample.At,
	})
	if err != nil {
		return fmt.Errorf("marshal telemetry snapshot: %w", err)
	}
	if err := m.client.Set(ctx, snapshotPrefix+sample.DroneID, raw, m.ttl).Err(); err != nil {
		return fmt.Errorf("save telemetry snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads back one drone's latest mirrored sample.
func (m *Mirror) LoadSnapshot(ctx context.Context, droneID string) (entities.Sample, bool, error) {
	raw, err := m.client.Get(ctx, snapshotPrefix+droneID).Bytes()
	if err == redis.Nil {
		return entities.Sample{}, false, nil
	}
	if err != nil {
		return entities.Sample{}, false, fmt.Errorf("load telemetry snapshot: %w", err)
	}
	var record snapshotRecord
	if err := msgpack.Unmarshal(raw, &record); err != nil {
		return entities.Sample{}, false, fmt.Errorf("decode telemetry snapshot: %w", err)
	}
	return entities.Sample{
		DroneID:   record.DroneID,
		MissionID: record.MissionID,
		Position:  v1.Position{Lat: record.Lat, Lon: record.Lon, Alt: record.Alt},
		Battery:   record.Battery,
		Velocity:  record.Velocity,
		Status:    record.Status,
		At:        record.At,
	}, true, nil
}
