package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"skyward/contexts/flight-ops/orchestrator/domain/entities"
	v1 "skyward/contracts/messages/v1"
)

const (
	missionPrefix = "gcs:mission:"
	missionIndex  = "gcs:missions"
)

type missionRecord struct {
	MissionID string            `json:"mission_id"`
	TaskID    string            `json:"task_id"`
	State     string            `json:"state"`
	DroneIDs  []string          `json:"drone_ids,omitempty"`
	Outcomes  []v1.DroneOutcome `json:"outcomes,omitempty"`
	Fault     *v1.Fault         `json:"fault,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Mirror checkpoints mission lifecycle state to Redis for the external
// collaborators. It is a recovery aid, never the source of truth while
// the mission is active.
type Mirror struct {
	client *redis.Client
}

func NewMirror(client *redis.Client) *Mirror {
	return &Mirror{client: client}
}

func (m *Mirror) SaveMission(ctx context.Context, mission entities.Mission) error {
	raw, err := json.Marshal(missionRecord{
		MissionID: mission.MissionID,
		TaskID:    mission.TaskID,
		State:     string(mission.State),
		DroneIDs:  mission.DroneIDs,
		Outcomes:  mission.Outcomes,
		Fault:     mission.Fault,
		UpdatedAt: mission.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal mission mirror: %w", err)
	}
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, missionPrefix+mission.MissionID, raw, 0)
	pipe.SAdd(ctx, missionIndex, mission.MissionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save mission mirror: %w", err)
	}
	return nil
}
