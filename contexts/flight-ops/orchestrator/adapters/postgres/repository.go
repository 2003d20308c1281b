package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"skyward/contexts/flight-ops/orchestrator/domain/entities"
	domainerrors "skyward/contexts/flight-ops/orchestrator/domain/errors"
	"skyward/contexts/flight-ops/orchestrator/ports"
	v1 "skyward/contracts/messages/v1"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository is the durable mission archive plus the lifecycle outbox.
// During an active mission the in-memory copy stays authoritative; this
// store is what survives a station restart.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateMission(ctx context.Context, mission entities.Mission) error {
	row, err := missionModelFromEntity(mission)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrMissionExists
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateMission(ctx context.Context, mission entities.Mission) error {
	row, err := missionModelFromEntity(mission)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&missionModel{}).
		Where("mission_id = ?", strings.TrimSpace(mission.MissionID)).
		Updates(map[string]any{
			"state":      row.State,
			"drone_ids":  row.DroneIDs,
			"outcomes":   row.Outcomes,
			"fault":      row.Fault,
			"updated_at": row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrMissionNotFound
	}
	return nil
}

func (r *Repository) GetMission(ctx context.Context, missionID string) (entities.Mission, error) {
	var row missionModel
	err := r.db.WithContext(ctx).
		Where("mission_id = ?", strings.TrimSpace(missionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Mission{}, domainerrors.ErrMissionNotFound
		}
		return entities.Mission{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListActiveMissions(ctx context.Context) ([]entities.Mission, error) {
	var rows []missionModel
	if err := r.db.WithContext(ctx).
		Where("state NOT IN ?", terminalStates()).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Mission, 0, len(rows))
	for _, row := range rows {
		mission, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, mission)
	}
	return items, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, event ports.OutboxEvent) error {
	row := outboxModel{
		OutboxID:  strings.TrimSpace(event.OutboxID),
		Topic:     event.Topic,
		Action:    event.Action,
		Payload:   append([]byte(nil), event.Payload...),
		Status:    outboxStatusPending,
		CreatedAt: event.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxEvent{
			OutboxID:  row.OutboxID,
			Topic:     row.Topic,
			Action:    row.Action,
			Payload:   append([]byte(nil), row.Payload...),
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrMissionNotFound
	}
	return nil
}

type missionModel struct {
	MissionID     string    `gorm:"column:mission_id;primaryKey"`
	TaskID        string    `gorm:"column:task_id"`
	Name          string    `gorm:"column:name"`
	MissionType   string    `gorm:"column:mission_type"`
	State         string    `gorm:"column:state"`
	RequiredCount int       `gorm:"column:required_count"`
	MinBattery    float64   `gorm:"column:min_battery"`
	Capabilities  []byte    `gorm:"column:capabilities;type:jsonb"`
	WindowStart   time.Time `gorm:"column:window_start"`
	WindowEnd     time.Time `gorm:"column:window_end"`
	Waypoints     []byte    `gorm:"column:waypoints;type:jsonb"`
	DroneIDs      []byte    `gorm:"column:drone_ids;type:jsonb"`
	Outcomes      []byte    `gorm:"column:outcomes;type:jsonb"`
	Fault         []byte    `gorm:"column:fault;type:jsonb"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (missionModel) TableName() string {
	return "missions"
}

type outboxModel struct {
	OutboxID    string     `gorm:"column:outbox_id;primaryKey"`
	Topic       string     `gorm:"column:topic"`
	Action      string     `gorm:"column:action"`
	Payload     []byte     `gorm:"column:payload;type:jsonb"`
	Status      string     `gorm:"column:status"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "mission_outbox"
}

func missionModelFromEntity(mission entities.Mission) (missionModel, error) {
	capabilities, err := json.Marshal(mission.Capabilities)
	if err != nil {
		return missionModel{}, err
	}
	waypoints, err := json.Marshal(mission.Waypoints)
	if err != nil {
		return missionModel{}, err
	}
	droneIDs, err := json.Marshal(mission.DroneIDs)
	if err != nil {
		return missionModel{}, err
	}
	outcomes, err := json.Marshal(mission.Outcomes)
	if err != nil {
		return missionModel{}, err
	}
	var fault []byte
	if mission.Fault != nil {
		if fault, err = json.Marshal(mission.Fault); err != nil {
			return missionModel{}, err
		}
	}
	return missionModel{
		MissionID:     strings.TrimSpace(mission.MissionID),
		TaskID:        strings.TrimSpace(mission.TaskID),
		Name:          mission.Name,
		MissionType:   mission.MissionType,
		State:         string(mission.State),
		RequiredCount: mission.RequiredCount,
		MinBattery:    mission.MinBattery,
		Capabilities:  capabilities,
		WindowStart:   mission.WindowStart.UTC(),
		WindowEnd:     mission.WindowEnd.UTC(),
		Waypoints:     waypoints,
		DroneIDs:      droneIDs,
		Outcomes:      outcomes,
		Fault:         fault,
		CreatedAt:     mission.CreatedAt.UTC(),
		UpdatedAt:     mission.UpdatedAt.UTC(),
	}, nil
}

func (m missionModel) toEntity() (entities.Mission, error) {
	mission := entities.Mission{
		MissionID:     m.MissionID,
		TaskID:        m.TaskID,
		Name:          m.Name,
		MissionType:   m.MissionType,
		State:         entities.MissionState(m.State),
		RequiredCount: m.RequiredCount,
		MinBattery:    m.MinBattery,
		WindowStart:   m.WindowStart,
		WindowEnd:     m.WindowEnd,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if len(m.Capabilities) > 0 {
		if err := json.Unmarshal(m.Capabilities, &mission.Capabilities); err != nil {
			return entities.Mission{}, err
		}
	}
	if len(m.Waypoints) > 0 {
		if err := json.Unmarshal(m.Waypoints, &mission.Waypoints); err != nil {
			return entities.Mission{}, err
		}
	}
	if len(m.DroneIDs) > 0 {
		if err := json.Unmarshal(m.DroneIDs, &mission.DroneIDs); err != nil {
			return entities.Mission{}, err
		}
	}
	if len(m.Outcomes) > 0 {
		if err := json.Unmarshal(m.Outcomes, &mission.Outcomes); err != nil {
			return entities.Mission{}, err
		}
	}
	if len(m.Fault) > 0 {
		fault := &v1.Fault{}
		if err := json.Unmarshal(m.Fault, fault); err != nil {
			return entities.Mission{}, err
		}
		mission.Fault = fault
	}
	return mission, nil
}

func terminalStates() []string {
	return []string{
		string(entities.StateCompleted),
		string(entities.StatePlanningFailed),
		string(entities.StateAllocationFailed),
		string(entities.StateExecutionFailed),
		string(entities.StateCancelled),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
