package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"skyward/contexts/flight-ops/orchestrator/domain/entities"
	domainerrors "skyward/contexts/flight-ops/orchestrator/domain/errors"
	"skyward/contexts/flight-ops/orchestrator/ports"
)

// Store is the in-memory mission state, the source of truth while the
// station runs. It carries the outbox too, so lifecycle events and the
// state changes that produced them live in the same store.
type Store struct {
	mu sync.RWMutex

	missions  map[string]entities.Mission
	outbox    []ports.OutboxEvent
	published map[string]time.Time
}

func NewStore() *Store {
	return &Store{
		missions:  make(map[string]entities.Mission),
		published: make(map[string]time.Time),
	}
}

func (s *Store) CreateMission(_ context.Context, mission entities.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.missions[mission.MissionID]; exists {
		return domainerrors.ErrMissionExists
	}
	s.missions[mission.MissionID] = mission
	return nil
}

func (s *Store) UpdateMission(_ context.Context, mission entities.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.missions[mission.MissionID]; !exists {
		return domainerrors.ErrMissionNotFound
	}
	s.missions[mission.MissionID] = mission
	return nil
}

func (s *Store) GetMission(_ context.Context, missionID string) (entities.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mission, exists := s.missions[strings.TrimSpace(missionID)]
	if !exists {
		return entities.Mission{}, domainerrors.ErrMissionNotFound
	}
	return mission, nil
}

func (s *Store) ListActiveMissions(_ context.Context) ([]entities.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Mission, 0, len(s.missions))
	for _, mission := range s.missions {
		if mission.State.Terminal() {
			continue
		}
		items = append(items, mission)
	}
	return items, nil
}

func (s *Store) AppendOutbox(_ context.Context, event ports.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.outbox {
		if existing.OutboxID == event.OutboxID {
			return nil
		}
	}
	s.outbox = append(s.outbox, event)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxEvent, 0, limit)
	for _, event := range s.outbox {
		if _, done := s.published[event.OutboxID]; done {
			continue
		}
		items = append(items, event)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.published[outboxID] = publishedAt.UTC()
	return nil
}
