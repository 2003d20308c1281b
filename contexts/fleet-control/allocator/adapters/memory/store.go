package memory

import (
	"context"
	"strings"
	"sync"

	"skyward/contexts/fleet-control/allocator/domain/entities"
	domainerrors "skyward/contexts/fleet-control/allocator/domain/errors"
)

// Store is the in-memory fleet state, the source of truth while the
// station runs.
type Store struct {
	mu sync.RWMutex

	drones       map[string]entities.DroneState
	reservations map[string]entities.Reservation
}

func NewStore(seed []entities.DroneState) *Store {
	drones := make(map[string]entities.DroneState, len(seed))
	for _, item := range seed {
		drones[item.DroneID] = item
	}
	return &Store{
		drones:       drones,
		reservations: make(map[string]entities.Reservation),
	}
}

func (s *Store) ListDrones(_ context.Context) ([]entities.DroneState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.DroneState, 0, len(s.drones))
	for _, drone := range s.drones {
		items = append(items, drone)
	}
	return items, nil
}

func (s *Store) GetDrone(_ context.Context, droneID string) (entities.DroneState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drone, exists := s.drones[strings.TrimSpace(droneID)]
	if !exists {
		return entities.DroneState{}, domainerrors.ErrDroneNotFound
	}
	return drone, nil
}

func (s *Store) SetStatus(_ context.Context, droneID string, status entities.DroneStatus) (entities.DroneState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drone, exists := s.drones[droneID]
	if !exists {
		return entities.DroneState{}, domainerrors.ErrDroneNotFound
	}
	drone.Status = status
	s.drones[droneID] = drone
	return drone, nil
}

func (s *Store) UpdateTelemetry(_ context.Context, droneID string, snapshot entities.TelemetrySnapshot) (entities.DroneState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drone, exists := s.drones[droneID]
	if !exists {
		return entities.DroneState{}, domainerrors.ErrDroneNotFound
	}
	drone.Telemetry = snapshot
	drone.LastHeartbeat = snapshot.At
	s.drones[droneID] = drone
	return drone, nil
}

func (s *Store) ReserveDrones(_ context.Context, reservation entities.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reservations[reservation.MissionID]; exists {
		return domainerrors.ErrDuplicateReservation
	}
	for _, droneID := range reservation.DroneIDs {
		drone, exists := s.drones[droneID]
		if !exists {
			return domainerrors.ErrDroneNotFound
		}
		if drone.Status != entities.StatusAvailable {
			return domainerrors.ErrDroneNotAvailable
		}
	}
	for _, droneID := range reservation.DroneIDs {
		drone := s.drones[droneID]
		drone.Status = entities.StatusReserved
		s.drones[droneID] = drone
	}
	s.reservations[reservation.MissionID] = reservation
	return nil
}

func (s *Store) ReleaseMission(_ context.Context, missionID string) ([]entities.ReleasedDrone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[missionID]
	if !exists {
		return nil, nil
	}
	released := make([]entities.ReleasedDrone, 0, len(reservation.DroneIDs))
	for _, droneID := range reservation.DroneIDs {
		drone, found := s.drones[droneID]
		if !found {
			continue
		}
		if drone.Status == entities.StatusReserved || drone.Status == entities.StatusInMission {
			released = append(released, entities.ReleasedDrone{DroneID: droneID, From: drone.Status})
			drone.Status = entities.StatusAvailable
			s.drones[droneID] = drone
		}
	}
	delete(s.reservations, missionID)
	return released, nil
}

func (s *Store) GetReservation(_ context.Context, missionID string) (entities.Reservation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, exists := s.reservations[missionID]
	return reservation, exists, nil
}
