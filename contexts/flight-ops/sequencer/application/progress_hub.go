package application

import (
	"context"
	"log/slog"
	"sync"

	"skyward/contexts/flight-ops/sequencer/ports"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

// ProgressHub fans robot.mission.progress events out to the session
// that is flying the reporting drone. One bus subscription serves every
// concurrent session.
type ProgressHub struct {
	Subscriber ports.BusSubscriber
	Dedup      *messaging.Dedup
	Logger     *slog.Logger

	mu      sync.Mutex
	waiters map[string]chan v1.RobotProgress
}

func NewProgressHub(subscriber ports.BusSubscriber, logger *slog.Logger) *ProgressHub {
	return &ProgressHub{
		Subscriber: subscriber,
		Dedup:      messaging.NewDedup(8192),
		Logger:     logger,
		waiters:    make(map[string]chan v1.RobotProgress),
	}
}

func (h *ProgressHub) Start(_ context.Context) func() {
	return h.Subscriber.Subscribe(v1.TopicEvents, "sequencer-progress", h.handle)
}

// Register opens a progress channel for one (mission, drone) session.
// The returned func removes the registration.
func (h *ProgressHub) Register(missionID, droneID string) (<-chan v1.RobotProgress, func()) {
	ch := make(chan v1.RobotProgress, 32)
	key := missionID + "|" + droneID

	h.mu.Lock()
	h.waiters[key] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.waiters, key)
		h.mu.Unlock()
	}
}

func (h *ProgressHub) handle(_ context.Context, env v1.Envelope) error {
	if env.Type != v1.TypeEvent || env.Action != v1.RouteRobotMissionProgress.Action {
		return nil
	}
	if h.Dedup.Seen(env.MessageID) {
		return nil
	}
	progress, err := v1.Decode[v1.RobotProgress](env)
	if err != nil {
		return err
	}

	h.mu.Lock()
	ch, ok := h.waiters[progress.MissionID+"|"+progress.DroneID]
	h.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case ch <- progress:
	default:
		// Stale samples may be dropped: the session only needs the
		// newest progress figure, and terminal reports re-arrive on the
		// next publish.
	}
	return nil
}
