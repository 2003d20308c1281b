package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "skyward/contexts/flight-ops/orchestrator/application"
	"skyward/contexts/flight-ops/orchestrator/ports"
	v1 "skyward/contracts/messages/v1"
)

// OutboxRelay publishes pending mission lifecycle events to the bus.
// The outbox ID becomes the envelope's message ID, so a crash between
// publish and mark-published only causes a redelivery that downstream
// dedup discards.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Interval  time.Duration
	Logger    *slog.Logger
}

func (r OutboxRelay) Start(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.RunOnce(ctx)
		}
	}
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("mission outbox list failed",
			"event", "orchestrator_outbox_list_failed",
			"module", "flight-ops/orchestrator",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		env := v1.Envelope{
			MessageID: row.OutboxID,
			Timestamp: row.CreatedAt,
			Source:    subscriberName,
			Topic:     row.Topic,
			Action:    row.Action,
			Type:      v1.TypeEvent,
			Payload:   json.RawMessage(row.Payload),
		}
		if err := r.Publisher.Publish(ctx, env); err != nil {
			logger.Error("mission outbox publish failed",
				"event", "orchestrator_outbox_publish_failed",
				"module", "flight-ops/orchestrator",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"action", row.Action,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("mission outbox mark published failed",
				"event", "orchestrator_outbox_mark_published_failed",
				"module", "flight-ops/orchestrator",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("mission outbox relay cycle completed",
			"event", "orchestrator_outbox_relay_completed",
			"module", "flight-ops/orchestrator",
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}
