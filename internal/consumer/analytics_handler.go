package consumer

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/itinerary/internal/events"
)

// AnalyticsHandler appends consumed events to the analytics event log and
// maintains move counters. Inserts are keyed on the outbox event id, so
// at-least-once delivery does not double-count.
type AnalyticsHandler struct {
	pool *pgxpool.Pool
}

// NewAnalyticsHandler constructs a handler backed by the provided pool.
func NewAnalyticsHandler(pool *pgxpool.Pool) *AnalyticsHandler {
	return &AnalyticsHandler{pool: pool}
}

// Handle stores the event payload in the plan_event_log table.
func (h *AnalyticsHandler) Handle(ctx context.Context, msg Message) error {
	tag, err := h.pool.Exec(ctx,
		`INSERT INTO plan_event_log (event_id, event_type, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         ON CONFLICT (event_id) DO NOTHING`,
		msg.EventID,
		msg.EventType,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Duplicate delivery; already counted.
		return nil
	}

	if msg.EventType == "activity.moved" {
		var moved events.ActivityMoved
		if err := json.Unmarshal(msg.Payload, &moved); err == nil {
			recordMoveKind(moved.MoveKind)
		}
	}
	return nil
}
