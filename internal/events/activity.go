// Package events defines the payloads published to the analytics stream.
package events

import "time"

// ActivityMoved is emitted when a committed reorder relocates an activity.
type ActivityMoved struct {
	ActivityID   string    `json:"activity_id"`
	PlanID       string    `json:"plan_id"`
	FromDayID    string    `json:"from_day_id"`
	ToDayID      string    `json:"to_day_id"`
	FromPosition int       `json:"from_position"`
	ToPosition   int       `json:"to_position"`
	MoveKind     string    `json:"move_kind"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ActivityCreated is emitted when a new activity is appended to a day.
type ActivityCreated struct {
	ActivityID  string    `json:"activity_id"`
	PlanID      string    `json:"plan_id"`
	DayID       string    `json:"day_id"`
	Position    int       `json:"position"`
	Title       string    `json:"title"`
	DurationMin int       `json:"duration_min"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ActivityDeleted is emitted when an activity is removed and its day compacted.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	PlanID     string    `json:"plan_id"`
	DayID      string    `json:"day_id"`
	Position   int       `json:"position"`
	OccurredAt time.Time `json:"occurred_at"`
}
