// Package postgres provides pgx-backed persistence for plans, days and
// activities, including the atomic reorder transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/itinerary/internal/domain"
	"example.com/itinerary/internal/events"
	"example.com/itinerary/internal/observability"
)

// Repository provides Postgres-backed persistence and writes outbox events
// inside the same transaction as each mutation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePlan persists the plan and its generated days in one transaction.
func (r *Repository) CreatePlan(ctx context.Context, plan domain.Plan, days []domain.Day) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertPlan = `INSERT INTO plans (plan_id, owner_id, title, starts_on, ends_on, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.Exec(ctx, insertPlan,
		plan.ID, plan.OwnerID, plan.Title, plan.StartsOn, plan.EndsOn, plan.CreatedAt, plan.UpdatedAt,
	); err != nil {
		return mapConstraint(err)
	}

	const insertDay = `INSERT INTO days (day_id, plan_id, seq, day_date) VALUES ($1,$2,$3,$4)`
	for _, day := range days {
		if _, err := tx.Exec(ctx, insertDay, day.ID, day.PlanID, day.Seq, day.Date); err != nil {
			return mapConstraint(err)
		}
	}

	return tx.Commit(ctx)
}

// GetPlan retrieves a plan by ID, returning nil when absent.
func (r *Repository) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	const query = `SELECT plan_id, owner_id, title, starts_on, ends_on, created_at, updated_at
        FROM plans WHERE plan_id=$1`

	row := r.pool.QueryRow(ctx, query, planID)
	var plan domain.Plan
	if err := row.Scan(&plan.ID, &plan.OwnerID, &plan.Title, &plan.StartsOn, &plan.EndsOn, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// GetPlanTree retrieves the full plan -> day -> activity tree, days ordered
// by seq and activities by position.
func (r *Repository) GetPlanTree(ctx context.Context, planID string) (*domain.PlanTree, error) {
	plan, err := r.GetPlan(ctx, planID)
	if err != nil || plan == nil {
		return nil, err
	}

	const dayQuery = `SELECT day_id, plan_id, seq, day_date FROM days WHERE plan_id=$1 ORDER BY seq`
	rows, err := r.pool.Query(ctx, dayQuery, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tree := &domain.PlanTree{Plan: *plan}
	dayIndex := make(map[string]int)
	for rows.Next() {
		var day domain.Day
		if err := rows.Scan(&day.ID, &day.PlanID, &day.Seq, &day.Date); err != nil {
			return nil, err
		}
		dayIndex[day.ID] = len(tree.Days)
		tree.Days = append(tree.Days, domain.DayTree{Day: day})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const activityQuery = `SELECT a.activity_id, a.day_id, a.position, a.title, a.duration_min, a.transit_min, a.created_at, a.updated_at
        FROM activities a JOIN days d ON d.day_id = a.day_id
        WHERE d.plan_id=$1 ORDER BY d.seq, a.position`
	activityRows, err := r.pool.Query(ctx, activityQuery, planID)
	if err != nil {
		return nil, err
	}
	defer activityRows.Close()

	for activityRows.Next() {
		var a domain.Activity
		if err := activityRows.Scan(&a.ID, &a.DayID, &a.Position, &a.Title, &a.DurationMin, &a.TransitMin, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if idx, ok := dayIndex[a.DayID]; ok {
			tree.Days[idx].Activities = append(tree.Days[idx].Activities, a)
		}
	}
	if err := activityRows.Err(); err != nil {
		return nil, err
	}

	return tree, nil
}

// ListPlans returns the owner's plans newest first with cursor pagination.
func (r *Repository) ListPlans(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Plan, *domain.Cursor, error) {
	args := []interface{}{ownerID, limit}
	query := `SELECT plan_id, owner_id, title, starts_on, ends_on, created_at, updated_at
        FROM plans WHERE owner_id=$1`

	if cursor != nil {
		query += ` AND (created_at, plan_id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += ` ORDER BY created_at DESC, plan_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Plan, 0, limit)
	for rows.Next() {
		var plan domain.Plan
		if err := rows.Scan(&plan.ID, &plan.OwnerID, &plan.Title, &plan.StartsOn, &plan.EndsOn, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, nil, err
		}
		results = append(results, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// DeletePlan removes the plan; days and activities cascade.
func (r *Repository) DeletePlan(ctx context.Context, planID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM plans WHERE plan_id=$1`, planID)
	return err
}

// FindActivityRef resolves the activity together with its plan and owner.
func (r *Repository) FindActivityRef(ctx context.Context, activityID string) (*domain.ActivityRef, error) {
	const query = `SELECT a.activity_id, a.day_id, a.position, a.title, a.duration_min, a.transit_min, a.created_at, a.updated_at,
            d.plan_id, p.owner_id
        FROM activities a
        JOIN days d ON d.day_id = a.day_id
        JOIN plans p ON p.plan_id = d.plan_id
        WHERE a.activity_id=$1`

	row := r.pool.QueryRow(ctx, query, activityID)
	var ref domain.ActivityRef
	if err := row.Scan(
		&ref.Activity.ID, &ref.Activity.DayID, &ref.Activity.Position, &ref.Activity.Title,
		&ref.Activity.DurationMin, &ref.Activity.TransitMin, &ref.Activity.CreatedAt, &ref.Activity.UpdatedAt,
		&ref.PlanID, &ref.OwnerID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

// FindDayRef resolves the day together with its plan and owner.
func (r *Repository) FindDayRef(ctx context.Context, dayID string) (*domain.DayRef, error) {
	const query = `SELECT d.day_id, d.plan_id, d.seq, d.day_date, p.owner_id
        FROM days d JOIN plans p ON p.plan_id = d.plan_id
        WHERE d.day_id=$1`

	row := r.pool.QueryRow(ctx, query, dayID)
	var ref domain.DayRef
	if err := row.Scan(&ref.Day.ID, &ref.Day.PlanID, &ref.Day.Seq, &ref.Day.Date, &ref.OwnerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ref.PlanID = ref.Day.PlanID
	return &ref, nil
}

// CreateActivity appends the activity at the end of its day. The day row is
// locked so concurrent appends serialize on the position assignment.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) (*domain.Activity, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var planID string
	if err := tx.QueryRow(ctx, `SELECT plan_id FROM days WHERE day_id=$1 FOR UPDATE`, activity.DayID).Scan(&planID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: day %s", domain.ErrNotFound, activity.DayID)
		}
		return nil, err
	}

	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM activities WHERE day_id=$1`, activity.DayID,
	).Scan(&activity.Position); err != nil {
		return nil, err
	}

	const insert = `INSERT INTO activities (activity_id, day_id, position, title, duration_min, transit_min, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := tx.Exec(ctx, insert,
		activity.ID, activity.DayID, activity.Position, activity.Title,
		activity.DurationMin, activity.TransitMin, activity.CreatedAt, activity.UpdatedAt,
	); err != nil {
		return nil, mapConstraint(err)
	}

	if err := insertOutbox(ctx, tx, planID, "activity.created", events.ActivityCreated{
		ActivityID:  activity.ID,
		PlanID:      planID,
		DayID:       activity.DayID,
		Position:    activity.Position,
		Title:       activity.Title,
		DurationMin: activity.DurationMin,
		OccurredAt:  activity.CreatedAt,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &activity, nil
}

// DeleteActivity removes the activity and closes the gap it leaves behind.
func (r *Repository) DeleteActivity(ctx context.Context, activityID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var dayID, planID string
	var position int
	const locate = `SELECT a.day_id, a.position, d.plan_id
        FROM activities a JOIN days d ON d.day_id = a.day_id
        WHERE a.activity_id=$1 FOR UPDATE OF a`
	if err := tx.QueryRow(ctx, locate, activityID).Scan(&dayID, &position, &planID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: activity %s", domain.ErrNotFound, activityID)
		}
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM activities WHERE activity_id=$1`, activityID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE activities SET position = position - 1 WHERE day_id=$1 AND position > $2`, dayID, position,
	); err != nil {
		return mapConstraint(err)
	}

	if err := insertOutbox(ctx, tx, planID, "activity.deleted", events.ActivityDeleted{
		ActivityID: activityID,
		PlanID:     planID,
		DayID:      dayID,
		Position:   position,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// MoveActivity relocates the activity and renumbers positions so every
// touched day keeps its positions exactly {1..N}. The whole move runs in a
// single serializable transaction with the activity row locked, so a second
// concurrent move of the same row waits and then recomputes from committed
// state. Nothing partial ever becomes visible.
func (r *Repository) MoveActivity(ctx context.Context, activityID, targetDayID string, targetPosition int) (*domain.Activity, error) {
	start := time.Now()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var current domain.Activity
	var sourcePlanID string
	const lockRow = `SELECT a.activity_id, a.day_id, a.position, a.title, a.duration_min, a.transit_min, a.created_at, a.updated_at, d.plan_id
        FROM activities a JOIN days d ON d.day_id = a.day_id
        WHERE a.activity_id=$1 FOR UPDATE OF a`
	if err := tx.QueryRow(ctx, lockRow, activityID).Scan(
		&current.ID, &current.DayID, &current.Position, &current.Title,
		&current.DurationMin, &current.TransitMin, &current.CreatedAt, &current.UpdatedAt,
		&sourcePlanID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: activity %s", domain.ErrNotFound, activityID)
		}
		return nil, err
	}

	var targetPlanID string
	if err := tx.QueryRow(ctx, `SELECT plan_id FROM days WHERE day_id=$1`, targetDayID).Scan(&targetPlanID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: day %s", domain.ErrNotFound, targetDayID)
		}
		return nil, err
	}
	if targetPlanID != sourcePlanID {
		return nil, fmt.Errorf("%w: target day belongs to a different plan", domain.ErrValidation)
	}

	// The CAP check upstream bounds the position, but a slot past the end of
	// the target day would still commit as a gap: no row shifts and the moved
	// row lands at the raw target, leaving positions like {1,2,50}. Count the
	// day under the lock and reject anything past the last legal slot.
	var targetCount int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM activities WHERE day_id=$1`, targetDayID,
	).Scan(&targetCount); err != nil {
		return nil, err
	}
	lastSlot := targetCount
	if current.DayID != targetDayID {
		lastSlot = targetCount + 1
	}
	if targetPosition > lastSlot {
		return nil, fmt.Errorf("%w: target position %d exceeds day occupancy", domain.ErrValidation, targetPosition)
	}

	move := domain.ClassifyMove(current.DayID, current.Position, targetDayID, targetPosition)
	now := time.Now().UTC()

	switch move.Kind {
	case domain.MoveAcrossDays:
		if _, err := tx.Exec(ctx,
			`UPDATE activities SET position = position - 1 WHERE day_id=$1 AND position > $2`,
			move.SourceDayID, move.From,
		); err != nil {
			return nil, mapConstraint(err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE activities SET position = position + 1 WHERE day_id=$1 AND position >= $2`,
			move.TargetDayID, move.To,
		); err != nil {
			return nil, mapConstraint(err)
		}
	case domain.MoveLater:
		if _, err := tx.Exec(ctx,
			`UPDATE activities SET position = position - 1 WHERE day_id=$1 AND position > $2 AND position <= $3`,
			move.SourceDayID, move.From, move.To,
		); err != nil {
			return nil, mapConstraint(err)
		}
	case domain.MoveEarlier:
		if _, err := tx.Exec(ctx,
			`UPDATE activities SET position = position + 1 WHERE day_id=$1 AND position >= $2 AND position < $3`,
			move.SourceDayID, move.To, move.From,
		); err != nil {
			return nil, mapConstraint(err)
		}
	case domain.MoveNoop:
		// Only the modification timestamp changes.
	}

	if _, err := tx.Exec(ctx,
		`UPDATE activities SET day_id=$2, position=$3, updated_at=$4 WHERE activity_id=$1`,
		activityID, targetDayID, targetPosition, now,
	); err != nil {
		return nil, mapConstraint(err)
	}

	if move.Kind != domain.MoveNoop {
		if err := insertOutbox(ctx, tx, sourcePlanID, "activity.moved", events.ActivityMoved{
			ActivityID:   activityID,
			PlanID:       sourcePlanID,
			FromDayID:    move.SourceDayID,
			ToDayID:      move.TargetDayID,
			FromPosition: move.From,
			ToPosition:   move.To,
			MoveKind:     move.Kind.String(),
			OccurredAt:   now,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	observability.RecordMove(move.Kind.String(), time.Since(start))

	updated := current
	updated.DayID = targetDayID
	updated.Position = targetPosition
	updated.UpdatedAt = now
	return &updated, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, planID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err = tx.Exec(ctx, stmt, "plan", planID, eventType, meta.Topic, planID, body)
	return err
}

// mapConstraint translates position CHECK violations into validation errors
// so callers see them as bad input rather than storage failures.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.Message)
	}
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic string
}

var eventCatalog = map[string]EventMetadata{
	"activity.moved":   {Topic: "itinerary_events"},
	"activity.created": {Topic: "itinerary_events"},
	"activity.deleted": {Topic: "itinerary_events"},
}
