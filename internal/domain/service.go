// Package domain defines the business logic for the itinerary service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrValidation is returned for malformed identifiers, out-of-range
	// positions and cross-plan targets.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a plan, day or activity cannot be located.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden is returned when the requesting principal does not own the plan.
	ErrForbidden = errors.New("ownership mismatch")
)

// MaxPlanDays bounds the number of days generated from a plan's date range.
const MaxPlanDays = 30

// PlanRepository captures persistence operations for plans, days and activities.
type PlanRepository interface {
	CreatePlan(ctx context.Context, plan Plan, days []Day) error
	GetPlan(ctx context.Context, planID string) (*Plan, error)
	GetPlanTree(ctx context.Context, planID string) (*PlanTree, error)
	ListPlans(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Plan, *Cursor, error)
	DeletePlan(ctx context.Context, planID string) error

	FindActivityRef(ctx context.Context, activityID string) (*ActivityRef, error)
	FindDayRef(ctx context.Context, dayID string) (*DayRef, error)

	CreateActivity(ctx context.Context, activity Activity) (*Activity, error)
	DeleteActivity(ctx context.Context, activityID string) error
	MoveActivity(ctx context.Context, activityID, targetDayID string, targetPosition int) (*Activity, error)
}

// Service orchestrates itinerary workflows and acts as the validation and
// ownership gate in front of the reorder transaction.
type Service struct {
	repo        PlanRepository
	maxPosition int
}

// NewService constructs a Service. maxPosition caps activity positions per
// day and mirrors the storage-level CHECK constraint.
func NewService(repo PlanRepository, maxPosition int) *Service {
	return &Service{repo: repo, maxPosition: maxPosition}
}

// MoveActivityInput carries a reorder request from the API layer.
type MoveActivityInput struct {
	OwnerID        string
	ActivityID     string
	TargetDayID    string
	TargetPosition int
}

// MoveActivity validates the request, resolves the activity -> day -> plan
// ownership chain, and hands off to the atomic reorder transaction. The
// transaction re-reads the activity's location under a row lock, so the
// checks here gate access while the repository guarantees consistency.
func (s *Service) MoveActivity(ctx context.Context, input MoveActivityInput) (*Activity, error) {
	if _, err := uuid.Parse(input.ActivityID); err != nil {
		return nil, fmt.Errorf("%w: activity id is not a valid uuid", ErrValidation)
	}
	if _, err := uuid.Parse(input.TargetDayID); err != nil {
		return nil, fmt.Errorf("%w: target day id is not a valid uuid", ErrValidation)
	}
	if input.TargetPosition < 1 || input.TargetPosition > s.maxPosition {
		return nil, fmt.Errorf("%w: target position must be between 1 and %d", ErrValidation, s.maxPosition)
	}

	ref, err := s.repo.FindActivityRef(ctx, input.ActivityID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: activity %s", ErrNotFound, input.ActivityID)
	}
	if ref.OwnerID != input.OwnerID {
		return nil, ErrForbidden
	}

	target, err := s.repo.FindDayRef(ctx, input.TargetDayID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: day %s", ErrNotFound, input.TargetDayID)
	}
	if target.OwnerID != input.OwnerID {
		return nil, ErrForbidden
	}
	if target.PlanID != ref.PlanID {
		return nil, fmt.Errorf("%w: target day belongs to a different plan", ErrValidation)
	}

	return s.repo.MoveActivity(ctx, input.ActivityID, input.TargetDayID, input.TargetPosition)
}

// CreatePlanInput captures the payload for plan creation.
type CreatePlanInput struct {
	OwnerID  string
	Title    string
	StartsOn time.Time
	EndsOn   time.Time
}

// CreatePlan persists a plan and one day per calendar date of its range.
func (s *Service) CreatePlan(ctx context.Context, input CreatePlanInput) (*PlanTree, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	start := input.StartsOn.UTC().Truncate(24 * time.Hour)
	end := input.EndsOn.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date precedes start date", ErrValidation)
	}
	count := int(end.Sub(start).Hours()/24) + 1
	if count > MaxPlanDays {
		return nil, fmt.Errorf("%w: date range exceeds %d days", ErrValidation, MaxPlanDays)
	}

	now := time.Now().UTC()
	plan := Plan{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		Title:     strings.TrimSpace(input.Title),
		StartsOn:  start,
		EndsOn:    end,
		CreatedAt: now,
		UpdatedAt: now,
	}

	days := make([]Day, 0, count)
	for i := 0; i < count; i++ {
		days = append(days, Day{
			ID:     uuid.NewString(),
			PlanID: plan.ID,
			Seq:    i + 1,
			Date:   start.AddDate(0, 0, i),
		})
	}

	if err := s.repo.CreatePlan(ctx, plan, days); err != nil {
		return nil, err
	}

	tree := &PlanTree{Plan: plan, Days: make([]DayTree, 0, len(days))}
	for _, day := range days {
		tree.Days = append(tree.Days, DayTree{Day: day})
	}
	return tree, nil
}

// GetPlanTree fetches the full plan tree after confirming ownership.
func (s *Service) GetPlanTree(ctx context.Context, ownerID, planID string) (*PlanTree, error) {
	if _, err := uuid.Parse(planID); err != nil {
		return nil, fmt.Errorf("%w: plan id is not a valid uuid", ErrValidation)
	}
	tree, err := s.repo.GetPlanTree(ctx, planID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: plan %s", ErrNotFound, planID)
	}
	if tree.Plan.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return tree, nil
}

// ListPlans fetches the owner's plans with cursor pagination.
func (s *Service) ListPlans(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Plan, *Cursor, error) {
	return s.repo.ListPlans(ctx, ownerID, cursor, limit)
}

// DeletePlan removes a plan and everything under it.
func (s *Service) DeletePlan(ctx context.Context, ownerID, planID string) error {
	if _, err := uuid.Parse(planID); err != nil {
		return fmt.Errorf("%w: plan id is not a valid uuid", ErrValidation)
	}
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("%w: plan %s", ErrNotFound, planID)
	}
	if plan.OwnerID != ownerID {
		return ErrForbidden
	}
	return s.repo.DeletePlan(ctx, planID)
}

// CreateActivityInput captures the payload for appending an activity to a day.
type CreateActivityInput struct {
	OwnerID     string
	DayID       string
	Title       string
	DurationMin int
	TransitMin  int
}

// CreateActivity appends a new activity at the end of the day. The position
// itself is assigned inside the repository transaction with the day locked,
// so concurrent appends cannot collide.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*Activity, error) {
	if _, err := uuid.Parse(input.DayID); err != nil {
		return nil, fmt.Errorf("%w: day id is not a valid uuid", ErrValidation)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.DurationMin <= 0 {
		return nil, fmt.Errorf("%w: duration_min must be > 0", ErrValidation)
	}
	if input.TransitMin < 0 {
		return nil, fmt.Errorf("%w: transit_min must be >= 0", ErrValidation)
	}

	ref, err := s.repo.FindDayRef(ctx, input.DayID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: day %s", ErrNotFound, input.DayID)
	}
	if ref.OwnerID != input.OwnerID {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	return s.repo.CreateActivity(ctx, Activity{
		ID:          uuid.NewString(),
		DayID:       input.DayID,
		Title:       strings.TrimSpace(input.Title),
		DurationMin: input.DurationMin,
		TransitMin:  input.TransitMin,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// DeleteActivity removes an activity and compacts the remaining positions of
// its day so the contiguity invariant survives the deletion.
func (s *Service) DeleteActivity(ctx context.Context, ownerID, activityID string) error {
	if _, err := uuid.Parse(activityID); err != nil {
		return fmt.Errorf("%w: activity id is not a valid uuid", ErrValidation)
	}
	ref, err := s.repo.FindActivityRef(ctx, activityID)
	if err != nil {
		return err
	}
	if ref == nil {
		return fmt.Errorf("%w: activity %s", ErrNotFound, activityID)
	}
	if ref.OwnerID != ownerID {
		return ErrForbidden
	}
	return s.repo.DeleteActivity(ctx, activityID)
}

// GetActivity fetches a single activity after confirming ownership.
func (s *Service) GetActivity(ctx context.Context, ownerID, activityID string) (*Activity, error) {
	if _, err := uuid.Parse(activityID); err != nil {
		return nil, fmt.Errorf("%w: activity id is not a valid uuid", ErrValidation)
	}
	ref, err := s.repo.FindActivityRef(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: activity %s", ErrNotFound, activityID)
	}
	if ref.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	activity := ref.Activity
	return &activity, nil
}
