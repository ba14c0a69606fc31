package reorder

import (
	"testing"

	"example.com/itinerary/internal/domain"
)

func tree(days ...domain.DayTree) *domain.PlanTree {
	return &domain.PlanTree{Plan: domain.Plan{ID: "plan-1"}, Days: days}
}

func day(id string, activityIDs ...string) domain.DayTree {
	dt := domain.DayTree{Day: domain.Day{ID: id, PlanID: "plan-1"}}
	for i, aid := range activityIDs {
		dt.Activities = append(dt.Activities, domain.Activity{ID: aid, DayID: id, Position: i + 1})
	}
	return dt
}

func TestResolveSameDayActivityTakesSlot(t *testing.T) {
	pt := tree(day("day1", "a1", "a2", "a3"), day("day2", "a4"))

	got := Resolve(pt, "a1", "a3")
	if got == nil {
		t.Fatal("expected a target, got nil")
	}
	if got.DayID != "day1" || got.Position != 3 {
		t.Fatalf("expected {day1, 3}, got {%s, %d}", got.DayID, got.Position)
	}
}

func TestResolveCrossDayActivityInsertsAfter(t *testing.T) {
	pt := tree(day("day1", "a1", "a2"), day("day2", "a3", "a4"))

	got := Resolve(pt, "a1", "a3")
	if got == nil {
		t.Fatal("expected a target, got nil")
	}
	if got.DayID != "day2" || got.Position != 2 {
		t.Fatalf("expected {day2, 2}, got {%s, %d}", got.DayID, got.Position)
	}
}

func TestResolveDayContainerAppends(t *testing.T) {
	pt := tree(day("day1", "a1"), day("day2", "a2", "a3"))

	got := Resolve(pt, "a1", "day2")
	if got == nil {
		t.Fatal("expected a target, got nil")
	}
	if got.DayID != "day2" || got.Position != 3 {
		t.Fatalf("expected {day2, 3}, got {%s, %d}", got.DayID, got.Position)
	}
}

func TestResolveSoleActivityOnOwnContainerIsNoop(t *testing.T) {
	pt := tree(day("day1", "a1"))

	if got := Resolve(pt, "a1", "day1"); got != nil {
		t.Fatalf("expected nil, got {%s, %d}", got.DayID, got.Position)
	}
}

func TestResolveOwnContainerWithSiblingsAppends(t *testing.T) {
	pt := tree(day("day1", "a1", "a2"))

	got := Resolve(pt, "a1", "day1")
	if got == nil {
		t.Fatal("expected a target, got nil")
	}
	if got.DayID != "day1" || got.Position != 3 {
		t.Fatalf("expected {day1, 3}, got {%s, %d}", got.DayID, got.Position)
	}
}

func TestResolveUnknownTargetIsNoop(t *testing.T) {
	pt := tree(day("day1", "a1", "a2"))

	if got := Resolve(pt, "a1", "not-in-tree"); got != nil {
		t.Fatalf("expected nil, got {%s, %d}", got.DayID, got.Position)
	}
}

func TestResolveUnknownDraggedActivityIsNoop(t *testing.T) {
	pt := tree(day("day1", "a1"))

	if got := Resolve(pt, "ghost", "day1"); got != nil {
		t.Fatalf("expected nil, got {%s, %d}", got.DayID, got.Position)
	}
}

func TestResolveNilTreeIsNoop(t *testing.T) {
	if got := Resolve(nil, "a1", "day1"); got != nil {
		t.Fatalf("expected nil, got {%s, %d}", got.DayID, got.Position)
	}
}

func TestResolveClampsPositionToOne(t *testing.T) {
	// A corrupt cache can hold a zero position; the resolved slot still
	// has to be a legal position.
	pt := &domain.PlanTree{
		Plan: domain.Plan{ID: "plan-1"},
		Days: []domain.DayTree{
			{
				Day: domain.Day{ID: "day1", PlanID: "plan-1"},
				Activities: []domain.Activity{
					{ID: "a1", DayID: "day1", Position: 0},
					{ID: "a2", DayID: "day1", Position: 1},
				},
			},
		},
	}

	got := Resolve(pt, "a2", "a1")
	if got == nil {
		t.Fatal("expected a target, got nil")
	}
	if got.Position != 1 {
		t.Fatalf("expected position clamped to 1, got %d", got.Position)
	}
}
