// Package reorder infers the intended move target from a drag-release
// gesture over the plan tree. It is pure: callers feed it the tree they are
// rendering and translate the result into a MoveActivity request.
package reorder

import "example.com/itinerary/internal/domain"

// Target is the resolved destination of a drop gesture.
type Target struct {
	DayID    string
	Position int
}

// Resolve maps a drag-release onto a concrete target slot, or nil when no
// move should occur. droppedOnID may name another activity or a day
// container; anything else is treated as a miss.
//
// Dropping on an activity in the same day takes over that activity's slot.
// Dropping on an activity in another day inserts immediately after it.
// Dropping on a day container appends at the end of that day, except that
// dropping a day's sole activity onto its own container is a no-op.
func Resolve(tree *domain.PlanTree, draggedID, droppedOnID string) *Target {
	if tree == nil {
		return nil
	}

	sourceDay := dayOf(tree, draggedID)
	if sourceDay == nil {
		return nil
	}

	if targetDay, targetActivity := locateActivity(tree, droppedOnID); targetActivity != nil {
		pos := targetActivity.Position
		if targetDay.Day.ID != sourceDay.Day.ID {
			// Cross-day drops land after the activity the pointer released on.
			pos++
		}
		return &Target{DayID: targetDay.Day.ID, Position: clamp(pos)}
	}

	if targetDay := locateDay(tree, droppedOnID); targetDay != nil {
		if targetDay.Day.ID == sourceDay.Day.ID && len(sourceDay.Activities) == 1 {
			return nil
		}
		return &Target{DayID: targetDay.Day.ID, Position: clamp(len(targetDay.Activities) + 1)}
	}

	return nil
}

func dayOf(tree *domain.PlanTree, activityID string) *domain.DayTree {
	day, activity := locateActivity(tree, activityID)
	if activity == nil {
		return nil
	}
	return day
}

func locateActivity(tree *domain.PlanTree, activityID string) (*domain.DayTree, *domain.Activity) {
	for i := range tree.Days {
		for j := range tree.Days[i].Activities {
			if tree.Days[i].Activities[j].ID == activityID {
				return &tree.Days[i], &tree.Days[i].Activities[j]
			}
		}
	}
	return nil, nil
}

func locateDay(tree *domain.PlanTree, dayID string) *domain.DayTree {
	for i := range tree.Days {
		if tree.Days[i].Day.ID == dayID {
			return &tree.Days[i]
		}
	}
	return nil
}

func clamp(position int) int {
	if position < 1 {
		return 1
	}
	return position
}
