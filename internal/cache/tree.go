// Package cache holds the client-side denormalized plan tree used for
// optimistic rendering. Instances are injected rather than shared through
// package globals, and all mutation goes through explicit snapshot, apply
// and restore steps so a failed server call can revert exactly.
package cache

import (
	"sync"

	"example.com/itinerary/internal/domain"
)

// TreeCache guards one plan's tree. Callers are expected to keep at most one
// move in flight per plan: the cache itself is safe for concurrent use, but
// overlapping move requests can race their rollbacks against each other's
// optimistic state.
type TreeCache struct {
	mu   sync.Mutex
	tree *domain.PlanTree
}

// New constructs a TreeCache seeded with the given tree. The tree is copied,
// so later mutation of the argument does not leak into the cache.
func New(tree *domain.PlanTree) *TreeCache {
	return &TreeCache{tree: clone(tree)}
}

// Tree returns a copy of the current cached tree, or nil when empty.
func (c *TreeCache) Tree() *domain.PlanTree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.tree)
}

// Snapshot captures the exact current state for a later Restore.
func (c *TreeCache) Snapshot() *domain.PlanTree {
	return c.Tree()
}

// Replace swaps in canonical server state, discarding any optimistic guess.
func (c *TreeCache) Replace(tree *domain.PlanTree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree = clone(tree)
}

// Restore reverts to a previously taken snapshot.
func (c *TreeCache) Restore(snapshot *domain.PlanTree) {
	c.Replace(snapshot)
}

// ApplyMove splices the activity out of its current day and into the target
// day at targetPosition, renumbering both days. The server stays
// authoritative, so missing pieces degrade quietly: an activity absent from
// the cache leaves the tree untouched, and a missing target day skips the
// splice after the removal is undone.
func (c *TreeCache) ApplyMove(activityID, targetDayID string, targetPosition int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tree == nil {
		return
	}

	var moved *domain.Activity
	var sourceIdx int
	for i := range c.tree.Days {
		day := &c.tree.Days[i]
		for j := range day.Activities {
			if day.Activities[j].ID == activityID {
				a := day.Activities[j]
				moved = &a
				sourceIdx = i
				day.Activities = append(day.Activities[:j], day.Activities[j+1:]...)
				break
			}
		}
		if moved != nil {
			break
		}
	}
	if moved == nil {
		return
	}

	target := c.findDay(targetDayID)
	if target == nil {
		// Put it back; the refetch after the server responds will reconcile.
		src := &c.tree.Days[sourceIdx]
		src.Activities = insertAt(src.Activities, *moved, moved.Position-1)
		renumber(src)
		return
	}

	moved.DayID = target.Day.ID
	target.Activities = insertAt(target.Activities, *moved, targetPosition-1)

	renumber(&c.tree.Days[sourceIdx])
	renumber(target)
}

func (c *TreeCache) findDay(dayID string) *domain.DayTree {
	for i := range c.tree.Days {
		if c.tree.Days[i].Day.ID == dayID {
			return &c.tree.Days[i]
		}
	}
	return nil
}

func insertAt(activities []domain.Activity, activity domain.Activity, idx int) []domain.Activity {
	if idx < 0 {
		idx = 0
	}
	if idx > len(activities) {
		idx = len(activities)
	}
	activities = append(activities, domain.Activity{})
	copy(activities[idx+1:], activities[idx:])
	activities[idx] = activity
	return activities
}

func renumber(day *domain.DayTree) {
	for i := range day.Activities {
		day.Activities[i].Position = i + 1
	}
}

func clone(tree *domain.PlanTree) *domain.PlanTree {
	if tree == nil {
		return nil
	}
	out := &domain.PlanTree{Plan: tree.Plan, Days: make([]domain.DayTree, len(tree.Days))}
	for i, day := range tree.Days {
		copied := domain.DayTree{Day: day.Day}
		if day.Activities != nil {
			copied.Activities = make([]domain.Activity, len(day.Activities))
			copy(copied.Activities, day.Activities)
		}
		out.Days[i] = copied
	}
	return out
}
