package domain

import "time"

// Plan is the root itinerary aggregate stored in PostgreSQL.
type Plan struct {
	ID        string
	OwnerID   string
	Title     string
	StartsOn  time.Time
	EndsOn    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Day is a single calendar day of a plan. Seq is 1-based and unique per plan.
type Day struct {
	ID     string
	PlanID string
	Seq    int
	Date   time.Time
}

// Activity is a scheduled item owned by exactly one day. Position is the
// 1-based index within the day and is contiguous: the positions of a day's
// activities are always exactly {1..N}.
type Activity struct {
	ID          string
	DayID       string
	Position    int
	Title       string
	DurationMin int
	TransitMin  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DayTree is a day together with its activities ordered by position.
type DayTree struct {
	Day        Day
	Activities []Activity
}

// PlanTree is the denormalized plan -> day -> activity tree served to
// clients and held in the optimistic cache.
type PlanTree struct {
	Plan Plan
	Days []DayTree
}

// ActivityRef locates an activity inside its ownership chain.
type ActivityRef struct {
	Activity Activity
	PlanID   string
	OwnerID  string
}

// DayRef locates a day inside its ownership chain.
type DayRef struct {
	Day     Day
	PlanID  string
	OwnerID string
}

// Cursor models the pagination token for plan listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}
