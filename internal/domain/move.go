package domain

// MoveKind tags the renumbering strategy a move requires.
type MoveKind int

const (
	// MoveNoop means source and target slot are identical; no positions change.
	MoveNoop MoveKind = iota
	// MoveAcrossDays compacts the source day and opens a slot in the target day.
	MoveAcrossDays
	// MoveLater shifts the activities between the old and new slot down by one.
	MoveLater
	// MoveEarlier shifts the activities between the new and old slot up by one.
	MoveEarlier
)

// Move is the renumbering step selected once per reorder call. The repository
// executes exactly one of the four cases; keeping the selection pure makes
// each case testable without a database.
type Move struct {
	Kind        MoveKind
	SourceDayID string
	TargetDayID string
	From        int
	To          int
}

// String names the kind for metrics labels and event payloads.
func (k MoveKind) String() string {
	switch k {
	case MoveAcrossDays:
		return "cross_day"
	case MoveLater:
		return "later"
	case MoveEarlier:
		return "earlier"
	default:
		return "noop"
	}
}

// ClassifyMove maps the locked current location of an activity and the
// requested target onto the single renumbering step to execute.
func ClassifyMove(currentDayID string, currentPos int, targetDayID string, targetPos int) Move {
	m := Move{
		SourceDayID: currentDayID,
		TargetDayID: targetDayID,
		From:        currentPos,
		To:          targetPos,
	}
	switch {
	case currentDayID != targetDayID:
		m.Kind = MoveAcrossDays
	case targetPos > currentPos:
		m.Kind = MoveLater
	case targetPos < currentPos:
		m.Kind = MoveEarlier
	default:
		m.Kind = MoveNoop
	}
	return m
}
