// Package rotation decides when a rotating assignment roster must
// advance and performs the advance. Deciding (IsDue) and acting
// (Rotate) are separate on purpose: a caller can batch-evaluate many
// chores before committing any writes, and the pure shift is testable
// without a clock.
package rotation

import (
	"errors"
	"time"

	"github.com/samber/mo"

	"github.com/librota/librota/recurrence"
)

// ErrEmptyRoster is returned by Rotate when there is nobody to rotate.
// Note the asymmetry with IsDue, which treats a single-person roster as
// a valid, simply never-due configuration.
var ErrEmptyRoster = errors.New("empty roster")

// Frequency is how often a roster advances. The zero value means the
// chore defers to a caller-supplied default.
type Frequency string

const (
	FrequencyUnset   Frequency = ""
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Roster-independent anchor fallbacks: Sunday for weekly rotations, the
// 1st for monthly ones.
const (
	FallbackWeeklyAnchor  = int(time.Sunday)
	FallbackMonthlyAnchor = 1
)

// State is the rotation configuration and watermark of a single chore.
// Index 0 of the roster is the assignee currently responsible.
type State struct {
	Roster    []string
	Frequency Frequency

	// AnchorDay is a weekday index (Sunday = 0) for weekly rotations or
	// a day of month for monthly ones. Absent means the fallback.
	AnchorDay mo.Option[int]

	// LastRotatedAt is the watermark of the last successful rotation.
	// Absent means never rotated, which counts as due as soon as the
	// anchor day arrives.
	LastRotatedAt mo.Option[time.Time]
}

// Defaults carries the household-wide rotation settings a chore falls
// back to when its own Frequency or AnchorDay is unset.
type Defaults struct {
	Frequency     Frequency
	WeeklyAnchor  int
	MonthlyAnchor int
}

// FallbackDefaults is the roster-independent baseline: weekly rotation
// on Sunday, monthly on the 1st.
var FallbackDefaults = Defaults{
	Frequency:     FrequencyWeekly,
	WeeklyAnchor:  FallbackWeeklyAnchor,
	MonthlyAnchor: FallbackMonthlyAnchor,
}

// Effective resolves the frequency and anchor day actually used for a
// rotation decision: the chore's own settings win, the defaults fill
// the gaps. The scheduler never reads ambient configuration itself.
func Effective(state State, defaults Defaults) (Frequency, int) {
	freq := state.Frequency
	if freq == FrequencyUnset {
		freq = defaults.Frequency
	}

	if anchor, ok := state.AnchorDay.Get(); ok {
		return freq, anchor
	}

	switch freq {
	case FrequencyMonthly:
		return freq, defaults.MonthlyAnchor
	case FrequencyWeekly:
		return freq, defaults.WeeklyAnchor
	default:
		// Daily rotations have no anchor day.
		return freq, 0
	}
}

// IsDue reports whether the roster must advance at the given instant.
// It is a pure query: polling it any number of times within one
// calendar day gives the same answer until a rotation is persisted.
// The watermark comparison is by calendar day, which is what enforces
// at-most-once-per-day firing however often the caller polls.
func IsDue(state State, freq Frequency, anchor int, now time.Time) bool {
	if len(state.Roster) < 2 {
		return false
	}

	if last, ok := state.LastRotatedAt.Get(); ok && recurrence.SameDay(last, now) {
		return false
	}

	switch freq {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		return int(now.Weekday()) == anchor
	case FrequencyMonthly:
		return now.Day() == anchor
	}
	return false
}

// Rotate returns a new State with the roster cyclically shifted left by
// one (the current assignee moves to the back) and the watermark set to
// now. It does not check whether rotation is due; call IsDue first.
func Rotate(state State, now time.Time) (State, error) {
	if len(state.Roster) == 0 {
		return State{}, ErrEmptyRoster
	}

	roster := make([]string, 0, len(state.Roster))
	roster = append(roster, state.Roster[1:]...)
	roster = append(roster, state.Roster[0])

	next := state
	next.Roster = roster
	next.LastRotatedAt = mo.Some(now)
	return next, nil
}
