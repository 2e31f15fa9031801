// Package agenda builds the day-to-events index a calendar view renders
// from. The index is recomputed on every call: views re-derive it on
// each navigation or filter change rather than caching it, so stored
// edits are always visible.
package agenda

import (
	"fmt"
	"time"

	"github.com/librota/librota/recurrence"
	"github.com/librota/librota/storage"
)

// Filter narrows the index to one assignee and/or event kind. Zero
// values match everything.
type Filter struct {
	Assignee string
	Kind     string
}

// Index maps normalized calendar days (midnight, location preserved) to
// the events occurring on them. Days without events have no entry.
type Index map[time.Time][]*storage.Event

// BuildIndex evaluates every event against every day in [start, end]
// inclusive. Recurring events go through the evaluator; one-off events
// use the plain containment test. Ranges are expected to be small (a
// month grid is at most 42 days), so the nested loop is fine.
func BuildIndex(eval *recurrence.Evaluator, events []*storage.Event, start, end time.Time, filter Filter) (Index, error) {
	first := recurrence.DateOf(start)
	last := recurrence.DateOf(end)
	if last.Before(first) {
		return nil, fmt.Errorf("agenda: range end %s before start %s",
			last.Format(time.DateOnly), first.Format(time.DateOnly))
	}

	idx := make(Index)
	for _, ev := range events {
		if filter.Assignee != "" && ev.Assignee != filter.Assignee {
			continue
		}
		if filter.Kind != "" && ev.Kind != filter.Kind {
			continue
		}

		if ev.Recurrence != nil {
			days, err := eval.OccursInRange(*ev.Recurrence, first, last)
			if err != nil {
				return nil, fmt.Errorf("agenda: event %s: %w", ev.ID, err)
			}
			for _, day := range days {
				idx[day] = append(idx[day], ev)
			}
			continue
		}

		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			if recurrence.OverlapsDay(ev.Start, ev.End, ev.AllDay, day) {
				idx[day] = append(idx[day], ev)
			}
		}
	}

	return idx, nil
}

// On returns the events for one day, in the order BuildIndex added them.
func (idx Index) On(day time.Time) []*storage.Event {
	return idx[recurrence.DateOf(day)]
}
