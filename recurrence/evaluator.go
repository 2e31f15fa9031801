package recurrence

import (
	"fmt"
	"time"
)

// OverflowPolicy controls monthly rules whose target day of month
// exceeds the length of a candidate month (e.g. day 31 in February).
type OverflowPolicy int

const (
	// OverflowSkip requires strict day-of-month equality: short months
	// simply produce no occurrence. This matches the behavior users of
	// the original matching engine observed.
	OverflowSkip OverflowPolicy = iota

	// OverflowClamp moves the occurrence to the last day of short
	// months, for "end of month" intent.
	OverflowClamp
)

// Options configures evaluator behavior.
type Options struct {
	MonthlyOverflow OverflowPolicy
}

// DefaultOptions provides the default evaluation behavior.
var DefaultOptions = Options{
	MonthlyOverflow: OverflowSkip,
}

// Evaluator answers day-membership questions for recurrence rules. It
// is stateless and safe for concurrent use.
type Evaluator struct {
	opts Options
}

// NewEvaluator creates an evaluator with default options.
func NewEvaluator() *Evaluator {
	return NewEvaluatorWithOptions(DefaultOptions)
}

// NewEvaluatorWithOptions creates an evaluator with custom options.
func NewEvaluatorWithOptions(opts Options) *Evaluator {
	return &Evaluator{opts: opts}
}

// OccursOn reports whether the rule produces an occurrence on the given
// calendar day. Time-of-day components of day, the anchor, the end date
// and exception dates are all ignored.
func (e *Evaluator) OccursOn(rule Rule, day time.Time) (bool, error) {
	if err := rule.Validate(); err != nil {
		return false, err
	}
	return e.occursOn(rule, DateOf(day)), nil
}

// occursOn assumes rule is valid and day is already date-normalized.
// Guards run in a fixed order: before-anchor, past-end, exception,
// then pattern dispatch.
func (e *Evaluator) occursOn(rule Rule, day time.Time) bool {
	anchor := DateOf(rule.AnchorDate)

	if day.Before(anchor) && !SameDay(day, anchor) {
		return false
	}
	if end, ok := rule.EndDate.Get(); ok {
		endDay := DateOf(end)
		if day.After(endDay) && !SameDay(day, endDay) {
			return false
		}
	}
	if rule.isException(day) {
		return false
	}

	switch rule.Pattern {
	case PatternDaily:
		return DaysBetween(anchor, day)%rule.Interval == 0

	case PatternWeekly:
		weeks := DaysBetween(anchor, day) / 7
		if weeks%rule.Interval != 0 {
			return false
		}
		if len(rule.DaysOfWeek) > 0 {
			return rule.containsWeekday(day.Weekday())
		}
		return day.Weekday() == anchor.Weekday()

	case PatternMonthly:
		if MonthsBetween(anchor, day)%rule.Interval != 0 {
			return false
		}
		target := rule.DayOfMonth.OrElse(anchor.Day())
		if e.opts.MonthlyOverflow == OverflowClamp {
			if last := daysInMonth(day.Year(), day.Month()); target > last {
				target = last
			}
		}
		return day.Day() == target
	}

	// Unreachable for validated rules.
	return false
}

// OccursInRange returns every day in [start, end] (inclusive) on which
// the rule produces an occurrence, in ascending order. The calendar
// view calls this once per visible range, which is at most a 42-day
// month grid, so eager expansion is fine.
func (e *Evaluator) OccursInRange(rule Rule, start, end time.Time) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	first := DateOf(start)
	last := DateOf(end)
	if last.Before(first) {
		return nil, fmt.Errorf("%w: range end %s before start %s",
			ErrInvalidRule, last.Format(time.DateOnly), first.Format(time.DateOnly))
	}

	var days []time.Time
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if e.occursOn(rule, day) {
			days = append(days, day)
		}
	}
	return days, nil
}

// OverlapsDay reports whether a non-recurring entity spanning
// [start, end] produces an occurrence on the given calendar day. For
// all-day entities only the start day matches. This is deliberately a
// separate path from the recurring dispatch.
func OverlapsDay(start, end time.Time, allDay bool, day time.Time) bool {
	if allDay {
		return SameDay(start, day)
	}
	dayStart := DateOf(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	return start.Before(dayEnd) && !end.Before(dayStart)
}
