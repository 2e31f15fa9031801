package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
)

// ErrInvalidRule is returned when a rule cannot be evaluated: a
// non-positive interval, an out-of-range weekday or day-of-month, or a
// pattern with no defined expansion. Callers are expected to validate
// rules at creation time, so hitting this during evaluation indicates a
// programming mistake rather than bad user input.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Pattern identifies the recurrence family of a rule.
type Pattern string

const (
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"

	// PatternCustom is accepted in stored data for round-tripping, but
	// has no defined expansion; evaluating it is an error.
	PatternCustom Pattern = "custom"
)

// Rule describes how a recurring entity repeats. All interval stepping
// is computed relative to AnchorDate, the date of the first occurrence.
// Time-of-day components are ignored; only calendar days matter.
type Rule struct {
	Pattern  Pattern
	Interval int // step size in units of Pattern; must be >= 1

	// AnchorDate is the first occurrence. It is immutable for the
	// lifetime of a series; series edits replace the whole rule.
	AnchorDate time.Time

	// DaysOfWeek is meaningful only for PatternWeekly. Empty means
	// "the anchor's own weekday".
	DaysOfWeek []time.Weekday

	// DayOfMonth is meaningful only for PatternMonthly (1-31). Absent
	// means "the anchor's own day of month".
	DayOfMonth mo.Option[int]

	// EndDate is an inclusive upper bound; absent means unbounded.
	EndDate mo.Option[time.Time]

	// ExceptionDates are days excluded even when the pattern matches
	// (cancelled single occurrences).
	ExceptionDates []time.Time
}

// Validate checks that the rule is well-formed enough to evaluate.
func (r Rule) Validate() error {
	if r.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidRule, r.Interval)
	}

	switch r.Pattern {
	case PatternDaily, PatternWeekly, PatternMonthly:
	case PatternCustom:
		return fmt.Errorf("%w: custom pattern has no defined expansion", ErrInvalidRule)
	default:
		return fmt.Errorf("%w: unknown pattern %q", ErrInvalidRule, r.Pattern)
	}

	for _, wd := range r.DaysOfWeek {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, wd)
		}
	}

	if dom, ok := r.DayOfMonth.Get(); ok && (dom < 1 || dom > 31) {
		return fmt.Errorf("%w: day of month %d out of range", ErrInvalidRule, dom)
	}

	return nil
}

// isException reports whether day is one of the rule's exception dates.
// Exception dates are compared by calendar day, not instant.
func (r Rule) isException(day time.Time) bool {
	for _, ex := range r.ExceptionDates {
		if SameDay(ex, day) {
			return true
		}
	}
	return false
}

// containsWeekday reports whether the rule's weekday set includes wd.
func (r Rule) containsWeekday(wd time.Weekday) bool {
	for _, d := range r.DaysOfWeek {
		if d == wd {
			return true
		}
	}
	return false
}
