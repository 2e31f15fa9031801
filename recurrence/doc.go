/*
Package recurrence decides whether a recurring entity produces an
occurrence on a given calendar day, and enumerates occurrences over a
day range.

# Basic Usage

	eval := recurrence.NewEvaluator()

	rule := recurrence.Rule{
		Pattern:    recurrence.PatternWeekly,
		Interval:   1,
		AnchorDate: time.Date(2024, 1, 7, 0, 0, 0, 0, time.Local),
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday},
	}

	ok, err := eval.OccursOn(rule, someDay)

A calendar view building a month grid uses OccursInRange instead of
calling OccursOn per day:

	days, err := eval.OccursInRange(rule, gridStart, gridEnd)

One-off entities that span a start/end instant use the separate
OverlapsDay path; they carry no Rule at all.

# Day Semantics

Everything here works on calendar days: time-of-day components of the
anchor, candidate day, end date and exception dates are ignored. There
is no timezone translation; days are compared as wall-clock dates.

# Monthly Overflow

A monthly rule targeting day 31 has no day 31 in short months. The
default policy (OverflowSkip) produces no occurrence in such months;
OverflowClamp instead moves it to the month's last day:

	eval := recurrence.NewEvaluatorWithOptions(recurrence.Options{
		MonthlyOverflow: recurrence.OverflowClamp,
	})
*/
package recurrence
