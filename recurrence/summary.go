package recurrence

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// weekdayShortNames is indexed by time.Weekday (Sunday = 0).
var weekdayShortNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Summary renders a rule as human-readable text, e.g.
// "Repeats every 2 weeks on Mon, Wed until Jan 2, 2026". Calendar
// popovers and form previews share this one formatter so the wording
// can never drift from the matching logic.
func Summary(rule Rule) string {
	var b strings.Builder
	b.WriteString("Repeats ")

	switch rule.Pattern {
	case PatternDaily:
		b.WriteString(everyN(rule.Interval, "day", "daily"))
	case PatternWeekly:
		b.WriteString(everyN(rule.Interval, "week", "weekly"))
		days := rule.DaysOfWeek
		if len(days) == 0 {
			days = []time.Weekday{rule.AnchorDate.Weekday()}
		}
		b.WriteString(" on ")
		b.WriteString(weekdayList(days))
	case PatternMonthly:
		b.WriteString(everyN(rule.Interval, "month", "monthly"))
		b.WriteString(fmt.Sprintf(" on day %d", rule.DayOfMonth.OrElse(rule.AnchorDate.Day())))
	case PatternCustom:
		b.WriteString("on a custom schedule")
	default:
		b.WriteString(string(rule.Pattern))
	}

	if end, ok := rule.EndDate.Get(); ok {
		b.WriteString(" until ")
		b.WriteString(end.Format("Jan 2, 2006"))
	}

	return b.String()
}

func everyN(interval int, unit, single string) string {
	if interval == 1 {
		return single
	}
	return fmt.Sprintf("every %d %ss", interval, unit)
}

// weekdayList formats a weekday set in Sunday-first order, deduplicated.
func weekdayList(days []time.Weekday) string {
	seen := make(map[time.Weekday]bool, len(days))
	var uniq []time.Weekday
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	names := make([]string, len(uniq))
	for i, d := range uniq {
		names[i] = weekdayShortNames[d]
	}
	return strings.Join(names, ", ")
}
