package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librota/librota/recurrence"
	"github.com/librota/librota/storage"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRuleToRRule(t *testing.T) {
	tests := []struct {
		name     string
		rule     recurrence.Rule
		contains []string
	}{
		{
			name:     "daily",
			rule:     recurrence.Rule{Pattern: recurrence.PatternDaily, Interval: 1, AnchorDate: date(2024, 1, 1)},
			contains: []string{"FREQ=DAILY"},
		},
		{
			name: "biweekly with weekday set",
			rule: recurrence.Rule{Pattern: recurrence.PatternWeekly, Interval: 2,
				AnchorDate: date(2024, 1, 7),
				DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday}},
			contains: []string{"FREQ=WEEKLY", "INTERVAL=2", "BYDAY=MO,WE"},
		},
		{
			name: "monthly with day and end date",
			rule: recurrence.Rule{Pattern: recurrence.PatternMonthly, Interval: 1,
				AnchorDate: date(2024, 1, 31),
				DayOfMonth: mo.Some(31),
				EndDate:    mo.Some(date(2024, 12, 31))},
			contains: []string{"FREQ=MONTHLY", "BYMONTHDAY=31", "UNTIL=20241231T235959Z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := RuleToRRule(tt.rule)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, s, want)
			}
		})
	}
}

func TestRuleToRRule_RejectsInvalid(t *testing.T) {
	_, err := RuleToRRule(recurrence.Rule{
		Pattern: recurrence.PatternCustom, Interval: 1, AnchorDate: date(2024, 1, 1),
	})
	assert.ErrorIs(t, err, recurrence.ErrInvalidRule)
}

func TestRuleFromRRule(t *testing.T) {
	anchor := date(2024, 1, 7)

	rule, err := RuleFromRRule("FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE", anchor)
	require.NoError(t, err)
	assert.Equal(t, recurrence.PatternWeekly, rule.Pattern)
	assert.Equal(t, 2, rule.Interval)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, rule.DaysOfWeek)
	assert.Equal(t, anchor, rule.AnchorDate)

	rule, err = RuleFromRRule("FREQ=MONTHLY;BYMONTHDAY=15;UNTIL=20241231T235959Z", anchor)
	require.NoError(t, err)
	assert.Equal(t, recurrence.PatternMonthly, rule.Pattern)
	assert.Equal(t, 1, rule.Interval, "missing INTERVAL defaults to 1")
	assert.Equal(t, 15, rule.DayOfMonth.MustGet())
	assert.True(t, recurrence.SameDay(rule.EndDate.MustGet(), date(2024, 12, 31)))
}

func TestRuleFromRRule_RejectsUnsupported(t *testing.T) {
	anchor := date(2024, 1, 1)

	for _, s := range []string{
		"FREQ=YEARLY",
		"FREQ=DAILY;COUNT=10",
		"FREQ=MONTHLY;BYSETPOS=-1;BYDAY=MO",
		"FREQ=MONTHLY;BYMONTHDAY=1,15",
	} {
		_, err := RuleFromRRule(s, anchor)
		assert.ErrorIs(t, err, ErrUnsupportedRRule, s)
	}
}

func TestEventToICS_RoundTrip(t *testing.T) {
	ev := &storage.Event{
		ID:    "piano-123",
		Title: "Piano lesson",
		Start: time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 8, 16, 0, 0, 0, time.UTC),
		Recurrence: &recurrence.Rule{
			Pattern:        recurrence.PatternWeekly,
			Interval:       1,
			AnchorDate:     date(2024, 1, 8),
			DaysOfWeek:     []time.Weekday{time.Monday},
			ExceptionDates: []time.Time{date(2024, 2, 5)},
		},
	}

	ics, err := EventToICS(ev)
	require.NoError(t, err)

	assert.Contains(t, ics, "BEGIN:VEVENT")
	assert.Contains(t, ics, "SUMMARY:Piano lesson")
	assert.Contains(t, ics, "FREQ=WEEKLY")
	assert.Contains(t, ics, "EXDATE:20240205T000000Z")

	back, err := EventFromICS(ics)
	require.NoError(t, err)

	assert.Equal(t, "piano-123", back.ID)
	assert.Equal(t, "Piano lesson", back.Title)
	assert.True(t, back.Start.Equal(ev.Start))
	require.NotNil(t, back.Recurrence)
	assert.Equal(t, recurrence.PatternWeekly, back.Recurrence.Pattern)
	assert.Equal(t, []time.Weekday{time.Monday}, back.Recurrence.DaysOfWeek)
	require.Len(t, back.Recurrence.ExceptionDates, 1)
	assert.True(t, recurrence.SameDay(back.Recurrence.ExceptionDates[0], date(2024, 2, 5)))

	// The reimported rule evaluates like the original: Mondays match,
	// the cancelled Feb 5 does not.
	eval := recurrence.NewEvaluator()
	ok, err := eval.OccursOn(*back.Recurrence, date(2024, 1, 15))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = eval.OccursOn(*back.Recurrence, date(2024, 2, 5))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEventFromICS_OneOff(t *testing.T) {
	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
		"BEGIN:VEVENT",
		"UID:vet-1",
		"DTSTAMP:20240101T000000Z",
		"SUMMARY:Vet",
		"DTSTART:20240301T140000Z",
		"DTEND:20240301T150000Z",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	ev, err := EventFromICS(ics)
	require.NoError(t, err)
	assert.Equal(t, "Vet", ev.Title)
	assert.Nil(t, ev.Recurrence)
}
