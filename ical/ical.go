// Package ical converts between librota events and iCalendar, so the
// household calendar can be exported to (and imported from) apps that
// speak RFC 5545. Recurrence rules map onto RRULE via rrule-go.
package ical

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	"github.com/librota/librota/recurrence"
	"github.com/librota/librota/storage"
)

const prodID = "-//librota//Household Calendar//EN"

// ErrUnsupportedRRule is returned when an imported RRULE uses features
// the rule model cannot represent (COUNT, BYSETPOS, yearly frequency,
// ...). Imports fail loudly rather than guessing.
var ErrUnsupportedRRule = errors.New("unsupported RRULE")

// icalWeekdays is indexed by time.Weekday (Sunday = 0).
var icalWeekdays = [...]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// RuleToRRule converts a rule into an RRULE string (without the
// "RRULE:" prefix). Custom patterns have no RRULE form and error.
func RuleToRRule(rule recurrence.Rule) (string, error) {
	if err := rule.Validate(); err != nil {
		return "", err
	}

	// Dtstart is deliberately left unset: the anchor travels as the
	// VEVENT's DTSTART, not inside the RRULE value.
	opt := rrule.ROption{
		Interval: rule.Interval,
	}

	switch rule.Pattern {
	case recurrence.PatternDaily:
		opt.Freq = rrule.DAILY
	case recurrence.PatternWeekly:
		opt.Freq = rrule.WEEKLY
		for _, wd := range rule.DaysOfWeek {
			opt.Byweekday = append(opt.Byweekday, icalWeekdays[wd])
		}
	case recurrence.PatternMonthly:
		opt.Freq = rrule.MONTHLY
		if dom, ok := rule.DayOfMonth.Get(); ok {
			opt.Bymonthday = []int{dom}
		}
	}

	if end, ok := rule.EndDate.Get(); ok {
		// UNTIL is inclusive, like EndDate; pin it to end of day.
		d := recurrence.DateOf(end)
		opt.Until = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.UTC)
	}

	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("build rrule: %w", err)
	}
	return rr.String(), nil
}

// RuleFromRRule converts an RRULE string back into a rule anchored at
// dtstart. Features outside the daily/weekly/monthly model are
// rejected with ErrUnsupportedRRule.
func RuleFromRRule(rruleStr string, dtstart time.Time) (recurrence.Rule, error) {
	opt, err := rrule.StrToROption(rruleStr)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("parse rrule %q: %w", rruleStr, err)
	}

	if opt.Count > 0 || len(opt.Bysetpos) > 0 || len(opt.Bymonth) > 0 ||
		len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 {
		return recurrence.Rule{}, fmt.Errorf("%w: %q", ErrUnsupportedRRule, rruleStr)
	}

	rule := recurrence.Rule{
		Interval:   opt.Interval,
		AnchorDate: recurrence.DateOf(dtstart),
	}
	if rule.Interval == 0 {
		rule.Interval = 1
	}

	switch opt.Freq {
	case rrule.DAILY:
		rule.Pattern = recurrence.PatternDaily
		if len(opt.Byweekday) > 0 {
			return recurrence.Rule{}, fmt.Errorf("%w: BYDAY with daily frequency", ErrUnsupportedRRule)
		}
	case rrule.WEEKLY:
		rule.Pattern = recurrence.PatternWeekly
		for _, wd := range opt.Byweekday {
			// rrule weekdays count from Monday = 0.
			rule.DaysOfWeek = append(rule.DaysOfWeek, time.Weekday((wd.Day()+1)%7))
		}
	case rrule.MONTHLY:
		rule.Pattern = recurrence.PatternMonthly
		if len(opt.Byweekday) > 0 {
			return recurrence.Rule{}, fmt.Errorf("%w: BYDAY with monthly frequency", ErrUnsupportedRRule)
		}
		if len(opt.Bymonthday) > 1 {
			return recurrence.Rule{}, fmt.Errorf("%w: multiple BYMONTHDAY values", ErrUnsupportedRRule)
		}
		if len(opt.Bymonthday) == 1 {
			rule.DayOfMonth = mo.Some(opt.Bymonthday[0])
		}
	default:
		return recurrence.Rule{}, fmt.Errorf("%w: frequency %v", ErrUnsupportedRRule, opt.Freq)
	}

	if !opt.Until.IsZero() {
		rule.EndDate = mo.Some(recurrence.DateOf(opt.Until.UTC()))
	}

	return rule, nil
}

// EventToICS renders an event as a single-VEVENT iCalendar document.
func EventToICS(ev *storage.Event) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, ev.ID)
	event.Props.SetText(ical.PropSummary, ev.Title)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, ev.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, ev.End.UTC())

	if r := ev.Recurrence; r != nil {
		rruleStr, err := RuleToRRule(*r)
		if err != nil {
			return "", err
		}
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = rruleStr
		event.Props.Set(prop)

		if len(r.ExceptionDates) > 0 {
			exdates := make([]string, len(r.ExceptionDates))
			for i, d := range r.ExceptionDates {
				exdates[i] = recurrence.DateOf(d).UTC().Format("20060102T150405Z")
			}
			prop := ical.NewProp(ical.PropExceptionDates)
			prop.Value = strings.Join(exdates, ",")
			event.Props.Set(prop)
		}
	}

	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("encode calendar: %w", err)
	}
	return buf.String(), nil
}

// EventFromICS parses a single-VEVENT iCalendar document.
func EventFromICS(ics string) (*storage.Event, error) {
	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}

	events := cal.Events()
	if len(events) != 1 {
		return nil, fmt.Errorf("expected exactly one event, got %d", len(events))
	}
	comp := events[0]

	ev := &storage.Event{}
	if uid := comp.Props.Get(ical.PropUID); uid != nil {
		ev.ID = uid.Value
	}
	if summary := comp.Props.Get(ical.PropSummary); summary != nil {
		ev.Title = summary.Value
	}

	if ev.Start, err = comp.Props.DateTime(ical.PropDateTimeStart, time.UTC); err != nil {
		return nil, fmt.Errorf("parse DTSTART: %w", err)
	}
	if comp.Props.Get(ical.PropDateTimeEnd) != nil {
		if ev.End, err = comp.Props.DateTime(ical.PropDateTimeEnd, time.UTC); err != nil {
			return nil, fmt.Errorf("parse DTEND: %w", err)
		}
	} else {
		ev.End = ev.Start
	}

	if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil && rruleProp.Value != "" {
		rule, err := RuleFromRRule(rruleProp.Value, ev.Start)
		if err != nil {
			return nil, err
		}

		if exProp := comp.Props.Get(ical.PropExceptionDates); exProp != nil && exProp.Value != "" {
			for _, s := range strings.Split(exProp.Value, ",") {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				d, err := parseICalDate(s)
				if err != nil {
					return nil, fmt.Errorf("parse EXDATE %q: %w", s, err)
				}
				rule.ExceptionDates = append(rule.ExceptionDates, d)
			}
		}

		ev.Recurrence = &rule
	}

	return ev, nil
}

// parseICalDate accepts both date-time and date-only iCalendar values.
func parseICalDate(s string) (time.Time, error) {
	if t, err := time.Parse("20060102T150405Z", s); err == nil {
		return t, nil
	}
	return time.Parse("20060102", s)
}
