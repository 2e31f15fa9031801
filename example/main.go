// Command example seeds an in-memory store with a small household
// schedule, prints a week's agenda, and runs one rotation sweep.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"github.com/librota/librota/agenda"
	"github.com/librota/librota/ical"
	"github.com/librota/librota/recurrence"
	"github.com/librota/librota/rotation"
	"github.com/librota/librota/runner"
	"github.com/librota/librota/storage"
	"github.com/librota/librota/storage/memory"
)

// fixedClock pins "now" so the demo output is reproducible.
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func main() {
	ctx := context.Background()
	store := memory.New()

	// Monday, Jan 8 2024.
	now := time.Date(2024, 1, 8, 7, 30, 0, 0, time.UTC)
	weekStart := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 6)

	setupStore(ctx, store, weekStart)

	// Build and print the week's agenda.
	eval := recurrence.NewEvaluator()
	events, err := store.ListEvents(ctx, nil)
	if err != nil {
		log.Fatalf("list events: %v", err)
	}

	idx, err := agenda.BuildIndex(eval, events, weekStart, weekEnd, agenda.Filter{})
	if err != nil {
		log.Fatalf("build agenda: %v", err)
	}

	fmt.Println("Agenda for the week of", weekStart.Format("Jan 2, 2006"))
	for day := weekStart; !day.After(weekEnd); day = day.AddDate(0, 0, 1) {
		for _, ev := range idx.On(day) {
			line := fmt.Sprintf("  %s  %s", day.Format("Mon Jan 02"), ev.Title)
			if ev.Recurrence != nil {
				line += fmt.Sprintf(" (%s)", recurrence.Summary(*ev.Recurrence))
			}
			fmt.Println(line)
		}
	}

	// Run one rotation sweep with a pinned clock.
	r := runner.New(store, runner.Config{
		Defaults: rotation.FallbackDefaults,
		Clock:    fixedClock{now: now},
	})
	r.CheckOnce(ctx)

	chores, err := store.ListChores(ctx)
	if err != nil {
		log.Fatalf("list chores: %v", err)
	}
	fmt.Println("\nChores after the Monday sweep:")
	for _, ch := range chores {
		fmt.Printf("  %s: %v (now responsible: %s)\n",
			ch.Title, ch.Rotation.Roster, ch.Rotation.Roster[0])
	}

	// Export a recurring event as iCalendar.
	ev, err := store.GetEvent(ctx, "swim")
	if err != nil {
		log.Fatalf("get event: %v", err)
	}
	ics, err := ical.EventToICS(ev)
	if err != nil {
		log.Fatalf("export event: %v", err)
	}
	fmt.Println("\niCalendar export of the swim lesson:")
	fmt.Println(ics)
}

func setupStore(ctx context.Context, store *memory.Store, weekStart time.Time) {
	events := []*storage.Event{
		{
			ID:       "swim",
			Title:    "Swim lesson",
			Assignee: "kid",
			Kind:     "activity",
			Start:    weekStart.Add(16 * time.Hour),
			End:      weekStart.Add(17 * time.Hour),
			Recurrence: &recurrence.Rule{
				Pattern:    recurrence.PatternWeekly,
				Interval:   1,
				AnchorDate: weekStart,
				DaysOfWeek: []time.Weekday{time.Monday, time.Thursday},
			},
		},
		{
			ID:       "dentist",
			Title:    "Dentist",
			Assignee: "alice",
			Kind:     "appointment",
			Start:    weekStart.AddDate(0, 0, 2).Add(14 * time.Hour),
			End:      weekStart.AddDate(0, 0, 2).Add(15 * time.Hour),
		},
	}
	for _, ev := range events {
		if err := store.CreateEvent(ctx, ev); err != nil {
			log.Fatalf("create event: %v", err)
		}
	}

	chores := []*storage.Chore{
		{
			ID:    "dishes",
			Title: "Dishes",
			Rotation: rotation.State{
				Roster:    []string{"alice", "bob", "kid"},
				Frequency: rotation.FrequencyWeekly,
				AnchorDay: mo.Some(int(time.Monday)),
			},
		},
		{
			ID:    "plants",
			Title: "Water plants",
			Rotation: rotation.State{
				Roster:    []string{"bob", "alice"},
				Frequency: rotation.FrequencyDaily,
			},
		},
	}
	for _, ch := range chores {
		if err := store.CreateChore(ctx, ch); err != nil {
			log.Fatalf("create chore: %v", err)
		}
	}
}
