package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librota/librota/recurrence"
	"github.com/librota/librota/rotation"
	"github.com/librota/librota/storage"
)

func TestStore_EventCRUD(t *testing.T) {
	ctx := context.Background()
	store := New()

	ev := &storage.Event{
		Title:    "Dentist",
		Assignee: "alice",
		Kind:     "appointment",
		Start:    time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.CreateEvent(ctx, ev))
	require.NotEmpty(t, ev.ID, "ID is generated when empty")

	got, err := store.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dentist", got.Title)
	assert.False(t, got.Created.IsZero())

	got.Title = "Dentist (moved)"
	require.NoError(t, store.UpdateEvent(ctx, got))

	updated, err := store.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dentist (moved)", updated.Title)

	require.NoError(t, store.DeleteEvent(ctx, ev.ID))

	_, err = store.GetEvent(ctx, ev.ID)
	assert.True(t, storage.IsNotFound(err))
}

func TestStore_ListEventsFilters(t *testing.T) {
	ctx := context.Background()
	store := New()

	events := []*storage.Event{
		{ID: "1", Title: "Soccer", Assignee: "kid", Kind: "activity"},
		{ID: "2", Title: "Dentist", Assignee: "alice", Kind: "appointment"},
		{ID: "3", Title: "Piano", Assignee: "kid", Kind: "activity"},
	}
	for _, ev := range events {
		require.NoError(t, store.CreateEvent(ctx, ev))
	}

	all, err := store.ListEvents(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	kids, err := store.ListEvents(ctx, &storage.ListOptions{Assignee: "kid"})
	require.NoError(t, err)
	assert.Len(t, kids, 2)

	appts, err := store.ListEvents(ctx, &storage.ListOptions{Kind: "appointment"})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "Dentist", appts[0].Title)
}

func TestStore_RecurringEventRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()

	ev := &storage.Event{
		ID:    "rec",
		Title: "Standup",
		Start: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 8, 9, 15, 0, 0, time.UTC),
		Recurrence: &recurrence.Rule{
			Pattern:    recurrence.PatternWeekly,
			Interval:   1,
			AnchorDate: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
			DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday},
		},
	}
	require.NoError(t, store.CreateEvent(ctx, ev))

	got, err := store.GetEvent(ctx, "rec")
	require.NoError(t, err)
	require.NotNil(t, got.Recurrence)
	assert.Equal(t, recurrence.PatternWeekly, got.Recurrence.Pattern)
}

func TestStore_UpdateRotation(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)

	ch := &storage.Chore{
		ID:    "dishes",
		Title: "Dishes",
		Rotation: rotation.State{
			Roster:    []string{"alice", "bob"},
			Frequency: rotation.FrequencyDaily,
		},
	}
	require.NoError(t, store.CreateChore(ctx, ch))

	old := ch.Rotation
	next, err := rotation.Rotate(old, now)
	require.NoError(t, err)

	require.NoError(t, store.UpdateRotation(ctx, "dishes", old, next))

	got, err := store.GetChore(ctx, "dishes")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, got.Rotation.Roster)
	assert.Equal(t, now, got.Rotation.LastRotatedAt.MustGet())

	// A second writer that read the pre-rotation state loses the race.
	stale, err := rotation.Rotate(old, now.Add(time.Minute))
	require.NoError(t, err)
	err = store.UpdateRotation(ctx, "dishes", old, stale)
	assert.True(t, storage.IsConflict(err))

	// The winning write stands.
	got, err = store.GetChore(ctx, "dishes")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, got.Rotation.Roster)

	err = store.UpdateRotation(ctx, "missing", old, next)
	assert.True(t, storage.IsNotFound(err))
}

func TestStore_Completions(t *testing.T) {
	ctx := context.Background()
	store := New()

	ch := &storage.Chore{ID: "trash", Title: "Trash",
		Rotation: rotation.State{Roster: []string{"alice", "bob"}}}
	require.NoError(t, store.CreateChore(ctx, ch))

	require.NoError(t, store.AddCompletion(ctx, &storage.Completion{
		ChoreID: "trash", Assignee: "alice", CompletedAt: time.Now(),
	}))

	done, err := store.ListCompletions(ctx, "trash")
	require.NoError(t, err)
	assert.Len(t, done, 1)

	require.NoError(t, store.ResetCompletions(ctx, "trash"))

	done, err = store.ListCompletions(ctx, "trash")
	require.NoError(t, err)
	assert.Empty(t, done)

	err = store.AddCompletion(ctx, &storage.Completion{ChoreID: "missing"})
	assert.True(t, storage.IsNotFound(err))
}
