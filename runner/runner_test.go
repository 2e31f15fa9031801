package runner

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librota/librota/rotation"
	"github.com/librota/librota/storage"
	"github.com/librota/librota/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestRunner(t *testing.T, store storage.Storage, clock Clock) *Runner {
	t.Helper()
	return New(store, Config{
		Defaults: rotation.Defaults{
			Frequency:     rotation.FrequencyWeekly,
			WeeklyAnchor:  int(time.Sunday),
			MonthlyAnchor: 1,
		},
		Clock: clock,
	})
}

func TestRunner_CheckOnceRotatesDueChore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	monday := time.Date(2024, 1, 8, 7, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: monday}

	require.NoError(t, store.CreateChore(ctx, &storage.Chore{
		ID: "dishes",
		Rotation: rotation.State{
			Roster:    []string{"A", "B", "C"},
			Frequency: rotation.FrequencyWeekly,
			AnchorDay: mo.Some(int(time.Monday)),
		},
	}))
	require.NoError(t, store.AddCompletion(ctx, &storage.Completion{
		ChoreID: "dishes", Assignee: "A", CompletedAt: monday.Add(-24 * time.Hour),
	}))

	runner := newTestRunner(t, store, clock)
	runner.CheckOnce(ctx)

	got, err := store.GetChore(ctx, "dishes")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, got.Rotation.Roster)
	assert.Equal(t, monday, got.Rotation.LastRotatedAt.MustGet())

	// Completion marks from the previous period are gone.
	done, err := store.ListCompletions(ctx, "dishes")
	require.NoError(t, err)
	assert.Empty(t, done)
}

// A sweep later the same day must not rotate again, however often the
// cron fires.
func TestRunner_CheckOnceIsIdempotentWithinDay(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	monday := time.Date(2024, 1, 8, 0, 5, 0, 0, time.UTC)
	clock := &fakeClock{now: monday}

	require.NoError(t, store.CreateChore(ctx, &storage.Chore{
		ID: "trash",
		Rotation: rotation.State{
			Roster:    []string{"A", "B"},
			Frequency: rotation.FrequencyDaily,
		},
	}))

	runner := newTestRunner(t, store, clock)

	runner.CheckOnce(ctx)
	clock.now = monday.Add(3 * time.Hour)
	runner.CheckOnce(ctx)
	clock.now = monday.Add(23 * time.Hour)
	runner.CheckOnce(ctx)

	got, err := store.GetChore(ctx, "trash")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, got.Rotation.Roster, "rotated exactly once")

	// The next day it rotates again.
	clock.now = monday.AddDate(0, 0, 1)
	runner.CheckOnce(ctx)

	got, err = store.GetChore(ctx, "trash")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got.Rotation.Roster)
}

func TestRunner_ChoreDefersToDefaults(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sunday := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: sunday}

	// No frequency, no anchor: the runner's weekly-on-Sunday defaults apply.
	require.NoError(t, store.CreateChore(ctx, &storage.Chore{
		ID:       "plants",
		Rotation: rotation.State{Roster: []string{"A", "B"}},
	}))

	runner := newTestRunner(t, store, clock)

	// Saturday before: nothing happens.
	clock.now = sunday.AddDate(0, 0, -1)
	runner.CheckOnce(ctx)
	got, err := store.GetChore(ctx, "plants")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got.Rotation.Roster)

	clock.now = sunday
	runner.CheckOnce(ctx)
	got, err = store.GetChore(ctx, "plants")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, got.Rotation.Roster)
}

func TestRunner_SingleMemberChoreNeverRotates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := &fakeClock{now: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, store.CreateChore(ctx, &storage.Chore{
		ID: "solo",
		Rotation: rotation.State{
			Roster:    []string{"A"},
			Frequency: rotation.FrequencyDaily,
		},
	}))

	runner := newTestRunner(t, store, clock)
	runner.CheckOnce(ctx)

	got, err := store.GetChore(ctx, "solo")
	require.NoError(t, err)
	assert.True(t, got.Rotation.LastRotatedAt.IsAbsent(), "never rotated")
}
