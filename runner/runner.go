// Package runner drives the periodic rotation check. The decision
// (rotation.IsDue) and the transform (rotation.Rotate) stay pure; this
// package owns the timer, the clock, and the persistence of results.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/librota/librota/rotation"
	"github.com/librota/librota/storage"
)

// Clock supplies "now" so the sweep is deterministic under test. The
// core never reads the system clock directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Config controls the runner.
type Config struct {
	// Defaults fills in rotation frequency/anchor for chores that
	// leave them unset.
	Defaults rotation.Defaults

	// CronSpec is the check schedule, e.g. "*/5 * * * *". Checks may
	// run as often as every minute; the watermark keeps rotations to
	// at most one per chore per day.
	CronSpec string

	// Location is the timezone the cron schedule runs in. Defaults to
	// time.Local.
	Location *time.Location

	// Clock defaults to SystemClock().
	Clock Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runner periodically sweeps all chores and advances the due ones.
type Runner struct {
	cron     *cron.Cron
	store    storage.Storage
	defaults rotation.Defaults
	spec     string
	clock    Clock
	logger   *slog.Logger
}

// New creates a runner. Call Start to begin checking.
func New(store storage.Storage, cfg Config) *Runner {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	spec := cfg.CronSpec
	if spec == "" {
		spec = "*/5 * * * *"
	}

	return &Runner{
		cron:     cron.New(cron.WithLocation(loc)),
		store:    store,
		defaults: cfg.Defaults,
		spec:     spec,
		clock:    clock,
		logger:   logger,
	}
}

// Start registers the check schedule and blocks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.CheckOnce(ctx) }); err != nil {
		return fmt.Errorf("add rotation check: %w", err)
	}

	r.cron.Start()
	r.logger.Info("rotation runner started", "spec", r.spec)

	<-ctx.Done()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("rotation runner stopped")
}

// CheckOnce performs one sweep: evaluate which chores are due first,
// then commit the rotations. A failing chore is logged and skipped so
// it cannot stall the rest of the sweep; a lost watermark race means
// another writer already rotated, which is fine.
func (r *Runner) CheckOnce(ctx context.Context) {
	now := r.clock.Now()

	chores, err := r.store.ListChores(ctx)
	if err != nil {
		r.logger.Error("list chores", "err", err)
		return
	}

	var due []*storage.Chore
	for _, ch := range chores {
		freq, anchor := rotation.Effective(ch.Rotation, r.defaults)
		if rotation.IsDue(ch.Rotation, freq, anchor, now) {
			due = append(due, ch)
		}
	}

	for _, ch := range due {
		if err := r.rotateChore(ctx, ch, now); err != nil {
			if storage.IsConflict(err) {
				r.logger.Info("rotation lost race, skipping", "chore", ch.ID)
				continue
			}
			r.logger.Error("rotate chore", "chore", ch.ID, "err", err)
		}
	}
}

func (r *Runner) rotateChore(ctx context.Context, ch *storage.Chore, now time.Time) error {
	next, err := rotation.Rotate(ch.Rotation, now)
	if err != nil {
		return err
	}

	if err := r.store.UpdateRotation(ctx, ch.ID, ch.Rotation, next); err != nil {
		return err
	}

	// "Done" marks belong to the previous responsibility period.
	if err := r.store.ResetCompletions(ctx, ch.ID); err != nil {
		return fmt.Errorf("reset completions: %w", err)
	}

	r.logger.Info("rotated chore",
		"chore", ch.ID,
		"now_responsible", next.Roster[0],
	)
	return nil
}
