// Package sqlite provides the SQLite storage backend used by the
// household app. The schema is created in-process on open; there is no
// external migration tooling.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/librota/librota/recurrence"
	"github.com/librota/librota/rotation"
	"github.com/librota/librota/storage"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements storage.Storage on top of SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the database at dbPath and applies
// the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			assignee TEXT DEFAULT '',
			kind TEXT DEFAULT '',
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			all_day INTEGER DEFAULT 0,
			recurring INTEGER DEFAULT 0,
			pattern TEXT DEFAULT '',
			interval INTEGER DEFAULT 1,
			days_of_week TEXT DEFAULT '[]',
			day_of_month INTEGER,
			until TEXT,
			exception_dates TEXT DEFAULT '[]',
			series_edit_mode TEXT DEFAULT '',
			created_at TEXT NOT NULL,
			modified_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chores (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			notes TEXT DEFAULT '',
			roster TEXT NOT NULL,
			frequency TEXT DEFAULT '',
			anchor_day INTEGER,
			last_rotated_at TEXT,
			created_at TEXT NOT NULL,
			modified_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS completions (
			id TEXT PRIMARY KEY,
			chore_id TEXT NOT NULL,
			assignee TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			FOREIGN KEY (chore_id) REFERENCES chores(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_chore_id ON completions(chore_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// Event operations

const eventColumns = `id, title, assignee, kind, start_at, end_at, all_day,
	recurring, pattern, interval, days_of_week, day_of_month, until,
	exception_dates, series_edit_mode, created_at, modified_at`

func (s *Store) GetEvent(ctx context.Context, id string) (*storage.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "event not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, opts *storage.ListOptions) ([]*storage.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var args []any
	var where []string

	if opts != nil && opts.Assignee != "" {
		where = append(where, "assignee = ?")
		args = append(args, opts.Assignee)
	}
	if opts != nil && opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, opts.Kind)
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*storage.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) CreateEvent(ctx context.Context, ev *storage.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now()
	ev.Created = now
	ev.Modified = now

	fields, err := eventFields(ev)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		fields...)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *Store) UpdateEvent(ctx context.Context, ev *storage.Event) error {
	ev.Modified = time.Now()

	fields, err := eventFields(ev)
	if err != nil {
		return err
	}

	// eventFields order: id, 14 data columns, created_at, modified_at.
	// created_at is not rewritten on update.
	args := append([]any{}, fields[1:15]...)
	args = append(args, fields[16], ev.ID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET title=?, assignee=?, kind=?, start_at=?, end_at=?,
			all_day=?, recurring=?, pattern=?, interval=?, days_of_week=?,
			day_of_month=?, until=?, exception_dates=?, series_edit_mode=?,
			modified_at=? WHERE id=?`,
		args...)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "event not found"}
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "event not found"}
	}
	return nil
}

// eventFields flattens an Event into the column order of eventColumns.
func eventFields(ev *storage.Event) ([]any, error) {
	var (
		recurring  bool
		pattern    string
		interval   = 1
		daysJSON   = "[]"
		dayOfMonth any
		until      any
		exJSON     = "[]"
	)

	if r := ev.Recurrence; r != nil {
		recurring = true
		pattern = string(r.Pattern)
		interval = r.Interval

		days, err := json.Marshal(r.DaysOfWeek)
		if err != nil {
			return nil, fmt.Errorf("marshal days of week: %w", err)
		}
		daysJSON = string(days)

		if dom, ok := r.DayOfMonth.Get(); ok {
			dayOfMonth = dom
		}
		if end, ok := r.EndDate.Get(); ok {
			until = end.Format(time.RFC3339Nano)
		}

		exDays := make([]string, len(r.ExceptionDates))
		for i, d := range r.ExceptionDates {
			exDays[i] = d.Format(time.DateOnly)
		}
		ex, err := json.Marshal(exDays)
		if err != nil {
			return nil, fmt.Errorf("marshal exception dates: %w", err)
		}
		exJSON = string(ex)
	}

	return []any{
		ev.ID, ev.Title, ev.Assignee, ev.Kind,
		ev.Start.Format(time.RFC3339Nano), ev.End.Format(time.RFC3339Nano), ev.AllDay,
		recurring, pattern, interval, daysJSON, dayOfMonth, until,
		exJSON, ev.SeriesEditMode,
		ev.Created.Format(time.RFC3339Nano), ev.Modified.Format(time.RFC3339Nano),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*storage.Event, error) {
	var (
		ev         storage.Event
		start, end string
		recurring  bool
		pattern    string
		interval   int
		daysJSON   string
		dayOfMonth sql.NullInt64
		until      sql.NullString
		exJSON     string
		created    string
		modified   string
	)

	err := row.Scan(&ev.ID, &ev.Title, &ev.Assignee, &ev.Kind, &start, &end,
		&ev.AllDay, &recurring, &pattern, &interval, &daysJSON, &dayOfMonth,
		&until, &exJSON, &ev.SeriesEditMode, &created, &modified)
	if err != nil {
		return nil, err
	}

	if ev.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	if ev.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}
	if ev.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created: %w", err)
	}
	if ev.Modified, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return nil, fmt.Errorf("parse modified: %w", err)
	}

	if recurring {
		rule := recurrence.Rule{
			Pattern:    recurrence.Pattern(pattern),
			Interval:   interval,
			AnchorDate: ev.Start,
		}

		if err := json.Unmarshal([]byte(daysJSON), &rule.DaysOfWeek); err != nil {
			return nil, fmt.Errorf("unmarshal days of week: %w", err)
		}
		if dayOfMonth.Valid {
			rule.DayOfMonth = mo.Some(int(dayOfMonth.Int64))
		}
		if until.Valid {
			end, err := time.Parse(time.RFC3339Nano, until.String)
			if err != nil {
				return nil, fmt.Errorf("parse until: %w", err)
			}
			rule.EndDate = mo.Some(end)
		}

		var exDays []string
		if err := json.Unmarshal([]byte(exJSON), &exDays); err != nil {
			return nil, fmt.Errorf("unmarshal exception dates: %w", err)
		}
		for _, s := range exDays {
			d, err := time.Parse(time.DateOnly, s)
			if err != nil {
				return nil, fmt.Errorf("parse exception date: %w", err)
			}
			rule.ExceptionDates = append(rule.ExceptionDates, d)
		}

		ev.Recurrence = &rule
	}

	return &ev, nil
}

// Chore operations

func (s *Store) GetChore(ctx context.Context, id string) (*storage.Chore, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, notes, roster, frequency, anchor_day, last_rotated_at,
			created_at, modified_at FROM chores WHERE id = ?`, id)

	ch, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "chore not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return ch, nil
}

func (s *Store) ListChores(ctx context.Context) ([]*storage.Chore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, notes, roster, frequency, anchor_day, last_rotated_at,
			created_at, modified_at FROM chores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []*storage.Chore
	for rows.Next() {
		ch, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, ch)
	}
	return chores, rows.Err()
}

func (s *Store) CreateChore(ctx context.Context, ch *storage.Chore) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	now := time.Now()
	ch.Created = now
	ch.Modified = now

	roster, err := json.Marshal(ch.Rotation.Roster)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chores (id, title, notes, roster, frequency, anchor_day,
			last_rotated_at, created_at, modified_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		ch.ID, ch.Title, ch.Notes, string(roster), string(ch.Rotation.Frequency),
		optInt(ch.Rotation.AnchorDay), optTime(ch.Rotation.LastRotatedAt),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create chore: %w", err)
	}
	return nil
}

func (s *Store) UpdateChore(ctx context.Context, ch *storage.Chore) error {
	ch.Modified = time.Now()

	roster, err := json.Marshal(ch.Rotation.Roster)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE chores SET title=?, notes=?, roster=?, frequency=?, anchor_day=?,
			last_rotated_at=?, modified_at=? WHERE id=?`,
		ch.Title, ch.Notes, string(roster), string(ch.Rotation.Frequency),
		optInt(ch.Rotation.AnchorDay), optTime(ch.Rotation.LastRotatedAt),
		ch.Modified.Format(time.RFC3339Nano), ch.ID)
	if err != nil {
		return fmt.Errorf("update chore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "chore not found"}
	}
	return nil
}

func (s *Store) DeleteChore(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "chore not found"}
	}
	return nil
}

// UpdateRotation writes the rotated roster and watermark, guarded by
// the watermark read earlier. The `IS` comparison makes the guard hold
// for the never-rotated (NULL) case too, so two concurrent check loops
// cannot both advance the same chore.
func (s *Store) UpdateRotation(ctx context.Context, choreID string, old, next rotation.State) error {
	roster, err := json.Marshal(next.Roster)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE chores SET roster=?, frequency=?, anchor_day=?, last_rotated_at=?,
			modified_at=? WHERE id=? AND last_rotated_at IS ?`,
		string(roster), string(next.Frequency), optInt(next.AnchorDay),
		optTime(next.LastRotatedAt), time.Now().Format(time.RFC3339Nano),
		choreID, optTime(old.LastRotatedAt))
	if err != nil {
		return fmt.Errorf("update rotation: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetChore(ctx, choreID); err != nil {
			return err
		}
		return &storage.Error{Type: storage.ErrConflict, Message: "rotation watermark changed since read"}
	}
	return nil
}

func scanChore(row rowScanner) (*storage.Chore, error) {
	var (
		ch          storage.Chore
		roster      string
		frequency   string
		anchorDay   sql.NullInt64
		lastRotated sql.NullString
		created     string
		modified    string
	)

	err := row.Scan(&ch.ID, &ch.Title, &ch.Notes, &roster, &frequency,
		&anchorDay, &lastRotated, &created, &modified)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(roster), &ch.Rotation.Roster); err != nil {
		return nil, fmt.Errorf("unmarshal roster: %w", err)
	}
	ch.Rotation.Frequency = rotation.Frequency(frequency)
	if anchorDay.Valid {
		ch.Rotation.AnchorDay = mo.Some(int(anchorDay.Int64))
	}
	if lastRotated.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastRotated.String)
		if err != nil {
			return nil, fmt.Errorf("parse last rotated: %w", err)
		}
		ch.Rotation.LastRotatedAt = mo.Some(t)
	}

	if ch.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created: %w", err)
	}
	if ch.Modified, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return nil, fmt.Errorf("parse modified: %w", err)
	}

	return &ch, nil
}

// Completion operations

func (s *Store) AddCompletion(ctx context.Context, c *storage.Completion) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	if _, err := s.GetChore(ctx, c.ChoreID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (id, chore_id, assignee, completed_at) VALUES (?,?,?,?)`,
		c.ID, c.ChoreID, c.Assignee, c.CompletedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("add completion: %w", err)
	}
	return nil
}

func (s *Store) ListCompletions(ctx context.Context, choreID string) ([]*storage.Completion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chore_id, assignee, completed_at FROM completions
			WHERE chore_id = ? ORDER BY completed_at`, choreID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []*storage.Completion
	for rows.Next() {
		var c storage.Completion
		var completedAt string
		if err := rows.Scan(&c.ID, &c.ChoreID, &c.Assignee, &completedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		if c.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
			return nil, fmt.Errorf("parse completed at: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) ResetCompletions(ctx context.Context, choreID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM completions WHERE chore_id = ?`, choreID)
	if err != nil {
		return fmt.Errorf("reset completions: %w", err)
	}
	return nil
}

// optInt converts an optional int into a driver value (nil for absent).
func optInt(o mo.Option[int]) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}

// optTime converts an optional time into a driver value (nil for absent).
func optTime(o mo.Option[time.Time]) any {
	if v, ok := o.Get(); ok {
		return v.Format(time.RFC3339Nano)
	}
	return nil
}
