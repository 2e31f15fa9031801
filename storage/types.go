package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/librota/librota/recurrence"
	"github.com/librota/librota/rotation"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"

	// ErrConflict signals a lost compare-and-swap on a rotation
	// watermark: another writer rotated the chore first.
	ErrConflict ErrorType = "conflict"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a storage not-found error.
func IsNotFound(err error) bool {
	se, ok := err.(*Error)
	return ok && se.Type == ErrNotFound
}

// IsConflict reports whether err is a lost watermark compare-and-swap.
func IsConflict(err error) bool {
	se, ok := err.(*Error)
	return ok && se.Type == ErrConflict
}

// Event is a calendar entry. A nil Recurrence means a one-off event
// whose day membership is a plain start/end containment test; a non-nil
// Recurrence makes Start's day the series anchor.
type Event struct {
	ID       string
	Title    string
	Assignee string
	Kind     string // "appointment", "activity", ...
	Start    time.Time
	End      time.Time
	AllDay   bool

	Recurrence *recurrence.Rule

	// SeriesEditMode ("this", "all", "future") is written by the
	// editing UI and passed through untouched; the core never
	// interprets it.
	SeriesEditMode string

	Created  time.Time
	Modified time.Time
}

// Chore is a rotating household assignment.
type Chore struct {
	ID       string
	Title    string
	Notes    string
	Rotation rotation.State
	Created  time.Time
	Modified time.Time
}

// Completion is a single "done" mark against a chore. Completions are
// reset by the rotation runner when the roster advances, so "done"
// always refers to the current responsibility period.
type Completion struct {
	ID          string
	ChoreID     string
	Assignee    string
	CompletedAt time.Time
}

// ListOptions filters event listings.
type ListOptions struct {
	Assignee string // empty = all
	Kind     string // empty = all
}

// Storage is the interface that must be implemented by storage backends.
type Storage interface {
	// Event operations
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context, opts *ListOptions) ([]*Event, error)
	CreateEvent(ctx context.Context, ev *Event) error
	UpdateEvent(ctx context.Context, ev *Event) error
	DeleteEvent(ctx context.Context, id string) error

	// Chore operations
	GetChore(ctx context.Context, id string) (*Chore, error)
	ListChores(ctx context.Context) ([]*Chore, error)
	CreateChore(ctx context.Context, ch *Chore) error
	UpdateChore(ctx context.Context, ch *Chore) error
	DeleteChore(ctx context.Context, id string) error

	// UpdateRotation persists the roster shift and watermark produced
	// by a rotation, guarded by the previous watermark: if the stored
	// LastRotatedAt no longer matches old, the write fails with
	// ErrConflict and the caller must re-read. This is what keeps two
	// concurrent check loops from double-rotating a chore.
	UpdateRotation(ctx context.Context, choreID string, old, next rotation.State) error

	// Completion operations
	AddCompletion(ctx context.Context, c *Completion) error
	ListCompletions(ctx context.Context, choreID string) ([]*Completion, error)
	ResetCompletions(ctx context.Context, choreID string) error
}
