// memory based implementation for testing purposes
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/librota/librota/rotation"
	"github.com/librota/librota/storage"
)

// Store implements storage.Storage using in-memory maps
type Store struct {
	mu          sync.RWMutex
	events      map[string]*storage.Event
	chores      map[string]*storage.Chore
	completions map[string][]*storage.Completion // key: choreID
}

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		events:      make(map[string]*storage.Event),
		chores:      make(map[string]*storage.Chore),
		completions: make(map[string][]*storage.Completion),
	}
}

// Event operations

func (s *Store) GetEvent(_ context.Context, id string) (*storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "event not found",
		}
	}

	copied := *ev
	return &copied, nil
}

func (s *Store) ListEvents(_ context.Context, opts *storage.ListOptions) ([]*storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*storage.Event
	for _, ev := range s.events {
		if opts != nil {
			if opts.Assignee != "" && ev.Assignee != opts.Assignee {
				continue
			}
			if opts.Kind != "" && ev.Kind != opts.Kind {
				continue
			}
		}
		copied := *ev
		events = append(events, &copied)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

func (s *Store) CreateEvent(_ context.Context, ev *storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if _, exists := s.events[ev.ID]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "event already exists",
		}
	}

	now := time.Now()
	ev.Created = now
	ev.Modified = now

	copied := *ev
	s.events[ev.ID] = &copied
	return nil
}

func (s *Store) UpdateEvent(_ context.Context, ev *storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.events[ev.ID]
	if !exists {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "event not found",
		}
	}

	ev.Created = existing.Created
	ev.Modified = time.Now()

	copied := *ev
	s.events[ev.ID] = &copied
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[id]; !exists {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "event not found",
		}
	}

	delete(s.events, id)
	return nil
}

// Chore operations

func (s *Store) GetChore(_ context.Context, id string) (*storage.Chore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.chores[id]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "chore not found",
		}
	}

	copied := *ch
	return &copied, nil
}

func (s *Store) ListChores(_ context.Context) ([]*storage.Chore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chores []*storage.Chore
	for _, ch := range s.chores {
		copied := *ch
		chores = append(chores, &copied)
	}

	sort.Slice(chores, func(i, j int) bool { return chores[i].ID < chores[j].ID })
	return chores, nil
}

func (s *Store) CreateChore(_ context.Context, ch *storage.Chore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if _, exists := s.chores[ch.ID]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "chore already exists",
		}
	}

	now := time.Now()
	ch.Created = now
	ch.Modified = now

	copied := *ch
	s.chores[ch.ID] = &copied
	return nil
}

func (s *Store) UpdateChore(_ context.Context, ch *storage.Chore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.chores[ch.ID]
	if !exists {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "chore not found",
		}
	}

	ch.Created = existing.Created
	ch.Modified = time.Now()

	copied := *ch
	s.chores[ch.ID] = &copied
	return nil
}

func (s *Store) DeleteChore(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chores[id]; !exists {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "chore not found",
		}
	}

	delete(s.chores, id)
	delete(s.completions, id)
	return nil
}

func (s *Store) UpdateRotation(_ context.Context, choreID string, old, next rotation.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, exists := s.chores[choreID]
	if !exists {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "chore not found",
		}
	}

	if !sameWatermark(ch.Rotation, old) {
		return &storage.Error{
			Type:    storage.ErrConflict,
			Message: "rotation watermark changed since read",
		}
	}

	ch.Rotation = next
	ch.Modified = time.Now()
	return nil
}

// sameWatermark compares the LastRotatedAt guard of two states.
func sameWatermark(a, b rotation.State) bool {
	at, aok := a.LastRotatedAt.Get()
	bt, bok := b.LastRotatedAt.Get()
	if aok != bok {
		return false
	}
	return !aok || at.Equal(bt)
}

// Completion operations

func (s *Store) AddCompletion(_ context.Context, c *storage.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chores[c.ChoreID]; !exists {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "chore not found",
		}
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	copied := *c
	s.completions[c.ChoreID] = append(s.completions[c.ChoreID], &copied)
	return nil
}

func (s *Store) ListCompletions(_ context.Context, choreID string) ([]*storage.Completion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Completion
	for _, c := range s.completions[choreID] {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (s *Store) ResetCompletions(_ context.Context, choreID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.completions, choreID)
	return nil
}
