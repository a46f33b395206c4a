package trigger

import (
	"context"
	"fmt"

	"github.com/nerrad567/railrunner/internal/rail"
)

// Logger defines the logging interface used by the Store and Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store holds the manual triggers of the current map in creation order.
//
// Every mutation is written through the Repository before it becomes
// visible, so a failed write leaves the in-memory list untouched.
type Store struct {
	repo     Repository
	mapID    string
	loaded   bool
	triggers []*Trigger
	logger   Logger
}

// NewStore creates a store persisting through repo.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Load replaces the contents with the triggers saved for mapID.
func (s *Store) Load(ctx context.Context, mapID string) error {
	records, err := s.repo.Load(ctx, mapID)
	if err != nil {
		return fmt.Errorf("loading triggers for map %q: %w", mapID, err)
	}

	triggers := make([]*Trigger, 0, len(records))
	for _, rec := range records {
		if rec.ID <= 0 {
			s.logger.Warn("skipping stored trigger with invalid id", "map_id", mapID, "id", rec.ID)
			continue
		}
		t := fromRecord(rec, func(field, value string, err error) {
			s.logger.Warn("ignoring unrecognised trigger field",
				"map_id", mapID, "trigger_id", rec.ID, "field", field, "value", value, "error", err)
		})
		triggers = append(triggers, t)
	}

	s.mapID = mapID
	s.triggers = triggers
	s.loaded = true
	s.logger.Info("triggers loaded", "map_id", mapID, "count", len(triggers))
	return nil
}

// MapID returns the map the store was loaded for.
func (s *Store) MapID() string {
	return s.mapID
}

// NextID returns one more than the highest live id.
func (s *Store) NextID() int {
	highest := 0
	for _, t := range s.triggers {
		if t.ID > highest {
			highest = t.ID
		}
	}
	return highest + 1
}

// Add appends a trigger. An ID of zero is replaced by NextID.
func (s *Store) Add(ctx context.Context, t Trigger) (*Trigger, error) {
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	if t.ID < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, t.ID)
	}
	if t.ID == 0 {
		t.ID = s.NextID()
	} else if s.index(t.ID) >= 0 {
		return nil, fmt.Errorf("%w: %d", ErrExists, t.ID)
	}

	added := t.Clone()
	next := append(s.snapshot(), added)
	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	s.triggers = next
	return added.Clone(), nil
}

// Update replaces the operator options of trigger id.
func (s *Store) Update(ctx context.Context, id int, opts Options) (*Trigger, error) {
	return s.mutate(ctx, id, opts.apply)
}

// Move relocates trigger id.
func (s *Store) Move(ctx context.Context, id int, position rail.Vector3) (*Trigger, error) {
	return s.mutate(ctx, id, func(t *Trigger) { t.Position = position })
}

// Remove deletes trigger id.
func (s *Store) Remove(ctx context.Context, id int) error {
	if !s.loaded {
		return ErrNotLoaded
	}
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	next := make([]*Trigger, 0, len(s.triggers)-1)
	next = append(next, s.triggers[:i]...)
	next = append(next, s.triggers[i+1:]...)
	if err := s.save(ctx, next); err != nil {
		return err
	}
	s.triggers = next
	return nil
}

// FindByID returns a copy of trigger id.
func (s *Store) FindByID(id int) (*Trigger, bool) {
	i := s.index(id)
	if i < 0 {
		return nil, false
	}
	return s.triggers[i].Clone(), true
}

// List returns copies of every trigger in creation order.
func (s *Store) List() []*Trigger {
	out := make([]*Trigger, len(s.triggers))
	for i, t := range s.triggers {
		out[i] = t.Clone()
	}
	return out
}

// Len returns the number of triggers.
func (s *Store) Len() int {
	return len(s.triggers)
}

func (s *Store) mutate(ctx context.Context, id int, change func(*Trigger)) (*Trigger, error) {
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	next := s.snapshot()
	updated := next[i].Clone()
	change(updated)
	next[i] = updated
	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	s.triggers = next
	return updated.Clone(), nil
}

func (s *Store) save(ctx context.Context, triggers []*Trigger) error {
	records := make([]Record, len(triggers))
	for i, t := range triggers {
		records[i] = t.Record()
	}
	if err := s.repo.Save(ctx, s.mapID, records); err != nil {
		return fmt.Errorf("saving triggers for map %q: %w", s.mapID, err)
	}
	return nil
}

func (s *Store) snapshot() []*Trigger {
	out := make([]*Trigger, len(s.triggers), len(s.triggers)+1)
	copy(out, s.triggers)
	return out
}

func (s *Store) index(id int) int {
	for i, t := range s.triggers {
		if t.ID == id {
			return i
		}
	}
	return -1
}
