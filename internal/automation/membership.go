package automation

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/railrunner/internal/host"
)

// Membership is the persisted set of vehicles opted into automation.
// It is consulted only when automation is not applied to every vehicle.
type Membership struct {
	repo   MembershipRepository
	ids    map[host.EntityID]struct{}
	logger Logger
}

// NewMembership creates an empty membership persisting through repo.
func NewMembership(repo MembershipRepository) *Membership {
	return &Membership{
		repo:   repo,
		ids:    make(map[host.EntityID]struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the membership.
func (m *Membership) SetLogger(logger Logger) {
	m.logger = logger
}

// Load replaces the set with the saved one.
func (m *Membership) Load(ctx context.Context) error {
	ids, err := m.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading automation membership: %w", err)
	}
	m.ids = make(map[host.EntityID]struct{}, len(ids))
	for _, id := range ids {
		m.ids[id] = struct{}{}
	}
	m.logger.Info("automation membership loaded", "count", len(m.ids))
	return nil
}

// Contains reports whether id is opted in.
func (m *Membership) Contains(id host.EntityID) bool {
	_, ok := m.ids[id]
	return ok
}

// Add opts id in. Adding a member again is a no-op.
func (m *Membership) Add(ctx context.Context, id host.EntityID) error {
	if m.Contains(id) {
		return nil
	}
	next := append(m.List(), id)
	if err := m.save(ctx, next); err != nil {
		return err
	}
	m.ids[id] = struct{}{}
	return nil
}

// Remove opts id out. Removing a non-member is a no-op.
func (m *Membership) Remove(ctx context.Context, id host.EntityID) error {
	if !m.Contains(id) {
		return nil
	}
	next := make([]host.EntityID, 0, len(m.ids)-1)
	for _, other := range m.List() {
		if other != id {
			next = append(next, other)
		}
	}
	if err := m.save(ctx, next); err != nil {
		return err
	}
	delete(m.ids, id)
	return nil
}

// List returns the members in ascending order.
func (m *Membership) List() []host.EntityID {
	out := make([]host.EntityID, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of members.
func (m *Membership) Len() int {
	return len(m.ids)
}

func (m *Membership) save(ctx context.Context, ids []host.EntityID) error {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if err := m.repo.Save(ctx, ids); err != nil {
		return fmt.Errorf("saving automation membership: %w", err)
	}
	return nil
}
