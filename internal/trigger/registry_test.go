package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/host/hosttest"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/internal/scheduler"
)

// mockAutomator records calls from the registry.
type mockAutomator struct {
	automated map[host.EntityID]bool
	inside    map[host.EntityID]map[int]bool
	vetoErr   error

	automateCalls []rail.Command
	applied       []rail.Command
	leaves        int
	forgotten     []int
}

func newMockAutomator() *mockAutomator {
	return &mockAutomator{
		automated: make(map[host.EntityID]bool),
		inside:    make(map[host.EntityID]map[int]bool),
	}
}

func (m *mockAutomator) IsAutomated(v host.EntityID) bool { return m.automated[v] }

func (m *mockAutomator) AutomateAt(v host.EntityID, triggerID int, cmd rail.Command) error {
	if m.vetoErr != nil {
		return m.vetoErr
	}
	m.automated[v] = true
	m.automateCalls = append(m.automateCalls, cmd)
	m.mark(v, triggerID)
	return nil
}

func (m *mockAutomator) EnterTrigger(v host.EntityID, triggerID int, cmd rail.Command) bool {
	if m.inside[v][triggerID] {
		return false
	}
	m.mark(v, triggerID)
	m.applied = append(m.applied, cmd)
	return true
}

func (m *mockAutomator) LeaveTrigger(v host.EntityID, triggerID int) {
	m.leaves++
	delete(m.inside[v], triggerID)
}

func (m *mockAutomator) ForgetTrigger(triggerID int) {
	m.forgotten = append(m.forgotten, triggerID)
	for _, ids := range m.inside {
		delete(ids, triggerID)
	}
}

func (m *mockAutomator) mark(v host.EntityID, triggerID int) {
	if m.inside[v] == nil {
		m.inside[v] = make(map[int]bool)
	}
	m.inside[v][triggerID] = true
}

type registryFixture struct {
	reg       *Registry
	repo      *memoryRepo
	zones     *hosttest.ZoneFactory
	sched     *scheduler.TickScheduler
	drawer    *hosttest.Drawer
	automator *mockAutomator
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	f := &registryFixture{
		repo:      newMemoryRepo(),
		zones:     hosttest.NewZoneFactory(),
		sched:     scheduler.NewTickScheduler(),
		drawer:    &hosttest.Drawer{},
		automator: newMockAutomator(),
	}
	f.reg = NewRegistry(NewStore(f.repo), f.zones, f.sched)
	f.reg.SetAutomator(f.automator)
	f.reg.SetDrawer(f.drawer)
	if err := f.reg.Load(context.Background(), "test-map"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f
}

func TestRegistry_LoadCreatesZones(t *testing.T) {
	repo := newMemoryRepo()
	repo.maps["m"] = []Record{{ID: 1}, {ID: 2, Position: rail.Vector3{X: 5}}}
	zones := hosttest.NewZoneFactory()

	reg := NewRegistry(NewStore(repo), zones, scheduler.NewTickScheduler())
	if err := reg.Load(context.Background(), "m"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(zones.Live()); n != 2 {
		t.Fatalf("live zones = %d, want 2", n)
	}
	z := zones.Find(host.ZoneTag{Kind: host.ZoneManual, TriggerID: 2})
	if z == nil {
		t.Fatal("zone for trigger 2 not found")
	}
	if got := z.Shape(); got.Kind != host.ShapeSphere || got.Center.X != 5 {
		t.Errorf("shape = %+v", got)
	}

	// Loading another map clears the previous zones.
	if err := reg.Load(context.Background(), "empty"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(zones.Live()); n != 0 {
		t.Errorf("live zones after map change = %d, want 0", n)
	}
}

func TestRegistry_AddMoveRemove(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	added, err := f.reg.Add(ctx, Trigger{Position: rail.Vector3{X: 1}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.ID != 1 {
		t.Errorf("ID = %d, want 1", added.ID)
	}
	tag := host.ZoneTag{Kind: host.ZoneManual, TriggerID: 1}
	if f.zones.Find(tag) == nil {
		t.Fatal("zone not created")
	}

	if _, err := f.reg.Move(ctx, 1, rail.Vector3{X: 7, Z: 2}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := f.zones.Find(tag).Shape().Center; got.X != 7 || got.Z != 2 {
		t.Errorf("zone center after move = %v", got)
	}
	if n := len(f.zones.Live()); n != 1 {
		t.Errorf("live zones after move = %d, want 1", n)
	}

	if err := f.reg.Remove(ctx, 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if f.zones.Find(tag) != nil {
		t.Error("zone survived Remove")
	}
	if err := f.reg.Remove(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}
}

func TestRegistry_AddRollsBackZoneOnSaveFailure(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.failErr = errors.New("read-only")

	if _, err := f.reg.Add(context.Background(), Trigger{}); err == nil {
		t.Fatal("Add succeeded with failing repository")
	}
	if n := len(f.zones.Live()); n != 0 {
		t.Errorf("live zones = %d, want 0", n)
	}
}

func TestRegistry_AddFailsWhenZoneCannotBeCreated(t *testing.T) {
	f := newRegistryFixture(t)
	f.zones.Fail = errors.New("host offline")

	if _, err := f.reg.Add(context.Background(), Trigger{}); err == nil {
		t.Fatal("Add succeeded without a zone")
	}
	if f.repo.saves != 0 {
		t.Errorf("saves = %d, want 0", f.repo.saves)
	}
}

func TestRegistry_ShowAllSingleLoopPerObserver(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)
	for i := 0; i < 2; i++ {
		if _, err := f.reg.Add(ctx, Trigger{}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if n := f.reg.ShowAll("alice"); n != 2 {
		t.Errorf("ShowAll = %d, want 2", n)
	}
	f.sched.Advance(5 * time.Second)
	f.reg.ShowAll("alice")

	// Initial draw (2 shapes + 2 labels) per ShowAll, plus 5 redraws of
	// the first loop before it was replaced.
	before := len(f.drawer.Calls("alice"))
	if before != 4+5*4+4 {
		t.Fatalf("draw calls = %d, want %d", before, 4+5*4+4)
	}

	f.sched.Advance(time.Minute)
	after := len(f.drawer.Calls("alice"))
	if got := after - before; got != showRepeats*4 {
		t.Errorf("redraw calls after replacement = %d, want %d", got, showRepeats*4)
	}

	f.sched.Advance(time.Minute)
	if len(f.drawer.Calls("alice")) != after {
		t.Error("redraw continued past its window")
	}
	if f.sched.PendingCount() != 0 {
		t.Errorf("pending timers = %d, want 0", f.sched.PendingCount())
	}
}

func TestRegistry_ShowAllObserversIndependent(t *testing.T) {
	f := newRegistryFixture(t)
	if _, err := f.reg.Add(context.Background(), Trigger{}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	f.reg.ShowAll("alice")
	f.reg.ShowAll("bob")
	f.sched.Advance(2 * time.Second)

	// Replacing alice's loop leaves bob's running.
	f.reg.ShowAll("alice")
	f.sched.Advance(time.Second)

	if got := len(f.drawer.Calls("alice")); got != 2+2*2+2+2 {
		t.Errorf("alice draw calls = %d, want 10", got)
	}
	if got := len(f.drawer.Calls("bob")); got != 2+3*2 {
		t.Errorf("bob draw calls = %d, want 8", got)
	}
	if f.sched.PendingCount() != 2 {
		t.Errorf("pending timers = %d, want 2", f.sched.PendingCount())
	}
}

func TestRegistry_HandleEnter(t *testing.T) {
	ctx := context.Background()
	const vehicle host.EntityID = 42

	t.Run("ignored when not automated and not a start trigger", func(t *testing.T) {
		f := newRegistryFixture(t)
		if _, err := f.reg.Add(ctx, Trigger{Speed: speedPtr(rail.Zero)}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		f.reg.HandleEnter(vehicle, 1)
		if f.automator.automated[vehicle] || len(f.automator.applied) != 0 {
			t.Error("non-start trigger acted on a manual vehicle")
		}
	})

	t.Run("start trigger automates with its command", func(t *testing.T) {
		f := newRegistryFixture(t)
		if _, err := f.reg.Add(ctx, Trigger{StartsAutomation: true, Speed: speedPtr(rail.FwdLo), TrackSelection: trackPtr(rail.TrackRight)}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		f.reg.HandleEnter(vehicle, 1)
		if len(f.automator.automateCalls) != 1 {
			t.Fatalf("AutomateAt calls = %d, want 1", len(f.automator.automateCalls))
		}
		cmd := f.automator.automateCalls[0]
		if *cmd.Speed != rail.FwdLo || *cmd.Track != rail.TrackRight {
			t.Errorf("command = %v/%v", *cmd.Speed, *cmd.Track)
		}

		// The vehicle is marked inside, so a duplicate enter is ignored.
		f.reg.HandleEnter(vehicle, 1)
		if len(f.automator.applied) != 0 {
			t.Error("duplicate enter applied the command again")
		}
	})

	t.Run("vetoed automation is ignored", func(t *testing.T) {
		f := newRegistryFixture(t)
		f.automator.vetoErr = errors.New("vetoed")
		if _, err := f.reg.Add(ctx, Trigger{StartsAutomation: true}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		f.reg.HandleEnter(vehicle, 1)
		if f.automator.automated[vehicle] {
			t.Error("vehicle automated despite veto")
		}
	})

	t.Run("automated vehicle gets command once per visit", func(t *testing.T) {
		f := newRegistryFixture(t)
		f.automator.automated[vehicle] = true
		if _, err := f.reg.Add(ctx, Trigger{Speed: speedPtr(rail.FwdHi)}); err != nil {
			t.Fatalf("Add: %v", err)
		}

		f.reg.HandleEnter(vehicle, 1)
		f.reg.HandleEnter(vehicle, 1)
		if len(f.automator.applied) != 1 {
			t.Fatalf("applied = %d, want 1", len(f.automator.applied))
		}

		f.reg.HandleLeave(vehicle, 1)
		f.reg.HandleEnter(vehicle, 1)
		if len(f.automator.applied) != 2 {
			t.Errorf("applied after leave and re-enter = %d, want 2", len(f.automator.applied))
		}
	})

	t.Run("unknown trigger", func(t *testing.T) {
		f := newRegistryFixture(t)
		f.automator.automated[vehicle] = true
		f.reg.HandleEnter(vehicle, 99)
		if len(f.automator.applied) != 0 {
			t.Error("unknown trigger applied a command")
		}
	})
}

func TestRegistry_RemovedTriggerIDStartsFresh(t *testing.T) {
	ctx := context.Background()
	const vehicle host.EntityID = 42

	tests := []struct {
		name   string
		change func(f *registryFixture) error
	}{
		{"remove and re-add", func(f *registryFixture) error {
			if err := f.reg.Remove(ctx, 1); err != nil {
				return err
			}
			_, err := f.reg.Add(ctx, Trigger{Speed: speedPtr(rail.Zero)})
			return err
		}},
		{"move", func(f *registryFixture) error {
			_, err := f.reg.Move(ctx, 1, rail.Vector3{X: 40})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistryFixture(t)
			f.automator.automated[vehicle] = true
			if _, err := f.reg.Add(ctx, Trigger{Speed: speedPtr(rail.FwdLo)}); err != nil {
				t.Fatalf("Add: %v", err)
			}
			f.reg.HandleEnter(vehicle, 1)

			if err := tt.change(f); err != nil {
				t.Fatalf("change: %v", err)
			}
			if len(f.automator.forgotten) != 1 || f.automator.forgotten[0] != 1 {
				t.Fatalf("forgotten = %v, want [1]", f.automator.forgotten)
			}

			f.reg.HandleEnter(vehicle, 1)
			if len(f.automator.applied) != 2 {
				t.Errorf("applied = %d, want 2", len(f.automator.applied))
			}
		})
	}
}

func TestRegistry_DestroyCleansUp(t *testing.T) {
	f := newRegistryFixture(t)
	if _, err := f.reg.Add(context.Background(), Trigger{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	f.reg.ShowAll("alice")

	f.reg.Destroy()
	if len(f.automator.forgotten) != 1 {
		t.Errorf("forgotten = %v, want [1]", f.automator.forgotten)
	}
	if n := len(f.zones.Live()); n != 0 {
		t.Errorf("live zones = %d, want 0", n)
	}
	if f.sched.PendingCount() != 0 {
		t.Errorf("pending timers = %d, want 0", f.sched.PendingCount())
	}
}
