package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
)

// recordingHub captures broadcasts.
type recordingHub struct {
	events []string
}

func (h *recordingHub) Broadcast(_ string, payload any) {
	if m, ok := payload.(map[string]any); ok {
		h.events = append(h.events, m["event"].(string))
	}
}

func TestManager_AutomateSetsUpVehicle(t *testing.T) {
	settings := testSettings()
	f := newFixture(t, settings, 1)
	v := f.vehicles[1]

	if err := f.manager.Automate(context.Background(), 1); err != nil {
		t.Fatalf("Automate: %v", err)
	}

	if v.Dismounts() != 1 {
		t.Errorf("dismounts = %d, want 1", v.Dismounts())
	}
	if !v.UnlimitedFuel() || !v.DamageSuppressed() {
		t.Error("vehicle fuel or damage not overridden")
	}
	spawned := f.avatars.Spawned()
	if len(spawned) != 1 {
		t.Fatalf("avatars = %d, want 1", len(spawned))
	}
	avatar := spawned[0]
	if avatar.Mounted() != v {
		t.Error("avatar not mounted as driver")
	}
	if len(avatar.Outfit()) != len(settings.Outfit) {
		t.Errorf("outfit = %v", avatar.Outfit())
	}
	if !avatar.DamageSuppressed() {
		t.Error("avatar damage not suppressed")
	}
	if !f.manager.Membership().Contains(1) || len(f.repo.ids) != 1 {
		t.Error("membership not persisted")
	}

	// Nothing moves until the start delay elapses.
	if _, ok := v.Throttle(); ok {
		t.Fatal("throttle set before start delay")
	}
	f.sched.Advance(2 * time.Second)
	if got := lastThrottle(t, v); got != settings.DefaultSpeed {
		t.Errorf("throttle = %v, want default speed", got)
	}
	if tracks := v.Tracks(); len(tracks) != 1 || tracks[0] != settings.DefaultTrack {
		t.Errorf("tracks = %v, want [%v]", tracks, settings.DefaultTrack)
	}
}

func TestManager_ToggleOffReleasesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings(), 1)
	v := f.vehicles[1]

	on, err := f.manager.Toggle(ctx, 1)
	if err != nil || !on {
		t.Fatalf("Toggle on = %v, %v", on, err)
	}
	f.sched.Advance(time.Second) // start still pending

	on, err = f.manager.Toggle(ctx, 1)
	if err != nil || on {
		t.Fatalf("Toggle off = %v, %v", on, err)
	}

	if f.manager.IsAutomated(1) {
		t.Error("vehicle still automated")
	}
	if f.manager.Membership().Contains(1) || len(f.repo.ids) != 0 {
		t.Error("membership still contains vehicle")
	}
	if !f.avatars.Spawned()[0].Destroyed() {
		t.Error("avatar not released")
	}
	if v.UnlimitedFuel() || v.DamageSuppressed() {
		t.Error("vehicle overrides not restored")
	}
	if f.sched.PendingCount() != 0 {
		t.Errorf("pending timers = %d, want 0", f.sched.PendingCount())
	}
	if _, ok := v.Throttle(); ok {
		t.Error("cancelled start still applied a throttle")
	}
}

func TestManager_ToggleRefusedWithBlanketAutomation(t *testing.T) {
	settings := testSettings()
	settings.AutomateAll = true
	f := newFixture(t, settings, 1)

	if _, err := f.manager.Toggle(context.Background(), 1); !errors.Is(err, ErrBlanketAutomation) {
		t.Errorf("Toggle = %v, want ErrBlanketAutomation", err)
	}
	if f.manager.IsAutomated(1) {
		t.Error("vehicle automated by refused toggle")
	}
}

func TestManager_AutomateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown vehicle", func(t *testing.T) {
		f := newFixture(t, testSettings())
		if err := f.manager.Automate(ctx, 5); !errors.Is(err, ErrVehicleNotFound) {
			t.Errorf("err = %v, want ErrVehicleNotFound", err)
		}
	})

	t.Run("already automated", func(t *testing.T) {
		f := newFixture(t, testSettings(), 1)
		if err := f.manager.Automate(ctx, 1); err != nil {
			t.Fatalf("Automate: %v", err)
		}
		if err := f.manager.Automate(ctx, 1); !errors.Is(err, ErrAlreadyAutomated) {
			t.Errorf("err = %v, want ErrAlreadyAutomated", err)
		}
		if n := len(f.avatars.Spawned()); n != 1 {
			t.Errorf("avatars = %d, want 1", n)
		}
	})

	t.Run("vetoed", func(t *testing.T) {
		f := newFixture(t, testSettings(), 1)
		f.manager.OnVeto(func(host.Vehicle) bool { return false })
		f.manager.OnVeto(func(v host.Vehicle) bool { return v.ID() == 1 })
		if err := f.manager.Automate(ctx, 1); !errors.Is(err, ErrAutomationVetoed) {
			t.Errorf("err = %v, want ErrAutomationVetoed", err)
		}
		if len(f.avatars.Spawned()) != 0 || f.manager.IsAutomated(1) || f.manager.Membership().Len() != 0 {
			t.Error("vetoed automation left state behind")
		}
	})

	t.Run("avatar spawn fails", func(t *testing.T) {
		f := newFixture(t, testSettings(), 1)
		f.avatars.Fail = errors.New("no slots")
		if err := f.manager.Automate(ctx, 1); !errors.Is(err, ErrAvatarUnavailable) {
			t.Errorf("err = %v, want ErrAvatarUnavailable", err)
		}
		if f.manager.IsAutomated(1) {
			t.Error("vehicle automated without avatar")
		}
	})

	t.Run("membership write fails", func(t *testing.T) {
		f := newFixture(t, testSettings(), 1)
		f.repo.failErr = errors.New("disk full")
		if err := f.manager.Automate(ctx, 1); err == nil {
			t.Fatal("Automate succeeded with failing membership")
		}
		if f.manager.IsAutomated(1) {
			t.Error("controller kept after failed persist")
		}
		v := f.vehicles[1]
		if len(f.avatars.Spawned()) != 0 {
			t.Error("avatar spawned before membership was saved")
		}
		if v.Dismounts() != 0 {
			t.Error("riders dismounted despite failed persist")
		}
		if v.UnlimitedFuel() || v.DamageSuppressed() {
			t.Error("vehicle flags set despite failed persist")
		}
	})

	t.Run("avatar failure rolls back membership", func(t *testing.T) {
		f := newFixture(t, testSettings(), 1)
		f.avatars.Fail = errors.New("no slots")
		if err := f.manager.Automate(ctx, 1); !errors.Is(err, ErrAvatarUnavailable) {
			t.Fatalf("err = %v, want ErrAvatarUnavailable", err)
		}
		if f.manager.Membership().Contains(1) || len(f.repo.ids) != 0 {
			t.Errorf("membership kept after failed automation: %v", f.repo.ids)
		}
	})
}

func TestManager_GrantedHookAndBroadcast(t *testing.T) {
	f := newFixture(t, testSettings(), 1)
	hub := &recordingHub{}
	f.manager.SetHub(hub)

	var granted []host.EntityID
	f.manager.OnGranted(func(v host.Vehicle) { granted = append(granted, v.ID()) })

	if err := f.manager.Automate(context.Background(), 1); err != nil {
		t.Fatalf("Automate: %v", err)
	}
	if len(granted) != 1 || granted[0] != 1 {
		t.Errorf("granted = %v, want [1]", granted)
	}
	if err := f.manager.Deautomate(context.Background(), 1); err != nil {
		t.Fatalf("Deautomate: %v", err)
	}
	if len(hub.events) != 2 || hub.events[0] != EventAutomated || hub.events[1] != EventDeautomated {
		t.Errorf("events = %v", hub.events)
	}
	if err := f.manager.Deautomate(context.Background(), 1); !errors.Is(err, ErrNotAutomated) {
		t.Errorf("second Deautomate = %v, want ErrNotAutomated", err)
	}
}

func TestManager_AutomateAtTrigger(t *testing.T) {
	f := newFixture(t, testSettings(), 1)
	v := f.vehicles[1]

	cmd := rail.Command{Speed: speedPtr(rail.FwdLo), Track: trackPtr(rail.TrackRight)}
	if err := f.manager.AutomateAt(1, 7, cmd); err != nil {
		t.Fatalf("AutomateAt: %v", err)
	}

	// Applied immediately, no start delay.
	if got := lastThrottle(t, v); got != rail.FwdLo {
		t.Errorf("throttle = %v, want Fwd_Lo", got)
	}
	if tracks := v.Tracks(); len(tracks) != 1 || tracks[0] != rail.TrackRight {
		t.Errorf("tracks = %v, want [Right]", tracks)
	}
	if f.manager.EnterTrigger(1, 7, cmd) {
		t.Error("vehicle not marked inside the start trigger")
	}
	f.manager.LeaveTrigger(1, 7)
	if !f.manager.EnterTrigger(1, 7, cmd) {
		t.Error("EnterTrigger after leaving returned false")
	}
	if !f.manager.Membership().Contains(1) {
		t.Error("trigger-automated vehicle not a member")
	}
}

func TestManager_ForgetTrigger(t *testing.T) {
	f := newFixture(t, testSettings(), 1, 2)
	cmd := rail.Command{Speed: speedPtr(rail.FwdLo)}
	for _, id := range []host.EntityID{1, 2} {
		if err := f.manager.AutomateAt(id, 7, cmd); err != nil {
			t.Fatalf("AutomateAt(%d): %v", id, err)
		}
	}

	f.manager.ForgetTrigger(7)
	for _, id := range []host.EntityID{1, 2} {
		if !f.manager.EnterTrigger(id, 7, rail.Command{Speed: speedPtr(rail.Zero)}) {
			t.Errorf("vehicle %d still marked inside a forgotten trigger", id)
		}
		if got := lastThrottle(t, f.vehicles[id]); got != rail.Zero {
			t.Errorf("vehicle %d throttle = %v, want Zero", id, got)
		}
	}
}

func TestManager_AutomateAtWithoutSpeedUsesDefault(t *testing.T) {
	settings := testSettings()
	f := newFixture(t, settings, 1)
	v := f.vehicles[1]

	if err := f.manager.AutomateAt(1, 2, rail.Command{}); err != nil {
		t.Fatalf("AutomateAt: %v", err)
	}
	if got := lastThrottle(t, v); got != settings.DefaultSpeed {
		t.Errorf("throttle = %v, want default speed", got)
	}
	if tracks := v.Tracks(); len(tracks) != 1 || tracks[0] != settings.DefaultTrack {
		t.Errorf("tracks = %v, want default track", tracks)
	}
}

func TestManager_SpawnAndRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings(), 1, 2)
	f.repo.ids = []host.EntityID{2}
	if err := f.manager.Membership().Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	f.manager.HandleVehicleSpawned(ctx, 1)
	f.manager.HandleVehicleSpawned(ctx, 2)
	if f.manager.IsAutomated(1) {
		t.Error("non-member automated at spawn")
	}
	if !f.manager.IsAutomated(2) {
		t.Fatal("member not automated at spawn")
	}

	f.manager.HandleVehicleRemoved(ctx, 2)
	if f.manager.IsAutomated(2) || f.manager.Membership().Contains(2) {
		t.Error("removed vehicle still automated or a member")
	}
	if !f.avatars.Spawned()[0].Destroyed() {
		t.Error("avatar of removed vehicle not released")
	}
}

func TestManager_RestoreAndShutdown(t *testing.T) {
	ctx := context.Background()
	settings := testSettings()
	settings.AutomateAll = true
	f := newFixture(t, settings, 1, 2, 3)

	if got := f.manager.Restore(ctx); got != 3 {
		t.Fatalf("Restore = %d, want 3", got)
	}
	if f.manager.Membership().Len() != 0 {
		t.Error("blanket automation wrote membership")
	}
	statuses := f.manager.Statuses()
	if len(statuses) != 3 || statuses[0].VehicleID != 1 || statuses[2].VehicleID != 3 {
		t.Errorf("statuses = %+v", statuses)
	}

	f.manager.Shutdown()
	if f.manager.Count() != 0 {
		t.Errorf("Count after shutdown = %d", f.manager.Count())
	}
	for _, a := range f.avatars.Spawned() {
		if !a.Destroyed() {
			t.Error("avatar survived shutdown")
		}
	}
}

func TestManager_ShutdownKeepsMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings(), 1)
	if err := f.manager.Automate(ctx, 1); err != nil {
		t.Fatalf("Automate: %v", err)
	}
	f.manager.Shutdown()
	if !f.manager.Membership().Contains(1) || len(f.repo.ids) != 1 {
		t.Error("shutdown dropped membership")
	}
}

func TestManager_DamageAndFuelHooks(t *testing.T) {
	f := newFixture(t, testSettings(), 1, 2)
	if err := f.manager.Automate(context.Background(), 1); err != nil {
		t.Fatalf("Automate: %v", err)
	}
	avatar := f.avatars.Spawned()[0]

	if !f.manager.ShouldSuppressDamage(1) || !f.manager.ShouldSuppressDamage(avatar.ID()) {
		t.Error("damage not suppressed for automated vehicle or its avatar")
	}
	if f.manager.ShouldSuppressDamage(2) {
		t.Error("damage suppressed for manual vehicle")
	}
	if f.manager.CanAccessFuel(1) {
		t.Error("fuel access allowed on automated vehicle")
	}
	if !f.manager.CanAccessFuel(2) {
		t.Error("fuel access denied on manual vehicle")
	}
}

func TestManager_TelemetryRecordsSpeedReasons(t *testing.T) {
	f := newFixture(t, testSettings(), 1)
	c, _ := f.automated(t, 1)
	c.EnterTrigger(1, rail.Command{Speed: speedPtr(rail.Zero)})
	f.sched.Advance(testDwell)

	want := []string{"Fwd_Hi/start", "Zero/trigger", "Fwd_Med/dwell_over"}
	if len(f.tel.speeds) != len(want) {
		t.Fatalf("speeds = %v, want %v", f.tel.speeds, want)
	}
	for i := range want {
		if f.tel.speeds[i] != want[i] {
			t.Errorf("speed %d = %q, want %q", i, f.tel.speeds[i], want[i])
		}
	}
}

func TestRandomStartDelay(t *testing.T) {
	settings := DefaultSettings()
	m := NewManager(settings, nil, mockVehicles{}, nil, NewMembership(&memoryMembershipRepo{}))
	for i := 0; i < 100; i++ {
		d := m.randomStartDelay()
		if d < settings.StartDelayMin || d >= settings.StartDelayMax {
			t.Fatalf("delay %v outside [%v, %v)", d, settings.StartDelayMin, settings.StartDelayMax)
		}
	}
}
