package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/railrunner/internal/audit"
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
)

var operator = []string{"trigger:manage", "automation:toggle"}

func aim(x, z float64) *rail.Vector3 {
	return &rail.Vector3{X: x, Z: z}
}

func TestExecute_Errors(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	ctx := context.Background()

	if r := f.engine.Execute(ctx, Command{Caller: "p", Permissions: operator, Name: CmdAdd, Aim: aim(0, 0)}); r.Key != "trigger.added" {
		t.Fatalf("seed add = %+v", r)
	}

	tests := []struct {
		name    string
		cmd     Command
		wantKey string
	}{
		{"unknown command", Command{Permissions: operator, Name: "teleport"}, "error.unknown_command"},
		{"no permission", Command{Permissions: []string{"trigger:read"}, Name: CmdAdd, Aim: aim(1, 1)}, "error.no_permission"},
		{"toggle needs its own permission", Command{Permissions: []string{"trigger:manage"}, Name: CmdToggle, Vehicle: 1}, "error.no_permission"},
		{"add without aim", Command{Permissions: operator, Name: CmdAdd, Args: []string{"Zero"}}, "error.no_track"},
		{"add bad option", Command{Permissions: operator, Name: CmdAdd, Args: []string{"warp9"}, Aim: aim(1, 1)}, "error.invalid_option"},
		{"update without id", Command{Permissions: operator, Name: CmdUpdate, Args: []string{"Zero"}}, "error.usage"},
		{"update unknown id", Command{Permissions: operator, Name: CmdUpdate, Args: []string{"42", "Zero"}}, "error.trigger_not_found"},
		{"update bad option", Command{Permissions: operator, Name: CmdUpdate, Args: []string{"1", "sideways"}}, "error.invalid_option"},
		{"move without aim", Command{Permissions: operator, Name: CmdMove, Args: []string{"1"}}, "error.no_track"},
		{"move negative id", Command{Permissions: operator, Name: CmdMove, Args: []string{"-1"}, Aim: aim(0, 0)}, "error.usage"},
		{"remove unknown id", Command{Permissions: operator, Name: CmdRemove, Args: []string{"9"}}, "error.trigger_not_found"},
		{"toggle without vehicle", Command{Permissions: operator, Name: CmdToggle}, "error.no_vehicle"},
		{"toggle unknown vehicle", Command{Permissions: operator, Name: CmdToggle, Vehicle: 99}, "error.no_vehicle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.engine.Triggers())
			r := f.engine.Execute(ctx, tt.cmd)
			if r.Key != tt.wantKey {
				t.Errorf("Execute() key = %q, want %q (params %v)", r.Key, tt.wantKey, r.Params)
			}
			if r.OK() {
				t.Error("error reply reported OK")
			}
			if after := len(f.engine.Triggers()); after != before {
				t.Errorf("triggers changed from %d to %d", before, after)
			}
		})
	}
}

func TestExecute_NotReady(t *testing.T) {
	f := newFixture(t, nil)

	r := f.engine.Execute(context.Background(), Command{Permissions: operator, Name: CmdShow})
	if r.Key != "error.not_ready" {
		t.Errorf("key = %q, want error.not_ready", r.Key)
	}
}

func TestExecute_TriggerLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	ctx := context.Background()

	r := f.engine.Execute(ctx, Command{Caller: "p", Permissions: operator, Name: CmdAdd, Args: []string{"start", "fwd_med", "right"}, Aim: aim(3, 4)})
	if r.Key != "trigger.added" || r.Params["id"] != 1 || r.Params["label"] != "#1 start Fwd_Med Right" {
		t.Fatalf("add = %+v", r)
	}

	r = f.engine.Execute(ctx, Command{Caller: "p", Permissions: operator, Name: CmdUpdate, Args: []string{"#1", "Zero"}})
	if r.Key != "trigger.updated" || r.Params["label"] != "#1 Zero" {
		t.Fatalf("update = %+v", r)
	}
	got, _ := f.engine.Trigger(1)
	if got.StartsAutomation || got.TrackSelection != nil || got.Speed == nil || *got.Speed != rail.Zero {
		t.Errorf("update did not replace options: %+v", got)
	}

	r = f.engine.Execute(ctx, Command{Caller: "p", Permissions: operator, Name: CmdMove, Args: []string{"1"}, Aim: aim(7, 8)})
	if r.Key != "trigger.moved" {
		t.Fatalf("move = %+v", r)
	}
	zone := f.zones.Find(host.ZoneTag{Kind: host.ZoneManual, TriggerID: 1})
	if zone == nil || zone.Shape().Center != (rail.Vector3{X: 7, Z: 8}) {
		t.Errorf("zone not moved: %+v", zone)
	}

	r = f.engine.Execute(ctx, Command{Caller: "p", Permissions: operator, Name: CmdShow})
	if r.Key != "trigger.shown" || r.Params["count"] != 1 {
		t.Errorf("show = %+v", r)
	}

	r = f.engine.Execute(ctx, Command{Caller: "p", Permissions: operator, Name: CmdRemove, Args: []string{"1"}})
	if r.Key != "trigger.removed" || !r.OK() {
		t.Fatalf("remove = %+v", r)
	}
	if len(f.engine.Triggers()) != 0 {
		t.Error("trigger still listed after remove")
	}

	// the freed id is handed out again
	r = f.engine.Execute(ctx, Command{Caller: "p", Permissions: operator, Name: CmdAdd, Aim: aim(0, 0)})
	if r.Params["id"] != 1 {
		t.Errorf("re-added id = %v, want 1", r.Params["id"])
	}
}

func TestExecute_Toggle(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	ctx := context.Background()
	cmd := Command{Caller: "p", Permissions: []string{"system:admin"}, Name: CmdToggle, Vehicle: 2}

	if r := f.engine.Execute(ctx, cmd); r.Key != "automation.enabled" {
		t.Fatalf("first toggle = %+v", r)
	}
	c, ok := f.engine.Automation().Controller(2)
	if !ok {
		t.Fatal("vehicle 2 not automated")
	}
	avatar := c.AvatarID()

	if r := f.engine.Execute(ctx, cmd); r.Key != "automation.disabled" {
		t.Fatalf("second toggle = %+v", r)
	}
	if f.engine.Automation().IsAutomated(2) {
		t.Error("vehicle 2 still automated")
	}
	if f.engine.Automation().Membership().Contains(2) {
		t.Error("vehicle 2 still a member")
	}
	for _, a := range f.avatars.Spawned() {
		if a.ID() == avatar && !a.Destroyed() {
			t.Error("operator avatar not released")
		}
	}
}

func TestExecute_ToggleRefusedUnderBlanketAutomation(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Automation.AutomateAll = true })
	f.start(t)

	r := f.engine.Execute(context.Background(), Command{Permissions: operator, Name: CmdToggle, Vehicle: 1})
	if r.Key != "error.blanket_automation" {
		t.Errorf("key = %q, want error.blanket_automation", r.Key)
	}
	if !f.engine.Automation().IsAutomated(1) {
		t.Error("blanket-automated vehicle was released")
	}
}

func TestExecute_ToggleVetoed(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.Automation().OnVeto(func(v host.Vehicle) bool { return v.ID() == 3 })
	f.start(t)

	r := f.engine.Execute(context.Background(), Command{Permissions: operator, Name: CmdToggle, Vehicle: 3})
	if r.Key != "error.vetoed" {
		t.Errorf("key = %q, want error.vetoed", r.Key)
	}
	if f.engine.Automation().IsAutomated(3) {
		t.Error("vetoed vehicle automated")
	}
}

type memoryAudit struct {
	entries []audit.Entry
	err     error
}

func (m *memoryAudit) Record(_ context.Context, e *audit.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *e)
	return nil
}

func TestExecute_RecordsAudit(t *testing.T) {
	f := newFixture(t, nil)
	rec := &memoryAudit{}
	f.engine.SetAuditor(rec)
	f.start(t)
	ctx := context.Background()

	cmds := []Command{
		{Caller: "Driver", Permissions: operator, Name: CmdAdd, Args: []string{"Zero"}, Aim: aim(3, 3)},
		{Caller: "Driver", Permissions: operator, Name: CmdShow},
		{Caller: "Driver", Permissions: operator, Name: CmdRemove, Args: []string{"42"}},
		{Caller: "Driver", Permissions: operator, Name: CmdToggle, Vehicle: 2},
		{Caller: "Driver", Permissions: operator, Name: CmdRemove, Args: []string{"#1"}},
	}
	for _, c := range cmds {
		f.engine.Execute(ctx, c)
	}

	want := []struct {
		action, subject, id string
	}{
		{CmdAdd, audit.SubjectTrigger, "1"},
		{CmdToggle, audit.SubjectVehicle, "2"},
		{CmdRemove, audit.SubjectTrigger, "1"},
	}
	if len(rec.entries) != len(want) {
		t.Fatalf("entries = %+v, want %d", rec.entries, len(want))
	}
	for i, w := range want {
		e := rec.entries[i]
		if e.Action != w.action || e.Subject != w.subject || e.SubjectID != w.id {
			t.Errorf("entry %d = %+v, want %+v", i, e, w)
		}
		if e.Actor != "Driver" || e.Source != audit.SourceCommand || e.MapID != testMap {
			t.Errorf("entry %d attribution = %+v", i, e)
		}
	}
	if rec.entries[1].Details["automated"] != true {
		t.Errorf("toggle details = %v", rec.entries[1].Details)
	}
}

func TestExecute_AuditFailureKeepsResult(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.SetAuditor(&memoryAudit{err: errors.New("disk full")})
	f.start(t)

	r := f.engine.Execute(context.Background(), Command{Permissions: operator, Name: CmdAdd, Aim: aim(0, 0)})
	if r.Key != "trigger.added" {
		t.Errorf("key = %q, want trigger.added", r.Key)
	}
	if len(f.engine.Triggers()) != 1 {
		t.Error("trigger not kept after audit failure")
	}
}
