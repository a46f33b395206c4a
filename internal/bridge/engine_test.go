package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nerrad567/railrunner/internal/automation"
	"github.com/nerrad567/railrunner/internal/engine"
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/infrastructure/datafile"
	"github.com/nerrad567/railrunner/internal/infrastructure/mqtt"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/internal/scheduler"
	"github.com/nerrad567/railrunner/internal/trigger"
)

// TestEngineOverBridge drives a real engine entirely through host messages.
func TestEngineOverBridge(t *testing.T) {
	b, client := newTestBridge(t)
	ctx := context.Background()

	files, err := datafile.Open(t.TempDir())
	if err != nil {
		t.Fatalf("datafile.Open: %v", err)
	}
	eng, err := engine.New(engine.Config{StationDetection: true, Automation: automation.DefaultSettings()}, engine.Deps{
		World:     b,
		Vehicles:  b,
		Zones:     b,
		Avatars:   b,
		Drawer:    b,
		Scheduler: scheduler.NewTickScheduler(),
		Triggers:  trigger.NewFileRepository(files),
		Members:   automation.NewFileMembershipRepository(files),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	b.SetHandler(eng)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deliver(t, b, mqtt.EventWorldReady, WorldReadyEvent{
		MapID: "procedural-4000-1337",
		Landmarks: []host.Landmark{
			{Name: "assets/bundled/prefabs/autospawn/tunnel-station/station-sn-0.prefab"},
		},
		Vehicles: []VehicleState{{ID: 7}},
	})
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("engine Start: %v", err)
	}

	platforms := len(eng.Stations())
	if platforms == 0 {
		t.Fatal("no platforms detected")
	}
	if n := len(commands(t, b, client, mqtt.CommandZoneCreate)); n != 2*platforms {
		t.Errorf("zone_create commands = %d, want %d", n, 2*platforms)
	}

	aim := rail.Vector3{X: 100, Z: 50}
	deliver(t, b, mqtt.EventCommand, CommandEvent{
		RequestID: "add-1",
		Command: engine.Command{
			Caller:      "p1",
			Permissions: []string{"trigger:manage"},
			Name:        engine.CmdAdd,
			Aim:         &aim,
		},
	})
	deliver(t, b, mqtt.EventCommand, CommandEvent{
		RequestID: "toggle-1",
		Command: engine.Command{
			Caller:      "p1",
			Permissions: []string{"automation:toggle"},
			Name:        engine.CmdToggle,
			Vehicle:     7,
		},
	})

	replies := map[string]ReplyMessage{}
	b.flush()
	for _, p := range client.published {
		if p.topic != "rr/host/command/reply/p1" {
			continue
		}
		var r ReplyMessage
		if err := json.Unmarshal(p.payload, &r); err != nil {
			t.Fatalf("decoding reply: %v", err)
		}
		replies[r.RequestID] = r
	}
	if replies["add-1"].Key != "trigger.added" {
		t.Errorf("add reply = %+v", replies["add-1"])
	}
	if replies["toggle-1"].Key != "automation.enabled" {
		t.Errorf("toggle reply = %+v", replies["toggle-1"])
	}

	if n := len(commands(t, b, client, mqtt.CommandZoneCreate)); n != 2*platforms+1 {
		t.Errorf("zone_create after add = %d, want %d", n, 2*platforms+1)
	}
	if n := len(commands(t, b, client, mqtt.CommandAvatarSpawn)); n != 1 {
		t.Errorf("avatar_spawn commands = %d, want 1", n)
	}
	if !eng.Automation().IsAutomated(7) {
		t.Error("vehicle 7 not automated")
	}

	eng.Stop()
	if n := len(commands(t, b, client, mqtt.CommandAvatarDestroy)); n != 1 {
		t.Errorf("avatar_destroy after stop = %d, want 1", n)
	}
	if len(b.zones) != 0 {
		t.Errorf("zones after stop = %d, want 0", len(b.zones))
	}
}
