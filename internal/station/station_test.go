package station

import (
	"errors"
	"math"
	"testing"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/host/hosttest"
	"github.com/nerrad567/railrunner/internal/rail"
)

// fakeTrain tracks the station phase the way a controller would.
type fakeTrain struct {
	phase    string
	departed int
	resumed  int
}

func (f *fakeTrain) EnteringStation() bool { return f.phase == "entering" }
func (f *fakeTrain) LeavingStation() bool  { return f.phase == "leaving" }
func (f *fakeTrain) EnterStation()         { f.phase = "entering" }

func (f *fakeTrain) StopAtStation() {
	if f.phase == "stopped" || f.phase == "leaving" {
		return
	}
	f.phase = "stopped"
}

func (f *fakeTrain) DepartStation() bool {
	if f.phase == "leaving" {
		return false
	}
	f.phase = "leaving"
	f.departed++
	return true
}

func (f *fakeTrain) ResumeRunning() {
	f.phase = "between"
	f.resumed++
}

type fleet map[host.EntityID]*fakeTrain

func (f fleet) lookup(id host.EntityID) (Train, bool) {
	t, ok := f[id]
	if !ok {
		return nil, false
	}
	return t, true
}

func landmark(name string, x, z float64) host.Landmark {
	return host.Landmark{Name: name, Transform: rail.Transform{Position: rail.Vector3{X: x, Z: z}}}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDetect_SkipsUnrecognisedLandmarks(t *testing.T) {
	zones := hosttest.NewZoneFactory()
	d := NewDetector(zones, fleet{}.lookup)

	platforms, err := d.Detect([]host.Landmark{
		landmark("fishing-village", 0, 0),
		landmark("assets/bundled/prefabs/autospawn/monument/lighthouse.prefab", 10, 10),
	})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(platforms) != 0 {
		t.Errorf("platforms = %d, want 0", len(platforms))
	}
	if n := len(zones.Live()); n != 0 {
		t.Errorf("zones = %d, want 0", n)
	}
}

func TestDetect_TwoPlatformsPerStation(t *testing.T) {
	zones := hosttest.NewZoneFactory()
	d := NewDetector(zones, fleet{}.lookup)

	platforms, err := d.Detect([]host.Landmark{
		landmark("assets/bundled/prefabs/autospawn/tunnel-station/station-sn-0.prefab", 100, 200),
		landmark("STATION-WE-1", -50, 0),
		landmark("bus-stop", 0, 0),
	})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(platforms) != 4 {
		t.Fatalf("platforms = %d, want 4", len(platforms))
	}
	if n := len(zones.Live()); n != 8 {
		t.Errorf("zones = %d, want 8", n)
	}

	left := platforms[0].Info()
	right := platforms[1].Info()
	if left.Landmark != "station-sn-0" || left.Side != SideLeft || right.Side != SideRight {
		t.Errorf("platform info = %+v / %+v", left, right)
	}

	// Yaw 0: tracks run along Z, mirrored across X.
	if !approx(left.EntryZone.Center.X, 100-trackOffsetX) || !approx(right.EntryZone.Center.X, 100+trackOffsetX) {
		t.Errorf("entry centers X = %v / %v", left.EntryZone.Center.X, right.EntryZone.Center.X)
	}
	if !approx(left.StopZone.Center.Z, 200-stopOffsetZ) || !approx(right.StopZone.Center.Z, 200+stopOffsetZ) {
		t.Errorf("stop centers Z = %v / %v", left.StopZone.Center.Z, right.StopZone.Center.Z)
	}
	if left.EntryZone.Size != entrySize || left.StopZone.Size != stopSize {
		t.Errorf("sizes = %v / %v", left.EntryZone.Size, left.StopZone.Size)
	}

	// Yaw 270 swaps the axes: along-track offset moves X.
	we := platforms[3].Info()
	if !approx(we.StopZone.Center.X, -50-stopOffsetZ) || !approx(we.StopZone.Center.Z, trackOffsetX) {
		t.Errorf("rotated stop center = %v", we.StopZone.Center)
	}
	if we.EntryZone.Yaw != 270 {
		t.Errorf("rotated yaw = %v", we.EntryZone.Yaw)
	}

	p, ok := d.Platform(platforms[2].ID())
	if !ok || p != platforms[2] {
		t.Error("Platform lookup by id failed")
	}
}

func TestDetect_ZoneFailureCleansUp(t *testing.T) {
	zones := hosttest.NewZoneFactory()
	d := NewDetector(zones, fleet{}.lookup)
	if _, err := d.Detect([]host.Landmark{landmark("station-sn-1", 0, 0)}); err != nil {
		t.Fatalf("Detect: %v", err)
	}

	zones.Fail = errors.New("host offline")
	if _, err := d.Detect([]host.Landmark{landmark("station-sn-1", 0, 0)}); err == nil {
		t.Fatal("Detect succeeded without zones")
	}
	if n := len(zones.Live()); n != 0 {
		t.Errorf("zones after failure = %d, want 0", n)
	}
	if len(d.Platforms()) != 0 {
		t.Error("platforms kept after failure")
	}
}

func TestDetector_Destroy(t *testing.T) {
	zones := hosttest.NewZoneFactory()
	d := NewDetector(zones, fleet{}.lookup)
	if _, err := d.Detect([]host.Landmark{landmark("station-we-2", 0, 0)}); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	d.Destroy()
	if n := len(zones.Live()); n != 0 {
		t.Errorf("zones after Destroy = %d, want 0", n)
	}
}

func setupPlatform(t *testing.T, trains fleet) (*Platform, *hosttest.Zone) {
	t.Helper()
	zones := hosttest.NewZoneFactory()
	d := NewDetector(zones, trains.lookup)
	platforms, err := d.Detect([]host.Landmark{landmark("station-sn-0", 0, 0)})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	p := platforms[0]
	return p, zones.Find(host.ZoneTag{Kind: host.ZoneStationEntry, PlatformID: p.ID()})
}

func TestPlatform_ArrivalForcesOccupantOut(t *testing.T) {
	a := &fakeTrain{phase: "between"}
	b := &fakeTrain{phase: "between"}
	trains := fleet{1: a, 2: b}
	p, entry := setupPlatform(t, trains)

	entry.Enter(1)
	if p.OnArrive(1) {
		t.Error("first arrival reported a forced departure")
	}
	p.OnReachStop(1)
	if a.phase != "stopped" {
		t.Fatalf("A phase = %s, want stopped", a.phase)
	}

	entry.Enter(2)
	if !p.OnArrive(2) {
		t.Error("second arrival did not report a forced departure")
	}
	if a.phase != "leaving" {
		t.Errorf("A phase = %s, want leaving", a.phase)
	}
	if b.phase != "entering" {
		t.Errorf("B phase = %s, want entering", b.phase)
	}

	p.OnReachStop(2)
	if b.phase != "stopped" || a.phase != "leaving" {
		t.Errorf("phases after B stops = A %s, B %s", a.phase, b.phase)
	}
}

func TestPlatform_ArrivalIsIdempotent(t *testing.T) {
	a := &fakeTrain{phase: "stopped"}
	b := &fakeTrain{phase: "between"}
	p, entry := setupPlatform(t, fleet{1: a, 2: b})
	entry.Enter(1)
	entry.Enter(2)

	p.OnArrive(2)
	a.phase = "stopped" // re-stopped by some later event
	if p.OnArrive(2) {
		t.Error("repeated arrival forced a departure")
	}
	if a.departed != 1 {
		t.Errorf("A departures = %d, want 1", a.departed)
	}
}

func TestPlatform_LeavingOccupantNotForcedAgain(t *testing.T) {
	a := &fakeTrain{phase: "leaving"}
	b := &fakeTrain{phase: "between"}
	p, entry := setupPlatform(t, fleet{1: a, 2: b})
	entry.Enter(1)
	entry.Enter(2)

	if p.OnArrive(2) {
		t.Error("leaving occupant counted as forced")
	}
	if a.departed != 0 {
		t.Errorf("A departures = %d, want 0", a.departed)
	}
}

func TestPlatform_IgnoresManualVehicles(t *testing.T) {
	b := &fakeTrain{phase: "between"}
	p, entry := setupPlatform(t, fleet{2: b})
	entry.Enter(7) // not automated
	entry.Enter(2)

	if p.OnArrive(2) {
		t.Error("manual vehicle counted as forced")
	}
	p.OnArrive(7)
	p.OnReachStop(7)
	p.OnDepart(7)
}

func TestPlatform_DepartResumes(t *testing.T) {
	a := &fakeTrain{phase: "leaving"}
	p, _ := setupPlatform(t, fleet{1: a})
	p.OnDepart(1)
	if a.phase != "between" || a.resumed != 1 {
		t.Errorf("after depart: phase %s, resumed %d", a.phase, a.resumed)
	}
}

func TestCanonicalName(t *testing.T) {
	tests := map[string]string{
		"station-sn-3": "station-sn-3",
		"assets/bundled/prefabs/autospawn/tunnel-station/station-we-0.prefab": "station-we-0",
		`assets\bundled\station-SN-1.prefab`:                                   "station-sn-1",
		"  Station-We-2 ":                                                       "station-we-2",
	}
	for in, want := range tests {
		if got := CanonicalName(in); got != want {
			t.Errorf("CanonicalName(%q) = %q, want %q", in, got, want)
		}
		if _, ok := Orientation(in); !ok {
			t.Errorf("Orientation(%q) not found", in)
		}
	}
}
