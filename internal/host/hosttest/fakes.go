// Package hosttest provides in-memory host collaborators for tests.
package hosttest

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
)

// Vehicle is a recording host.Vehicle.
type Vehicle struct {
	mu               sync.Mutex
	id               host.EntityID
	speed            float64
	position         rail.Vector3
	throttles        []rail.EngineSpeed
	tracks           []rail.TrackSelection
	damageSuppressed bool
	unlimitedFuel    bool
	dismounts        int
}

// NewVehicle creates a stationary vehicle at the origin.
func NewVehicle(id host.EntityID) *Vehicle {
	return &Vehicle{id: id}
}

func (v *Vehicle) ID() host.EntityID { return v.id }

func (v *Vehicle) Speed() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.speed
}

// SetSpeed sets the reported physical speed.
func (v *Vehicle) SetSpeed(speed float64) {
	v.mu.Lock()
	v.speed = speed
	v.mu.Unlock()
}

func (v *Vehicle) Position() rail.Vector3 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position
}

// SetPosition sets the reported position.
func (v *Vehicle) SetPosition(p rail.Vector3) {
	v.mu.Lock()
	v.position = p
	v.mu.Unlock()
}

func (v *Vehicle) SetThrottle(speed rail.EngineSpeed) {
	v.mu.Lock()
	v.throttles = append(v.throttles, speed)
	v.mu.Unlock()
}

func (v *Vehicle) SetTrackSelection(track rail.TrackSelection) {
	v.mu.Lock()
	v.tracks = append(v.tracks, track)
	v.mu.Unlock()
}

func (v *Vehicle) SetDamageSuppressed(suppressed bool) {
	v.mu.Lock()
	v.damageSuppressed = suppressed
	v.mu.Unlock()
}

func (v *Vehicle) SetUnlimitedFuel(unlimited bool) {
	v.mu.Lock()
	v.unlimitedFuel = unlimited
	v.mu.Unlock()
}

func (v *Vehicle) DismountAll() {
	v.mu.Lock()
	v.dismounts++
	v.mu.Unlock()
}

// Throttles returns every throttle command in order.
func (v *Vehicle) Throttles() []rail.EngineSpeed {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]rail.EngineSpeed, len(v.throttles))
	copy(out, v.throttles)
	return out
}

// Throttle returns the last throttle command and whether one was issued.
func (v *Vehicle) Throttle() (rail.EngineSpeed, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.throttles) == 0 {
		return rail.Zero, false
	}
	return v.throttles[len(v.throttles)-1], true
}

// Tracks returns every branch command in order.
func (v *Vehicle) Tracks() []rail.TrackSelection {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]rail.TrackSelection, len(v.tracks))
	copy(out, v.tracks)
	return out
}

func (v *Vehicle) DamageSuppressed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.damageSuppressed
}

func (v *Vehicle) UnlimitedFuel() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.unlimitedFuel
}

func (v *Vehicle) Dismounts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dismounts
}

// Avatar is a recording host.Avatar.
type Avatar struct {
	mu               sync.Mutex
	id               host.EntityID
	position         rail.Vector3
	outfit           []host.OutfitItem
	mounted          host.Vehicle
	damageSuppressed bool
	destroyed        bool
}

func (a *Avatar) ID() host.EntityID { return a.id }

func (a *Avatar) Dress(outfit []host.OutfitItem) {
	a.mu.Lock()
	a.outfit = append([]host.OutfitItem(nil), outfit...)
	a.mu.Unlock()
}

func (a *Avatar) MountDriver(vehicle host.Vehicle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return errors.New("avatar destroyed")
	}
	a.mounted = vehicle
	return nil
}

func (a *Avatar) SetDamageSuppressed(suppressed bool) {
	a.mu.Lock()
	a.damageSuppressed = suppressed
	a.mu.Unlock()
}

func (a *Avatar) Destroy() {
	a.mu.Lock()
	a.destroyed = true
	a.mounted = nil
	a.mu.Unlock()
}

func (a *Avatar) Destroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}

func (a *Avatar) Mounted() host.Vehicle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mounted
}

func (a *Avatar) Outfit() []host.OutfitItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]host.OutfitItem(nil), a.outfit...)
}

func (a *Avatar) DamageSuppressed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.damageSuppressed
}

// AvatarFactory spawns recording avatars with ids starting at 10000.
type AvatarFactory struct {
	mu      sync.Mutex
	nextID  host.EntityID
	spawned []*Avatar
	Fail    error
}

func NewAvatarFactory() *AvatarFactory {
	return &AvatarFactory{nextID: 10000}
}

func (f *AvatarFactory) SpawnAvatar(position rail.Vector3) (host.Avatar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return nil, f.Fail
	}
	f.nextID++
	a := &Avatar{id: f.nextID, position: position}
	f.spawned = append(f.spawned, a)
	return a, nil
}

// Spawned returns every avatar spawned so far.
func (f *AvatarFactory) Spawned() []*Avatar {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Avatar(nil), f.spawned...)
}

// Zone is an in-memory host.Zone whose occupancy is driven by the test.
type Zone struct {
	mu        sync.Mutex
	tag       host.ZoneTag
	shape     host.Shape
	occupants map[host.EntityID]struct{}
	destroyed bool
}

func (z *Zone) Tag() host.ZoneTag { return z.tag }

func (z *Zone) Shape() host.Shape {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.shape
}

func (z *Zone) Occupants() []host.EntityID {
	z.mu.Lock()
	defer z.mu.Unlock()
	ids := make([]host.EntityID, 0, len(z.occupants))
	for id := range z.occupants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (z *Zone) Contains(id host.EntityID) bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	_, ok := z.occupants[id]
	return ok
}

func (z *Zone) Reshape(shape host.Shape) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.destroyed {
		return errors.New("zone destroyed")
	}
	z.shape = shape
	return nil
}

func (z *Zone) Destroy() {
	z.mu.Lock()
	z.destroyed = true
	z.occupants = map[host.EntityID]struct{}{}
	z.mu.Unlock()
}

// Enter marks id as inside the zone.
func (z *Zone) Enter(id host.EntityID) {
	z.mu.Lock()
	z.occupants[id] = struct{}{}
	z.mu.Unlock()
}

// Leave marks id as outside the zone.
func (z *Zone) Leave(id host.EntityID) {
	z.mu.Lock()
	delete(z.occupants, id)
	z.mu.Unlock()
}

func (z *Zone) Destroyed() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.destroyed
}

// ZoneFactory records every zone it creates.
type ZoneFactory struct {
	mu    sync.Mutex
	zones []*Zone
	Fail  error
}

func NewZoneFactory() *ZoneFactory {
	return &ZoneFactory{}
}

func (f *ZoneFactory) CreateZone(shape host.Shape, tag host.ZoneTag) (host.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return nil, f.Fail
	}
	z := &Zone{tag: tag, shape: shape, occupants: map[host.EntityID]struct{}{}}
	f.zones = append(f.zones, z)
	return z, nil
}

// Live returns zones that have not been destroyed.
func (f *ZoneFactory) Live() []*Zone {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Zone
	for _, z := range f.zones {
		if !z.Destroyed() {
			out = append(out, z)
		}
	}
	return out
}

// Find returns the live zone carrying tag.
func (f *ZoneFactory) Find(tag host.ZoneTag) *Zone {
	for _, z := range f.Live() {
		if z.tag == tag {
			return z
		}
	}
	return nil
}

// World is a static host.World.
type World struct {
	Map       string
	Landmarks []host.Landmark
}

func (w *World) MapID() string                     { return w.Map }
func (w *World) StationLandmarks() []host.Landmark { return w.Landmarks }

// DrawCall records one Drawer invocation.
type DrawCall struct {
	Observer string
	Kind     string
	Text     string
	Duration time.Duration
}

// Drawer records draw calls.
type Drawer struct {
	mu    sync.Mutex
	calls []DrawCall
}

func (d *Drawer) DrawBox(observer string, _ rail.Vector3, _ rail.Vector3, _ float64, _ string, duration time.Duration) {
	d.record(DrawCall{Observer: observer, Kind: "box", Duration: duration})
}

func (d *Drawer) DrawSphere(observer string, _ rail.Vector3, _ float64, _ string, duration time.Duration) {
	d.record(DrawCall{Observer: observer, Kind: "sphere", Duration: duration})
}

func (d *Drawer) DrawText(observer string, _ rail.Vector3, text string, _ string, duration time.Duration) {
	d.record(DrawCall{Observer: observer, Kind: "text", Text: text, Duration: duration})
}

func (d *Drawer) record(c DrawCall) {
	d.mu.Lock()
	d.calls = append(d.calls, c)
	d.mu.Unlock()
}

// Calls returns every recorded call for observer.
func (d *Drawer) Calls(observer string) []DrawCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []DrawCall
	for _, c := range d.calls {
		if c.Observer == observer {
			out = append(out, c)
		}
	}
	return out
}
