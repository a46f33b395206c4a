package station

import (
	"time"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
)

// Train is the station-facing side of an automated vehicle's controller.
type Train interface {
	EnteringStation() bool
	LeavingStation() bool

	// EnterStation begins braking for the platform.
	EnterStation()
	// StopAtStation brakes to a stop and starts the dwell timer.
	StopAtStation()
	// DepartStation starts leaving. It reports false when already leaving.
	DepartStation() bool
	// ResumeRunning returns to the default running speed.
	ResumeRunning()
}

// Lookup resolves the controller of an automated vehicle.
type Lookup func(vehicle host.EntityID) (Train, bool)

// Platform is one track of a station with its entry and stop zones.
// Geometry is fixed at creation; only occupancy changes.
type Platform struct {
	id       int
	landmark string
	side     Side
	entry    host.Zone
	stop     host.Zone
	lookup   Lookup
	logger   Logger
}

// Info is a read-only summary of a platform.
type Info struct {
	ID        int             `json:"id"`
	Landmark  string          `json:"landmark"`
	Side      Side            `json:"side"`
	EntryZone host.Shape      `json:"entry_zone"`
	StopZone  host.Shape      `json:"stop_zone"`
	Occupants []host.EntityID `json:"occupants"`
}

// ID returns the platform id used in zone tags.
func (p *Platform) ID() int {
	return p.id
}

// Info returns a summary of the platform.
func (p *Platform) Info() Info {
	return Info{
		ID:        p.id,
		Landmark:  p.landmark,
		Side:      p.side,
		EntryZone: p.entry.Shape(),
		StopZone:  p.stop.Shape(),
		Occupants: p.entry.Occupants(),
	}
}

// Contains reports whether vehicle is inside the platform's entry zone.
func (p *Platform) Contains(vehicle host.EntityID) bool {
	return p.entry.Contains(vehicle)
}

// OnArrive handles a vehicle entering the entry zone. Every other occupant
// that is not already leaving is forced to depart. The result reports
// whether any departure was forced.
func (p *Platform) OnArrive(vehicle host.EntityID) bool {
	train, ok := p.lookup(vehicle)
	if !ok || train.EnteringStation() {
		return false
	}
	train.EnterStation()

	forced := false
	for _, id := range p.entry.Occupants() {
		if id == vehicle {
			continue
		}
		other, ok := p.lookup(id)
		if !ok || other.LeavingStation() {
			continue
		}
		if other.DepartStation() {
			forced = true
			p.logger.Info("forced departure for arriving vehicle",
				"platform", p.id, "vehicle", id, "arriving", vehicle)
		}
	}
	return forced
}

// OnReachStop handles a vehicle entering the stop zone.
func (p *Platform) OnReachStop(vehicle host.EntityID) {
	if train, ok := p.lookup(vehicle); ok {
		train.StopAtStation()
	}
}

// OnDepart handles a vehicle leaving the entry zone.
func (p *Platform) OnDepart(vehicle host.EntityID) {
	if train, ok := p.lookup(vehicle); ok {
		train.ResumeRunning()
	}
}

// Draw renders both zones to observer.
func (p *Platform) Draw(d host.Drawer, observer string, colour string, duration time.Duration) {
	for _, z := range []host.Zone{p.entry, p.stop} {
		s := z.Shape()
		d.DrawBox(observer, s.Center, s.Size, s.Yaw, colour, duration)
	}
	label := p.landmark + " " + string(p.side)
	d.DrawText(observer, p.stop.Shape().Center.Add(rail.Vector3{Y: 2}), label, colour, duration)
}

func (p *Platform) destroy() {
	p.entry.Destroy()
	p.stop.Destroy()
}
