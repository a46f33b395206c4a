package station

import (
	"fmt"

	"github.com/nerrad567/railrunner/internal/host"
)

// Logger defines the logging interface used by the Detector and platforms.
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

// Detector builds platforms from the world's station landmarks and owns
// their zones until Destroy.
type Detector struct {
	zones     host.ZoneFactory
	lookup    Lookup
	logger    Logger
	platforms []*Platform
	byID      map[int]*Platform
}

// NewDetector creates a detector. lookup resolves automated vehicles for
// the platforms it creates.
func NewDetector(zones host.ZoneFactory, lookup Lookup) *Detector {
	return &Detector{
		zones:  zones,
		lookup: lookup,
		logger: noopLogger{},
		byID:   make(map[int]*Platform),
	}
}

// SetLogger sets the logger for the detector and its platforms.
func (d *Detector) SetLogger(logger Logger) {
	d.logger = logger
}

// Detect creates two platforms for every recognised landmark. Landmarks
// with unknown names are skipped. Platforms from an earlier call are
// destroyed first. If a zone cannot be created every zone made by this
// call is destroyed and the error returned.
func (d *Detector) Detect(landmarks []host.Landmark) ([]*Platform, error) {
	d.Destroy()

	skipped := 0
	for _, lm := range landmarks {
		yaw, ok := Orientation(lm.Name)
		if !ok {
			skipped++
			d.logger.Debug("skipping landmark", "name", lm.Name)
			continue
		}
		for _, side := range []Side{SideLeft, SideRight} {
			p, err := d.build(CanonicalName(lm.Name), side, platformGeometry(lm.Transform.Position, yaw, side))
			if err != nil {
				d.Destroy()
				return nil, fmt.Errorf("building %s platform for %s: %w", side, lm.Name, err)
			}
			d.platforms = append(d.platforms, p)
			d.byID[p.id] = p
		}
	}

	d.logger.Info("stations detected",
		"platforms", len(d.platforms), "landmarks", len(landmarks), "skipped", skipped)
	return d.Platforms(), nil
}

func (d *Detector) build(name string, side Side, g geometry) (*Platform, error) {
	id := len(d.platforms) + 1
	entry, err := d.zones.CreateZone(host.Shape{
		Kind:   host.ShapeBox,
		Center: g.entryCenter,
		Size:   entrySize,
		Yaw:    g.yaw,
	}, host.ZoneTag{Kind: host.ZoneStationEntry, PlatformID: id})
	if err != nil {
		return nil, fmt.Errorf("entry zone: %w", err)
	}
	stop, err := d.zones.CreateZone(host.Shape{
		Kind:   host.ShapeBox,
		Center: g.stopCenter,
		Size:   stopSize,
		Yaw:    g.yaw,
	}, host.ZoneTag{Kind: host.ZoneStationStop, PlatformID: id})
	if err != nil {
		entry.Destroy()
		return nil, fmt.Errorf("stop zone: %w", err)
	}
	return &Platform{
		id:       id,
		landmark: name,
		side:     side,
		entry:    entry,
		stop:     stop,
		lookup:   d.lookup,
		logger:   d.logger,
	}, nil
}

// Platform returns the platform with the given id.
func (d *Detector) Platform(id int) (*Platform, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// Platforms returns every detected platform in creation order.
func (d *Detector) Platforms() []*Platform {
	return append([]*Platform(nil), d.platforms...)
}

// InsideAny reports whether vehicle is inside any platform's entry zone.
func (d *Detector) InsideAny(vehicle host.EntityID) bool {
	for _, p := range d.platforms {
		if p.Contains(vehicle) {
			return true
		}
	}
	return false
}

// Destroy removes every zone created by Detect.
func (d *Detector) Destroy() {
	for _, p := range d.platforms {
		p.destroy()
	}
	d.platforms = nil
	d.byID = make(map[int]*Platform)
}
