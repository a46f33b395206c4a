package host

import (
	"fmt"

	"github.com/nerrad567/railrunner/internal/rail"
)

// ZoneKind tags what a zone represents, so enter/leave events can be
// dispatched by a single handler.
type ZoneKind int

const (
	ZoneManual ZoneKind = iota + 1
	ZoneStationEntry
	ZoneStationStop
)

func (k ZoneKind) String() string {
	switch k {
	case ZoneManual:
		return "manual"
	case ZoneStationEntry:
		return "station_entry"
	case ZoneStationStop:
		return "station_stop"
	default:
		return fmt.Sprintf("ZoneKind(%d)", int(k))
	}
}

// ZoneTag is attached to every zone at creation. Exactly one of TriggerID
// (manual zones) or PlatformID (station zones) is meaningful.
type ZoneTag struct {
	Kind       ZoneKind
	TriggerID  int
	PlatformID int
}

// ShapeKind selects the zone volume.
type ShapeKind string

const (
	ShapeBox    ShapeKind = "box"
	ShapeSphere ShapeKind = "sphere"
)

// Shape describes a zone volume in world space.
type Shape struct {
	Kind   ShapeKind    `json:"kind"`
	Center rail.Vector3 `json:"center"`
	// Size is the full box extent in local axes (box only).
	Size rail.Vector3 `json:"size,omitempty"`
	// Yaw rotates the box around Y (box only).
	Yaw float64 `json:"yaw,omitempty"`
	// Radius applies to spheres.
	Radius float64 `json:"radius,omitempty"`
}

// Zone is a live spatial trigger volume.
type Zone interface {
	Tag() ZoneTag
	Shape() Shape
	// Occupants returns the entities currently inside, as last observed.
	Occupants() []EntityID
	Contains(id EntityID) bool
	// Reshape moves or resizes the zone in place.
	Reshape(shape Shape) error
	Destroy()
}

// ZoneFactory instantiates zones in the host world.
type ZoneFactory interface {
	CreateZone(shape Shape, tag ZoneTag) (Zone, error)
}
