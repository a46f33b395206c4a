package station

import (
	"path"
	"strings"

	"github.com/nerrad567/railrunner/internal/rail"
)

// orientations maps canonical landmark names to the yaw, in degrees, of the
// station's track axis. The landmark's own rotation is not trusted.
var orientations = map[string]float64{
	"station-sn-0": 0,
	"station-sn-1": 180,
	"station-sn-2": 0,
	"station-sn-3": 180,
	"station-we-0": 90,
	"station-we-1": 270,
	"station-we-2": 90,
	"station-we-3": 270,
}

// Platform geometry in station-local coordinates. X is across the tracks,
// Z along them.
const (
	trackOffsetX = 4.5
	zoneHeightY  = 1.5
	stopOffsetZ  = 18.0
)

var (
	entrySize = rail.Vector3{X: 1.5, Y: 3, Z: 100}
	stopSize  = rail.Vector3{X: 1.5, Y: 3, Z: 1}
)

// Side identifies one of the two mirrored platforms of a station.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// sign mirrors local offsets for the right-hand platform.
func (s Side) sign() float64 {
	if s == SideRight {
		return 1
	}
	return -1
}

// CanonicalName reduces a landmark name or prefab path to its short name,
// e.g. "assets/.../station-sn-2.prefab" becomes "station-sn-2".
func CanonicalName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if dot := strings.IndexByte(base, '.'); dot >= 0 {
		base = base[:dot]
	}
	return strings.ToLower(base)
}

// Orientation returns the track yaw for a landmark name.
func Orientation(name string) (float64, bool) {
	yaw, ok := orientations[CanonicalName(name)]
	return yaw, ok
}

// geometry is the world-space placement of one platform's zones.
type geometry struct {
	entryCenter rail.Vector3
	stopCenter  rail.Vector3
	yaw         float64
}

func platformGeometry(origin rail.Vector3, yaw float64, side Side) geometry {
	t := rail.Transform{Position: origin, Yaw: yaw}
	s := side.sign()
	return geometry{
		entryCenter: t.Point(rail.Vector3{X: s * trackOffsetX, Y: zoneHeightY}),
		stopCenter:  t.Point(rail.Vector3{X: s * trackOffsetX, Y: zoneHeightY, Z: s * stopOffsetZ}),
		yaw:         t.Yaw,
	}
}
