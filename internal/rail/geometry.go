package rail

import (
	"fmt"
	"math"
)

// Vector3 is a point or offset in world space. Y is up.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v+o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v-o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Length returns the Euclidean length of v.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Distance returns the distance between two points.
func (v Vector3) Distance(o Vector3) float64 {
	return v.Sub(o).Length()
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

// Transform places local offsets in world space. Rotation is limited to yaw
// (degrees clockwise around Y), which is all track landmarks use.
type Transform struct {
	Position Vector3 `json:"position"`
	Yaw      float64 `json:"yaw"`
}

// Point converts a local offset into a world position.
func (t Transform) Point(local Vector3) Vector3 {
	return t.Position.Add(t.Direction(local))
}

// Direction rotates a local vector by the transform's yaw without translating it.
func (t Transform) Direction(local Vector3) Vector3 {
	rad := t.Yaw * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Vector3{
		X: local.X*cos + local.Z*sin,
		Y: local.Y,
		Z: -local.X*sin + local.Z*cos,
	}
}

// Rotated returns a copy of t with extra yaw applied.
func (t Transform) Rotated(degrees float64) Transform {
	yaw := math.Mod(t.Yaw+degrees, 360)
	if yaw < 0 {
		yaw += 360
	}
	return Transform{Position: t.Position, Yaw: yaw}
}
