package bridge

import (
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/infrastructure/mqtt"
	"github.com/nerrad567/railrunner/internal/rail"
)

// vehicle is the proxy of a host vehicle. Reads return the state last
// reported by the host; writes become commands.
type vehicle struct {
	b        *Bridge
	id       host.EntityID
	speed    float64
	position rail.Vector3
}

func newVehicle(b *Bridge, s VehicleState) *vehicle {
	return &vehicle{b: b, id: s.ID, speed: s.Speed, position: s.Position}
}

func (v *vehicle) update(s VehicleState) {
	v.speed = s.Speed
	v.position = s.Position
}

func (v *vehicle) ID() host.EntityID      { return v.id }
func (v *vehicle) Speed() float64         { return v.speed }
func (v *vehicle) Position() rail.Vector3 { return v.position }

func (v *vehicle) SetThrottle(speed rail.EngineSpeed) {
	v.b.sendAsync(mqtt.CommandThrottle, entityTarget(v.id), map[string]any{
		"speed": speed.String(),
		"value": int(speed),
	})
}

func (v *vehicle) SetTrackSelection(track rail.TrackSelection) {
	v.b.sendAsync(mqtt.CommandTrack, entityTarget(v.id), map[string]any{"selection": track.String()})
}

func (v *vehicle) SetDamageSuppressed(suppressed bool) {
	v.b.sendAsync(mqtt.CommandDamage, entityTarget(v.id), map[string]any{"suppressed": suppressed})
}

func (v *vehicle) SetUnlimitedFuel(unlimited bool) {
	v.b.sendAsync(mqtt.CommandFuel, entityTarget(v.id), map[string]any{"unlimited": unlimited})
}

func (v *vehicle) DismountAll() {
	v.b.sendAsync(mqtt.CommandDismount, entityTarget(v.id), nil)
}
