// Package host declares the contracts Railrunner needs from the world
// simulation it runs inside. Nothing here is implemented by the core; the
// MQTT bridge (internal/bridge) provides the production implementation and
// tests provide in-memory fakes.
package host

import (
	"time"

	"github.com/nerrad567/railrunner/internal/rail"
)

// EntityID identifies any entity in the host world (vehicle, avatar, zone occupant).
type EntityID uint64

// Landmark is a fixed track marker reported by the world scan.
type Landmark struct {
	Name      string         `json:"name"`
	Transform rail.Transform `json:"transform"`
}

// World exposes static world information.
type World interface {
	// MapID identifies the current map so data can be scoped per world.
	MapID() string

	// StationLandmarks returns every station-like landmark on the track network.
	StationLandmarks() []Landmark
}

// Vehicle is a rail vehicle entity.
type Vehicle interface {
	ID() EntityID
	// Speed is the current signed track speed in host units per second.
	Speed() float64
	Position() rail.Vector3
	SetThrottle(speed rail.EngineSpeed)
	SetTrackSelection(track rail.TrackSelection)
	// SetDamageSuppressed toggles the host's damage resolution for the vehicle.
	SetDamageSuppressed(suppressed bool)
	// SetUnlimitedFuel disables (true) or restores (false) fuel depletion.
	SetUnlimitedFuel(unlimited bool)
	// DismountAll removes every rider from the vehicle.
	DismountAll()
}

// Outfit item worn by an operator avatar.
type OutfitItem struct {
	ShortName string `yaml:"short_name" json:"short_name"`
	Skin      uint64 `yaml:"skin" json:"skin"`
}

// Avatar is the synthetic operator bound to an automated vehicle.
type Avatar interface {
	ID() EntityID
	Dress(outfit []OutfitItem)
	// MountDriver seats the avatar in the vehicle's operator seat.
	MountDriver(vehicle Vehicle) error
	SetDamageSuppressed(suppressed bool)
	Destroy()
}

// AvatarFactory spawns non-persistent avatars.
type AvatarFactory interface {
	SpawnAvatar(position rail.Vector3) (Avatar, error)
}

// Drawer renders debug shapes to a single observer.
type Drawer interface {
	DrawBox(observer string, center rail.Vector3, size rail.Vector3, yaw float64, colour string, duration time.Duration)
	DrawSphere(observer string, center rail.Vector3, radius float64, colour string, duration time.Duration)
	DrawText(observer string, at rail.Vector3, text string, colour string, duration time.Duration)
}
