package automation

import (
	"fmt"
	"time"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
)

// Phase is a controller's position in the station cycle.
type Phase int

const (
	PhaseBetweenStations Phase = iota
	PhaseEnteringStation
	PhaseStoppedAtStation
	PhaseLeavingStation
)

var phaseNames = map[Phase]string{
	PhaseBetweenStations:  "between_stations",
	PhaseEnteringStation:  "entering_station",
	PhaseStoppedAtStation: "stopped_at_station",
	PhaseLeavingStation:   "leaving_station",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Brake heuristic. The brake applies Rev_Lo regardless of actual speed and
// snaps to the target after a fixed delay.
const (
	// brakeSpeedThreshold is the absolute speed above which an arriving
	// vehicle brakes instead of switching straight to Fwd_Med.
	brakeSpeedThreshold = 15.0

	enterBrakeDuration = 1700 * time.Millisecond
	stopBrakeDuration  = 1500 * time.Millisecond
)

// Settings are the automation parameters shared by every controller.
type Settings struct {
	// AutomateAll automates every vehicle and disables toggling.
	AutomateAll bool

	DefaultSpeed   rail.EngineSpeed
	DepartureSpeed rail.EngineSpeed
	DefaultTrack   rail.TrackSelection

	// Dwell is how long a vehicle waits at a station stop or a Zero trigger.
	Dwell time.Duration

	StartDelayMin time.Duration
	StartDelayMax time.Duration

	Outfit []host.OutfitItem
}

// DefaultSettings returns the stock automation parameters.
func DefaultSettings() Settings {
	return Settings{
		DefaultSpeed:   rail.FwdHi,
		DepartureSpeed: rail.FwdMed,
		DefaultTrack:   rail.TrackLeft,
		Dwell:          30 * time.Second,
		StartDelayMin:  time.Second,
		StartDelayMax:  3 * time.Second,
		Outfit:         DefaultOutfit(),
	}
}

// DefaultOutfit is the conductor's hi-vis work clothing.
func DefaultOutfit() []host.OutfitItem {
	return []host.OutfitItem{
		{ShortName: "jumpsuit.suit"},
		{ShortName: "sunglasses03chrome"},
		{ShortName: "hat.boonie", Skin: 2557702256},
	}
}

// Telemetry receives a record of every phase change and speed command.
type Telemetry interface {
	WritePhaseTransition(vehicle uint64, from, to string)
	WriteSpeedCommand(vehicle uint64, speed int, name, reason string)
}

// WSHub is the interface for broadcasting live events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// VehicleSource resolves host vehicles.
type VehicleSource interface {
	Vehicle(id host.EntityID) (host.Vehicle, bool)
	Vehicles() []host.Vehicle
}

// VetoFunc is consulted before a vehicle is automated. Returning true
// blocks automation.
type VetoFunc func(vehicle host.Vehicle) bool

// GrantedFunc is notified after a vehicle has been automated.
type GrantedFunc func(vehicle host.Vehicle)

// Status is a snapshot of one automated vehicle.
type Status struct {
	VehicleID host.EntityID     `json:"vehicle_id"`
	AvatarID  host.EntityID     `json:"avatar_id"`
	Phase     Phase             `json:"phase"`
	Throttle  *rail.EngineSpeed `json:"throttle,omitempty"`

	// PendingSpeed is the brake target still to be applied.
	PendingSpeed *rail.EngineSpeed `json:"pending_speed,omitempty"`
	Triggers     []int             `json:"inside_triggers"`
}

// Reasons attached to speed commands in telemetry.
const (
	ReasonStart     = "start"
	ReasonBrake     = "brake"
	ReasonStation   = "station"
	ReasonDepart    = "depart"
	ReasonResume    = "resume"
	ReasonTrigger   = "trigger"
	ReasonDwellOver = "dwell_over"
)
