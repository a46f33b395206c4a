package automation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/internal/scheduler"
)

// listener is told about controller changes. The Manager implements it.
type listener interface {
	phaseChanged(c *Controller, from, to Phase)
	speedCommanded(c *Controller, speed rail.EngineSpeed, reason string)
}

type noopListener struct{}

func (noopListener) phaseChanged(*Controller, Phase, Phase)               {}
func (noopListener) speedCommanded(*Controller, rail.EngineSpeed, string) {}

// Controller drives one automated vehicle.
//
// Every delayed action holds its own handle and cancels it before it is
// replaced. The station dwell and the trigger dwell are separate handles
// but scheduling either cancels both, so the latest schedule wins.
type Controller struct {
	vehicle  host.Vehicle
	avatar   host.Avatar
	settings Settings
	sched    scheduler.Scheduler
	events   listener
	logger   Logger

	phase    Phase
	throttle *rail.EngineSpeed
	pending  *rail.EngineSpeed
	inside   map[int]struct{}

	startTimer   *scheduler.Timer
	brakeTimer   *scheduler.Timer
	stationDwell *scheduler.Timer
	triggerDwell *scheduler.Timer

	destroyed bool
}

// newController binds an operator avatar to vehicle. On error nothing is
// left behind in the host.
func newController(vehicle host.Vehicle, avatars host.AvatarFactory, settings Settings, sched scheduler.Scheduler, events listener, logger Logger) (*Controller, error) {
	avatar, err := avatars.SpawnAvatar(vehicle.Position())
	if err != nil {
		return nil, fmt.Errorf("%w: spawning: %w", ErrAvatarUnavailable, err)
	}

	vehicle.DismountAll()
	avatar.Dress(settings.Outfit)
	if err := avatar.MountDriver(vehicle); err != nil {
		avatar.Destroy()
		return nil, fmt.Errorf("%w: mounting: %w", ErrAvatarUnavailable, err)
	}
	avatar.SetDamageSuppressed(true)
	vehicle.SetDamageSuppressed(true)
	vehicle.SetUnlimitedFuel(true)

	if events == nil {
		events = noopListener{}
	}
	return &Controller{
		vehicle:  vehicle,
		avatar:   avatar,
		settings: settings,
		sched:    sched,
		events:   events,
		logger:   logger,
		phase:    PhaseBetweenStations,
		inside:   make(map[int]struct{}),
	}, nil
}

// VehicleID returns the id of the controlled vehicle.
func (c *Controller) VehicleID() host.EntityID {
	return c.vehicle.ID()
}

// AvatarID returns the id of the operator avatar.
func (c *Controller) AvatarID() host.EntityID {
	return c.avatar.ID()
}

// Phase returns the current station phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	s := Status{
		VehicleID: c.vehicle.ID(),
		AvatarID:  c.avatar.ID(),
		Phase:     c.phase,
		Triggers:  make([]int, 0, len(c.inside)),
	}
	if c.throttle != nil {
		t := *c.throttle
		s.Throttle = &t
	}
	if c.pending != nil {
		p := *c.pending
		s.PendingSpeed = &p
	}
	for id := range c.inside {
		s.Triggers = append(s.Triggers, id)
	}
	sort.Ints(s.Triggers)
	return s
}

// Start begins running after delay. A vehicle starting inside a station
// leaves it at departure speed; otherwise it runs at the default speed.
func (c *Controller) Start(delay time.Duration, insideStation bool) {
	c.startTimer.Cancel()
	c.startTimer = c.sched.Schedule(delay, func() {
		c.startTimer = nil
		if c.destroyed {
			return
		}
		c.vehicle.SetTrackSelection(c.settings.DefaultTrack)
		if insideStation {
			c.DepartStation()
			return
		}
		c.applySpeed(c.settings.DefaultSpeed, ReasonStart)
	})
}

// StartAtTrigger begins running at once with a trigger's command. The
// vehicle counts as inside the trigger until it leaves.
func (c *Controller) StartAtTrigger(triggerID int, cmd rail.Command) {
	c.startTimer.Cancel()
	c.inside[triggerID] = struct{}{}

	if cmd.Track == nil {
		c.vehicle.SetTrackSelection(c.settings.DefaultTrack)
	}
	if cmd.Speed == nil {
		c.applySpeed(c.settings.DefaultSpeed, ReasonStart)
	}
	c.applyCommand(cmd)
}

// EnteringStation implements station.Train.
func (c *Controller) EnteringStation() bool {
	return c.phase == PhaseEnteringStation
}

// LeavingStation implements station.Train.
func (c *Controller) LeavingStation() bool {
	return c.phase == PhaseLeavingStation
}

// EnterStation slows the vehicle for a platform. Fast vehicles brake to
// Fwd_Med; slow ones switch to it directly.
func (c *Controller) EnterStation() {
	if c.phase == PhaseEnteringStation {
		return
	}
	c.setPhase(PhaseEnteringStation)
	if math.Abs(c.vehicle.Speed()) > brakeSpeedThreshold {
		c.BrakeToSpeed(rail.FwdMed, enterBrakeDuration)
		return
	}
	c.applySpeed(rail.FwdMed, ReasonStation)
}

// StopAtStation brakes to a halt and schedules departure after the dwell.
func (c *Controller) StopAtStation() {
	if c.phase == PhaseStoppedAtStation || c.phase == PhaseLeavingStation {
		return
	}
	c.setPhase(PhaseStoppedAtStation)
	c.BrakeToSpeed(rail.Zero, stopBrakeDuration)
	c.scheduleSpeedChange(&c.stationDwell, func() {
		c.DepartStation()
	})
}

// DepartStation starts leaving at departure speed. It returns false when
// the vehicle was already leaving.
func (c *Controller) DepartStation() bool {
	if c.phase == PhaseLeavingStation {
		return false
	}
	c.stationDwell.Cancel()
	c.stationDwell = nil
	c.setPhase(PhaseLeavingStation)
	c.applySpeed(c.settings.DepartureSpeed, ReasonDepart)
	return true
}

// ResumeRunning returns to the default speed between stations.
func (c *Controller) ResumeRunning() {
	c.setPhase(PhaseBetweenStations)
	c.applySpeed(c.settings.DefaultSpeed, ReasonResume)
}

// EnterTrigger applies a manual trigger's command. It returns false, and
// does nothing, when the vehicle is still inside that trigger.
func (c *Controller) EnterTrigger(triggerID int, cmd rail.Command) bool {
	if _, ok := c.inside[triggerID]; ok {
		return false
	}
	c.inside[triggerID] = struct{}{}
	c.applyCommand(cmd)
	return true
}

// LeaveTrigger clears the inside mark for triggerID.
func (c *Controller) LeaveTrigger(triggerID int) {
	delete(c.inside, triggerID)
}

// BrakeToSpeed applies Rev_Lo now and target after d. A newer brake or
// speed command cancels the pending target.
func (c *Controller) BrakeToSpeed(target rail.EngineSpeed, d time.Duration) {
	c.brakeTimer.Cancel()
	c.setThrottle(rail.RevLo, ReasonBrake)
	c.pending = &target
	c.brakeTimer = c.sched.Schedule(d, func() {
		c.brakeTimer = nil
		c.pending = nil
		if c.destroyed {
			return
		}
		c.setThrottle(target, ReasonBrake)
	})
}

// applyCommand applies a trigger's branch and speed. A Zero speed starts
// the trigger dwell; any other speed cancels a pending trigger dwell.
func (c *Controller) applyCommand(cmd rail.Command) {
	if cmd.Track != nil {
		c.vehicle.SetTrackSelection(*cmd.Track)
	}
	if cmd.Speed == nil {
		return
	}
	c.applySpeed(*cmd.Speed, ReasonTrigger)
	if *cmd.Speed == rail.Zero {
		c.scheduleSpeedChange(&c.triggerDwell, func() {
			c.applySpeed(c.settings.DepartureSpeed, ReasonDwellOver)
		})
		return
	}
	c.triggerDwell.Cancel()
	c.triggerDwell = nil
}

// scheduleSpeedChange runs fn after the dwell, storing the handle in slot.
// Any pending dwell in either slot is cancelled first.
func (c *Controller) scheduleSpeedChange(slot **scheduler.Timer, fn func()) {
	c.stationDwell.Cancel()
	c.triggerDwell.Cancel()
	c.stationDwell, c.triggerDwell = nil, nil

	var timer *scheduler.Timer
	timer = c.sched.Schedule(c.settings.Dwell, func() {
		if *slot == timer {
			*slot = nil
		}
		if c.destroyed {
			return
		}
		fn()
	})
	*slot = timer
}

// applySpeed sets the throttle directly, superseding any pending brake.
func (c *Controller) applySpeed(speed rail.EngineSpeed, reason string) {
	c.brakeTimer.Cancel()
	c.brakeTimer = nil
	c.pending = nil
	c.setThrottle(speed, reason)
}

func (c *Controller) setThrottle(speed rail.EngineSpeed, reason string) {
	s := speed
	c.throttle = &s
	c.vehicle.SetThrottle(speed)
	c.events.speedCommanded(c, speed, reason)
}

func (c *Controller) setPhase(p Phase) {
	if c.phase == p {
		return
	}
	from := c.phase
	c.phase = p
	c.logger.Debug("vehicle phase changed", "vehicle", c.vehicle.ID(), "from", from.String(), "to", p.String())
	c.events.phaseChanged(c, from, p)
}

// destroy cancels every timer, removes the avatar and restores the vehicle.
func (c *Controller) destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	for _, t := range []*scheduler.Timer{c.startTimer, c.brakeTimer, c.stationDwell, c.triggerDwell} {
		t.Cancel()
	}
	c.startTimer, c.brakeTimer, c.stationDwell, c.triggerDwell = nil, nil, nil, nil
	c.pending = nil

	c.avatar.Destroy()
	c.vehicle.SetUnlimitedFuel(false)
	c.vehicle.SetDamageSuppressed(false)
}
