package automation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/internal/scheduler"
)

// Logger defines the logging interface used by the Manager and controllers.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Event channels broadcast on the WSHub.
const (
	ChannelVehicles = "vehicles"

	EventPhaseChanged = "vehicle.phase_changed"
	EventAutomated    = "vehicle.automated"
	EventDeautomated  = "vehicle.deautomated"
)

// Manager owns one Controller per automated vehicle.
//
// "Is automated" is membership in the controller map. The opt-in
// Membership is kept in step unless Settings.AutomateAll is set.
type Manager struct {
	settings    Settings
	sched       scheduler.Scheduler
	vehicles    VehicleSource
	avatars     host.AvatarFactory
	membership  *Membership
	controllers map[host.EntityID]*Controller

	vetoes  []VetoFunc
	granted []GrantedFunc

	insideStation func(host.EntityID) bool
	startDelay    func() time.Duration

	telemetry Telemetry
	hub       WSHub
	logger    Logger
}

// NewManager creates a manager.
//
// Parameters:
//   - settings: automation parameters shared by every controller
//   - sched: scheduler for every delayed action
//   - vehicles: host vehicle lookup
//   - avatars: operator avatar factory
//   - membership: opt-in set, persisted on every change
func NewManager(settings Settings, sched scheduler.Scheduler, vehicles VehicleSource, avatars host.AvatarFactory, membership *Membership) *Manager {
	m := &Manager{
		settings:      settings,
		sched:         sched,
		vehicles:      vehicles,
		avatars:       avatars,
		membership:    membership,
		controllers:   make(map[host.EntityID]*Controller),
		insideStation: func(host.EntityID) bool { return false },
		logger:        noopLogger{},
	}
	m.startDelay = m.randomStartDelay
	return m
}

// SetLogger sets the logger for the manager and its controllers.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetTelemetry records phase changes and speed commands to t.
func (m *Manager) SetTelemetry(t Telemetry) {
	m.telemetry = t
}

// SetHub broadcasts automation events to hub.
func (m *Manager) SetHub(hub WSHub) {
	m.hub = hub
}

// SetStationCheck tells the manager how to find out whether a vehicle is
// inside a station when it is automated.
func (m *Manager) SetStationCheck(inside func(host.EntityID) bool) {
	m.insideStation = inside
}

// OnVeto registers a hook consulted before automating a vehicle.
func (m *Manager) OnVeto(fn VetoFunc) {
	m.vetoes = append(m.vetoes, fn)
}

// OnGranted registers a hook fired after a vehicle has been automated.
func (m *Manager) OnGranted(fn GrantedFunc) {
	m.granted = append(m.granted, fn)
}

// Settings returns the automation parameters.
func (m *Manager) Settings() Settings {
	return m.settings
}

// Membership returns the opt-in set.
func (m *Manager) Membership() *Membership {
	return m.membership
}

// IsAutomated reports whether vehicle has a controller.
func (m *Manager) IsAutomated(vehicle host.EntityID) bool {
	_, ok := m.controllers[vehicle]
	return ok
}

// Controller returns the controller of vehicle.
func (m *Manager) Controller(vehicle host.EntityID) (*Controller, bool) {
	c, ok := m.controllers[vehicle]
	return c, ok
}

// Statuses returns a snapshot of every automated vehicle ordered by id.
func (m *Manager) Statuses() []Status {
	out := make([]Status, 0, len(m.controllers))
	for _, c := range m.controllers {
		out = append(out, c.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// Count returns the number of automated vehicles.
func (m *Manager) Count() int {
	return len(m.controllers)
}

// Automate starts automating vehicle after the staggered start delay.
func (m *Manager) Automate(ctx context.Context, vehicle host.EntityID) error {
	c, err := m.automate(ctx, vehicle, true)
	if err != nil {
		return err
	}
	c.Start(m.startDelay(), m.insideStation(vehicle))
	return nil
}

// AutomateAt automates a vehicle that entered a start trigger. The
// trigger's command applies at once.
func (m *Manager) AutomateAt(vehicle host.EntityID, triggerID int, cmd rail.Command) error {
	c, err := m.automate(context.Background(), vehicle, true)
	if err != nil {
		return err
	}
	c.StartAtTrigger(triggerID, cmd)
	return nil
}

// EnterTrigger forwards a manual trigger entry to the vehicle's controller.
func (m *Manager) EnterTrigger(vehicle host.EntityID, triggerID int, cmd rail.Command) bool {
	c, ok := m.controllers[vehicle]
	if !ok {
		return false
	}
	return c.EnterTrigger(triggerID, cmd)
}

// LeaveTrigger forwards a manual trigger exit to the vehicle's controller.
func (m *Manager) LeaveTrigger(vehicle host.EntityID, triggerID int) {
	if c, ok := m.controllers[vehicle]; ok {
		c.LeaveTrigger(triggerID)
	}
}

// ForgetTrigger clears triggerID from every controller, so a trigger that
// later reuses the id applies on the next entry.
func (m *Manager) ForgetTrigger(triggerID int) {
	for _, c := range m.controllers {
		c.LeaveTrigger(triggerID)
	}
}

// Deautomate destroys the vehicle's controller and opts it out.
func (m *Manager) Deautomate(ctx context.Context, vehicle host.EntityID) error {
	c, ok := m.controllers[vehicle]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotAutomated, vehicle)
	}
	if !m.settings.AutomateAll {
		if err := m.membership.Remove(ctx, vehicle); err != nil {
			return err
		}
	}
	m.release(c)
	m.logger.Info("vehicle deautomated", "vehicle", vehicle)
	return nil
}

// Toggle automates a manual vehicle or deautomates an automated one and
// reports the new state. It is refused when every vehicle is automated.
func (m *Manager) Toggle(ctx context.Context, vehicle host.EntityID) (bool, error) {
	if m.settings.AutomateAll {
		return false, ErrBlanketAutomation
	}
	if m.IsAutomated(vehicle) {
		return false, m.Deautomate(ctx, vehicle)
	}
	if err := m.Automate(ctx, vehicle); err != nil {
		return false, err
	}
	return true, nil
}

// HandleVehicleSpawned automates a new vehicle if configuration or the
// membership says so.
func (m *Manager) HandleVehicleSpawned(ctx context.Context, vehicle host.EntityID) {
	if m.IsAutomated(vehicle) {
		return
	}
	if !m.settings.AutomateAll && !m.membership.Contains(vehicle) {
		return
	}
	c, err := m.automate(ctx, vehicle, false)
	if err != nil {
		m.logger.Warn("could not automate spawned vehicle", "vehicle", vehicle, "error", err)
		return
	}
	c.Start(m.startDelay(), m.insideStation(vehicle))
}

// HandleVehicleRemoved destroys the controller of a vehicle that left the
// world and drops it from the membership.
func (m *Manager) HandleVehicleRemoved(ctx context.Context, vehicle host.EntityID) {
	if c, ok := m.controllers[vehicle]; ok {
		m.release(c)
	}
	if err := m.membership.Remove(ctx, vehicle); err != nil {
		m.logger.Error("removing vehicle from membership", "vehicle", vehicle, "error", err)
	}
}

// Restore automates every vehicle that should be automated: all of them
// with AutomateAll, otherwise the members. It returns how many started.
func (m *Manager) Restore(ctx context.Context) int {
	started := 0
	for _, v := range m.vehicles.Vehicles() {
		before := m.Count()
		m.HandleVehicleSpawned(ctx, v.ID())
		if m.Count() > before {
			started++
		}
	}
	m.logger.Info("automation restored", "vehicles", started, "members", m.membership.Len())
	return started
}

// Shutdown destroys every controller. Membership is kept so the same
// vehicles are automated again on the next start.
func (m *Manager) Shutdown() {
	for _, c := range m.controllers {
		m.release(c)
	}
}

// ShouldSuppressDamage reports whether entity is an automated vehicle or
// the operator avatar of one.
func (m *Manager) ShouldSuppressDamage(entity host.EntityID) bool {
	if m.IsAutomated(entity) {
		return true
	}
	for _, c := range m.controllers {
		if c.AvatarID() == entity {
			return true
		}
	}
	return false
}

// CanAccessFuel reports whether another agent may open the fuel container
// of vehicle. Automated vehicles deny it.
func (m *Manager) CanAccessFuel(vehicle host.EntityID) bool {
	return !m.IsAutomated(vehicle)
}

// automate validates, persists membership, creates the controller and
// fires the granted hooks. The controller is not started.
func (m *Manager) automate(ctx context.Context, id host.EntityID, persist bool) (*Controller, error) {
	if m.IsAutomated(id) {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyAutomated, id)
	}
	vehicle, ok := m.vehicles.Vehicle(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	for _, veto := range m.vetoes {
		if veto(vehicle) {
			return nil, fmt.Errorf("%w: %d", ErrAutomationVetoed, id)
		}
	}

	// Membership is saved before the vehicle is touched; a failed save
	// leaves the crew and flags as they were.
	added := persist && !m.settings.AutomateAll && !m.membership.Contains(id)
	if added {
		if err := m.membership.Add(ctx, id); err != nil {
			return nil, err
		}
	}
	c, err := newController(vehicle, m.avatars, m.settings, m.sched, m, m.logger)
	if err != nil {
		if added {
			if rerr := m.membership.Remove(ctx, id); rerr != nil {
				m.logger.Error("rolling back automation membership", "vehicle", id, "error", rerr)
			}
		}
		return nil, err
	}
	m.controllers[id] = c

	m.logger.Info("vehicle automated", "vehicle", id, "avatar", c.AvatarID())
	m.broadcast(EventAutomated, c)
	for _, fn := range m.granted {
		fn(vehicle)
	}
	return c, nil
}

func (m *Manager) release(c *Controller) {
	delete(m.controllers, c.VehicleID())
	c.destroy()
	m.broadcast(EventDeautomated, c)
}

func (m *Manager) broadcast(event string, c *Controller) {
	if m.hub == nil {
		return
	}
	m.hub.Broadcast(ChannelVehicles, map[string]any{
		"event":      event,
		"vehicle_id": c.VehicleID(),
		"phase":      c.Phase().String(),
	})
}

func (m *Manager) randomStartDelay() time.Duration {
	lo, hi := m.settings.StartDelayMin, m.settings.StartDelayMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo) //nolint:gosec // start staggering, not security
}

// phaseChanged implements listener.
func (m *Manager) phaseChanged(c *Controller, from, to Phase) {
	if m.telemetry != nil {
		m.telemetry.WritePhaseTransition(uint64(c.VehicleID()), from.String(), to.String())
	}
	m.broadcast(EventPhaseChanged, c)
}

// speedCommanded implements listener.
func (m *Manager) speedCommanded(c *Controller, speed rail.EngineSpeed, reason string) {
	if m.telemetry != nil {
		m.telemetry.WriteSpeedCommand(uint64(c.VehicleID()), int(speed), speed.String(), reason)
	}
}
