package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/railrunner/internal/audit"
	"github.com/nerrad567/railrunner/internal/automation"
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/internal/scheduler"
	"github.com/nerrad567/railrunner/internal/station"
	"github.com/nerrad567/railrunner/internal/trigger"
)

// Logger defines the logging interface used by the engine and the
// components it owns.
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

// Trigger change events broadcast on the hub.
const (
	ChannelTriggers = "triggers"

	EventTriggerAdded   = "trigger.added"
	EventTriggerUpdated = "trigger.updated"
	EventTriggerMoved   = "trigger.moved"
	EventTriggerRemoved = "trigger.removed"
)

const (
	platformColour   = "#ffff00"
	platformShowTime = time.Minute
)

// Config holds the engine settings taken from configuration.
type Config struct {
	// StationDetection creates platforms from the world's station landmarks.
	StationDetection bool

	Automation automation.Settings
}

// Deps are the collaborators an Engine is built from. Drawer may be nil.
type Deps struct {
	World     host.World
	Vehicles  automation.VehicleSource
	Zones     host.ZoneFactory
	Avatars   host.AvatarFactory
	Drawer    host.Drawer
	Scheduler scheduler.Scheduler

	Triggers trigger.Repository
	Members  automation.MembershipRepository
}

// Engine wires triggers, stations and automation together.
type Engine struct {
	cfg    Config
	world  host.World
	drawer host.Drawer

	store      *trigger.Store
	registry   *trigger.Registry
	detector   *station.Detector
	membership *automation.Membership
	manager    *automation.Manager

	hub     automation.WSHub
	audit   audit.Recorder
	logger  Logger
	running bool
}

// New builds an engine. Nothing touches the world until Start.
func New(cfg Config, deps Deps) (*Engine, error) {
	switch {
	case deps.World == nil:
		return nil, fmt.Errorf("%w: world", ErrMissingDep)
	case deps.Vehicles == nil:
		return nil, fmt.Errorf("%w: vehicles", ErrMissingDep)
	case deps.Zones == nil:
		return nil, fmt.Errorf("%w: zones", ErrMissingDep)
	case deps.Avatars == nil:
		return nil, fmt.Errorf("%w: avatars", ErrMissingDep)
	case deps.Scheduler == nil:
		return nil, fmt.Errorf("%w: scheduler", ErrMissingDep)
	case deps.Triggers == nil:
		return nil, fmt.Errorf("%w: trigger repository", ErrMissingDep)
	case deps.Members == nil:
		return nil, fmt.Errorf("%w: membership repository", ErrMissingDep)
	}

	e := &Engine{
		cfg:        cfg,
		world:      deps.World,
		drawer:     deps.Drawer,
		store:      trigger.NewStore(deps.Triggers),
		membership: automation.NewMembership(deps.Members),
		logger:     noopLogger{},
	}
	e.manager = automation.NewManager(cfg.Automation, deps.Scheduler, deps.Vehicles, deps.Avatars, e.membership)
	e.registry = trigger.NewRegistry(e.store, deps.Zones, deps.Scheduler)
	e.registry.SetAutomator(e.manager)
	if deps.Drawer != nil {
		e.registry.SetDrawer(deps.Drawer)
	}
	e.detector = station.NewDetector(deps.Zones, e.train)
	e.manager.SetStationCheck(e.detector.InsideAny)
	return e, nil
}

// train resolves a vehicle's controller for the station platforms.
func (e *Engine) train(vehicle host.EntityID) (station.Train, bool) {
	c, ok := e.manager.Controller(vehicle)
	if !ok {
		return nil, false
	}
	return c, true
}

// SetLogger sets the logger for the engine and every owned component.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
	e.registry.SetLogger(logger)
	e.detector.SetLogger(logger)
	e.membership.SetLogger(logger)
	e.manager.SetLogger(logger)
}

// SetTelemetry records automation phase changes and speed commands.
func (e *Engine) SetTelemetry(t automation.Telemetry) {
	e.manager.SetTelemetry(t)
}

// SetAuditor records every successful mutating command.
func (e *Engine) SetAuditor(r audit.Recorder) {
	e.audit = r
}

// SetHub broadcasts vehicle and trigger events to hub.
func (e *Engine) SetHub(hub automation.WSHub) {
	e.hub = hub
	e.manager.SetHub(hub)
}

// Automation returns the automation manager, for registering veto and
// granted hooks.
func (e *Engine) Automation() *automation.Manager {
	return e.manager
}

// Running reports whether Start has completed and Stop has not been called.
func (e *Engine) Running() bool {
	return e.running
}

// MapID returns the id of the map whose triggers are loaded.
func (e *Engine) MapID() string {
	return e.store.MapID()
}

// Start loads the membership and the map's triggers, detects stations and
// automates every vehicle that should be automated.
func (e *Engine) Start(ctx context.Context) error {
	if e.running {
		return ErrAlreadyRunning
	}
	if err := e.membership.Load(ctx); err != nil {
		return fmt.Errorf("loading automation membership: %w", err)
	}

	mapID := e.world.MapID()
	if err := e.registry.Load(ctx, mapID); err != nil {
		return fmt.Errorf("loading triggers for map %q: %w", mapID, err)
	}

	platforms := 0
	if e.cfg.StationDetection {
		found, err := e.detector.Detect(e.world.StationLandmarks())
		if err != nil {
			e.registry.Destroy()
			return fmt.Errorf("detecting stations: %w", err)
		}
		platforms = len(found)
	}

	e.running = true
	automated := e.manager.Restore(ctx)

	e.logger.Info("engine started",
		"map_id", mapID,
		"triggers", e.store.Len(),
		"platforms", platforms,
		"automated", automated,
	)
	return nil
}

// Stop releases every controller and destroys every zone. Membership is
// kept for the next start.
func (e *Engine) Stop() {
	if !e.running {
		return
	}
	e.running = false
	e.manager.Shutdown()
	e.registry.Destroy()
	e.detector.Destroy()
	e.logger.Info("engine stopped", "map_id", e.store.MapID())
}

// OnVehicleSpawned automates a new vehicle when configured to.
func (e *Engine) OnVehicleSpawned(ctx context.Context, vehicle host.EntityID) {
	if !e.running {
		return
	}
	e.manager.HandleVehicleSpawned(ctx, vehicle)
}

// OnVehicleRemoved releases the controller of a vehicle that left the world.
func (e *Engine) OnVehicleRemoved(ctx context.Context, vehicle host.EntityID) {
	if !e.running {
		return
	}
	e.manager.HandleVehicleRemoved(ctx, vehicle)
}

// OnZoneEnter dispatches a zone entry by the zone's tag.
func (e *Engine) OnZoneEnter(tag host.ZoneTag, entity host.EntityID) {
	if !e.running {
		return
	}
	switch tag.Kind {
	case host.ZoneManual:
		e.registry.HandleEnter(entity, tag.TriggerID)
	case host.ZoneStationEntry:
		if p, ok := e.platform(tag); ok {
			p.OnArrive(entity)
		}
	case host.ZoneStationStop:
		if p, ok := e.platform(tag); ok {
			p.OnReachStop(entity)
		}
	default:
		e.logger.Warn("enter event for unknown zone kind", "kind", tag.Kind.String(), "entity", entity)
	}
}

// OnZoneLeave dispatches a zone exit by the zone's tag. Leaving a stop zone
// has no effect; departure is driven by the entry zone.
func (e *Engine) OnZoneLeave(tag host.ZoneTag, entity host.EntityID) {
	if !e.running {
		return
	}
	switch tag.Kind {
	case host.ZoneManual:
		e.registry.HandleLeave(entity, tag.TriggerID)
	case host.ZoneStationEntry:
		if p, ok := e.platform(tag); ok {
			p.OnDepart(entity)
		}
	case host.ZoneStationStop:
	default:
		e.logger.Warn("leave event for unknown zone kind", "kind", tag.Kind.String(), "entity", entity)
	}
}

func (e *Engine) platform(tag host.ZoneTag) (*station.Platform, bool) {
	p, ok := e.detector.Platform(tag.PlatformID)
	if !ok {
		e.logger.Warn("zone event for unknown platform", "platform", tag.PlatformID)
	}
	return p, ok
}

// ShouldSuppressDamage reports whether the host should ignore damage to entity.
func (e *Engine) ShouldSuppressDamage(entity host.EntityID) bool {
	return e.manager.ShouldSuppressDamage(entity)
}

// CanAccessFuel reports whether another agent may open vehicle's fuel container.
func (e *Engine) CanAccessFuel(vehicle host.EntityID) bool {
	return e.manager.CanAccessFuel(vehicle)
}

// ToggleAutomation flips the automation of vehicle and reports the new state.
func (e *Engine) ToggleAutomation(ctx context.Context, vehicle host.EntityID) (bool, error) {
	if !e.running {
		return false, ErrNotRunning
	}
	if vehicle == 0 {
		return false, ErrNoVehicle
	}
	return e.manager.Toggle(ctx, vehicle)
}

// Vehicles returns the status of every automated vehicle.
func (e *Engine) Vehicles() []automation.Status {
	return e.manager.Statuses()
}

// Triggers returns copies of the loaded triggers in stored order.
func (e *Engine) Triggers() []*trigger.Trigger {
	return e.registry.List()
}

// Trigger returns a copy of trigger id.
func (e *Engine) Trigger(id int) (*trigger.Trigger, bool) {
	return e.registry.Get(id)
}

// AddTrigger places a new trigger at position with the next free id.
func (e *Engine) AddTrigger(ctx context.Context, position rail.Vector3, opts trigger.Options) (*trigger.Trigger, error) {
	if !e.running {
		return nil, ErrNotRunning
	}
	t := trigger.Trigger{Position: position}
	t.StartsAutomation = opts.StartsAutomation
	t.Speed = opts.Speed
	t.TrackSelection = opts.TrackSelection

	added, err := e.registry.Add(ctx, t)
	if err != nil {
		return nil, err
	}
	e.broadcastTrigger(EventTriggerAdded, added)
	return added, nil
}

// UpdateTrigger replaces the options of trigger id.
func (e *Engine) UpdateTrigger(ctx context.Context, id int, opts trigger.Options) (*trigger.Trigger, error) {
	if !e.running {
		return nil, ErrNotRunning
	}
	updated, err := e.registry.Update(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	e.broadcastTrigger(EventTriggerUpdated, updated)
	return updated, nil
}

// MoveTrigger moves trigger id and its zone to position.
func (e *Engine) MoveTrigger(ctx context.Context, id int, position rail.Vector3) (*trigger.Trigger, error) {
	if !e.running {
		return nil, ErrNotRunning
	}
	moved, err := e.registry.Move(ctx, id, position)
	if err != nil {
		return nil, err
	}
	e.broadcastTrigger(EventTriggerMoved, moved)
	return moved, nil
}

// RemoveTrigger deletes trigger id and its zone.
func (e *Engine) RemoveTrigger(ctx context.Context, id int) error {
	if !e.running {
		return ErrNotRunning
	}
	if err := e.registry.Remove(ctx, id); err != nil {
		return err
	}
	e.broadcastTrigger(EventTriggerRemoved, &trigger.Trigger{ID: id})
	return nil
}

// Show draws every trigger and station platform to observer and keeps the
// triggers redrawn for about a minute. It returns the trigger count.
func (e *Engine) Show(observer string) int {
	count := e.registry.ShowAll(observer)
	if e.drawer != nil {
		for _, p := range e.detector.Platforms() {
			p.Draw(e.drawer, observer, platformColour, platformShowTime)
		}
	}
	return count
}

// Stations returns a summary of every detected platform.
func (e *Engine) Stations() []station.Info {
	platforms := e.detector.Platforms()
	out := make([]station.Info, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, p.Info())
	}
	return out
}

func (e *Engine) broadcastTrigger(event string, t *trigger.Trigger) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(ChannelTriggers, map[string]any{
		"event":   event,
		"trigger": t.Record(),
	})
}
