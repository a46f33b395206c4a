package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/internal/scheduler"
)

const (
	// zoneRadius is the radius of the sphere placed around each trigger.
	zoneRadius = 1.0

	// Show timing: draw for showDuration, redraw every showInterval,
	// showRepeats times, giving a window of roughly one minute.
	showDuration = time.Second
	showInterval = 900 * time.Millisecond
	showRepeats  = 60
)

// labelOffset lifts the label above the zone.
var labelOffset = rail.Vector3{Y: 1.5}

// Automator is the part of the automation manager the registry drives.
type Automator interface {
	IsAutomated(vehicle host.EntityID) bool

	// AutomateAt automates a vehicle that entered a start trigger and
	// applies the trigger's command immediately.
	AutomateAt(vehicle host.EntityID, triggerID int, cmd rail.Command) error

	// EnterTrigger applies the trigger's command to an automated vehicle.
	// It returns false when the vehicle was already inside the trigger.
	EnterTrigger(vehicle host.EntityID, triggerID int, cmd rail.Command) bool

	// LeaveTrigger clears the inside mark set by AutomateAt or EnterTrigger.
	LeaveTrigger(vehicle host.EntityID, triggerID int)

	// ForgetTrigger clears the inside mark for triggerID on every vehicle.
	// Called when the trigger's zone goes away without leave events.
	ForgetTrigger(triggerID int)
}

// Registry keeps one live zone per stored trigger and turns zone events
// into automation calls.
type Registry struct {
	store     *Store
	zones     host.ZoneFactory
	sched     scheduler.Scheduler
	automator Automator
	drawer    host.Drawer
	logger    Logger

	live    map[int]host.Zone
	redraws map[string]*scheduler.Timer
}

// NewRegistry creates a registry over store.
func NewRegistry(store *Store, zones host.ZoneFactory, sched scheduler.Scheduler) *Registry {
	return &Registry{
		store:   store,
		zones:   zones,
		sched:   sched,
		logger:  noopLogger{},
		live:    make(map[int]host.Zone),
		redraws: make(map[string]*scheduler.Timer),
	}
}

// SetLogger sets the logger for the registry and its store.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
	r.store.SetLogger(logger)
}

// SetAutomator wires zone events to the automation manager.
func (r *Registry) SetAutomator(a Automator) {
	r.automator = a
}

// SetDrawer sets the renderer used by ShowAll.
func (r *Registry) SetDrawer(d host.Drawer) {
	r.drawer = d
}

// Load reads the map's triggers and creates a zone for each. Zones left
// from a previous map are destroyed first.
func (r *Registry) Load(ctx context.Context, mapID string) error {
	r.destroyZones()
	if err := r.store.Load(ctx, mapID); err != nil {
		return err
	}
	for _, t := range r.store.List() {
		zone, err := r.zones.CreateZone(shapeFor(t.Position), tagFor(t.ID))
		if err != nil {
			r.logger.Error("creating trigger zone", "trigger_id", t.ID, "error", err)
			continue
		}
		r.live[t.ID] = zone
	}
	return nil
}

// Add stores a trigger and creates its zone. An ID of zero is assigned
// the next free id.
func (r *Registry) Add(ctx context.Context, t Trigger) (*Trigger, error) {
	if t.ID < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, t.ID)
	}
	if t.ID == 0 {
		t.ID = r.store.NextID()
	}
	if _, exists := r.store.FindByID(t.ID); exists {
		return nil, fmt.Errorf("%w: %d", ErrExists, t.ID)
	}

	zone, err := r.zones.CreateZone(shapeFor(t.Position), tagFor(t.ID))
	if err != nil {
		return nil, fmt.Errorf("creating zone for trigger %d: %w", t.ID, err)
	}
	added, err := r.store.Add(ctx, t)
	if err != nil {
		zone.Destroy()
		return nil, err
	}
	r.live[added.ID] = zone

	r.logger.Info("trigger added", "trigger_id", added.ID, "label", added.Label())
	return added, nil
}

// Update replaces the options of trigger id. The zone geometry is unchanged.
func (r *Registry) Update(ctx context.Context, id int, opts Options) (*Trigger, error) {
	updated, err := r.store.Update(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	r.logger.Info("trigger updated", "trigger_id", id, "label", updated.Label())
	return updated, nil
}

// Move relocates trigger id and reshapes its zone.
func (r *Registry) Move(ctx context.Context, id int, position rail.Vector3) (*Trigger, error) {
	moved, err := r.store.Move(ctx, id, position)
	if err != nil {
		return nil, err
	}
	if zone, ok := r.live[id]; ok {
		if err := zone.Reshape(shapeFor(position)); err != nil {
			r.logger.Warn("reshaping trigger zone, recreating", "trigger_id", id, "error", err)
			zone.Destroy()
			delete(r.live, id)
		}
	}
	r.forget(id)
	if _, ok := r.live[id]; !ok {
		zone, err := r.zones.CreateZone(shapeFor(position), tagFor(id))
		if err != nil {
			r.logger.Error("creating trigger zone", "trigger_id", id, "error", err)
		} else {
			r.live[id] = zone
		}
	}
	r.logger.Info("trigger moved", "trigger_id", id, "position", position.String())
	return moved, nil
}

// Remove deletes trigger id and destroys its zone.
func (r *Registry) Remove(ctx context.Context, id int) error {
	if err := r.store.Remove(ctx, id); err != nil {
		return err
	}
	if zone, ok := r.live[id]; ok {
		zone.Destroy()
		delete(r.live, id)
	}
	r.forget(id)
	r.logger.Info("trigger removed", "trigger_id", id)
	return nil
}

// Get returns a copy of trigger id.
func (r *Registry) Get(id int) (*Trigger, bool) {
	return r.store.FindByID(id)
}

// List returns every trigger in creation order.
func (r *Registry) List() []*Trigger {
	return r.store.List()
}

// ShowAll draws every trigger to observer, then keeps redrawing for about
// a minute. A running redraw loop for the same observer is replaced.
func (r *Registry) ShowAll(observer string) int {
	if prev, ok := r.redraws[observer]; ok {
		prev.Cancel()
		delete(r.redraws, observer)
	}
	if r.drawer == nil {
		return 0
	}

	count := r.draw(observer)
	var timer *scheduler.Timer
	timer = r.sched.Repeat(showInterval, showRepeats, func() {
		r.draw(observer)
		if !timer.Pending() && r.redraws[observer] == timer {
			delete(r.redraws, observer)
		}
	})
	r.redraws[observer] = timer
	return count
}

func (r *Registry) draw(observer string) int {
	triggers := r.store.List()
	for _, t := range triggers {
		colour := t.Colour()
		r.drawer.DrawSphere(observer, t.Position, zoneRadius, colour, showDuration)
		r.drawer.DrawText(observer, t.Position.Add(labelOffset), t.Label(), colour, showDuration)
	}
	return len(triggers)
}

// HandleEnter is called when vehicle enters the zone of triggerID.
func (r *Registry) HandleEnter(vehicle host.EntityID, triggerID int) {
	if r.automator == nil {
		return
	}
	t, ok := r.store.FindByID(triggerID)
	if !ok {
		r.logger.Warn("enter event for unknown trigger", "trigger_id", triggerID, "vehicle", vehicle)
		return
	}

	if !r.automator.IsAutomated(vehicle) {
		if !t.StartsAutomation {
			return
		}
		if err := r.automator.AutomateAt(vehicle, t.ID, t.Command()); err != nil {
			r.logger.Warn("start trigger could not automate vehicle",
				"trigger_id", t.ID, "vehicle", vehicle, "error", err)
			return
		}
		r.logger.Info("vehicle automated by trigger", "trigger_id", t.ID, "vehicle", vehicle)
		return
	}

	if !r.automator.EnterTrigger(vehicle, t.ID, t.Command()) {
		r.logger.Debug("vehicle already inside trigger", "trigger_id", t.ID, "vehicle", vehicle)
	}
}

// HandleLeave is called when vehicle leaves the zone of triggerID.
func (r *Registry) HandleLeave(vehicle host.EntityID, triggerID int) {
	if r.automator == nil {
		return
	}
	r.automator.LeaveTrigger(vehicle, triggerID)
}

// Destroy removes every zone and cancels every redraw loop.
func (r *Registry) Destroy() {
	for observer, t := range r.redraws {
		t.Cancel()
		delete(r.redraws, observer)
	}
	r.destroyZones()
}

func (r *Registry) destroyZones() {
	for id, zone := range r.live {
		zone.Destroy()
		delete(r.live, id)
		r.forget(id)
	}
}

// forget drops inside marks for a zone destroyed without leave events.
func (r *Registry) forget(id int) {
	if r.automator != nil {
		r.automator.ForgetTrigger(id)
	}
}

func shapeFor(position rail.Vector3) host.Shape {
	return host.Shape{Kind: host.ShapeSphere, Center: position, Radius: zoneRadius}
}

func tagFor(id int) host.ZoneTag {
	return host.ZoneTag{Kind: host.ZoneManual, TriggerID: id}
}
