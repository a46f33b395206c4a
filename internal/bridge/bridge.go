package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/railrunner/internal/engine"
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/infrastructure/mqtt"
)

// defaultOutboxSize is the number of commands queued before sends fail.
const defaultOutboxSize = 4096

// MQTTClient is the part of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Poster runs functions on the engine's event loop.
// *scheduler.Loop satisfies this interface.
type Poster interface {
	Post(fn func()) error
}

// Handler receives host events on the event loop.
// *engine.Engine satisfies this interface.
type Handler interface {
	OnVehicleSpawned(ctx context.Context, vehicle host.EntityID)
	OnVehicleRemoved(ctx context.Context, vehicle host.EntityID)
	OnZoneEnter(tag host.ZoneTag, entity host.EntityID)
	OnZoneLeave(tag host.ZoneTag, entity host.EntityID)
	Execute(ctx context.Context, cmd engine.Command) engine.Reply
}

// Logger defines the logging interface used by the bridge.
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

// Options holds configuration for creating a bridge.
type Options struct {
	MQTT   MQTTClient
	Topics mqtt.Topics
	Loop   Poster

	// QoS for subscriptions and commands. Defaults to 1.
	QoS byte

	// Logger is optional.
	Logger Logger
}

type outbound struct {
	topic   string
	payload []byte
}

// Bridge connects the engine to the world host.
//
// World information is guarded by a mutex because WaitReady is called
// outside the loop. Everything else (proxies, occupancy, handler calls) is
// only touched on the loop goroutine.
type Bridge struct {
	mqtt    MQTTClient
	topics  mqtt.Topics
	loop    Poster
	qos     byte
	handler Handler
	logger  Logger
	ctx     context.Context

	worldMu   sync.RWMutex
	mapID     string
	landmarks []host.Landmark
	ready     chan struct{}
	readyOnce sync.Once

	vehicles map[host.EntityID]*vehicle
	zones    map[string]*zone
	avatars  map[string]*avatar
	nextZone int

	outbox chan outbound
	done   chan struct{}
	now    func() time.Time
	newID  func() string
}

// New creates a bridge. Call SetHandler and Start before the host sends
// events.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Loop == nil {
		return nil, fmt.Errorf("event loop is required")
	}
	if opts.Topics.Prefix == "" {
		opts.Topics = mqtt.NewTopics("")
	}
	if opts.QoS == 0 {
		opts.QoS = 1
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Bridge{
		mqtt:     opts.MQTT,
		topics:   opts.Topics,
		loop:     opts.Loop,
		qos:      opts.QoS,
		logger:   logger,
		ctx:      context.Background(),
		ready:    make(chan struct{}),
		vehicles: make(map[host.EntityID]*vehicle),
		zones:    make(map[string]*zone),
		avatars:  make(map[string]*avatar),
		outbox:   make(chan outbound, defaultOutboxSize),
		done:     make(chan struct{}),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}, nil
}

// SetHandler sets the receiver of host events. Must be called before Start.
func (b *Bridge) SetHandler(h Handler) {
	b.handler = h
}

// Start subscribes to host events. ctx is handed to the handler on every
// event.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx
	topic := b.topics.AllHostEvents()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribe to host events: %w", err)
	}
	b.logger.Info("subscribed to host events", "topic", topic)
	return nil
}

// Run publishes queued commands until ctx is cancelled, then flushes what
// is left.
func (b *Bridge) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.flush()
			return
		case msg := <-b.outbox:
			b.publish(msg)
		}
	}
}

// Done is closed once Run returns.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// WaitReady blocks until the host has announced its world.
func (b *Bridge) WaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}

// MapID implements host.World.
func (b *Bridge) MapID() string {
	b.worldMu.RLock()
	defer b.worldMu.RUnlock()
	return b.mapID
}

// StationLandmarks implements host.World.
func (b *Bridge) StationLandmarks() []host.Landmark {
	b.worldMu.RLock()
	defer b.worldMu.RUnlock()
	out := make([]host.Landmark, len(b.landmarks))
	copy(out, b.landmarks)
	return out
}

// Vehicle implements automation.VehicleSource.
func (b *Bridge) Vehicle(id host.EntityID) (host.Vehicle, bool) {
	v, ok := b.vehicles[id]
	if !ok {
		return nil, false
	}
	return v, true
}

// Vehicles implements automation.VehicleSource, ordered by id.
func (b *Bridge) Vehicles() []host.Vehicle {
	ids := make([]host.EntityID, 0, len(b.vehicles))
	for id := range b.vehicles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]host.Vehicle, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.vehicles[id])
	}
	return out
}

// Broadcast mirrors a live engine event to {prefix}/events/{channel}.
// It implements automation.WSHub.
func (b *Bridge) Broadcast(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("encoding event", "channel", channel, "error", err)
		return
	}
	if err := b.enqueue(b.topics.Events(channel), data); err != nil {
		b.logger.Warn("dropping event", "channel", channel, "error", err)
	}
}

// handleMessage runs on the MQTT goroutine: it decodes and posts.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	eventType, ok := b.topics.ParseHostEvent(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrUnknownEvent, topic)
	}

	switch eventType {
	case mqtt.EventWorldReady:
		var ev WorldReadyEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decoding %s: %w", eventType, err)
		}
		b.setWorld(ev)
		return b.loop.Post(func() { b.seedVehicles(ev.Vehicles) })

	case mqtt.EventVehicleSpawned, mqtt.EventVehicleRemoved, mqtt.EventVehicleState:
		var ev VehicleState
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decoding %s: %w", eventType, err)
		}
		switch eventType {
		case mqtt.EventVehicleSpawned:
			return b.loop.Post(func() { b.vehicleSpawned(ev) })
		case mqtt.EventVehicleRemoved:
			return b.loop.Post(func() { b.vehicleRemoved(ev.ID) })
		default:
			return b.loop.Post(func() { b.vehicleState(ev) })
		}

	case mqtt.EventZoneEnter, mqtt.EventZoneLeave:
		var ev ZoneEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decoding %s: %w", eventType, err)
		}
		enter := eventType == mqtt.EventZoneEnter
		return b.loop.Post(func() { b.zoneEvent(ev, enter) })

	case mqtt.EventAvatarSpawned:
		var ev AvatarSpawnedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decoding %s: %w", eventType, err)
		}
		return b.loop.Post(func() { b.avatarSpawned(ev) })

	case mqtt.EventCommand:
		var ev CommandEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decoding %s: %w", eventType, err)
		}
		return b.loop.Post(func() { b.command(ev) })

	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
	}
}

func (b *Bridge) setWorld(ev WorldReadyEvent) {
	b.worldMu.Lock()
	b.mapID = ev.MapID
	b.landmarks = ev.Landmarks
	b.worldMu.Unlock()

	b.readyOnce.Do(func() { close(b.ready) })
	b.logger.Info("world ready", "map_id", ev.MapID, "landmarks", len(ev.Landmarks), "vehicles", len(ev.Vehicles))
}

// seedVehicles registers vehicles present at world start without treating
// them as spawns; the engine picks them up when it starts.
func (b *Bridge) seedVehicles(states []VehicleState) {
	for _, s := range states {
		if v, ok := b.vehicles[s.ID]; ok {
			v.update(s)
			continue
		}
		b.vehicles[s.ID] = newVehicle(b, s)
	}
}

func (b *Bridge) vehicleSpawned(s VehicleState) {
	if v, ok := b.vehicles[s.ID]; ok {
		v.update(s)
	} else {
		b.vehicles[s.ID] = newVehicle(b, s)
	}
	if b.handler != nil {
		b.handler.OnVehicleSpawned(b.ctx, s.ID)
	}
}

// vehicleRemoved keeps the proxy until the handler has released it.
func (b *Bridge) vehicleRemoved(id host.EntityID) {
	if _, ok := b.vehicles[id]; !ok {
		return
	}
	if b.handler != nil {
		b.handler.OnVehicleRemoved(b.ctx, id)
	}
	delete(b.vehicles, id)
	for _, z := range b.zones {
		delete(z.occupants, id)
	}
}

func (b *Bridge) vehicleState(s VehicleState) {
	if v, ok := b.vehicles[s.ID]; ok {
		v.update(s)
	}
}

// zoneEvent updates the occupancy mirror before dispatching, so the
// handler sees the entity inside on enter and outside on leave.
func (b *Bridge) zoneEvent(ev ZoneEvent, enter bool) {
	z, ok := b.zones[ev.ZoneID]
	if !ok {
		b.logger.Debug("event for unknown zone", "zone_id", ev.ZoneID)
		return
	}
	if enter {
		if z.occupants[ev.EntityID] {
			return
		}
		z.occupants[ev.EntityID] = true
	} else {
		if !z.occupants[ev.EntityID] {
			return
		}
		delete(z.occupants, ev.EntityID)
	}

	if b.handler == nil {
		return
	}
	if enter {
		b.handler.OnZoneEnter(z.tag, ev.EntityID)
	} else {
		b.handler.OnZoneLeave(z.tag, ev.EntityID)
	}
}

func (b *Bridge) avatarSpawned(ev AvatarSpawnedEvent) {
	a, ok := b.avatars[ev.Handle]
	if !ok {
		b.logger.Debug("spawn report for unknown avatar", "handle", ev.Handle)
		return
	}
	a.id = ev.EntityID
}

func (b *Bridge) command(ev CommandEvent) {
	var r engine.Reply
	if b.handler == nil {
		r = engine.Reply{Key: "error.not_ready"}
	} else {
		r = b.handler.Execute(b.ctx, ev.Command)
	}
	b.logger.Debug("command executed", "caller", ev.Caller, "name", ev.Name, "reply", r.Key)

	data, err := json.Marshal(ReplyMessage{
		RequestID: ev.RequestID,
		Caller:    ev.Caller,
		Key:       r.Key,
		Params:    r.Params,
		OK:        r.OK(),
	})
	if err != nil {
		b.logger.Error("encoding reply", "error", err)
		return
	}
	if err := b.enqueue(b.topics.HostCommand(mqtt.CommandReply, topicSegment(ev.Caller)), data); err != nil {
		b.logger.Warn("dropping reply", "caller", ev.Caller, "error", err)
	}
}

// send queues a command for target.
func (b *Bridge) send(kind, target string, params map[string]any) error {
	data, err := json.Marshal(CommandMessage{
		ID:         b.newID(),
		Timestamp:  b.now().UTC(),
		Kind:       kind,
		Target:     target,
		Parameters: params,
	})
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", kind, err)
	}
	return b.enqueue(b.topics.HostCommand(kind, topicSegment(target)), data)
}

// sendAsync is send for fire-and-forget commands; failures are logged.
func (b *Bridge) sendAsync(kind, target string, params map[string]any) {
	if err := b.send(kind, target, params); err != nil {
		b.logger.Warn("dropping host command", "kind", kind, "target", target, "error", err)
	}
}

func (b *Bridge) enqueue(topic string, payload []byte) error {
	select {
	case b.outbox <- outbound{topic: topic, payload: payload}:
		return nil
	default:
		return ErrOutboxFull
	}
}

func (b *Bridge) publish(msg outbound) {
	if err := b.mqtt.Publish(msg.topic, msg.payload, b.qos, false); err != nil {
		b.logger.Error("publishing host command", "topic", msg.topic, "error", err)
	}
}

// flush publishes everything already queued.
func (b *Bridge) flush() {
	for {
		select {
		case msg := <-b.outbox:
			b.publish(msg)
		default:
			return
		}
	}
}

func entityTarget(id host.EntityID) string {
	return strconv.FormatUint(uint64(id), 10)
}
