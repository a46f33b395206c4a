package bridge

import (
	"strings"
	"time"

	"github.com/nerrad567/railrunner/internal/engine"
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
)

// WorldReadyEvent announces the loaded world.
// Topic: {prefix}/host/event/world_ready
type WorldReadyEvent struct {
	MapID     string          `json:"map_id"`
	Landmarks []host.Landmark `json:"landmarks"`

	// Vehicles already present when the world became ready.
	Vehicles []VehicleState `json:"vehicles,omitempty"`
}

// VehicleState is the payload of vehicle_spawned, vehicle_removed and
// vehicle_state events.
type VehicleState struct {
	ID       host.EntityID `json:"id"`
	Speed    float64       `json:"speed"`
	Position rail.Vector3  `json:"position"`
}

// ZoneEvent reports an entity entering or leaving a zone.
type ZoneEvent struct {
	ZoneID   string        `json:"zone_id"`
	EntityID host.EntityID `json:"entity_id"`
}

// AvatarSpawnedEvent binds an avatar handle to the entity the host created.
type AvatarSpawnedEvent struct {
	Handle   string        `json:"handle"`
	EntityID host.EntityID `json:"entity_id"`
}

// CommandEvent is an operator command relayed by the host. RequestID is
// echoed in the reply.
type CommandEvent struct {
	RequestID string `json:"request_id,omitempty"`
	engine.Command
}

// CommandMessage is sent to the host to act on one entity.
// Topic: {prefix}/host/command/{kind}/{target}
type CommandMessage struct {
	// ID uniquely identifies this command.
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Kind   string `json:"kind"`
	Target string `json:"target"`

	Parameters map[string]any `json:"parameters,omitempty"`
}

// ReplyMessage answers a CommandEvent.
// Topic: {prefix}/host/command/reply/{caller}
type ReplyMessage struct {
	RequestID string         `json:"request_id,omitempty"`
	Caller    string         `json:"caller"`
	Key       string         `json:"key"`
	Params    map[string]any `json:"params,omitempty"`
	OK        bool           `json:"ok"`
}

// topicSegment makes s safe as a single MQTT topic level.
func topicSegment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
