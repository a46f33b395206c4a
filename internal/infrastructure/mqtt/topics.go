package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix roots every topic when no prefix is configured.
const DefaultTopicPrefix = "railrunner"

// Host event types published by the world host on {prefix}/host/event/{type}.
const (
	EventWorldReady     = "world_ready"
	EventVehicleSpawned = "vehicle_spawned"
	EventVehicleRemoved = "vehicle_removed"
	EventVehicleState   = "vehicle_state"
	EventZoneEnter      = "zone_enter"
	EventZoneLeave      = "zone_leave"
	EventAvatarSpawned  = "avatar_spawned"
	EventCommand        = "command"
)

// Command kinds Railrunner publishes on {prefix}/host/command/{kind}/{id}.
const (
	CommandThrottle      = "throttle"
	CommandTrack         = "track"
	CommandDismount      = "dismount"
	CommandFuel          = "fuel"
	CommandDamage        = "damage"
	CommandZoneCreate    = "zone_create"
	CommandZoneReshape   = "zone_reshape"
	CommandZoneDestroy   = "zone_destroy"
	CommandAvatarSpawn   = "avatar_spawn"
	CommandAvatarDress   = "avatar_dress"
	CommandAvatarMount   = "avatar_mount"
	CommandAvatarDamage  = "avatar_damage"
	CommandAvatarDestroy = "avatar_destroy"
	CommandDraw          = "draw"
	CommandReply         = "reply"
)

// Topics builds the topic names of one Railrunner instance.
//
//	topics := mqtt.NewTopics("railrunner")
//	topics.HostCommand(mqtt.CommandThrottle, "42")
//	// Returns: "railrunner/host/command/throttle/42"
type Topics struct {
	Prefix string
}

// NewTopics returns builders rooted at prefix, or DefaultTopicPrefix when
// prefix is empty. Trailing slashes are dropped.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// SystemStatus is where the retained online/offline status is published.
//
// Example: railrunner/system/status
func (t Topics) SystemStatus() string {
	return t.Prefix + "/system/status"
}

// HostEvent returns the topic the host publishes an event type on.
//
// Example: railrunner/host/event/zone_enter
func (t Topics) HostEvent(eventType string) string {
	return fmt.Sprintf("%s/host/event/%s", t.Prefix, eventType)
}

// AllHostEvents matches every host event.
//
// Pattern: railrunner/host/event/+
func (t Topics) AllHostEvents() string {
	return t.Prefix + "/host/event/+"
}

// HostCommand returns the topic of a command addressed to one host entity.
//
// Example: railrunner/host/command/zone_create/7
func (t Topics) HostCommand(kind, id string) string {
	return fmt.Sprintf("%s/host/command/%s/%s", t.Prefix, kind, id)
}

// AllHostCommands matches every command sent to the host.
//
// Pattern: railrunner/host/command/#
func (t Topics) AllHostCommands() string {
	return t.Prefix + "/host/command/#"
}

// Events returns the topic live engine events of a channel are mirrored to.
//
// Example: railrunner/events/vehicles
func (t Topics) Events(channel string) string {
	return fmt.Sprintf("%s/events/%s", t.Prefix, channel)
}

// ParseHostEvent extracts the event type from a host event topic.
func (t Topics) ParseHostEvent(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/host/event/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
