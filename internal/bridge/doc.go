// Package bridge implements the host contracts (internal/host) over MQTT.
//
// The world host publishes events on {prefix}/host/event/{type}; the bridge
// decodes them on the MQTT goroutine and posts the resulting work to the
// engine's event loop, so every proxy and engine call runs single-threaded.
// In the other direction, proxies (vehicles, zones, avatars, the debug
// drawer) turn method calls into command messages on
// {prefix}/host/command/{kind}/{id}, queued and published by Run so a slow
// broker never stalls the loop.
//
// Zone occupancy is mirrored locally from zone_enter/zone_leave events, and
// vehicle speed and position from vehicle_state events. Avatars are created
// asynchronously: the proxy is addressed by a handle until the host reports
// the avatar's entity id in an avatar_spawned event.
package bridge
