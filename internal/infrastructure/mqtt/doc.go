// Package mqtt connects Railrunner to the world host over an MQTT broker.
//
// The host publishes world events (vehicle spawns, zone entries, operator
// commands) and executes the commands Railrunner publishes back (throttle,
// zone creation, avatar spawning, debug drawing):
//
//	Railrunner ↔ MQTT Broker ↔ World host
//
// Topics are rooted at a configurable prefix:
//
//	{prefix}/host/event/{type}         host → railrunner
//	{prefix}/host/command/{kind}/{id}  railrunner → host
//	{prefix}/system/status             retained online/offline status (LWT)
//	{prefix}/events/{channel}          mirrored live engine events
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.World.TopicPrefix)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllHostEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        eventType, _ := topics.ParseHostEvent(topic)
//	        return handle(eventType, payload)
//	    })
//
// TLS should be enabled whenever the broker is not on the same host.
package mqtt
