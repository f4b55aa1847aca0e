// Package mqtt provides MQTT client connectivity for homeapps.
//
// MQTT is the only link between homeapps and Home Assistant:
//
//	Home Assistant (mqtt_statestream, mqtt_eventstream) -> broker -> homeapps
//	homeapps -> homeapps/command/<domain>/<service> -> broker -> HA automation
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Last Will and Testament (LWT) on homeapps/system/status
//   - Subscriptions that are restored after a reconnect
//   - Handler panic recovery
//   - Topic builders for statestream, eventstream and command topics
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.HomeAssistant)
//	err = client.Subscribe(topics.AllStates(), 1,
//	    func(topic string, payload []byte) error {
//	        entity, field, ok := topics.ParseStatestream(topic)
//	        ...
//	    })
//
// Retained statestream messages are replayed by the broker on subscribe, so
// the state cache is warm a moment after startup.
package mqtt
