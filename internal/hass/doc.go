// Package hass links homeapps to Home Assistant over MQTT.
//
// Home Assistant stays the owner of every entity. This package mirrors its
// state through the stock integrations and sends commands back:
//
//   - mqtt_statestream publishes <prefix>/<domain>/<object>/<field> for the
//     state, each attribute (JSON encoded) and the timestamps. Messages are
//     retained, so a fresh subscription replays the whole house.
//   - mqtt_eventstream publishes bus events as {"event_type", "event_data"}.
//   - Service calls go out on homeapps/command/<domain>/<service> and
//     set_state requests on homeapps/state/<entity_id>; a Home Assistant
//     automation subscribed to those topics executes them.
//
// The Bridge keeps a Store of the latest state and hands each change to a
// Dispatcher (the app runtime). The first value seen for a field is treated
// as the initial sync and is not dispatched.
package hass
