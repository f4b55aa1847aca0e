package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/homeapps/internal/infrastructure/config"
)

// Topic prefixes for topics homeapps owns.
const (
	// TopicPrefixCore is the base for runtime events published by homeapps.
	TopicPrefixCore = "homeapps/core"

	// TopicPrefixSystem is the base for system topics (status, LWT).
	TopicPrefixSystem = "homeapps/system"
)

// Statestream field names that are not entity attributes.
const (
	FieldState       = "state"
	FieldLastChanged = "last_changed"
	FieldLastUpdated = "last_updated"
)

// Topics builds the Home Assistant bridge topics plus homeapps' own topics.
//
// The zero value is usable for the system and core topics; the Home
// Assistant topics need the prefixes from NewTopics.
//
//	topics := mqtt.NewTopics(cfg.HomeAssistant)
//	topics.Command("light", "turn_on")
//	// Returns: "homeapps/command/light/turn_on"
type Topics struct {
	statestream string
	eventstream string
	command     string
	state       string
}

// NewTopics returns a topic builder for the configured Home Assistant prefixes.
func NewTopics(cfg config.HomeAssistantConfig) Topics {
	return Topics{
		statestream: strings.TrimSuffix(cfg.StatestreamPrefix, "/"),
		eventstream: cfg.EventstreamTopic,
		command:     strings.TrimSuffix(cfg.CommandPrefix, "/"),
		state:       strings.TrimSuffix(cfg.StatePrefix, "/"),
	}
}

// =============================================================================
// Home Assistant Topics
// =============================================================================

// AllStates returns a pattern matching every statestream message.
//
// Pattern: homeassistant/statestream/#
func (t Topics) AllStates() string {
	return t.statestream + "/#"
}

// EntityField returns the statestream topic for one field of an entity.
//
// Example: homeassistant/statestream/climate/kitchen_thermostat/temperature
func (t Topics) EntityField(entityID, field string) string {
	domain, object, _ := strings.Cut(entityID, ".")
	return fmt.Sprintf("%s/%s/%s/%s", t.statestream, domain, object, field)
}

// ParseStatestream splits a statestream topic into entity ID and field.
// The field is FieldState, FieldLastChanged, FieldLastUpdated or an attribute name.
//
// Example: homeassistant/statestream/person/owen/state -> ("person.owen", "state", true)
func (t Topics) ParseStatestream(topic string) (entityID, field string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.statestream+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0] + "." + parts[1], parts[2], true
}

// Events returns the eventstream topic.
//
// Example: homeassistant/events
func (t Topics) Events() string {
	return t.eventstream
}

// Command returns the topic a service call is published on.
//
// Example: homeapps/command/climate/set_temperature
func (t Topics) Command(domain, service string) string {
	return fmt.Sprintf("%s/%s/%s", t.command, domain, service)
}

// SetState returns the topic used to overwrite an entity's state.
//
// Example: homeapps/state/input_select.thermostat_state
func (t Topics) SetState(entityID string) string {
	return fmt.Sprintf("%s/%s", t.state, entityID)
}

// =============================================================================
// Core Topics
// =============================================================================

// CoreEvent returns the topic for runtime events.
//
// Example: homeapps/core/event/thermostat_decision
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// AppStatus returns the retained status topic for one app instance.
//
// Example: homeapps/core/app/climate/status
func (Topics) AppStatus(appName string) string {
	return fmt.Sprintf("%s/app/%s/status", TopicPrefixCore, appName)
}

// AllCoreEvents returns a pattern matching all runtime events.
//
// Pattern: homeapps/core/event/+
func (Topics) AllCoreEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCore)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: homeapps/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
