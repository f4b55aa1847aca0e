package hass

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Well-known state values.
const (
	StateOn          = "on"
	StateOff         = "off"
	StateHome        = "home"
	StateNotHome     = "not_home"
	StateUnavailable = "unavailable"
	StateLocked      = "locked"
)

// State is the last known state of one entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Domain returns the part of the entity ID before the dot.
func (s State) Domain() string {
	return Domain(s.EntityID)
}

// Attribute returns a single attribute value.
func (s State) Attribute(name string) (any, bool) {
	v, ok := s.Attributes[name]
	return v, ok
}

func (s State) clone() State {
	out := s
	if s.Attributes != nil {
		out.Attributes = make(map[string]any, len(s.Attributes))
		for k, v := range s.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// StateChange describes one field of an entity changing value.
// Attribute is empty when the state itself changed.
type StateChange struct {
	EntityID  string    `json:"entity_id"`
	Attribute string    `json:"attribute,omitempty"`
	Old       string    `json:"old"`
	New       string    `json:"new"`
	Time      time.Time `json:"time"`
}

// Event is a Home Assistant bus event such as zha_event.
type Event struct {
	Type string         `json:"event_type"`
	Data map[string]any `json:"event_data,omitempty"`
	Time time.Time      `json:"time"`
}

// String returns a data field formatted as a string, or "" when absent.
func (e Event) String(key string) string {
	v, ok := e.Data[key]
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// ServiceCall is an outbound request for Home Assistant to run a service.
type ServiceCall struct {
	Domain   string         `json:"domain"`
	Service  string         `json:"service"`
	EntityID string         `json:"entity_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Domain returns the domain of an entity ID ("light" for "light.desk").
func Domain(entityID string) string {
	domain, _, found := strings.Cut(entityID, ".")
	if !found {
		return ""
	}
	return domain
}

// FormatValue renders a decoded attribute value the way listeners compare
// it: strings as-is, numbers without trailing zeros, other values as JSON.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
