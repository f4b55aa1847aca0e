package hass

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/homeapps/internal/infrastructure/mqtt"
)

// Store holds the latest mirrored state of every entity.
//
// All methods are safe for concurrent use. Returned States are copies.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*entry
}

type entry struct {
	state State
	seen  map[string]bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entities: make(map[string]*entry)}
}

// Get returns the state of one entity.
func (s *Store) Get(entityID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[entityID]
	if !ok {
		return State{}, false
	}
	return e.state.clone(), true
}

// All returns every entity sorted by ID.
func (s *Store) All() []State {
	s.mu.RLock()
	out := make([]State, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.state.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Len returns the number of known entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Apply records one statestream field and reports whether it is a change
// worth dispatching. The first value of each field only seeds the store.
func (s *Store) Apply(entityID, field string, payload []byte, now time.Time) (StateChange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		e = &entry{
			state: State{EntityID: entityID},
			seen:  make(map[string]bool),
		}
		s.entities[entityID] = e
	}
	seen := e.seen[field]
	e.seen[field] = true

	switch field {
	case mqtt.FieldState:
		value := string(payload)
		old := e.state.State
		if seen && old == value {
			return StateChange{}, false
		}
		e.state.State = value
		if !seen {
			// Seeded entities keep the broker's last_changed, or zero.
			if e.state.LastUpdated.IsZero() {
				e.state.LastUpdated = now
			}
			return StateChange{}, false
		}
		e.state.LastChanged = now
		e.state.LastUpdated = now
		return StateChange{EntityID: entityID, Old: old, New: value, Time: now}, true

	case mqtt.FieldLastChanged, mqtt.FieldLastUpdated:
		ts, err := parseTimestamp(payload)
		if err != nil {
			return StateChange{}, false
		}
		if field == mqtt.FieldLastChanged {
			e.state.LastChanged = ts
		} else {
			e.state.LastUpdated = ts
		}
		return StateChange{}, false

	default:
		return s.applyAttribute(e, field, payload, seen, now)
	}
}

func (s *Store) applyAttribute(e *entry, name string, payload []byte, seen bool, now time.Time) (StateChange, bool) {
	old, had := e.state.Attributes[name]

	if len(payload) == 0 {
		delete(e.state.Attributes, name)
		if !had || !seen {
			return StateChange{}, false
		}
		return StateChange{EntityID: e.state.EntityID, Attribute: name, Old: FormatValue(old), Time: now}, true
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		value = string(payload)
	}
	if e.state.Attributes == nil {
		e.state.Attributes = make(map[string]any)
	}
	e.state.Attributes[name] = value
	e.state.LastUpdated = now

	oldStr, newStr := FormatValue(old), FormatValue(value)
	if !seen || (had && oldStr == newStr) {
		return StateChange{}, false
	}
	return StateChange{EntityID: e.state.EntityID, Attribute: name, Old: oldStr, New: newStr, Time: now}, true
}

// parseTimestamp accepts both raw and JSON-quoted ISO 8601 timestamps.
func parseTimestamp(payload []byte) (time.Time, error) {
	raw := strings.Trim(strings.TrimSpace(string(payload)), `"`)
	return time.Parse(time.RFC3339Nano, raw)
}
