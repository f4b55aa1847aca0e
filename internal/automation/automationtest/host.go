package automationtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/homeapps/internal/hass"
)

// SetStateCall records one SetState request.
type SetStateCall struct {
	EntityID   string
	State      string
	Attributes map[string]any
}

// FakeHost is an in-memory automation.Host. It records every service call
// and set_state, and emits changes to its dispatcher when tests change
// entity state. Service calls do not change state on their own.
type FakeHost struct {
	mu         sync.Mutex
	now        func() time.Time
	states     map[string]hass.State
	calls      []hass.ServiceCall
	setStates  []SetStateCall
	fired      []hass.Event
	dispatcher hass.Dispatcher

	// CallErr, when set, is returned by CallService.
	CallErr error
}

// NewFakeHost creates a host stamping changes with now().
func NewFakeHost(now func() time.Time) *FakeHost {
	return &FakeHost{now: now, states: make(map[string]hass.State)}
}

// SetDispatcher sets where changes and events are delivered.
func (h *FakeHost) SetDispatcher(d hass.Dispatcher) {
	h.mu.Lock()
	h.dispatcher = d
	h.mu.Unlock()
}

// Seed sets an entity's state without dispatching a change. Seeded
// entities keep a zero last_changed, so they never count as recently
// triggered unless SeedChangedAt says otherwise.
func (h *FakeHost) Seed(entityID, state string, attributes map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.states[entityID]
	st.EntityID = entityID
	st.State = state
	if attributes != nil {
		st.Attributes = attributes
	}
	st.LastUpdated = h.now()
	h.states[entityID] = st
}

// SeedChangedAt overrides an entity's last_changed timestamp.
func (h *FakeHost) SeedChangedAt(entityID string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.states[entityID]
	st.EntityID = entityID
	st.LastChanged = at
	h.states[entityID] = st
}

// Change sets an entity's state and dispatches the change when it differs.
func (h *FakeHost) Change(entityID, state string) {
	h.mu.Lock()
	st := h.states[entityID]
	old := st.State
	st.EntityID = entityID
	st.State = state
	now := h.now()
	if old != state {
		st.LastChanged = now
	}
	st.LastUpdated = now
	h.states[entityID] = st
	d := h.dispatcher
	h.mu.Unlock()

	if d != nil && old != state {
		d.DispatchState(hass.StateChange{EntityID: entityID, Old: old, New: state, Time: now})
	}
}

// ChangeAttribute sets one attribute and dispatches the change when it differs.
func (h *FakeHost) ChangeAttribute(entityID, name string, value any) {
	h.mu.Lock()
	st := h.states[entityID]
	st.EntityID = entityID
	var old any
	if st.Attributes == nil {
		st.Attributes = make(map[string]any)
	} else {
		old = st.Attributes[name]
	}
	st.Attributes[name] = value
	now := h.now()
	st.LastUpdated = now
	h.states[entityID] = st
	d := h.dispatcher
	h.mu.Unlock()

	oldStr, newStr := hass.FormatValue(old), hass.FormatValue(value)
	if d != nil && oldStr != newStr {
		d.DispatchState(hass.StateChange{EntityID: entityID, Attribute: name, Old: oldStr, New: newStr, Time: now})
	}
}

// Fire dispatches a bus event.
func (h *FakeHost) Fire(eventType string, data map[string]any) {
	h.mu.Lock()
	d := h.dispatcher
	now := h.now()
	h.mu.Unlock()

	if d != nil {
		d.DispatchEvent(hass.Event{Type: eventType, Data: data, Time: now})
	}
}

// State implements automation.Host.
func (h *FakeHost) State(entityID string) (hass.State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.states[entityID]
	if !ok {
		return hass.State{}, false
	}
	if st.Attributes != nil {
		attrs := make(map[string]any, len(st.Attributes))
		for k, v := range st.Attributes {
			attrs[k] = v
		}
		st.Attributes = attrs
	}
	return st, true
}

// States implements automation.Host.
func (h *FakeHost) States() []hass.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]hass.State, 0, len(h.states))
	for _, st := range h.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// CallService implements automation.Host.
func (h *FakeHost) CallService(_ context.Context, call hass.ServiceCall) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.CallErr != nil {
		return h.CallErr
	}
	h.calls = append(h.calls, call)
	return nil
}

// SetState implements automation.Host. Like Home Assistant echoing the
// new state over statestream, it dispatches the resulting change.
func (h *FakeHost) SetState(_ context.Context, entityID, state string, attributes map[string]any) error {
	h.mu.Lock()
	h.setStates = append(h.setStates, SetStateCall{EntityID: entityID, State: state, Attributes: attributes})
	h.mu.Unlock()

	h.Change(entityID, state)
	return nil
}

// FireEvent implements automation.Host by dispatching the event directly.
func (h *FakeHost) FireEvent(_ context.Context, eventType string, data map[string]any) error {
	h.mu.Lock()
	h.fired = append(h.fired, hass.Event{Type: eventType, Data: data})
	h.mu.Unlock()

	h.Fire(eventType, data)
	return nil
}

// Calls returns the recorded service calls.
func (h *FakeHost) Calls() []hass.ServiceCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hass.ServiceCall(nil), h.calls...)
}

// CallsTo returns the recorded calls of one domain.service.
func (h *FakeHost) CallsTo(domain, service string) []hass.ServiceCall {
	var out []hass.ServiceCall
	for _, c := range h.Calls() {
		if c.Domain == domain && c.Service == service {
			out = append(out, c)
		}
	}
	return out
}

// SetStates returns the recorded set_state requests.
func (h *FakeHost) SetStates() []SetStateCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]SetStateCall(nil), h.setStates...)
}

// FiredEvents returns the events fired through FireEvent.
func (h *FakeHost) FiredEvents() []hass.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hass.Event(nil), h.fired...)
}

// Reset clears recorded calls, set_state requests and fired events.
func (h *FakeHost) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
	h.setStates = nil
	h.fired = nil
}
