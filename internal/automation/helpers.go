package automation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/homeapps/internal/hass"
)

const (
	attrDirOfTravel = "dir_of_travel"
	dirTowards      = "towards"

	// closeToHomeDistance is the proximity (in the proximity entity's unit)
	// under which someone heading home counts as close.
	closeToHomeDistance = 5

	domainPerson = "person"
)

// =============================================================================
// State queries
// =============================================================================

// Entity returns the mirrored state of an entity.
func (r *Runtime) Entity(entityID string) (hass.State, bool) {
	return r.host.State(entityID)
}

// Entities returns every mirrored entity, sorted by ID.
func (r *Runtime) Entities() []hass.State {
	states := r.host.States()
	sort.Slice(states, func(i, j int) bool { return states[i].EntityID < states[j].EntityID })
	return states
}

// State returns an entity's state, or "" when unknown.
func (r *Runtime) State(entityID string) string {
	st, ok := r.host.State(entityID)
	if !ok {
		return ""
	}
	return st.State
}

// Attribute returns one attribute of an entity.
func (r *Runtime) Attribute(entityID, name string) (any, bool) {
	st, ok := r.host.State(entityID)
	if !ok {
		return nil, false
	}
	return st.Attribute(name)
}

// AttributeFloat returns a numeric attribute.
func (r *Runtime) AttributeFloat(entityID, name string) (float64, bool) {
	v, ok := r.Attribute(entityID, name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// IsOn reports whether the entity's state is "on".
func (r *Runtime) IsOn(entityID string) bool {
	return r.State(entityID) == hass.StateOn
}

// IsHome reports whether the entity's state is "home".
func (r *Runtime) IsHome(entityID string) bool {
	return r.State(entityID) == hass.StateHome
}

// AnyoneHome reports whether any person entity is home.
func (r *Runtime) AnyoneHome() bool {
	for _, st := range r.host.States() {
		if st.Domain() == domainPerson && st.State == hass.StateHome {
			return true
		}
	}
	return false
}

// AnyHome reports whether any of the given entities is home.
func (r *Runtime) AnyHome(entityIDs []string) bool {
	for _, id := range entityIDs {
		if r.IsHome(id) {
			return true
		}
	}
	return false
}

// RecentlyTriggered reports whether the entity changed within d.
func (r *Runtime) RecentlyTriggered(entityID string, d time.Duration) bool {
	st, ok := r.host.State(entityID)
	if !ok || st.LastChanged.IsZero() {
		return false
	}
	return !r.Now().After(st.LastChanged.Add(d))
}

// CloseToHome reports whether a proximity entity shows someone less than
// five units away and travelling towards home.
func (r *Runtime) CloseToHome(proximityID string) bool {
	st, ok := r.host.State(proximityID)
	if !ok {
		return false
	}
	distance, err := ParseInputNumber(st.State)
	if err != nil {
		return false
	}
	dir, _ := st.Attribute(attrDirOfTravel)
	return distance > 0 && distance < closeToHomeDistance && hass.FormatValue(dir) == dirTowards
}

// NowIsBetween reports whether the current time of day is within
// [start, end], wrapping past midnight.
func (r *Runtime) NowIsBetween(start, end TimeOfDay) bool {
	return TimeOfDayAt(r.Now()).Between(start, end)
}

// TimeState parses an input_datetime (time only) state.
func (r *Runtime) TimeState(entityID string) (TimeOfDay, error) {
	st, ok := r.host.State(entityID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	return ParseTimeOfDay(st.State)
}

// NumberState parses an input_number state as a truncated int.
func (r *Runtime) NumberState(entityID string) (int, error) {
	st, ok := r.host.State(entityID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	n, err := ParseInputNumber(st.State)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", entityID, err)
	}
	return n, nil
}

// =============================================================================
// Commands
// =============================================================================

// CallService asks Home Assistant to run domain.service. Failures are
// logged at warn and returned; they are never retried.
func (r *Runtime) CallService(ctx context.Context, domain, service, entityID string, data map[string]any) error {
	call := hass.ServiceCall{Domain: domain, Service: service, EntityID: entityID, Data: data}
	if err := r.host.CallService(ctx, call); err != nil {
		r.logger.Warn("service call failed",
			"service", domain+"."+service,
			"entity_id", entityID,
			"error", err,
		)
		return fmt.Errorf("%s.%s %s: %w", domain, service, entityID, err)
	}

	r.logger.Debug("service called", "service", domain+"."+service, "entity_id", entityID)

	hub, telemetry := r.sinks()
	if telemetry != nil {
		telemetry.WriteCommand(domain, service, entityID)
	}
	if hub != nil {
		hub.Broadcast(ChannelCommandIssued, call)
	}
	return nil
}

func (r *Runtime) entityService(ctx context.Context, service, entityID string, data map[string]any) error {
	domain := hass.Domain(entityID)
	if domain == "" {
		return fmt.Errorf("%w: %q", hass.ErrInvalidEntity, entityID)
	}
	return r.CallService(ctx, domain, service, entityID, data)
}

// TurnOn turns an entity on (scenes are activated).
func (r *Runtime) TurnOn(ctx context.Context, entityID string) error {
	return r.entityService(ctx, "turn_on", entityID, nil)
}

// TurnOnWith turns an entity on with service data such as brightness.
func (r *Runtime) TurnOnWith(ctx context.Context, entityID string, data map[string]any) error {
	return r.entityService(ctx, "turn_on", entityID, data)
}

// TurnOff turns an entity off.
func (r *Runtime) TurnOff(ctx context.Context, entityID string) error {
	return r.entityService(ctx, "turn_off", entityID, nil)
}

// Toggle toggles an entity.
func (r *Runtime) Toggle(ctx context.Context, entityID string) error {
	return r.entityService(ctx, "toggle", entityID, nil)
}

// Lock locks a lock entity.
func (r *Runtime) Lock(ctx context.Context, entityID string) error {
	return r.entityService(ctx, "lock", entityID, nil)
}

// Press presses a button entity.
func (r *Runtime) Press(ctx context.Context, entityID string) error {
	return r.entityService(ctx, "press", entityID, nil)
}

// SetState sets an entity's state directly in Home Assistant.
func (r *Runtime) SetState(ctx context.Context, entityID, state string, attributes map[string]any) error {
	if err := r.host.SetState(ctx, entityID, state, attributes); err != nil {
		r.logger.Warn("set state failed", "entity_id", entityID, "state", state, "error", err)
		return fmt.Errorf("set state %s: %w", entityID, err)
	}
	return nil
}

// FireEvent publishes a homeapps event.
func (r *Runtime) FireEvent(ctx context.Context, eventType string, data map[string]any) error {
	if err := r.host.FireEvent(ctx, eventType, data); err != nil {
		r.logger.Warn("fire event failed", "event_type", eventType, "error", err)
		return fmt.Errorf("fire event %s: %w", eventType, err)
	}
	return nil
}

// SyncEntities turns toSync on or off to match correct, only when they differ.
func (r *Runtime) SyncEntities(ctx context.Context, correct, toSync string) error {
	want := r.IsOn(correct)
	if want == r.IsOn(toSync) {
		return nil
	}
	if want {
		return r.TurnOn(ctx, toSync)
	}
	return r.TurnOff(ctx, toSync)
}

// SetStateConditionally drives target to value when test is in the
// expected state and target is not already at value. On/off values are
// applied with turn_on/turn_off; anything else is set directly.
func (r *Runtime) SetStateConditionally(ctx context.Context, test, expected, target, value string) error {
	current := r.State(test)
	r.logger.Debug("set state conditionally",
		"test", test, "current", current, "expected", expected,
		"target", target, "value", value,
	)
	if current != expected || r.State(target) == value {
		return nil
	}

	switch value {
	case hass.StateOn:
		return r.TurnOn(ctx, target)
	case hass.StateOff:
		return r.TurnOff(ctx, target)
	default:
		return r.SetState(ctx, target, value, nil)
	}
}

// Record writes a telemetry point when telemetry is configured.
func (r *Runtime) Record(measurement string, tags map[string]string, fields map[string]any) {
	if _, telemetry := r.sinks(); telemetry != nil {
		telemetry.WritePoint(measurement, tags, fields)
	}
}

// Broadcast forwards an event to the WebSocket hub when one is set.
func (r *Runtime) Broadcast(channel string, payload any) {
	if hub, _ := r.sinks(); hub != nil {
		hub.Broadcast(channel, payload)
	}
}
