package automation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/automation/automationtest"
)

func TestPredicates(t *testing.T) {
	h := automationtest.New(t, start)
	h.Seed(
		"light.desk", "on",
		"light.lamp", "off",
		"person.owen", "home",
		"person.allison", "not_home",
	)
	rt := h.Runtime

	if !rt.IsOn("light.desk") || rt.IsOn("light.lamp") || rt.IsOn("light.missing") {
		t.Error("IsOn() mismatch")
	}
	if !rt.IsHome("person.owen") || rt.IsHome("person.allison") {
		t.Error("IsHome() mismatch")
	}
	if !rt.AnyoneHome() {
		t.Error("AnyoneHome() = false with owen home")
	}
	if !rt.AnyHome([]string{"person.allison", "person.owen"}) || rt.AnyHome([]string{"person.allison"}) {
		t.Error("AnyHome() mismatch")
	}

	h.Host.Change("person.owen", "not_home")
	if rt.AnyoneHome() {
		t.Error("AnyoneHome() = true with everyone away")
	}

	// device_tracker entities do not count.
	h.Seed("device_tracker.phone", "home")
	if rt.AnyoneHome() {
		t.Error("AnyoneHome() should only consider person entities")
	}

	if rt.State("light.missing") != "" {
		t.Error("State() of unknown entity should be empty")
	}
}

func TestRecentlyTriggered(t *testing.T) {
	h := automationtest.New(t, start)
	h.Seed("switch.modem", "on")

	if h.Runtime.RecentlyTriggered("switch.modem", 300*time.Second) {
		t.Error("seeded entity without last_changed should not be recent")
	}

	h.Host.Change("switch.modem", "off")
	h.Advance(300 * time.Second)
	if !h.Runtime.RecentlyTriggered("switch.modem", 300*time.Second) {
		t.Error("change exactly 300s ago should count as recent")
	}
	h.Advance(time.Second)
	if h.Runtime.RecentlyTriggered("switch.modem", 300*time.Second) {
		t.Error("change 301s ago should not count as recent")
	}
	if h.Runtime.RecentlyTriggered("switch.unknown", time.Hour) {
		t.Error("unknown entity should not be recent")
	}
}

func TestCloseToHome(t *testing.T) {
	tests := []struct {
		name     string
		distance string
		dir      any
		want     bool
	}{
		{"close and towards", "3", "towards", true},
		{"float distance", "4.9", "towards", true},
		{"at home", "0", "towards", false},
		{"too far", "5", "towards", false},
		{"moving away", "2", "away_from", false},
		{"stationary", "2", "stationary", false},
		{"no direction", "2", nil, false},
		{"unparsable", "unknown", "towards", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := automationtest.New(t, start)
			attrs := map[string]any{}
			if tt.dir != nil {
				attrs["dir_of_travel"] = tt.dir
			}
			h.Host.Seed("proximity.home", tt.distance, attrs)

			if got := h.Runtime.CloseToHome("proximity.home"); got != tt.want {
				t.Errorf("CloseToHome() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNowIsBetween(t *testing.T) {
	tests := []struct {
		name  string
		clock time.Time
		start automation.TimeOfDay
		end   automation.TimeOfDay
		want  bool
	}{
		{"inside day window", time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC), automation.NewTimeOfDay(11, 0, 0), automation.NewTimeOfDay(13, 30, 0), true},
		{"start inclusive", time.Date(2026, 1, 12, 11, 0, 0, 0, time.UTC), automation.NewTimeOfDay(11, 0, 0), automation.NewTimeOfDay(13, 30, 0), true},
		{"after window", time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC), automation.NewTimeOfDay(11, 0, 0), automation.NewTimeOfDay(13, 30, 0), false},
		{"wraps midnight late", time.Date(2026, 1, 12, 23, 0, 0, 0, time.UTC), automation.NewTimeOfDay(20, 30, 0), automation.NewTimeOfDay(3, 0, 0), true},
		{"wraps midnight early", time.Date(2026, 1, 12, 2, 0, 0, 0, time.UTC), automation.NewTimeOfDay(20, 30, 0), automation.NewTimeOfDay(3, 0, 0), true},
		{"outside wrapped window", time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC), automation.NewTimeOfDay(20, 30, 0), automation.NewTimeOfDay(3, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := automationtest.New(t, tt.clock)
			if got := h.Runtime.NowIsBetween(tt.start, tt.end); got != tt.want {
				t.Errorf("NowIsBetween() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeAndNumberState(t *testing.T) {
	h := automationtest.New(t, start)
	h.Seed(
		"input_datetime.day", "06:30:00",
		"input_datetime.bad", "unknown",
		"input_number.day_temperature", "68.0",
		"input_number.bad", "unavailable",
	)

	if tod, err := h.Runtime.TimeState("input_datetime.day"); err != nil || tod != automation.NewTimeOfDay(6, 30, 0) {
		t.Errorf("TimeState() = %v, %v", tod, err)
	}
	if _, err := h.Runtime.TimeState("input_datetime.bad"); !errors.Is(err, automation.ErrInvalidTime) {
		t.Errorf("TimeState(bad) error = %v, want ErrInvalidTime", err)
	}
	if _, err := h.Runtime.TimeState("input_datetime.missing"); !errors.Is(err, automation.ErrUnknownEntity) {
		t.Errorf("TimeState(missing) error = %v, want ErrUnknownEntity", err)
	}
	if n, err := h.Runtime.NumberState("input_number.day_temperature"); err != nil || n != 68 {
		t.Errorf("NumberState() = %d, %v", n, err)
	}
	if _, err := h.Runtime.NumberState("input_number.bad"); !errors.Is(err, automation.ErrInvalidNumber) {
		t.Errorf("NumberState(bad) error = %v, want ErrInvalidNumber", err)
	}
}

func TestAttributeFloat(t *testing.T) {
	h := automationtest.New(t, start)
	h.Host.Seed("light.desk", "on", map[string]any{"brightness": 128.0, "effect": "none"})

	if v, ok := h.Runtime.AttributeFloat("light.desk", "brightness"); !ok || v != 128 {
		t.Errorf("AttributeFloat(brightness) = %v, %v", v, ok)
	}
	if _, ok := h.Runtime.AttributeFloat("light.desk", "effect"); ok {
		t.Error("AttributeFloat(effect) should fail for a string")
	}
	if _, ok := h.Runtime.AttributeFloat("light.desk", "missing"); ok {
		t.Error("AttributeFloat(missing) should fail")
	}
}

// =============================================================================
// Command Helper Tests
// =============================================================================

func TestCommandHelpers(t *testing.T) {
	h := automationtest.New(t, start)
	ctx := context.Background()
	rt := h.Runtime

	steps := []error{
		rt.TurnOn(ctx, "scene.all_off"),
		rt.TurnOnWith(ctx, "light.desk", map[string]any{"brightness": 255}),
		rt.TurnOff(ctx, "switch.modem"),
		rt.Toggle(ctx, "light.lamp"),
		rt.Lock(ctx, "lock.front_door"),
		rt.Press(ctx, "button.ping_plug"),
		rt.CallService(ctx, "climate", "set_temperature", "climate.kitchen", map[string]any{"temperature": 68}),
	}
	for i, err := range steps {
		if err != nil {
			t.Errorf("step %d error = %v", i, err)
		}
	}

	h.ExpectCalls(
		"scene.turn_on scene.all_off",
		"light.turn_on light.desk",
		"switch.turn_off switch.modem",
		"light.toggle light.lamp",
		"lock.lock lock.front_door",
		"button.press button.ping_plug",
		"climate.set_temperature climate.kitchen",
	)

	if err := rt.TurnOn(ctx, "nodomain"); err == nil {
		t.Error("TurnOn(nodomain) should fail")
	}
}

func TestCallService_Failure(t *testing.T) {
	h := automationtest.New(t, start)
	h.Host.CallErr = errors.New("broker down")

	err := h.Runtime.TurnOn(context.Background(), "light.desk")
	if err == nil || !errors.Is(err, h.Host.CallErr) {
		t.Errorf("TurnOn() error = %v, want wrapped broker error", err)
	}
}

func TestSyncEntities(t *testing.T) {
	tests := []struct {
		name    string
		correct string
		toSync  string
		want    []string
	}{
		{"already in sync on", "on", "on", nil},
		{"already in sync off", "off", "off", nil},
		{"turn on", "on", "off", []string{"switch.plug.turn_on"}},
		{"turn off", "off", "on", []string{"switch.plug.turn_off"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := automationtest.New(t, start)
			h.Seed("light.known_good", tt.correct, "switch.plug", tt.toSync)

			if err := h.Runtime.SyncEntities(context.Background(), "light.known_good", "switch.plug"); err != nil {
				t.Fatalf("SyncEntities() error = %v", err)
			}

			var got []string
			for _, c := range h.Host.Calls() {
				got = append(got, c.EntityID+"."+c.Service)
			}
			if len(got) != len(tt.want) || (len(got) == 1 && got[0] != tt.want[0]) {
				t.Errorf("calls = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetStateConditionally(t *testing.T) {
	tests := []struct {
		name      string
		test      string
		target    string
		value     string
		wantCalls []string
		wantSet   int
	}{
		{"test matches, target differs", "off", "on", "off", []string{"light.turn_off light.downstairs"}, 0},
		{"test matches, target already at value", "off", "off", "off", nil, 0},
		{"test does not match", "on", "on", "off", nil, 0},
		{"turn on", "off", "off", "on", []string{"light.turn_on light.downstairs"}, 0},
		{"other value uses set_state", "off", "on", "dim", nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := automationtest.New(t, start)
			h.Seed("binary_sensor.downstairs_active", tt.test, "light.downstairs", tt.target)

			err := h.Runtime.SetStateConditionally(context.Background(),
				"binary_sensor.downstairs_active", "off", "light.downstairs", tt.value)
			if err != nil {
				t.Fatalf("SetStateConditionally() error = %v", err)
			}
			if got := len(h.Host.SetStates()); got != tt.wantSet {
				t.Errorf("set_state calls = %d, want %d", got, tt.wantSet)
			}
			h.ExpectCalls(tt.wantCalls...)
		})
	}
}

func TestSetState(t *testing.T) {
	h := automationtest.New(t, start)
	h.Seed("input_select.thermostat_state", "home")

	if err := h.Runtime.SetState(context.Background(), "input_select.thermostat_state", "away", nil); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	if got := h.Runtime.State("input_select.thermostat_state"); got != "away" {
		t.Errorf("state = %q, want away", got)
	}
}
