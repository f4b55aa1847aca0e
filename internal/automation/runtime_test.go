package automation_test

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/automation/automationtest"
	"github.com/nerrad567/homeapps/internal/hass"
)

var start = time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC)

// recorder collects handler invocations.
type recorder struct {
	changes []hass.StateChange
	events  []hass.Event
	ticks   []time.Time
}

func (r *recorder) onState(_ context.Context, c hass.StateChange) { r.changes = append(r.changes, c) }
func (r *recorder) onEvent(_ context.Context, e hass.Event)       { r.events = append(r.events, e) }

// =============================================================================
// State Listener Tests
// =============================================================================

func TestListenState_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter automation.StateFilter
		steps  []string
		want   int
	}{
		{"any change", nil, []string{"home", "not_home", "home"}, 3},
		{"to", automation.To("not_home"), []string{"home", "not_home", "work", "not_home"}, 2},
		{"not to", automation.NotTo("home"), []string{"home", "not_home", "home"}, 1},
		{"from", automation.From("home"), []string{"home", "not_home", "work"}, 1},
		{"from to", automation.FromTo("on", "off"), []string{"on", "off", "on", "dim", "off"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := automationtest.New(t, start)
			h.Seed("person.owen", "unknown")
			rec := &recorder{}
			h.Runtime.ListenState(automation.StateListener{
				Entity:  "person.owen",
				Filter:  tt.filter,
				Handler: rec.onState,
			})

			for _, s := range tt.steps {
				h.Host.Change("person.owen", s)
			}
			if len(rec.changes) != tt.want {
				t.Errorf("handler calls = %d, want %d", len(rec.changes), tt.want)
			}
		})
	}
}

func TestListenState_OtherEntityIgnored(t *testing.T) {
	h := automationtest.New(t, start)
	rec := &recorder{}
	h.Runtime.ListenState(automation.StateListener{Entity: "light.desk", Handler: rec.onState})

	h.Host.Change("light.lamp", "on")

	if len(rec.changes) != 0 {
		t.Errorf("handler calls = %d, want 0", len(rec.changes))
	}
}

func TestListenState_Duration(t *testing.T) {
	h := automationtest.New(t, start)
	h.Seed("person.owen", "home")
	rec := &recorder{}
	h.Runtime.ListenState(automation.StateListener{
		Entity:   "person.owen",
		Filter:   automation.To("not_home"),
		Duration: 300 * time.Second,
		Handler:  rec.onState,
	})

	h.Host.Change("person.owen", "not_home")
	h.Advance(299 * time.Second)
	if len(rec.changes) != 0 {
		t.Fatal("fired before the duration elapsed")
	}

	h.Advance(time.Second)
	if len(rec.changes) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(rec.changes))
	}
	if c := rec.changes[0]; c.Old != "home" || c.New != "not_home" {
		t.Errorf("change = %+v", c)
	}
}

func TestListenState_DurationCancelledByChange(t *testing.T) {
	h := automationtest.New(t, start)
	h.Seed("person.owen", "home")
	rec := &recorder{}
	h.Runtime.ListenState(automation.StateListener{
		Entity:   "person.owen",
		Filter:   automation.To("not_home"),
		Duration: 300 * time.Second,
		Handler:  rec.onState,
	})

	h.Host.Change("person.owen", "not_home")
	h.Advance(100 * time.Second)
	h.Host.Change("person.owen", "home") // flap back
	h.Advance(time.Hour)
	if len(rec.changes) != 0 {
		t.Fatalf("handler calls = %d, want 0 after flapping back", len(rec.changes))
	}

	// Re-armed by a fresh matching change.
	h.Host.Change("person.owen", "not_home")
	h.Advance(300 * time.Second)
	if len(rec.changes) != 1 {
		t.Errorf("handler calls = %d, want 1", len(rec.changes))
	}
}

func TestListenState_DurationAnyChange(t *testing.T) {
	h := automationtest.New(t, start)
	h.Seed("sensor.zone_home", "0")
	rec := &recorder{}
	h.Runtime.ListenState(automation.StateListener{
		Entity:   "sensor.zone_home",
		Duration: 300 * time.Second,
		Handler:  rec.onState,
	})

	h.Host.Change("sensor.zone_home", "1")
	h.Advance(200 * time.Second)
	h.Host.Change("sensor.zone_home", "2")
	h.Advance(200 * time.Second)
	if len(rec.changes) != 0 {
		t.Fatal("a later change must restart the hold")
	}
	h.Advance(100 * time.Second)
	if len(rec.changes) != 1 || rec.changes[0].New != "2" {
		t.Errorf("changes = %+v, want one change to 2", rec.changes)
	}
}

func TestListenState_Attribute(t *testing.T) {
	h := automationtest.New(t, start)
	rec := &recorder{}
	h.Runtime.ListenState(automation.StateListener{
		Entity:    "climate.kitchen",
		Attribute: "current_temperature",
		Handler:   rec.onState,
	})

	h.Host.ChangeAttribute("climate.kitchen", "current_temperature", 68.0)
	h.Host.Change("climate.kitchen", "heat")
	h.Host.ChangeAttribute("climate.kitchen", "current_temperature", 68.0)
	h.Host.ChangeAttribute("climate.kitchen", "current_temperature", 70.5)

	if len(rec.changes) != 2 {
		t.Fatalf("handler calls = %d, want 2", len(rec.changes))
	}
	if c := rec.changes[1]; c.Old != "68" || c.New != "70.5" {
		t.Errorf("change = %+v", c)
	}
}

func TestListenState_HandlersRunInRegistrationOrder(t *testing.T) {
	h := automationtest.New(t, start)
	var order []int
	for i := 1; i <= 3; i++ {
		n := i
		h.Runtime.ListenState(automation.StateListener{
			Entity:  "light.desk",
			Handler: func(context.Context, hass.StateChange) { order = append(order, n) },
		})
	}

	h.Host.Change("light.desk", "on")

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

// =============================================================================
// Event Listener Tests
// =============================================================================

func TestListenEvent(t *testing.T) {
	h := automationtest.New(t, start)
	rec := &recorder{}
	h.Runtime.ListenEvent(automation.EventListener{
		Type:    "zha_event",
		Match:   map[string]string{"device_id": "abc", "command": "on"},
		Handler: rec.onEvent,
	})

	h.Host.Fire("zha_event", map[string]any{"device_id": "abc", "command": "on"})
	h.Host.Fire("zha_event", map[string]any{"device_id": "abc", "command": "off"})
	h.Host.Fire("zha_event", map[string]any{"device_id": "xyz", "command": "on"})
	h.Host.Fire("other_event", map[string]any{"device_id": "abc", "command": "on"})

	if len(rec.events) != 1 {
		t.Errorf("handler calls = %d, want 1", len(rec.events))
	}
}

func TestFireEvent_ReachesListeners(t *testing.T) {
	h := automationtest.New(t, start)
	rec := &recorder{}
	h.Runtime.ListenEvent(automation.EventListener{Type: "CUSTOM_EVENT_NIGHT_LIGHTING", Handler: rec.onEvent})

	if err := h.Runtime.FireEvent(context.Background(), "CUSTOM_EVENT_NIGHT_LIGHTING", nil); err != nil {
		t.Fatalf("FireEvent() error = %v", err)
	}
	if len(rec.events) != 1 || len(h.Host.FiredEvents()) != 1 {
		t.Errorf("events = %d fired = %d, want 1 and 1", len(rec.events), len(h.Host.FiredEvents()))
	}
}

// =============================================================================
// Timer Tests
// =============================================================================

func TestRunIn(t *testing.T) {
	h := automationtest.New(t, start)
	fired := 0
	h.Runtime.RunIn(10*time.Second, func(context.Context) { fired++ })

	h.Advance(9 * time.Second)
	if fired != 0 {
		t.Fatal("fired early")
	}
	h.Advance(time.Second)
	h.Advance(time.Hour)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	if _, _, timers := h.Runtime.Counts(); timers != 0 {
		t.Errorf("timers = %d, want 0 after a one-shot fired", timers)
	}
}

func TestRunAt(t *testing.T) {
	h := automationtest.New(t, start)
	var firedAt []time.Time
	h.Runtime.RunAt(start.Add(time.Minute), func(context.Context) { firedAt = append(firedAt, h.Runtime.Now()) })
	h.Runtime.RunAt(start.Add(-time.Minute), func(context.Context) { firedAt = append(firedAt, h.Runtime.Now()) })

	h.Advance(0)
	if len(firedAt) != 1 || !firedAt[0].Equal(start) {
		t.Fatalf("past RunAt should fire immediately, got %v", firedAt)
	}
	h.Advance(time.Minute)
	if len(firedAt) != 2 || !firedAt[1].Equal(start.Add(time.Minute)) {
		t.Errorf("firedAt = %v", firedAt)
	}
}

func TestRunDaily(t *testing.T) {
	h := automationtest.New(t, start) // 14:00
	rec := &recorder{}
	h.Runtime.RunDaily(automation.NewTimeOfDay(21, 30, 0), func(context.Context) {
		rec.ticks = append(rec.ticks, h.Runtime.Now())
	})

	h.Advance(3 * 24 * time.Hour)

	if len(rec.ticks) != 3 {
		t.Fatalf("ticks = %d, want 3", len(rec.ticks))
	}
	for i, tick := range rec.ticks {
		want := time.Date(2026, 1, 12+i, 21, 30, 0, 0, time.UTC)
		if !tick.Equal(want) {
			t.Errorf("tick %d = %v, want %v", i, tick, want)
		}
	}
}

func TestRunDaily_AtCurrentTimeWaitsADay(t *testing.T) {
	h := automationtest.New(t, start)
	fired := 0
	h.Runtime.RunDaily(automation.NewTimeOfDay(14, 0, 0), func(context.Context) { fired++ })

	h.Advance(time.Hour)
	if fired != 0 {
		t.Fatal("daily timer at the current time should wait for tomorrow")
	}
	h.Advance(23 * time.Hour)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestRunDaily_Location(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	h := automationtest.New(t, time.Date(2026, 1, 12, 6, 0, 0, 0, chicago))
	var at time.Time
	h.Runtime.RunDaily(automation.NewTimeOfDay(7, 0, 0), func(context.Context) { at = h.Runtime.Now() })

	h.Advance(2 * time.Hour)

	if at.Hour() != 7 || at.Location() != chicago {
		t.Errorf("fired at %v, want 07:00 Chicago", at)
	}
}

// =============================================================================
// Cancellation Tests
// =============================================================================

func TestCancel(t *testing.T) {
	h := automationtest.New(t, start)
	rec := &recorder{}
	fired := 0

	stateHandle := h.Runtime.ListenState(automation.StateListener{Entity: "light.desk", Handler: rec.onState})
	durHandle := h.Runtime.ListenState(automation.StateListener{Entity: "light.lamp", Duration: time.Minute, Handler: rec.onState})
	eventHandle := h.Runtime.ListenEvent(automation.EventListener{Type: "zha_event", Handler: rec.onEvent})
	timerHandle := h.Runtime.RunIn(time.Minute, func(context.Context) { fired++ })
	dailyHandle := h.Runtime.RunDaily(automation.NewTimeOfDay(15, 0, 0), func(context.Context) { fired++ })

	h.Host.Change("light.lamp", "on") // arms the duration timer

	for _, handle := range []automation.Handle{stateHandle, durHandle, eventHandle, timerHandle, dailyHandle} {
		if !h.Runtime.Cancel(handle) {
			t.Errorf("Cancel(%d) = false, want true", handle)
		}
		if h.Runtime.Cancel(handle) {
			t.Errorf("second Cancel(%d) = true, want false", handle)
		}
	}
	if h.Runtime.Cancel(0) {
		t.Error("Cancel(0) = true")
	}

	h.Host.Change("light.desk", "on")
	h.Host.Fire("zha_event", nil)
	h.Advance(48 * time.Hour)

	if len(rec.changes) != 0 || len(rec.events) != 0 || fired != 0 {
		t.Errorf("cancelled handlers ran: changes=%d events=%d timers=%d", len(rec.changes), len(rec.events), fired)
	}
	if s, e, tm := h.Runtime.Counts(); s+e+tm != 0 {
		t.Errorf("Counts() = %d/%d/%d, want all zero", s, e, tm)
	}
}

func TestCancelAll(t *testing.T) {
	h := automationtest.New(t, start)
	fired := 0
	handles := []automation.Handle{
		h.Runtime.RunIn(time.Second, func(context.Context) { fired++ }),
		h.Runtime.RunIn(2*time.Second, func(context.Context) { fired++ }),
	}

	h.Runtime.CancelAll(handles)
	h.Advance(time.Minute)

	if fired != 0 || handles[0] != 0 || handles[1] != 0 {
		t.Errorf("fired = %d handles = %v", fired, handles)
	}
}

func TestCancelDailyFromItsOwnCallback(t *testing.T) {
	h := automationtest.New(t, start)
	fired := 0
	var handle automation.Handle
	handle = h.Runtime.RunDaily(automation.NewTimeOfDay(15, 0, 0), func(context.Context) {
		fired++
		h.Runtime.Cancel(handle)
	})

	h.Advance(72 * time.Hour)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

// =============================================================================
// Dispatch Tests
// =============================================================================

func TestDispatch_NestedChangesQueued(t *testing.T) {
	h := automationtest.New(t, start)
	var order []string

	h.Runtime.ListenState(automation.StateListener{
		Entity: "input_boolean.a",
		Handler: func(ctx context.Context, _ hass.StateChange) {
			order = append(order, "a:start")
			h.Host.Change("input_boolean.b", "on")
			order = append(order, "a:end")
		},
	})
	h.Runtime.ListenState(automation.StateListener{
		Entity:  "input_boolean.b",
		Handler: func(context.Context, hass.StateChange) { order = append(order, "b") },
	})

	h.Host.Change("input_boolean.a", "on")

	want := []string{"a:start", "a:end", "b"}
	if len(order) != 3 || order[0] != want[0] || order[1] != want[1] || order[2] != want[2] {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestDispatch_PanicRecovered(t *testing.T) {
	h := automationtest.New(t, start)
	rec := &recorder{}
	h.Runtime.ListenState(automation.StateListener{
		Entity:  "light.desk",
		Handler: func(context.Context, hass.StateChange) { panic("boom") },
	})
	h.Runtime.ListenState(automation.StateListener{Entity: "light.desk", Handler: rec.onState})

	h.Host.Change("light.desk", "on")
	h.Host.Change("light.desk", "off")

	if len(rec.changes) != 2 {
		t.Errorf("second handler calls = %d, want 2", len(rec.changes))
	}
}

func TestDo(t *testing.T) {
	h := automationtest.New(t, start)
	ran := false
	err := h.Runtime.Do(func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Errorf("Do() = %v ran=%v", err, ran)
	}
}

func TestClose(t *testing.T) {
	h := automationtest.New(t, start)
	rec := &recorder{}
	fired := 0
	h.Runtime.ListenState(automation.StateListener{Entity: "light.desk", Handler: rec.onState})
	h.Runtime.RunIn(time.Second, func(context.Context) { fired++ })

	h.Runtime.Close()

	h.Host.Change("light.desk", "on")
	h.Advance(time.Minute)
	if len(rec.changes) != 0 || fired != 0 {
		t.Error("callbacks ran after Close")
	}
	if handle := h.Runtime.RunIn(time.Second, func(context.Context) {}); handle != 0 {
		t.Errorf("RunIn after Close = %d, want 0", handle)
	}
	if err := h.Runtime.Do(func(context.Context) error { return nil }); err == nil {
		t.Error("Do after Close should fail")
	}
}

// =============================================================================
// Sink Tests
// =============================================================================

type mockHub struct{ channels []string }

func (m *mockHub) Broadcast(channel string, _ any) { m.channels = append(m.channels, channel) }

type mockTelemetry struct {
	commands []string
	points   []string
}

func (m *mockTelemetry) WriteCommand(domain, service, entityID string) {
	m.commands = append(m.commands, domain+"."+service+" "+entityID)
}
func (m *mockTelemetry) WritePoint(measurement string, _ map[string]string, _ map[string]any) {
	m.points = append(m.points, measurement)
}

func TestSinks(t *testing.T) {
	h := automationtest.New(t, start)
	hub := &mockHub{}
	tel := &mockTelemetry{}
	h.Runtime.SetHub(hub)
	h.Runtime.SetTelemetry(tel)

	h.Host.Change("light.desk", "on")
	if err := h.Runtime.TurnOff(context.Background(), "light.desk"); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}
	h.Runtime.Record("thermostat", nil, map[string]any{"target": 68})

	if len(hub.channels) != 2 || hub.channels[0] != automation.ChannelStateChanged || hub.channels[1] != automation.ChannelCommandIssued {
		t.Errorf("hub channels = %v", hub.channels)
	}
	if len(tel.commands) != 1 || tel.commands[0] != "light.turn_off light.desk" {
		t.Errorf("telemetry commands = %v", tel.commands)
	}
	if len(tel.points) != 1 || tel.points[0] != "thermostat" {
		t.Errorf("telemetry points = %v", tel.points)
	}
}
