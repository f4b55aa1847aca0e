package automationtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Notification is one recorded Notify call.
type Notification struct {
	Message      string
	Recipient    string
	IfPeopleHome bool
}

// RecordingNotifier implements automation.Notifier by recording calls.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify records the call.
func (n *RecordingNotifier) Notify(_ context.Context, message, recipient string, ifPeopleHome bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Message: message, Recipient: recipient, IfPeopleHome: ifPeopleHome})
	return nil
}

// Sent returns the recorded notifications.
func (n *RecordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// Harness wires a Runtime to a FakeHost and FakeClock.
type Harness struct {
	T        testing.TB
	Clock    *FakeClock
	Host     *FakeHost
	Runtime  *automation.Runtime
	Notifier *RecordingNotifier
}

// New creates a harness whose clock starts at start; the runtime uses
// start's location as the site location.
func New(t testing.TB, start time.Time) *Harness {
	t.Helper()
	clock := NewFakeClock(start)
	host := NewFakeHost(clock.Now)
	rt := automation.New(host, clock, start.Location(), nil)
	host.SetDispatcher(rt)
	t.Cleanup(rt.Close)

	return &Harness{
		T:        t,
		Clock:    clock,
		Host:     host,
		Runtime:  rt,
		Notifier: &RecordingNotifier{},
	}
}

// Deps returns factory dependencies backed by the harness.
func (h *Harness) Deps() automation.Deps {
	return automation.Deps{Runtime: h.Runtime, Notifier: h.Notifier, Logger: automation.NopLogger()}
}

// Start builds an app with factory and initializes it on the runtime.
func (h *Harness) Start(factory automation.Factory, name string, args automation.Args) automation.App {
	h.T.Helper()
	app, err := factory(name, args, h.Deps())
	if err != nil {
		h.T.Fatalf("building %s: %v", name, err)
	}
	if err := h.Runtime.Do(app.Initialize); err != nil {
		h.T.Fatalf("initializing %s: %v", name, err)
	}
	return app
}

// Seed sets entity states without dispatching changes, as pairs of
// entity ID and state.
func (h *Harness) Seed(pairs ...string) {
	if len(pairs)%2 != 0 {
		panic("automationtest: Seed needs entity/state pairs")
	}
	for i := 0; i < len(pairs); i += 2 {
		h.Host.Seed(pairs[i], pairs[i+1], nil)
	}
}

// Advance moves the clock forward.
func (h *Harness) Advance(d time.Duration) {
	h.Clock.Advance(d)
}

// Calls formats recorded service calls as "domain.service entity" strings.
func (h *Harness) Calls() []string {
	var out []string
	for _, c := range h.Host.Calls() {
		out = append(out, FormatCall(c))
	}
	return out
}

// FormatCall renders a call as "domain.service entity".
func FormatCall(c hass.ServiceCall) string {
	s := c.Domain + "." + c.Service
	if c.EntityID != "" {
		s += " " + c.EntityID
	}
	return s
}

// ExpectCalls fails the test unless the recorded calls equal want, then
// clears them.
func (h *Harness) ExpectCalls(want ...string) {
	h.T.Helper()
	got := h.Calls()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		h.T.Errorf("service calls:\n got: %s\nwant: %s", fmt.Sprint(got), fmt.Sprint(want))
	}
	h.Host.Reset()
}

// ExpectNotified fails the test unless exactly the given messages were sent.
func (h *Harness) ExpectNotified(want ...string) {
	h.T.Helper()
	var got []string
	for _, n := range h.Notifier.Sent() {
		got = append(got, n.Message)
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		h.T.Errorf("notifications:\n got: %q\nwant: %q", got, want)
	}
}
