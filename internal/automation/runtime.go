package automation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/homeapps/internal/hass"
)

// Host is what the runtime needs from Home Assistant. hass.Bridge
// implements it; automationtest.FakeHost stands in for tests.
type Host interface {
	State(entityID string) (hass.State, bool)
	States() []hass.State
	CallService(ctx context.Context, call hass.ServiceCall) error
	SetState(ctx context.Context, entityID, state string, attributes map[string]any) error
	FireEvent(ctx context.Context, eventType string, data map[string]any) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Telemetry receives command and decision points.
type Telemetry interface {
	WriteCommand(domain, service, entityID string)
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// WebSocket channels.
const (
	ChannelStateChanged  = "state.changed"
	ChannelCommandIssued = "command.issued"
	ChannelAppStatus     = "app.status"
)

// Runtime hosts apps: it holds subscription records, applies listener
// durations, runs timers and dispatches every callback one at a time.
//
// Inbound changes, events and timer expiries are queued and drained by
// whichever goroutine finds the queue idle, so callbacks never overlap and
// run in arrival order. A callback must not block waiting for time; it
// schedules a timer instead.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Runtime struct {
	host   Host
	clock  Clock
	loc    *time.Location
	logger Logger

	hub       WSHub
	telemetry Telemetry
	sinkMu    sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	nextHandle Handle
	stateSubs  map[Handle]*stateSub
	eventSubs  map[Handle]*EventListener
	timers     map[Handle]*timerSub
	closed     bool

	queueMu  sync.Mutex
	queue    []func()
	draining bool
}

type stateSub struct {
	listener StateListener
	pending  Timer
	gen      uint64
}

type timerSub struct {
	timer   Timer
	gen     uint64
	daily   bool
	at      TimeOfDay
	handler TimerHandler
}

// New creates a runtime. A nil clock uses the system clock, a nil location
// uses UTC and a nil logger discards output.
func New(host Host, clock Clock, loc *time.Location, logger Logger) *Runtime {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		host:      host,
		clock:     clock,
		loc:       loc,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		stateSubs: make(map[Handle]*stateSub),
		eventSubs: make(map[Handle]*EventListener),
		timers:    make(map[Handle]*timerSub),
	}
}

// SetHub sets the WebSocket hub for live events (may be nil).
func (r *Runtime) SetHub(hub WSHub) {
	r.sinkMu.Lock()
	r.hub = hub
	r.sinkMu.Unlock()
}

// SetTelemetry sets the telemetry writer (may be nil).
func (r *Runtime) SetTelemetry(t Telemetry) {
	r.sinkMu.Lock()
	r.telemetry = t
	r.sinkMu.Unlock()
}

func (r *Runtime) sinks() (WSHub, Telemetry) {
	r.sinkMu.RLock()
	defer r.sinkMu.RUnlock()
	return r.hub, r.telemetry
}

// Now returns the current time in the site location.
func (r *Runtime) Now() time.Time {
	return r.clock.Now().In(r.loc)
}

// Location returns the site location.
func (r *Runtime) Location() *time.Location {
	return r.loc
}

// Close cancels every listener and timer. Queued callbacks are dropped.
func (r *Runtime) Close() {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, sub := range r.stateSubs {
		if sub.pending != nil {
			sub.pending.Stop()
		}
	}
	for _, ts := range r.timers {
		ts.timer.Stop()
	}
	r.stateSubs = make(map[Handle]*stateSub)
	r.eventSubs = make(map[Handle]*EventListener)
	r.timers = make(map[Handle]*timerSub)
}

// Counts returns the number of active state listeners, event listeners and timers.
func (r *Runtime) Counts() (states, events, timers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stateSubs), len(r.eventSubs), len(r.timers)
}

// =============================================================================
// Registration
// =============================================================================

func (r *Runtime) newHandleLocked() Handle {
	r.nextHandle++
	return r.nextHandle
}

// ListenState registers a state listener.
func (r *Runtime) ListenState(l StateListener) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	h := r.newHandleLocked()
	r.stateSubs[h] = &stateSub{listener: l}
	return h
}

// ListenEvent registers an event listener.
func (r *Runtime) ListenEvent(l EventListener) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	h := r.newHandleLocked()
	r.eventSubs[h] = &l
	return h
}

// RunIn runs fn once after d.
func (r *Runtime) RunIn(d time.Duration, fn TimerHandler) Handle {
	return r.schedule(d, &timerSub{handler: fn})
}

// RunAt runs fn once at t. A time in the past fires immediately.
func (r *Runtime) RunAt(t time.Time, fn TimerHandler) Handle {
	d := t.Sub(r.Now())
	if d < 0 {
		d = 0
	}
	return r.schedule(d, &timerSub{handler: fn})
}

// RunDaily runs fn every day at the given wall-clock time.
func (r *Runtime) RunDaily(at TimeOfDay, fn TimerHandler) Handle {
	return r.schedule(r.untilNext(at), &timerSub{handler: fn, daily: true, at: at})
}

func (r *Runtime) schedule(d time.Duration, ts *timerSub) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	h := r.newHandleLocked()
	r.timers[h] = ts
	r.armLocked(h, ts, d)
	return h
}

func (r *Runtime) armLocked(h Handle, ts *timerSub, d time.Duration) {
	ts.gen++
	gen := ts.gen
	ts.timer = r.clock.AfterFunc(d, func() {
		r.enqueue(func() { r.fireTimer(h, gen) })
	})
}

// untilNext returns the wait until the next occurrence of at, never zero.
func (r *Runtime) untilNext(at TimeOfDay) time.Duration {
	now := r.Now()
	next := at.On(now)
	if !next.After(now) {
		next = at.On(now.AddDate(0, 0, 1))
	}
	return next.Sub(now)
}

func (r *Runtime) fireTimer(h Handle, gen uint64) {
	r.mu.Lock()
	ts, ok := r.timers[h]
	if !ok || ts.gen != gen {
		r.mu.Unlock()
		return
	}
	if ts.daily {
		r.armLocked(h, ts, r.untilNext(ts.at))
	} else {
		delete(r.timers, h)
	}
	handler := ts.handler
	r.mu.Unlock()

	handler(r.ctx)
}

// Cancel removes a listener or stops a timer. It reports whether the
// handle was active. Cancelling the zero Handle is a no-op.
func (r *Runtime) Cancel(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.stateSubs[h]; ok {
		if sub.pending != nil {
			sub.pending.Stop()
		}
		delete(r.stateSubs, h)
		return true
	}
	if _, ok := r.eventSubs[h]; ok {
		delete(r.eventSubs, h)
		return true
	}
	if ts, ok := r.timers[h]; ok {
		ts.timer.Stop()
		delete(r.timers, h)
		return true
	}
	return false
}

// CancelAll cancels every handle in hs and zeroes the slice entries.
func (r *Runtime) CancelAll(hs []Handle) {
	for i, h := range hs {
		r.Cancel(h)
		hs[i] = 0
	}
}

// =============================================================================
// Dispatch
// =============================================================================

// DispatchState queues a state change for delivery to listeners.
func (r *Runtime) DispatchState(change hass.StateChange) {
	if hub, _ := r.sinks(); hub != nil {
		hub.Broadcast(ChannelStateChanged, change)
	}
	r.enqueue(func() { r.deliverState(change) })
}

// DispatchEvent queues an event for delivery to listeners.
func (r *Runtime) DispatchEvent(event hass.Event) {
	r.enqueue(func() { r.deliverEvent(event) })
}

// Do runs fn on the dispatcher and waits for it. It must not be called
// from inside a callback.
func (r *Runtime) Do(fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	r.enqueue(func() { done <- fn(r.ctx) })
	select {
	case err := <-done:
		return err
	case <-r.ctx.Done():
		return ErrClosed
	}
}

func (r *Runtime) deliverState(change hass.StateChange) {
	type call struct {
		handle  Handle
		handler StateHandler
	}
	var calls []call

	r.mu.Lock()
	for h, sub := range r.stateSubs {
		l := sub.listener
		if l.Entity != change.EntityID || l.Attribute != change.Attribute {
			continue
		}
		matched := l.Filter == nil || l.Filter(change.Old, change.New)

		if l.Duration <= 0 {
			if matched {
				calls = append(calls, call{h, l.Handler})
			}
			continue
		}

		if sub.pending != nil {
			sub.pending.Stop()
			sub.pending = nil
		}
		if matched {
			sub.gen++
			handle, gen := h, sub.gen
			sub.pending = r.clock.AfterFunc(l.Duration, func() {
				r.enqueue(func() { r.firePending(handle, gen, change) })
			})
		}
	}
	r.mu.Unlock()

	sort.Slice(calls, func(i, j int) bool { return calls[i].handle < calls[j].handle })
	for _, c := range calls {
		r.runSafely(func() { c.handler(r.ctx, change) })
	}
}

func (r *Runtime) firePending(h Handle, gen uint64, change hass.StateChange) {
	r.mu.Lock()
	sub, ok := r.stateSubs[h]
	if !ok || sub.gen != gen || sub.pending == nil {
		r.mu.Unlock()
		return
	}
	sub.pending = nil
	handler := sub.listener.Handler
	r.mu.Unlock()

	handler(r.ctx, change)
}

func (r *Runtime) deliverEvent(ev hass.Event) {
	type call struct {
		handle  Handle
		handler EventHandler
	}
	var calls []call

	r.mu.Lock()
	for h, l := range r.eventSubs {
		if l.matches(ev) {
			calls = append(calls, call{h, l.Handler})
		}
	}
	r.mu.Unlock()

	sort.Slice(calls, func(i, j int) bool { return calls[i].handle < calls[j].handle })
	for _, c := range calls {
		r.runSafely(func() { c.handler(r.ctx, ev) })
	}
}

// enqueue appends fn to the dispatch queue and drains it unless another
// goroutine already is.
func (r *Runtime) enqueue(fn func()) {
	r.queueMu.Lock()
	r.queue = append(r.queue, fn)
	if r.draining {
		r.queueMu.Unlock()
		return
	}
	r.draining = true
	for len(r.queue) > 0 {
		next := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.queueMu.Unlock()

		r.runSafely(next)

		r.queueMu.Lock()
	}
	r.draining = false
	r.queueMu.Unlock()
}

func (r *Runtime) runSafely(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("callback panic recovered", "panic", p)
		}
	}()

	if r.ctx.Err() != nil {
		return
	}
	fn()
}
