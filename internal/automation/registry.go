package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the runtime and apps.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

// Notifier sends messages to household members.
type Notifier interface {
	// Notify sends message to recipient ("all" for everyone). When
	// ifPeopleHome is set the message is dropped while nobody is home.
	Notify(ctx context.Context, message, recipient string, ifPeopleHome bool) error
}

// App is one automation hosted by the runtime.
type App interface {
	Name() string

	// Initialize registers listeners and timers. It runs on the
	// dispatcher, so it may read state and issue commands.
	Initialize(ctx context.Context) error
}

// Statuser is implemented by apps that expose live status to the API.
type Statuser interface {
	Status() map[string]any
}

// Deps are handed to every factory.
type Deps struct {
	Runtime  *Runtime
	Notifier Notifier
	Logger   Logger
}

// Factory builds an app from its arguments. It must return an error
// wrapping ErrMissingArg or ErrInvalidArg for bad configuration.
type Factory func(name string, args Args, deps Deps) (App, error)

// Spec describes one configured app instance.
type Spec struct {
	Name string
	Kind string
	Args Args
}

// StatusPublisher publishes retained app status documents.
type StatusPublisher interface {
	PublishAppStatus(name string, status any) error
}

// AppInfo is the API view of a running app.
type AppInfo struct {
	Name      string         `json:"name"`
	Kind      string         `json:"kind"`
	StartedAt time.Time      `json:"started_at"`
	Status    map[string]any `json:"status,omitempty"`
}

type appEntry struct {
	kind      string
	app       App
	startedAt time.Time
}

// Registry maps app kinds to factories and tracks started apps.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	apps      map[string]*appEntry

	rt        *Runtime
	logger    Logger
	appLogger func(name, kind string) Logger
	publisher StatusPublisher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		apps:      make(map[string]*appEntry),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetAppLogger sets how per-app loggers are derived.
func (r *Registry) SetAppLogger(fn func(name, kind string) Logger) {
	r.appLogger = fn
}

// SetPublisher sets where app status documents are published (may be nil).
func (r *Registry) SetPublisher(p StatusPublisher) {
	r.publisher = p
}

// Register binds a kind name to a factory. Registering a kind twice
// replaces the earlier factory.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Start builds and initializes every spec in order. The first failure
// stops startup and is returned wrapped with the app name.
func (r *Registry) Start(rt *Runtime, notifier Notifier, specs []Spec) error {
	r.mu.Lock()
	r.rt = rt
	r.mu.Unlock()

	for _, spec := range specs {
		if err := r.start(rt, notifier, spec); err != nil {
			return fmt.Errorf("app %q: %w", spec.Name, err)
		}
	}
	return nil
}

func (r *Registry) start(rt *Runtime, notifier Notifier, spec Spec) error {
	r.mu.RLock()
	factory, ok := r.factories[spec.Kind]
	_, exists := r.apps[spec.Name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
	if exists {
		return ErrDuplicateApp
	}

	logger := r.logger
	if r.appLogger != nil {
		logger = r.appLogger(spec.Name, spec.Kind)
	}

	app, err := factory(spec.Name, spec.Args, Deps{Runtime: rt, Notifier: notifier, Logger: logger})
	if err != nil {
		return err
	}
	if err := rt.Do(app.Initialize); err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	entry := &appEntry{kind: spec.Kind, app: app, startedAt: rt.Now()}
	r.mu.Lock()
	r.apps[spec.Name] = entry
	r.mu.Unlock()

	r.logger.Info("app started", "app", spec.Name, "kind", spec.Kind)

	info := r.info(spec.Name, entry)
	if r.publisher != nil {
		if err := r.publisher.PublishAppStatus(spec.Name, info); err != nil {
			r.logger.Warn("failed to publish app status", "app", spec.Name, "error", err)
		}
	}
	rt.Broadcast(ChannelAppStatus, info)
	return nil
}

// info reads app status on the dispatcher so apps need no locking.
// It must not be called from inside a callback.
func (r *Registry) info(name string, e *appEntry) AppInfo {
	info := AppInfo{Name: name, Kind: e.kind, StartedAt: e.startedAt}
	s, ok := e.app.(Statuser)
	if !ok || r.rt == nil {
		return info
	}
	_ = r.rt.Do(func(context.Context) error {
		info.Status = s.Status()
		return nil
	})
	return info
}

// Apps returns every started app sorted by name.
func (r *Registry) Apps() []AppInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AppInfo, 0, len(r.apps))
	for name, e := range r.apps {
		out = append(out, r.info(name, e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// App returns one started app.
func (r *Registry) App(name string) (AppInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.apps[name]
	if !ok {
		return AppInfo{}, false
	}
	return r.info(name, e), true
}

// Count returns the number of started apps.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.apps)
}
