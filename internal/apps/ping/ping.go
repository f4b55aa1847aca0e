// Package ping presses a ping button when a device goes unavailable and
// retries on a fixed schedule before giving up.
package ping

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "ping"

const (
	checkDelay  = 5 * time.Second
	retryDelay  = 300 * time.Second
	maxAttempts = 3
)

type target struct {
	entity string
	ping   string
	sync   string

	attempts int
	pending  automation.Handle
	failed   bool
}

// App is the retry-ping app.
type App struct {
	name     string
	rt       *automation.Runtime
	notifier automation.Notifier
	logger   automation.Logger

	recipient string
	targets   []*target
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	entries, err := args.List("entities")
	if err != nil {
		return nil, err
	}
	recipient, err := args.StringDefault("notify", "all")
	if err != nil {
		return nil, err
	}

	a := &App{
		name:      name,
		rt:        deps.Runtime,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		recipient: recipient,
	}
	for i, entry := range entries {
		r := entry.Reader()
		t := &target{
			entity: r.String("entity"),
			ping:   r.String("ping"),
			sync:   r.StringDefault("sync_entity", ""),
		}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("entities[%d]: %w", i, err)
		}
		a.targets = append(a.targets, t)
	}
	return a, nil
}

// Name implements automation.App.
func (a *App) Name() string { return a.name }

// Initialize implements automation.App.
func (a *App) Initialize(context.Context) error {
	for _, t := range a.targets {
		a.rt.ListenState(automation.StateListener{
			Entity: t.entity,
			Filter: automation.To(hass.StateUnavailable),
			Handler: func(ctx context.Context, _ hass.StateChange) {
				a.start(ctx, t)
			},
		})
	}
	return nil
}

// Status implements automation.Statuser.
func (a *App) Status() map[string]any {
	status := make(map[string]any, len(a.targets))
	for _, t := range a.targets {
		status[t.entity] = map[string]any{"attempts": t.attempts, "failed": t.failed}
	}
	return status
}

func (a *App) start(ctx context.Context, t *target) {
	a.rt.Cancel(t.pending)
	t.attempts = 0
	t.failed = false
	a.ping(ctx, t)
}

func (a *App) ping(ctx context.Context, t *target) {
	t.attempts++
	a.logger.Info("pinging unavailable entity", "entity_id", t.entity, "attempt", t.attempts)
	_ = a.rt.Press(ctx, t.ping)
	t.pending = a.rt.RunIn(checkDelay, func(ctx context.Context) { a.check(ctx, t) })
}

func (a *App) check(ctx context.Context, t *target) {
	t.pending = 0

	if a.rt.State(t.entity) != hass.StateUnavailable {
		a.logger.Info("entity recovered", "entity_id", t.entity, "attempts", t.attempts)
		t.attempts = 0
		if t.sync != "" {
			_ = a.rt.SyncEntities(ctx, t.sync, t.entity)
		}
		return
	}

	if t.attempts >= maxAttempts {
		t.failed = true
		msg := fmt.Sprintf("%s pinged multiple times but still unavailable.", t.entity)
		if err := a.notifier.Notify(ctx, msg, a.recipient, false); err != nil {
			a.logger.Warn("notification failed", "error", err)
		}
		return
	}

	a.logger.Info("entity still unavailable", "entity_id", t.entity, "attempts", t.attempts)
	t.pending = a.rt.RunIn(retryDelay, func(ctx context.Context) { a.ping(ctx, t) })
}
