// Package unavailable reports entities that stay unavailable.
package unavailable

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "unavailable"

const unavailableDuration = 30 * time.Second

// App is the unavailable-entities app.
type App struct {
	name     string
	rt       *automation.Runtime
	notifier automation.Notifier
	logger   automation.Logger

	entities  []string
	recipient string
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:      name,
		rt:        deps.Runtime,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		entities:  r.Strings("entities"),
		recipient: r.StringDefault("notify", "all"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

// Name implements automation.App.
func (a *App) Name() string { return a.name }

// Initialize implements automation.App.
func (a *App) Initialize(context.Context) error {
	for _, entity := range a.entities {
		a.rt.ListenState(automation.StateListener{
			Entity:   entity,
			Filter:   automation.To(hass.StateUnavailable),
			Duration: unavailableDuration,
			Handler:  a.onUnavailable,
		})
	}
	return nil
}

func (a *App) onUnavailable(ctx context.Context, change hass.StateChange) {
	msg := fmt.Sprintf("%s is unavailable.", change.EntityID)
	a.logger.Info("entity unavailable", "entity_id", change.EntityID)
	if err := a.notifier.Notify(ctx, msg, a.recipient, false); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
}
