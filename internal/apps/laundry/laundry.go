// Package laundry announces finished washer and dryer cycles.
package laundry

import (
	"context"
	"fmt"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "laundry"

const (
	washerFinished = "finish"

	// The dryer usually reports "finished" but sometimes drops from
	// "cooling" straight to "none", so leaving cooling is the signal.
	dryerCooling = "cooling"
)

// App is the laundry app.
type App struct {
	name     string
	rt       *automation.Runtime
	notifier automation.Notifier
	logger   automation.Logger

	washer    string
	dryer     string
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
		washer:    r.String("washer"),
		dryer:     r.String("dryer"),
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
	a.rt.ListenState(automation.StateListener{
		Entity:  a.washer,
		Filter:  automation.To(washerFinished),
		Handler: a.onCompleted("washer"),
	})
	a.rt.ListenState(automation.StateListener{
		Entity:  a.dryer,
		Filter:  automation.From(dryerCooling),
		Handler: a.onCompleted("dryer"),
	})
	return nil
}

func (a *App) onCompleted(device string) automation.StateHandler {
	return func(ctx context.Context, _ hass.StateChange) {
		msg := fmt.Sprintf("The %s has completed!", device)
		a.logger.Info("laundry cycle completed", "device", device)
		if err := a.notifier.Notify(ctx, msg, a.recipient, false); err != nil {
			a.logger.Warn("notification failed", "error", err)
		}
	}
}
