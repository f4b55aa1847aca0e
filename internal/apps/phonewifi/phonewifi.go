// Package phonewifi reminds the owner to join Wi-Fi when home on cellular.
package phonewifi

import (
	"context"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "phonewifi"

const (
	holdDuration    = 1800 * time.Second
	networkCellular = "cellular"

	msgCellular = "Your phone is currently connected to cellular data"
)

// App is the phone Wi-Fi reminder.
type App struct {
	name     string
	rt       *automation.Runtime
	notifier automation.Notifier
	logger   automation.Logger

	owner     string
	network   string
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
		owner:     r.String("owner"),
		network:   r.String("phone_network"),
		recipient: r.String("notify"),
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
		Entity:   a.owner,
		Filter:   automation.To(hass.StateHome),
		Duration: holdDuration,
		Handler:  a.check,
	})
	a.rt.ListenState(automation.StateListener{
		Entity:   a.network,
		Filter:   automation.To(networkCellular),
		Duration: holdDuration,
		Handler:  a.check,
	})
	return nil
}

func (a *App) check(ctx context.Context, _ hass.StateChange) {
	if !a.rt.IsHome(a.owner) || a.rt.State(a.network) != networkCellular {
		return
	}
	a.logger.Info("owner home on cellular data")
	if err := a.notifier.Notify(ctx, msgCellular, a.recipient, false); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
}
