// Package internet power-cycles the modem when connectivity drops.
package internet

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "internet"

const (
	// outageDuration spans two connectivity checks before acting.
	outageDuration = 90 * time.Second

	// manualWindow skips a restart when the plug was cycled recently.
	manualWindow = 300 * time.Second

	offDuration = 15 * time.Second
)

// App is the connectivity watchdog.
type App struct {
	name     string
	rt       *automation.Runtime
	notifier automation.Notifier
	logger   automation.Logger

	internetUp string
	plug       string
	recipient  string

	restarts int
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:       name,
		rt:         deps.Runtime,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		internetUp: r.String("internet_up"),
		plug:       r.String("modem_plug"),
		recipient:  r.StringDefault("notify", "all"),
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
		Entity:   a.internetUp,
		Filter:   automation.To(hass.StateOff),
		Duration: outageDuration,
		Handler:  a.onOutage,
	})
	return nil
}

// Status implements automation.Statuser.
func (a *App) Status() map[string]any {
	return map[string]any{"restarts": a.restarts}
}

func (a *App) onOutage(ctx context.Context, _ hass.StateChange) {
	if a.rt.RecentlyTriggered(a.plug, manualWindow) {
		a.logger.Info("modem restarted recently, not restarting", "entity_id", a.plug)
		return
	}

	a.logger.Info("restarting modem", "entity_id", a.plug)
	_ = a.rt.TurnOff(ctx, a.plug)
	a.rt.RunIn(offDuration, a.powerOn)
}

func (a *App) powerOn(ctx context.Context) {
	_ = a.rt.TurnOn(ctx, a.plug)
	a.restarts++

	msg := fmt.Sprintf("Restarted %s due to internet outage.", a.plug)
	if err := a.notifier.Notify(ctx, msg, a.recipient, false); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
}
