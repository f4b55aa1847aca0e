// Package security locks the front door when the house empties and at night.
package security

import (
	"context"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "security"

const (
	awayDuration = 60 * time.Second
	verifyDelay  = 10 * time.Second

	msgLocked = "Locked the front door."
	msgFailed = "Attempted to lock the front door but failed."
)

var defaultLockTime = automation.NewTimeOfDay(21, 30, 0)

// App is the security app.
type App struct {
	name     string
	rt       *automation.Runtime
	notifier automation.Notifier
	logger   automation.Logger

	people   []string
	lock     string
	lockTime automation.TimeOfDay

	verifyHandle automation.Handle
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:     name,
		rt:       deps.Runtime,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		people:   r.Strings("people"),
		lock:     r.String("front_door_lock"),
		lockTime: r.TimeOfDayDefault("lock_time", defaultLockTime),
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
	for _, person := range a.people {
		a.rt.ListenState(automation.StateListener{
			Entity:   person,
			Filter:   automation.NotTo(hass.StateHome),
			Duration: awayDuration,
			Handler:  a.onPersonAway,
		})
	}
	a.rt.RunDaily(a.lockTime, a.onLockTime)
	return nil
}

func (a *App) onPersonAway(ctx context.Context, _ hass.StateChange) {
	if a.rt.AnyoneHome() {
		return
	}
	a.lockFrontDoor(ctx)
}

func (a *App) onLockTime(ctx context.Context) {
	a.lockFrontDoor(ctx)
}

func (a *App) lockFrontDoor(ctx context.Context) {
	if a.rt.State(a.lock) == hass.StateLocked {
		return
	}
	a.logger.Info("locking front door")
	_ = a.rt.Lock(ctx, a.lock)

	a.rt.Cancel(a.verifyHandle)
	a.verifyHandle = a.rt.RunIn(verifyDelay, a.verify)
}

// verify reports the outcome to everyone either way.
func (a *App) verify(ctx context.Context) {
	msg := msgFailed
	if a.rt.State(a.lock) == hass.StateLocked {
		msg = msgLocked
	}
	if err := a.notifier.Notify(ctx, msg, "all", false); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
}
