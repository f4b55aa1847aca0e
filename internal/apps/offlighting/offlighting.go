// Package offlighting turns lights off when people leave or go to bed.
package offlighting

import (
	"context"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "offlighting"

// DefaultNightEvent is the bus event that activates night lighting.
const DefaultNightEvent = "CUSTOM_EVENT_NIGHT_LIGHTING"

const (
	awayDuration     = 300 * time.Second
	chargingDuration = 10 * time.Second
	chargerWireless  = "wireless"
)

var (
	bedtimeStart = automation.NewTimeOfDay(20, 30, 0)
	bedtimeEnd   = automation.NewTimeOfDay(3, 0, 0)
)

// room pairs an activity sensor with the light or scene that clears it.
type room struct {
	active string
	target string
	value  string
}

// App is the off-lighting app.
type App struct {
	name   string
	rt     *automation.Runtime
	logger automation.Logger

	people        []string
	owner         string
	allOff        string
	allOffDynamic string
	guestMode     string
	vacationMode  string
	chargerType   string
	nightLighting string
	nightEvent    string
	rooms         []room
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:          name,
		rt:            deps.Runtime,
		logger:        deps.Logger,
		people:        r.Strings("people"),
		owner:         r.String("owner"),
		allOff:        r.String("all_off"),
		allOffDynamic: r.String("all_off_dynamic"),
		guestMode:     r.String("mode_guest"),
		vacationMode:  r.String("vacation_mode"),
		chargerType:   r.String("phone_charger_type"),
		nightLighting: r.String("night_lighting"),
		nightEvent:    r.StringDefault("night_lighting_event", DefaultNightEvent),
		rooms: []room{
			{active: r.String("upstairs_active"), target: r.String("upstairs_living_area_off"), value: hass.StateOn},
			{active: r.String("downstairs_active"), target: r.String("downstairs_lights"), value: hass.StateOff},
			{active: r.String("computer_active"), target: r.String("office_lights"), value: hass.StateOff},
		},
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
			Filter:   automation.To(hass.StateNotHome),
			Duration: awayDuration,
			Handler:  a.onPersonAway,
		})
	}
	a.rt.ListenState(automation.StateListener{
		Entity:   a.chargerType,
		Filter:   automation.To(chargerWireless),
		Duration: chargingDuration,
		Handler:  a.onPhoneCharging,
	})
	a.rt.ListenEvent(automation.EventListener{
		Type:    a.nightEvent,
		Handler: a.onNightLighting,
	})
	return nil
}

func (a *App) onPersonAway(ctx context.Context, _ hass.StateChange) {
	if a.rt.IsOn(a.guestMode) {
		return
	}

	if !a.rt.AnyHome(a.people) {
		a.logger.Info("everyone away, turning off all lights")
		_ = a.rt.TurnOn(ctx, a.allOff)
		return
	}

	a.logger.Info("turning off lights in empty rooms")
	_ = a.rt.TurnOn(ctx, a.allOffDynamic)
	a.clearEmptyRooms(ctx)
}

func (a *App) onNightLighting(ctx context.Context, _ hass.Event) {
	a.logger.Info("turning on night lighting")
	_ = a.rt.TurnOn(ctx, a.nightLighting)
	a.clearEmptyRooms(ctx)
}

func (a *App) onPhoneCharging(ctx context.Context, _ hass.StateChange) {
	if a.rt.IsOn(a.vacationMode) || !a.rt.IsHome(a.owner) || !a.rt.NowIsBetween(bedtimeStart, bedtimeEnd) {
		return
	}
	a.logger.Info("phone charging at night, turning off all lights")
	_ = a.rt.TurnOn(ctx, a.allOff)
}

// clearEmptyRooms turns off rooms whose activity sensor is off.
func (a *App) clearEmptyRooms(ctx context.Context) {
	for _, rm := range a.rooms {
		_ = a.rt.SetStateConditionally(ctx, rm.active, hass.StateOff, rm.target, rm.value)
	}
}
