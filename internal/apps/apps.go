// Package apps collects the household automations and registers them
// with an automation.Registry by kind.
package apps

import (
	"github.com/nerrad567/homeapps/internal/apps/bedroom"
	"github.com/nerrad567/homeapps/internal/apps/cameras"
	"github.com/nerrad567/homeapps/internal/apps/climate"
	"github.com/nerrad567/homeapps/internal/apps/holiday"
	"github.com/nerrad567/homeapps/internal/apps/internet"
	"github.com/nerrad567/homeapps/internal/apps/laundry"
	"github.com/nerrad567/homeapps/internal/apps/offlighting"
	"github.com/nerrad567/homeapps/internal/apps/outsidelighting"
	"github.com/nerrad567/homeapps/internal/apps/phonewifi"
	"github.com/nerrad567/homeapps/internal/apps/ping"
	"github.com/nerrad567/homeapps/internal/apps/security"
	"github.com/nerrad567/homeapps/internal/apps/sunlighting"
	"github.com/nerrad567/homeapps/internal/apps/toggle"
	"github.com/nerrad567/homeapps/internal/apps/tvlighting"
	"github.com/nerrad567/homeapps/internal/apps/unavailable"
	"github.com/nerrad567/homeapps/internal/apps/worklighting"
	"github.com/nerrad567/homeapps/internal/automation"
)

var factories = map[string]automation.Factory{
	bedroom.Kind:         bedroom.New,
	cameras.Kind:         cameras.New,
	climate.Kind:         climate.New,
	holiday.Kind:         holiday.New,
	internet.Kind:        internet.New,
	laundry.Kind:         laundry.New,
	offlighting.Kind:     offlighting.New,
	outsidelighting.Kind: outsidelighting.New,
	phonewifi.Kind:       phonewifi.New,
	ping.Kind:            ping.New,
	security.Kind:        security.New,
	sunlighting.Kind:     sunlighting.New,
	toggle.Kind:          toggle.New,
	tvlighting.Kind:      tvlighting.New,
	unavailable.Kind:     unavailable.New,
	worklighting.Kind:    worklighting.New,
}

// RegisterAll registers every built-in app kind.
func RegisterAll(reg *automation.Registry) {
	for kind, f := range factories {
		reg.Register(kind, f)
	}
}
