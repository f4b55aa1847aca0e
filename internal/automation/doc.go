// Package automation is the in-process host for homeapps apps.
//
// Home Assistant owns entity state; the Runtime turns the mirrored changes
// and bus events into callbacks, one at a time.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                   Runtime (runtime.go)                   │
//	│  hass.Bridge ──▶ DispatchState / DispatchEvent            │
//	│                        │                                 │
//	│                        ▼                                 │
//	│  ┌──────────────────────────────────────────────────┐    │
//	│  │  Serial dispatch queue                            │    │
//	│  │  1. Match StateListener / EventListener records   │    │
//	│  │  2. Arm duration timers, cancel on later changes  │    │
//	│  │  3. Fire RunIn / RunAt / RunDaily timers          │    │
//	│  │  4. Run callbacks with panic recovery             │    │
//	│  └──────────────────────────────────────────────────┘    │
//	│                        │                                 │
//	│                        ▼                                 │
//	│  Helpers (helpers.go): TurnOn, Lock, SetState, IsHome …  │
//	└──────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Runtime: subscription records, timers and the dispatch queue
//   - StateListener / EventListener: explicit subscription records
//   - Handle: cancellation token returned by every registration
//   - Registry: app kinds, factories and started apps
//   - Args: typed access to an app's YAML arguments
//
// # Usage
//
//	rt := automation.New(bridge, nil, cfg.Location(), log)
//	bridge.SetDispatcher(rt)
//
//	reg := automation.NewRegistry()
//	apps.RegisterAll(reg)
//	if err := reg.Start(rt, notifier, specs); err != nil {
//	    return err
//	}
package automation
