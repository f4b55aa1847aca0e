// homeapps runs household automations against Home Assistant.
//
// State and bus events arrive over MQTT (mqtt_statestream and
// mqtt_eventstream); service calls go back out on a command topic that a
// Home Assistant automation executes. Apps are declared in the config file
// by kind and run on a single dispatcher so their callbacks never overlap.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/homeapps/internal/api"
	"github.com/nerrad567/homeapps/internal/apps"
	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
	"github.com/nerrad567/homeapps/internal/infrastructure/config"
	"github.com/nerrad567/homeapps/internal/infrastructure/influxdb"
	"github.com/nerrad567/homeapps/internal/infrastructure/logging"
	"github.com/nerrad567/homeapps/internal/infrastructure/mqtt"
	"github.com/nerrad567/homeapps/internal/notify"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application body, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence
	log := logging.Default()
	log.Info("starting homeapps",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"timezone", cfg.Site.Timezone,
		"apps", len(cfg.Apps),
	)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	checks := map[string]api.HealthChecker{"mqtt": mqttClient}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// The bridge mirrors state from the moment it subscribes; the runtime
	// only starts dispatching once apps are about to initialize.
	bridge := hass.NewBridge(mqttClient, cfg.HomeAssistant, byte(cfg.MQTT.QoS), log)
	rt := automation.New(bridge, automation.SystemClock{}, cfg.Location(), log.With("component", "runtime"))
	defer rt.Close()
	if influxClient != nil {
		rt.SetTelemetry(influxClient)
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		go hub.Run(ctx)
		rt.SetHub(hub)
	}

	if err := bridge.Start(); err != nil {
		return fmt.Errorf("starting Home Assistant bridge: %w", err)
	}

	if wait := cfg.GetSyncWait(); wait > 0 {
		log.Info("waiting for statestream to settle", "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil
		}
	}
	bridge.SetDispatcher(rt)
	log.Info("state mirror ready", "entities", bridge.Store().Len())

	notifier := notify.New(rt, householdPeople(cfg), log.With("component", "notify"))

	registry := automation.NewRegistry()
	registry.SetLogger(log)
	registry.SetAppLogger(func(name, kind string) automation.Logger { return log.ForApp(name, kind) })
	registry.SetPublisher(bridge)
	apps.RegisterAll(registry)

	if err := registry.Start(rt, notifier, appSpecs(cfg)); err != nil {
		return fmt.Errorf("starting apps: %w", err)
	}
	log.Info("apps started", "count", registry.Count())

	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Runtime:  rt,
			Registry: registry,
			Checks:   checks,
			Hub:      hub,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("homeapps running")
	<-ctx.Done()

	log.Info("shutdown signal received")
	log.Info("homeapps stopped")
	return nil
}

// getConfigPath returns HOMEAPPS_CONFIG when set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("HOMEAPPS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func householdPeople(cfg *config.Config) []notify.Person {
	people := make([]notify.Person, 0, len(cfg.Household.People))
	for _, p := range cfg.Household.People {
		people = append(people, notify.Person{Name: p.Name, Entity: p.Entity, Notify: p.Notify})
	}
	return people
}

// appSpecs lists the enabled apps in name order.
func appSpecs(cfg *config.Config) []automation.Spec {
	var specs []automation.Spec
	for _, name := range cfg.AppNames() {
		app := cfg.Apps[name]
		if !app.IsEnabled() {
			continue
		}
		specs = append(specs, automation.Spec{Name: name, Kind: app.Kind, Args: automation.Args(app.Args)})
	}
	return specs
}
