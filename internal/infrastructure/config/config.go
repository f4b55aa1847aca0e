package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // site zones must resolve in minimal containers

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for homeapps.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site          SiteConfig           `yaml:"site"`
	MQTT          MQTTConfig           `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig  `yaml:"homeassistant"`
	API           APIConfig            `yaml:"api"`
	WebSocket     WebSocketConfig      `yaml:"websocket"`
	InfluxDB      InfluxDBConfig       `yaml:"influxdb"`
	Logging       LoggingConfig        `yaml:"logging"`
	Household     HouseholdConfig      `yaml:"household"`
	Apps          map[string]AppConfig `yaml:"apps"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// HomeAssistantConfig describes how Home Assistant is reached over MQTT.
//
// State arrives through the mqtt_statestream integration, bus events through
// mqtt_eventstream. Commands go out on CommandPrefix and are executed by a
// Home Assistant automation subscribed to that prefix.
type HomeAssistantConfig struct {
	StatestreamPrefix string `yaml:"statestream_prefix"`
	EventstreamTopic  string `yaml:"eventstream_topic"`
	CommandPrefix     string `yaml:"command_prefix"`
	StatePrefix       string `yaml:"state_prefix"`
	Source            string `yaml:"source"`

	// SyncWait is how long (seconds) to let retained statestream messages
	// settle before apps initialize.
	SyncWait int `yaml:"sync_wait"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HouseholdConfig lists the people notifications can be routed to.
type HouseholdConfig struct {
	People []PersonConfig `yaml:"people"`
}

// PersonConfig ties a household member to their presence entity and
// notify service name.
type PersonConfig struct {
	// Name is the recipient name apps refer to (e.g. "owen").
	Name string `yaml:"name"`

	// Entity is the person tracker (e.g. "person.owen").
	Entity string `yaml:"entity"`

	// Notify is the notify service target (e.g. "mobile_app_owen_phone").
	Notify string `yaml:"notify"`
}

// AppConfig declares one app instance.
type AppConfig struct {
	// Kind selects the registered app constructor (e.g. "climate").
	Kind string `yaml:"kind"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`

	// Args holds the app's own keys, usually entity IDs.
	Args map[string]any `yaml:"args"`
}

// IsEnabled reports whether the app should be started.
func (a AppConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file next to the config file, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMEAPPS_SECTION_KEY
// For example: HOMEAPPS_MQTT_HOST, HOMEAPPS_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads environment variables from path. A missing file is not an error.
// Variables already present in the environment are left untouched.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "home",
			Name:     "Home",
			Timezone: "UTC",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homeapps",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		HomeAssistant: HomeAssistantConfig{
			StatestreamPrefix: "homeassistant/statestream",
			EventstreamTopic:  "homeassistant/events",
			CommandPrefix:     "homeapps/command",
			StatePrefix:       "homeapps/state",
			Source:            "homeapps",
			SyncWait:          3,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMEAPPS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOMEAPPS_SITE_TIMEZONE"); v != "" {
		cfg.Site.Timezone = v
	}

	// MQTT
	if v := os.Getenv("HOMEAPPS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMEAPPS_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HOMEAPPS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMEAPPS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HOMEAPPS_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HOMEAPPS_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("HOMEAPPS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("HOMEAPPS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	ha := c.HomeAssistant
	if ha.StatestreamPrefix == "" || ha.EventstreamTopic == "" || ha.CommandPrefix == "" || ha.StatePrefix == "" {
		errs = append(errs, "homeassistant topics must not be empty")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	seen := make(map[string]struct{}, len(c.Household.People))
	for i, p := range c.Household.People {
		if p.Name == "" || p.Entity == "" || p.Notify == "" {
			errs = append(errs, fmt.Sprintf("household.people[%d] needs name, entity and notify", i))
			continue
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Sprintf("household.people: duplicate name %q", p.Name))
		}
		seen[p.Name] = struct{}{}
	}

	for _, name := range c.AppNames() {
		if c.Apps[name].Kind == "" {
			errs = append(errs, fmt.Sprintf("apps.%s.kind is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AppNames returns the configured app names in a stable order.
func (c *Config) AppNames() []string {
	names := make([]string, 0, len(c.Apps))
	for name := range c.Apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Location returns the site time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetSyncWait returns the statestream settle time as a Duration.
func (c *Config) GetSyncWait() time.Duration {
	return time.Duration(c.HomeAssistant.SyncWait) * time.Second
}
