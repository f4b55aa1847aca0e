package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/homeapps/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "homeapps-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func testTopics() Topics {
	return NewTopics(config.HomeAssistantConfig{
		StatestreamPrefix: "homeassistant/statestream/",
		EventstreamTopic:  "homeassistant/events",
		CommandPrefix:     "homeapps/command",
		StatePrefix:       "homeapps/state",
	})
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := testTopics()

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"AllStates", topics.AllStates(), "homeassistant/statestream/#"},
		{"EntityField", topics.EntityField("climate.kitchen_thermostat", "temperature"), "homeassistant/statestream/climate/kitchen_thermostat/temperature"},
		{"Events", topics.Events(), "homeassistant/events"},
		{"Command", topics.Command("climate", "set_temperature"), "homeapps/command/climate/set_temperature"},
		{"SetState", topics.SetState("input_select.thermostat_state"), "homeapps/state/input_select.thermostat_state"},
		{"CoreEvent", topics.CoreEvent("thermostat_decision"), "homeapps/core/event/thermostat_decision"},
		{"AppStatus", topics.AppStatus("climate"), "homeapps/core/app/climate/status"},
		{"AllCoreEvents", topics.AllCoreEvents(), "homeapps/core/event/+"},
		{"SystemStatus", Topics{}.SystemStatus(), "homeapps/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestParseStatestream(t *testing.T) {
	topics := testTopics()

	tests := []struct {
		topic     string
		wantID    string
		wantField string
		wantOK    bool
	}{
		{"homeassistant/statestream/person/owen/state", "person.owen", FieldState, true},
		{"homeassistant/statestream/sun/sun/elevation", "sun.sun", "elevation", true},
		{"homeassistant/statestream/light/desk/last_changed", "light.desk", FieldLastChanged, true},
		{"homeassistant/statestream/person/owen", "", "", false},
		{"homeassistant/statestream/person/owen/state/extra", "", "", false},
		{"homeassistant/statestream//owen/state", "", "", false},
		{"other/statestream/person/owen/state", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, field, ok := topics.ParseStatestream(tt.topic)
			if ok != tt.wantOK || id != tt.wantID || field != tt.wantField {
				t.Errorf("ParseStatestream(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, id, field, ok, tt.wantID, tt.wantField, tt.wantOK)
			}
		})
	}
}

func TestParseStatestream_RoundTripsEntityField(t *testing.T) {
	topics := testTopics()
	topic := topics.EntityField("binary_sensor.internet_up", FieldState)
	id, field, ok := topics.ParseStatestream(topic)
	if !ok || id != "binary_sensor.internet_up" || field != FieldState {
		t.Errorf("ParseStatestream(EntityField()) = (%q, %q, %v)", id, field, ok)
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "ha", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "homeapps-test" {
		t.Errorf("ClientID = %q, want homeapps-test", opts.ClientID)
	}
	if opts.Username != "ha" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want ha/secret", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "homeapps-test")

	if !opts.WillEnabled || opts.WillTopic != "homeapps/system/status" || !opts.WillRetained {
		t.Errorf("will = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var status statusPayload
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if status.Status != StatusOffline || status.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", status)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var status statusPayload
	if err := json.Unmarshal(buildStatusPayload(StatusOnline, "id-1", ""), &status); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if status.Status != StatusOnline || status.ClientID != "id-1" || status.Timestamp == "" {
		t.Errorf("payload = %+v", status)
	}
	if strings.Contains(string(buildStatusPayload(StatusOnline, "id-1", "")), "reason") {
		t.Error("empty reason should be omitted")
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

func TestWrapHandler_RecoversPanic(t *testing.T) {
	log := &recordingLogger{}
	c := &Client{}
	c.SetLogger(log)

	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "homeassistant/events"})

	if len(log.errors) != 1 {
		t.Errorf("errors logged = %d, want 1", len(log.errors))
	}
}

func TestWrapHandler_LogsReturnedError(t *testing.T) {
	log := &recordingLogger{}
	c := &Client{}
	c.SetLogger(log)

	var gotTopic, gotPayload string
	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return errors.New("bad payload")
	})
	wrapped(nil, fakeMessage{topic: "a/b", payload: []byte("x")})

	if gotTopic != "a/b" || gotPayload != "x" {
		t.Errorf("handler got (%q, %q), want (a/b, x)", gotTopic, gotPayload)
	}
	if len(log.warns) != 1 {
		t.Errorf("warnings logged = %d, want 1", len(log.warns))
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := &Client{}
	wrapped := c.wrapHandler(func(string, []byte) error { panic("ignored") })
	wrapped(nil, fakeMessage{topic: "t"})
}

// =============================================================================
// Validation Tests (no broker)
// =============================================================================

func TestPublishValidation(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"invalid qos", "t", nil, 3, ErrInvalidQoS},
		{"too large", "t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "t", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_Unmarshallable(t *testing.T) {
	c := &Client{cfg: testConfig()}
	err := c.PublishJSON("t", map[string]any{"bad": make(chan int)}, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("t", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("t") {
		t.Error("failed subscription should not be tracked")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}
	cfg := testConfig()
	cfg.Broker.Port = 19999
	cfg.Reconnect.InitialDelay = 0

	_, err := Connect(cfg)
	if err == nil {
		t.Fatal("Connect() expected error for refused broker")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
