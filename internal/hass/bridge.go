package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homeapps/internal/infrastructure/config"
	"github.com/nerrad567/homeapps/internal/infrastructure/mqtt"
)

// eventStateChanged is skipped on the eventstream; statestream carries it.
const eventStateChanged = "state_changed"

// MQTTClient is the subset of the MQTT client the bridge uses.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishJSON(topic string, v any, retained bool) error
}

// Dispatcher receives mirrored changes and events.
type Dispatcher interface {
	DispatchState(change StateChange)
	DispatchEvent(event Event)
}

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bridge mirrors Home Assistant state into a Store and publishes commands.
//
// Thread Safety: all methods are safe for concurrent use. Inbound handlers
// run on MQTT goroutines and only touch the Store and the Dispatcher.
type Bridge struct {
	client MQTTClient
	topics mqtt.Topics
	source string
	qos    byte
	store  *Store
	now    func() time.Time

	dispatcher   Dispatcher
	dispatcherMu sync.RWMutex

	logger Logger
}

// NewBridge creates a bridge. Call Start to subscribe.
func NewBridge(client MQTTClient, cfg config.HomeAssistantConfig, qos byte, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		client: client,
		topics: mqtt.NewTopics(cfg),
		source: cfg.Source,
		qos:    qos,
		store:  NewStore(),
		now:    time.Now,
		logger: logger,
	}
}

// SetDispatcher sets the receiver for changes and events.
// Until it is set, inbound messages only update the Store.
func (b *Bridge) SetDispatcher(d Dispatcher) {
	b.dispatcherMu.Lock()
	b.dispatcher = d
	b.dispatcherMu.Unlock()
}

func (b *Bridge) getDispatcher() Dispatcher {
	b.dispatcherMu.RLock()
	defer b.dispatcherMu.RUnlock()
	return b.dispatcher
}

// Start subscribes to statestream, eventstream and homeapps core events.
func (b *Bridge) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.AllStates(), b.handleStatestream},
		{b.topics.Events(), b.handleEventstream},
		{b.topics.AllCoreEvents(), b.handleCoreEvent},
	}
	for _, sub := range subs {
		if err := b.client.Subscribe(sub.topic, b.qos, sub.handler); err != nil {
			return fmt.Errorf("subscribing to %q: %w", sub.topic, err)
		}
	}
	b.logger.Info("home assistant bridge started", "statestream", b.topics.AllStates(), "eventstream", b.topics.Events())
	return nil
}

// Store returns the state mirror.
func (b *Bridge) Store() *Store {
	return b.store
}

// State returns the mirrored state of one entity.
func (b *Bridge) State(entityID string) (State, bool) {
	return b.store.Get(entityID)
}

// States returns every mirrored entity.
func (b *Bridge) States() []State {
	return b.store.All()
}

type commandPayload struct {
	ID       string         `json:"id"`
	EntityID string         `json:"entity_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Source   string         `json:"source"`
}

type setStatePayload struct {
	ID         string         `json:"id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Source     string         `json:"source"`
}

// CallService publishes a service call on homeapps/command/<domain>/<service>.
func (b *Bridge) CallService(ctx context.Context, call ServiceCall) error {
	if call.Domain == "" || call.Service == "" {
		return fmt.Errorf("%w: domain %q service %q", ErrInvalidCall, call.Domain, call.Service)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("calling %s.%s: %w", call.Domain, call.Service, err)
	}

	payload := commandPayload{
		ID:       uuid.NewString(),
		EntityID: call.EntityID,
		Data:     call.Data,
		Source:   b.source,
	}
	topic := b.topics.Command(call.Domain, call.Service)
	if err := b.client.PublishJSON(topic, payload, false); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}

	b.logger.Debug("service call published",
		"service", call.Domain+"."+call.Service,
		"entity_id", call.EntityID,
		"command_id", payload.ID,
	)
	return nil
}

// SetState asks Home Assistant to set an entity's state directly.
func (b *Bridge) SetState(ctx context.Context, entityID, state string, attributes map[string]any) error {
	if Domain(entityID) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEntity, entityID)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("setting state of %s: %w", entityID, err)
	}

	payload := setStatePayload{
		ID:         uuid.NewString(),
		State:      state,
		Attributes: attributes,
		Source:     b.source,
	}
	topic := b.topics.SetState(entityID)
	if err := b.client.PublishJSON(topic, payload, false); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}
	return nil
}

// FireEvent publishes a homeapps event. The bridge's own subscription
// delivers it back to the dispatcher like any other event.
func (b *Bridge) FireEvent(ctx context.Context, eventType string, data map[string]any) error {
	if eventType == "" || strings.ContainsAny(eventType, "/+#") {
		return fmt.Errorf("%w: event type %q", ErrInvalidPayload, eventType)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("firing %s: %w", eventType, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	topic := b.topics.CoreEvent(eventType)
	if err := b.client.PublishJSON(topic, data, false); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}
	return nil
}

// PublishAppStatus publishes a retained status document for one app.
func (b *Bridge) PublishAppStatus(name string, status any) error {
	return b.client.PublishJSON(b.topics.AppStatus(name), status, true)
}

func (b *Bridge) handleStatestream(topic string, payload []byte) error {
	entityID, field, ok := b.topics.ParseStatestream(topic)
	if !ok {
		return nil
	}

	change, changed := b.store.Apply(entityID, field, payload, b.now())
	if !changed {
		return nil
	}
	if d := b.getDispatcher(); d != nil {
		d.DispatchState(change)
	}
	return nil
}

type eventstreamMessage struct {
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data"`
}

func (b *Bridge) handleEventstream(_ string, payload []byte) error {
	var msg eventstreamMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.EventType == "" {
		return fmt.Errorf("%w: missing event_type", ErrInvalidPayload)
	}
	if msg.EventType == eventStateChanged {
		return nil
	}
	b.dispatchEvent(Event{Type: msg.EventType, Data: msg.EventData, Time: b.now()})
	return nil
}

func (b *Bridge) handleCoreEvent(topic string, payload []byte) error {
	eventType := topic[strings.LastIndex(topic, "/")+1:]

	var data map[string]any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &data); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}
	b.dispatchEvent(Event{Type: eventType, Data: data, Time: b.now()})
	return nil
}

func (b *Bridge) dispatchEvent(ev Event) {
	if d := b.getDispatcher(); d != nil {
		d.DispatchEvent(ev)
	}
}
