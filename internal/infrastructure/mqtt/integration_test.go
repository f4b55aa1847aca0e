//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func TestIntegration_StatestreamRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "homeapps-integration"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := testTopics()
	received := make(chan string, 1)
	var once sync.Once

	err = client.Subscribe(topics.AllStates(), 1, func(topic string, payload []byte) error {
		id, field, ok := topics.ParseStatestream(topic)
		if ok && id == "binary_sensor.integration_probe" && field == FieldState {
			once.Do(func() { received <- string(payload) })
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.Publish(topics.EntityField("binary_sensor.integration_probe", FieldState), []byte("on"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "on" {
			t.Errorf("payload = %q, want on", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for statestream message")
	}
}

func TestIntegration_PublishJSONCommand(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "homeapps-integration-cmd"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := testTopics().Command("light", "turn_on")
	received := make(chan []byte, 1)
	if err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.PublishJSON(topic, map[string]string{"entity_id": "light.desk"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != `{"entity_id":"light.desk"}` {
			t.Errorf("payload = %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for command")
	}
}
