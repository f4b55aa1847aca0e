package laundry

import (
	"testing"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/automation/automationtest"
)

func TestLaundry(t *testing.T) {
	tests := []struct {
		name    string
		entity  string
		changes []string
		want    []string
	}{
		{"washer finished", "sensor.washer", []string{"wash", "rinse", "finish"}, []string{"The washer has completed!"}},
		{"washer still running", "sensor.washer", []string{"wash", "spin"}, nil},
		{"dryer finished", "sensor.dryer", []string{"drying", "cooling", "finished"}, []string{"The dryer has completed!"}},
		{"dryer skips finished", "sensor.dryer", []string{"cooling", "none"}, []string{"The dryer has completed!"}},
		{"dryer not cooling yet", "sensor.dryer", []string{"drying", "wrinkle_prevent"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := automationtest.New(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
			h.Seed("sensor.washer", "none", "sensor.dryer", "none")
			h.Start(New, "laundry", automation.Args{"washer": "sensor.washer", "dryer": "sensor.dryer"})

			for _, s := range tt.changes {
				h.Host.Change(tt.entity, s)
			}
			h.ExpectNotified(tt.want...)
			for _, n := range h.Notifier.Sent() {
				if n.Recipient != "all" {
					t.Errorf("recipient = %q, want all", n.Recipient)
				}
			}
		})
	}
}
