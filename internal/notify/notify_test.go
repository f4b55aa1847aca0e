package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/homeapps/internal/automation/automationtest"
)

var household = []Person{
	{Name: "owen", Entity: "person.owen", Notify: "mobile_app_owen"},
	{Name: "allison", Entity: "person.allison", Notify: "mobile_app_allison"},
}

func TestNotify(t *testing.T) {
	tests := []struct {
		name         string
		recipient    string
		ifPeopleHome bool
		anyoneHome   bool
		want         []string
		wantErr      error
	}{
		{
			name:      "single recipient",
			recipient: "owen",
			want:      []string{"notify.mobile_app_owen"},
		},
		{
			name:      "everyone",
			recipient: RecipientAll,
			want:      []string{"notify.mobile_app_owen", "notify.mobile_app_allison"},
		},
		{
			name:         "gated while nobody home",
			recipient:    RecipientAll,
			ifPeopleHome: true,
		},
		{
			name:         "gate open when someone home",
			recipient:    "allison",
			ifPeopleHome: true,
			anyoneHome:   true,
			want:         []string{"notify.mobile_app_allison"},
		},
		{
			name:      "unknown recipient",
			recipient: "guest",
			wantErr:   ErrUnknownRecipient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := automationtest.New(t, time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC))
			h.Seed("person.owen", "not_home", "person.allison", "not_home")
			if tt.anyoneHome {
				h.Seed("person.allison", "home")
			}
			n := New(h.Runtime, household, nil)

			err := n.Notify(context.Background(), "hello", tt.recipient, tt.ifPeopleHome)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Notify() error = %v, want %v", err, tt.wantErr)
			}
			h.ExpectCalls(tt.want...)
		})
	}
}

func TestNotify_MessagePayload(t *testing.T) {
	h := automationtest.New(t, time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC))
	n := New(h.Runtime, household, nil)

	if err := n.Notify(context.Background(), "Locked the front door.", "owen", false); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	calls := h.Host.CallsTo("notify", "mobile_app_owen")
	if len(calls) != 1 || calls[0].Data["message"] != "Locked the front door." {
		t.Errorf("calls = %+v", calls)
	}
}

func TestNotify_PartialFailure(t *testing.T) {
	h := automationtest.New(t, time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC))
	h.Host.CallErr = errors.New("broker down")
	n := New(h.Runtime, household, nil)

	if err := n.Notify(context.Background(), "x", RecipientAll, false); err == nil {
		t.Error("Notify() should report publish failures")
	}
}

func TestHas(t *testing.T) {
	n := New(nil, household, nil)
	if !n.Has("owen") || !n.Has(RecipientAll) || n.Has("guest") {
		t.Error("Has() mismatch")
	}
}
