// Package notify routes messages to named household members through Home
// Assistant notify services.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/homeapps/internal/automation"
)

// RecipientAll addresses every household member.
const RecipientAll = "all"

// ErrUnknownRecipient is returned for a name that is not a household member.
var ErrUnknownRecipient = errors.New("notify: unknown recipient")

// Person is one household member.
type Person struct {
	Name   string
	Entity string // person.* entity
	Notify string // notify service, e.g. "mobile_app_owen"
}

// Notifier implements automation.Notifier.
type Notifier struct {
	rt     *automation.Runtime
	people []Person
	byName map[string]Person
	logger automation.Logger
}

// New creates a notifier for people. A nil logger discards output.
func New(rt *automation.Runtime, people []Person, logger automation.Logger) *Notifier {
	if logger == nil {
		logger = automation.NopLogger()
	}
	byName := make(map[string]Person, len(people))
	for _, p := range people {
		byName[p.Name] = p
	}
	return &Notifier{rt: rt, people: people, byName: byName, logger: logger}
}

// Notify sends message to recipient, or to everyone for RecipientAll.
// With ifPeopleHome set the message is dropped while nobody is home.
func (n *Notifier) Notify(ctx context.Context, message, recipient string, ifPeopleHome bool) error {
	if ifPeopleHome && !n.rt.AnyoneHome() {
		n.logger.Debug("notification suppressed, nobody home", "recipient", recipient)
		return nil
	}

	targets, err := n.resolve(recipient)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range targets {
		data := map[string]any{"message": message}
		if err := n.rt.CallService(ctx, "notify", p.Notify, "", data); err != nil {
			errs = append(errs, err)
			continue
		}
		n.logger.Info("notification sent", "recipient", p.Name)
	}
	return errors.Join(errs...)
}

func (n *Notifier) resolve(recipient string) ([]Person, error) {
	if recipient == RecipientAll {
		return n.people, nil
	}
	p, ok := n.byName[recipient]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecipient, recipient)
	}
	return []Person{p}, nil
}

// Has reports whether name is a known recipient.
func (n *Notifier) Has(name string) bool {
	if name == RecipientAll {
		return true
	}
	_, ok := n.byName[name]
	return ok
}
