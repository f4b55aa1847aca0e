package automation

import "errors"

// Errors for the automation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, automation.ErrMissingArg) {
//	    // configuration is incomplete
//	}
var (
	// ErrMissingArg is returned when a required app argument is absent.
	ErrMissingArg = errors.New("app: missing argument")

	// ErrInvalidArg is returned when an app argument has the wrong shape.
	ErrInvalidArg = errors.New("app: invalid argument")

	// ErrUnknownKind is returned when no factory is registered for an app kind.
	ErrUnknownKind = errors.New("app: unknown kind")

	// ErrDuplicateApp is returned when two apps share a name.
	ErrDuplicateApp = errors.New("app: duplicate name")

	// ErrInvalidTime is returned for an unparsable time of day.
	ErrInvalidTime = errors.New("automation: invalid time of day")

	// ErrInvalidNumber is returned for an unparsable numeric state.
	ErrInvalidNumber = errors.New("automation: invalid number")

	// ErrUnknownEntity is returned when an entity has no mirrored state.
	ErrUnknownEntity = errors.New("automation: unknown entity")

	// ErrClosed is returned by operations on a closed runtime.
	ErrClosed = errors.New("automation: runtime closed")
)
