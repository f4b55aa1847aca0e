package hass

import "errors"

var (
	// ErrInvalidEntity is returned for an entity ID without a domain.
	ErrInvalidEntity = errors.New("hass: invalid entity id")

	// ErrInvalidCall is returned for a service call missing its domain or service.
	ErrInvalidCall = errors.New("hass: invalid service call")

	// ErrInvalidPayload is returned when an inbound message cannot be decoded.
	ErrInvalidPayload = errors.New("hass: invalid payload")
)
