package events

import "errors"

// Event errors.
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrInvalidStatus        = errors.New("invalid status for event type")
	ErrEventAlreadyResolved = errors.New("event is already resolved")
	ErrConflictingOperation = errors.New("service is both added and removed")
	ErrReasonNotAllowed     = errors.New("reason requires added or removed services or groups")
	ErrServiceNotInEvent    = errors.New("service is not associated with event")
	ErrUnknownEdit          = errors.New("unknown edit kind")
	ErrNoUpstream           = errors.New("no backend configured for submitting updates")
)
