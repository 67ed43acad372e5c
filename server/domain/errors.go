package domain

import "errors"

var (
	ErrConflictingIdentity    = errors.New("connection already bound to another user")
	ErrUnknownRoom            = errors.New("unknown room")
	ErrMalformedCommand       = errors.New("malformed command")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrNotIdentified          = errors.New("connection not identified")
	ErrNotFound               = errors.New("not found")
	ErrInvalidPattern         = errors.New("invalid search pattern")
)
