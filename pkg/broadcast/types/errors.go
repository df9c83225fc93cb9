package types

import "errors"

var (
	// ErrUnknownBehavior is returned by config validation when Behavior does
	// not name one of the recognized Byzantine policies.
	ErrUnknownBehavior = errors.New("broadcast: unknown byzantine behavior")

	// ErrInvalidFaultBound is returned when N < 3f+1, which would violate
	// BRB's safety assumption.
	ErrInvalidFaultBound = errors.New("broadcast: N must be >= 3f+1")

	// ErrInvalidDelayBounds is returned when min_delay > max_delay.
	ErrInvalidDelayBounds = errors.New("broadcast: min_delay must be <= max_delay")
)
