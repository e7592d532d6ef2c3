// Package domain defines domain-level errors for the simulation feature.
package domain

import "errors"

var (
	// ErrInvalidState indicates a violated precondition of a pure simulation
	// step, such as a non-positive price fed to the price generator.
	ErrInvalidState = errors.New("invalid simulation state")

	// ErrOutOfOrderObservation indicates a candle observation whose timestamp
	// is not strictly after the newest candle in the history.
	ErrOutOfOrderObservation = errors.New("out of order observation")

	// ErrPersistenceFailure wraps any failure returned by the price store.
	// It is always reported and never rolls back in-memory state.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrInstrumentNotFound is returned when no instrument exists for an ID.
	ErrInstrumentNotFound = errors.New("instrument not found")
)
