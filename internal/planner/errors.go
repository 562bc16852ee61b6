package planner

import "errors"

// Error classes for failed turns. Each is fatal for the turn: the
// previously persisted state is left untouched and returned to the caller
// alongside the error. Match with errors.Is.
var (
	// ErrStorage indicates a session store read or write failed.
	ErrStorage = errors.New("session storage failure")

	// ErrGenerationUnavailable indicates the generation backend could not
	// be reached.
	ErrGenerationUnavailable = errors.New("generation backend unavailable")

	// ErrTurnTimeout indicates the turn exceeded its time bound.
	ErrTurnTimeout = errors.New("turn timed out")
)
