package models

import "errors"

// Error taxonomy. Handlers and callers classify with errors.Is; wrap with
// fmt.Errorf("...: %w", err) to add detail.
var (
	// ErrNotFound: no requirement exists for the parent, or the context is
	// unknown to the system. Fatal to the single request.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequirement: a loaded requirement/component set violates the
	// data-model invariants. Blocks scoring entirely (fail closed).
	ErrInvalidRequirement = errors.New("invalid requirement")

	// ErrInvalidResponse: a submission is structurally unusable (no parent,
	// no tuples). Individual unrecognized tuples are rejected per-tuple and
	// do not surface this error.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrInsufficientData: a difficulty recompute found no performance rows
	// at all. Small-but-nonempty samples produce a low_confidence metric
	// instead.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrConflict: a mastery cache write lost an optimistic-version race.
	// Retried internally before surfacing as ErrUnavailable.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrUnavailable: retries exhausted on a conflicting mastery update.
	ErrUnavailable = errors.New("temporarily unavailable")
)

type ErrorResponse struct {
	Error string `json:"error"`
}
