package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about persisted resources:
// - ErrNotFound: row absent, or present but outside the caller's tenant scope
// - ErrConflict: uniqueness constraint hit (policy number, renewal period)
// - ErrAlreadyUsed: idempotency key already consumed; safe to treat as no-op
// - ErrInvalidState: row is in a state the operation does not permit
// - ErrUnavailable: backing service temporarily unreachable
//
// For input validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
