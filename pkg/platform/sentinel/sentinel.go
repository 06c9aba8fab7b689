package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a uniqueness constraint would be violated
// - ErrExpired: code/credential past its expiry instant
// - ErrAlreadyUsed: one-time resource already consumed
// - ErrInvalidState: entity in wrong state for the requested operation
// - ErrExhausted: counter already at its cap
// - ErrBlocked: operation refused by an administrative flag (holiday)
//
// For validation errors (bad input, missing fields), use pkg/domerrors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrExhausted    = errors.New("exhausted")
	ErrBlocked      = errors.New("blocked")
)
