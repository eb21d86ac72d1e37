package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: record does not exist in store
//   - ErrExpired: wizard session or confirmation handle has expired
//   - ErrAlreadyUsed: confirmation handle already consumed
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrUnavailable: collaborator temporarily unavailable (breaker open)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
