package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborator clients
// return these (optionally wrapped) so services can translate them into domain
// errors with codes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a concurrent write already claimed the slot (unique index hit)
// - ErrInvalidState: record in wrong status for the requested operation
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, malformed payloads), use pkg/domerr directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
