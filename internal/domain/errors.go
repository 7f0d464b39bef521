package domain

import "errors"

// Sentinel errors returned by the repository layer, job queue, and handlers.
// Callers use errors.Is against these; everything else is wrapped with
// fmt.Errorf("...: %w", err) at the point of failure.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDatabase     = errors.New("database error")
	ErrInference    = errors.New("inference backend error")
	ErrInternal     = errors.New("internal invariant violation")
)
