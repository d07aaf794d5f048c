package core

import "errors"

// Input validation
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrStateMismatch = errors.New("state mismatch")
)

// Authentication
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnknownState    = errors.New("unknown or expired state")
)

// Authorization
var (
	ErrForbidden         = errors.New("forbidden")
	ErrSessionCannotSign = errors.New("session has no zkLogin proof")
	ErrSessionCorrupt    = errors.New("session key material is corrupt")
)

// Cache entries
var (
	ErrNotFound            = errors.New("not found or expired")
	ErrConflict            = errors.New("conflicting entry")
	ErrExecutionInProgress = errors.New("execution already in progress")
)

// Upstream and resources
var (
	ErrUpstream          = errors.New("upstream failure")
	ErrInsufficientFunds = errors.New("insufficient sponsor funds")
)
