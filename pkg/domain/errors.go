package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrMalformedDecision is returned when the reasoning engine produces output
// that cannot be parsed into the caller-supplied schema.
var ErrMalformedDecision = errors.New("malformed decision")

// ErrInvalidRoutingDecision is returned when a classifier value falls outside
// the closed routing enum.
var ErrInvalidRoutingDecision = errors.New("invalid routing decision")

// ErrToolNotPermitted is returned when a handler requests a tool outside its
// whitelist. The request is never sent downstream.
var ErrToolNotPermitted = errors.New("tool not permitted")

// ErrIdentityRequired is returned when a mutating tool runs without a
// resolved subject identity.
var ErrIdentityRequired = errors.New("identity required")

// ErrDuplicatePendingApproval is returned when a patch would overwrite an
// unresolved pending approval.
var ErrDuplicatePendingApproval = errors.New("approval already pending")

// ErrToolLoopBound signals that a handler hit its tool-call round limit.
// It is logged, never fatal: the handler returns its best available reply.
var ErrToolLoopBound = errors.New("tool loop bound exceeded")

// StateInvariantViolation reports a patch that would break a state invariant.
// The prior state is retained unchanged; no partial application occurs.
type StateInvariantViolation struct {
	Reason string
	Cause  error
}

func (e *StateInvariantViolation) Error() string {
	return fmt.Sprintf("state invariant violation: %s", e.Reason)
}

func (e *StateInvariantViolation) Unwrap() error {
	return e.Cause
}
