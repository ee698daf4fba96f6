package domain

import (
	"encoding/json"
	"fmt"
)

// FailureKind classifies operation failures for the retry policy and the
// error taxonomy. Only transient failures are retried.
type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailurePermission FailureKind = "permission"
	FailureNotFound   FailureKind = "not_found"
	FailureTransient  FailureKind = "transient"
	FailureInternal   FailureKind = "internal"
)

// OperationRequest asks the executor to run a tool. ID is the correlation id
// that the matching OperationResult must echo back.
type OperationRequest struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// OperationFailure is the typed failure half of an OperationResult.
type OperationFailure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *OperationFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Transient reports whether the failure class is retryable.
func (f *OperationFailure) Transient() bool {
	return f.Kind == FailureTransient
}

// OperationResult is the single outcome of an OperationRequest. Exactly one
// of Payload or Failure is meaningful.
type OperationResult struct {
	ID      string            `json:"id"`
	Payload any               `json:"payload,omitempty"`
	Failure *OperationFailure `json:"failure,omitempty"`
}

// Failed reports whether the operation ended in a typed failure.
func (r OperationResult) Failed() bool {
	return r.Failure != nil
}

// Render produces the conversational text for a tool-result message. Failures
// become explanatory text so the dialogue continues instead of aborting.
func (r OperationResult) Render() string {
	if r.Failure != nil {
		return fmt.Sprintf("The operation could not be completed: %s.", r.Failure.Message)
	}
	switch v := r.Payload.(type) {
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
