package domain

// Patch is the only way a node mutates state. A patch may append messages,
// replace the whole sequence (compaction only), set identity once, set the
// routing decision, set or clear the pending approval, and replace the
// summary.
type Patch struct {
	// Append adds messages to the end of the conversation.
	Append []Message

	// Replace substitutes the entire message sequence. Reserved for the
	// compactor; applied before Append.
	Replace []Message

	// ReplaceAll must be set for Replace to take effect, so a nil-vs-empty
	// slice mixup cannot silently wipe history.
	ReplaceAll bool

	// Identity sets the subject identity. Setting a different identity once
	// one is resolved violates the state invariant.
	Identity *int64

	// Route records the routing decision for this turn.
	Route *RoutingDecision

	// Summary replaces the rolling summary.
	Summary *string

	// Pending installs a pending-approval record. Installing over an
	// unresolved one is an invariant violation; sensitive requests queue
	// inside the existing record instead.
	Pending *PendingApproval

	// ClearPending removes the pending-approval record.
	ClearPending bool
}

// Empty reports whether applying the patch would change nothing.
func (p Patch) Empty() bool {
	return len(p.Append) == 0 && !p.ReplaceAll && p.Identity == nil &&
		p.Route == nil && p.Summary == nil && p.Pending == nil && !p.ClearPending
}

// Apply validates the patch against the state invariants and returns the
// resulting state. On any violation the receiver is untouched and the
// returned error is a *StateInvariantViolation; there is no partial
// application.
func (s *State) Apply(p Patch) (*State, error) {
	if p.Identity != nil && s.CustomerID != nil && *p.Identity != *s.CustomerID {
		return nil, &StateInvariantViolation{Reason: "identity is immutable once set"}
	}
	if p.Pending != nil && s.Pending != nil && !p.ClearPending {
		return nil, &StateInvariantViolation{
			Reason: "a pending approval is already awaiting resolution",
			Cause:  ErrDuplicatePendingApproval,
		}
	}
	if p.Summary != nil && *p.Summary == "" && s.Summary != "" {
		return nil, &StateInvariantViolation{Reason: "summary cannot regress to empty"}
	}

	next := s.Clone()
	if p.ReplaceAll {
		next.Messages = append([]Message(nil), p.Replace...)
	}
	next.Messages = append(next.Messages, p.Append...)
	if p.Identity != nil && next.CustomerID == nil {
		id := *p.Identity
		next.CustomerID = &id
	}
	if p.Route != nil {
		r := *p.Route
		next.Route = &r
	}
	if p.Summary != nil {
		next.Summary = *p.Summary
	}
	if p.ClearPending {
		next.Pending = nil
	}
	if p.Pending != nil {
		pending := *p.Pending
		pending.Queued = append([]OperationRequest(nil), p.Pending.Queued...)
		next.Pending = &pending
	}
	return next, nil
}
