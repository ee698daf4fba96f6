package domain

// PendingApproval records a sensitive operation suspended at the approval
// gate: the held request, the handler that asked for it, and any further
// requests from the same reply that queue behind resolution.
//
// Invariant: at most one PendingApproval exists per state. While it is set,
// the engine enters only at the approval gate.
type PendingApproval struct {
	Handler HandlerTag       `json:"handler"`
	Request OperationRequest `json:"request"`

	// Queued holds requests that arrived after the held one in the same
	// assistant reply. On approval, read-only entries execute in order; the
	// next mutating entry becomes its own pending approval.
	Queued []OperationRequest `json:"queued,omitempty"`
}
