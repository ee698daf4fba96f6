package domain

// State is the unit of persistence and concurrency for one session.
type State struct {
	// SessionID keys the state in the store.
	SessionID string `json:"session_id"`

	// Messages is the ordered, append-only conversation. Only compaction
	// may replace the sequence wholesale.
	Messages []Message `json:"messages"`

	// CustomerID is the subject identity. Once set it is never cleared
	// within a session.
	CustomerID *int64 `json:"customer_id,omitempty"`

	// Route is the last routing decision, if any.
	Route *RoutingDecision `json:"route,omitempty"`

	// Summary is the rolling compaction summary. It grows by replacement,
	// never by append, and never regresses to empty once set.
	Summary string `json:"summary,omitempty"`

	// Pending is the approval record the gate is suspended on, if any.
	Pending *PendingApproval `json:"pending,omitempty"`
}

// NewState creates a clean state for a session.
func NewState(sessionID string) *State {
	return &State{SessionID: sessionID}
}

// Clone returns a deep enough copy for safe mutation: the message slice is
// copied, message values are immutable by convention.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Messages = make([]Message, len(s.Messages))
	copy(next.Messages, s.Messages)
	if s.CustomerID != nil {
		id := *s.CustomerID
		next.CustomerID = &id
	}
	if s.Route != nil {
		r := *s.Route
		next.Route = &r
	}
	if s.Pending != nil {
		p := *s.Pending
		p.Queued = append([]OperationRequest(nil), s.Pending.Queued...)
		next.Pending = &p
	}
	return &next
}

// Identified reports whether the subject identity is resolved.
func (s *State) Identified() bool {
	return s.CustomerID != nil
}

// LastUserMessage returns the most recent user-role message, if any.
func (s *State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// LastAssistantMessage returns the most recent assistant-role message, if any.
func (s *State) LastAssistantMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}
