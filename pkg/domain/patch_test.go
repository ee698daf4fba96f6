package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_AppendIsOrdered(t *testing.T) {
	s := NewState("s1")

	next, err := s.Apply(Patch{Append: []Message{
		UserMessage("hi"),
		AssistantMessage(HandlerGeneral, "hello"),
	}})
	require.NoError(t, err)

	require.Len(t, next.Messages, 2)
	assert.Equal(t, RoleUser, next.Messages[0].Role)
	assert.Equal(t, RoleAssistant, next.Messages[1].Role)
	assert.Empty(t, s.Messages, "receiver must stay untouched")
}

func TestApply_IdentitySetOnce(t *testing.T) {
	s := NewState("s1")
	id := int64(42)

	next, err := s.Apply(Patch{Identity: &id})
	require.NoError(t, err)
	require.NotNil(t, next.CustomerID)
	assert.Equal(t, int64(42), *next.CustomerID)

	t.Run("same value is a no-op", func(t *testing.T) {
		same := int64(42)
		again, err := next.Apply(Patch{Identity: &same})
		require.NoError(t, err)
		assert.Equal(t, int64(42), *again.CustomerID)
	})

	t.Run("different value violates the invariant", func(t *testing.T) {
		other := int64(7)
		_, err := next.Apply(Patch{Identity: &other})
		var violation *StateInvariantViolation
		require.ErrorAs(t, err, &violation)
	})
}

func TestApply_DuplicatePendingApproval(t *testing.T) {
	s := NewState("s1")
	pending := &PendingApproval{
		Handler: HandlerAccount,
		Request: OperationRequest{ID: "op-1", Name: "edit_customer_info"},
	}

	withPending, err := s.Apply(Patch{Pending: pending})
	require.NoError(t, err)
	require.NotNil(t, withPending.Pending)

	_, err = withPending.Apply(Patch{Pending: &PendingApproval{
		Request: OperationRequest{ID: "op-2", Name: "edit_customer_info"},
	}})
	var violation *StateInvariantViolation
	require.ErrorAs(t, err, &violation)
	assert.ErrorIs(t, err, ErrDuplicatePendingApproval)

	// Resolving and installing in the same patch is allowed: the gate does
	// this when a queued sensitive request follows an approved one.
	next, err := withPending.Apply(Patch{
		ClearPending: true,
		Pending: &PendingApproval{
			Request: OperationRequest{ID: "op-3", Name: "edit_customer_info"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "op-3", next.Pending.Request.ID)
}

func TestApply_ReplaceRequiresFlag(t *testing.T) {
	s := NewState("s1")
	s.Messages = []Message{UserMessage("one"), UserMessage("two"), UserMessage("three")}

	// Replace without the flag is ignored.
	next, err := s.Apply(Patch{Replace: []Message{UserMessage("x")}})
	require.NoError(t, err)
	assert.Len(t, next.Messages, 3)

	next, err = s.Apply(Patch{
		Replace:    []Message{UserMessage("two"), UserMessage("three")},
		ReplaceAll: true,
	})
	require.NoError(t, err)
	assert.Len(t, next.Messages, 2)
	assert.Equal(t, "two", next.Messages[0].Content)
}

func TestApply_SummaryNeverRegressesToEmpty(t *testing.T) {
	s := NewState("s1")
	summary := "the customer asked about invoices"

	next, err := s.Apply(Patch{Summary: &summary})
	require.NoError(t, err)
	assert.Equal(t, summary, next.Summary)

	empty := ""
	_, err = next.Apply(Patch{Summary: &empty})
	var violation *StateInvariantViolation
	require.ErrorAs(t, err, &violation)

	longer := summary + "; then updated their email"
	grown, err := next.Apply(Patch{Summary: &longer})
	require.NoError(t, err)
	assert.Equal(t, longer, grown.Summary)
}

func TestApply_FailureLeavesStateUntouched(t *testing.T) {
	s := NewState("s1")
	id := int64(1)
	s.CustomerID = &id
	s.Messages = []Message{UserMessage("hi")}

	other := int64(2)
	_, err := s.Apply(Patch{
		Append:   []Message{UserMessage("should not land")},
		Identity: &other,
	})
	require.Error(t, err)
	assert.Len(t, s.Messages, 1, "no partial application")
}

func TestParseRoutingDecision(t *testing.T) {
	for _, raw := range RoutingDecisionValues() {
		got, err := ParseRoutingDecision(raw)
		require.NoError(t, err)
		assert.Equal(t, RoutingDecision(raw), got)
	}

	_, err := ParseRoutingDecision("billing")
	assert.ErrorIs(t, err, ErrInvalidRoutingDecision)

	_, err = ParseRoutingDecision("")
	assert.ErrorIs(t, err, ErrInvalidRoutingDecision)
}
