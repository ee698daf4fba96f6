package ports

import (
	"context"
	"testing"
	"time"

	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract verifies that a StateStore implementation adheres to
// the interface contract, including exact resume of suspended state.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(sessionID)
		state.Messages = append(state.Messages,
			domain.UserMessage("what's my email"),
			domain.AssistantMessage(domain.HandlerAccount, "let me check"),
		)
		id := int64(42)
		state.CustomerID = &id
		state.Summary = "customer asked about their email"

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.SessionID, loaded.SessionID)
		assert.Len(t, loaded.Messages, 2)
		require.NotNil(t, loaded.CustomerID)
		assert.Equal(t, int64(42), *loaded.CustomerID)
		assert.Equal(t, state.Summary, loaded.Summary)
	})

	t.Run("Suspended state round-trips exactly", func(t *testing.T) {
		state := domain.NewState(sessionID)
		id := int64(7)
		state.CustomerID = &id
		state.Pending = &domain.PendingApproval{
			Handler: domain.HandlerAccount,
			Request: domain.OperationRequest{
				ID:   "op-1",
				Name: "edit_customer_info",
				Args: map[string]any{"parameter": "Email", "value": "a@b.com"},
			},
			Queued: []domain.OperationRequest{
				{ID: "op-2", Name: "get_customer_info"},
			},
		}

		require.NoError(t, store.Save(ctx, sessionID, state))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded.Pending)
		assert.Equal(t, "edit_customer_info", loaded.Pending.Request.Name)
		assert.Equal(t, "op-1", loaded.Pending.Request.ID)
		assert.Len(t, loaded.Pending.Queued, 1)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewState(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1))
		_ = store.Save(ctx, id2, domain.NewState(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
