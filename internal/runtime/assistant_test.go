package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenzahq/cadenza/internal/logging"
	"github.com/cadenzahq/cadenza/internal/prompt"
	"github.com/cadenzahq/cadenza/internal/testutils"
	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

func TestAssistant_NudgesOnEmptyReply(t *testing.T) {
	fake := &testutils.FakeReasoner{
		Replies: []domain.Message{
			{}, // degenerate
			testutils.Reply("Here is a real answer."),
		},
	}
	a := newAssistant(fake, 3, logging.NewNop())

	reply, err := a.respond(context.Background(), domain.HandlerGeneral, ports.RespondRequest{
		Messages: []domain.Message{domain.UserMessage("hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Here is a real answer.", reply.Content)
	assert.Equal(t, domain.HandlerGeneral, reply.Handler)
	require.Len(t, fake.RespondCalls, 2)

	second := fake.RespondCalls[1].Messages
	require.Len(t, second, 2)
	assert.Equal(t, prompt.Corrective, second[1].Content)
}

func TestAssistant_ApologizesAfterBudget(t *testing.T) {
	fake := &testutils.FakeReasoner{} // every reply is empty
	a := newAssistant(fake, 3, logging.NewNop())

	reply, err := a.respond(context.Background(), domain.HandlerAccount, ports.RespondRequest{
		Messages: []domain.Message{domain.UserMessage("hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, prompt.Apology, reply.Content)
	assert.Len(t, fake.RespondCalls, 3)
}

func TestAssistant_ToolRequestCountsAsRealOutput(t *testing.T) {
	fake := &testutils.FakeReasoner{
		Replies: []domain.Message{
			testutils.ToolReply("", domain.OperationRequest{ID: "op-1", Name: "check_for_songs"}),
		},
	}
	a := newAssistant(fake, 3, logging.NewNop())

	reply, err := a.respond(context.Background(), domain.HandlerInventory, ports.RespondRequest{})
	require.NoError(t, err)

	assert.Len(t, reply.Requests, 1)
	assert.Len(t, fake.RespondCalls, 1)
}
