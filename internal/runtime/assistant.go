// Package runtime implements the conversation engine: the fixed node graph
// that turns one user message into routed handler work, approval suspension,
// and rolling compaction.
package runtime

import (
	"context"
	"log/slog"

	"github.com/cadenzahq/cadenza/internal/prompt"
	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

// assistant wraps the reasoner's Respond call with a bounded retry for
// degenerate output. An empty reply triggers a corrective nudge; after the
// budget is spent a fixed apology is synthesized so the turn still completes.
type assistant struct {
	reasoner   ports.Reasoner
	maxRetries int
	logger     *slog.Logger
}

func newAssistant(reasoner ports.Reasoner, maxRetries int, logger *slog.Logger) *assistant {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &assistant{reasoner: reasoner, maxRetries: maxRetries, logger: logger}
}

// respond returns a non-degenerate assistant message tagged with the handler.
// Hard reasoner errors propagate; only empty replies are retried.
func (a *assistant) respond(ctx context.Context, handler domain.HandlerTag, req ports.RespondRequest) (domain.Message, error) {
	messages := req.Messages
	for attempt := 1; ; attempt++ {
		reply, err := a.reasoner.Respond(ctx, ports.RespondRequest{
			System:   req.System,
			Messages: messages,
			Tools:    req.Tools,
		})
		if err != nil {
			return domain.Message{}, err
		}
		if !reply.Empty() {
			reply.Role = domain.RoleAssistant
			reply.Handler = handler
			return reply, nil
		}
		if attempt >= a.maxRetries {
			break
		}
		a.logger.Debug("degenerate reply, nudging", "handler", string(handler), "attempt", attempt)
		messages = append(append([]domain.Message(nil), messages...), domain.UserMessage(prompt.Corrective))
	}
	a.logger.Warn("reply retry budget exhausted, synthesizing apology", "handler", string(handler))
	return domain.AssistantMessage(handler, prompt.Apology), nil
}
