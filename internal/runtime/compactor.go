package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cadenzahq/cadenza/internal/prompt"
	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

// compactionKeep is the live message window left after a compaction.
const compactionKeep = 2

// compactor folds conversation history into the rolling summary once the
// message count crosses the threshold. The prior summary is folded into the
// new one so no turn's facts are ever dropped, only condensed.
type compactor struct {
	reasoner  ports.Reasoner
	threshold int
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

func newCompactor(reasoner ports.Reasoner, threshold int, hooks domain.LifecycleHooks, logger *slog.Logger) *compactor {
	return &compactor{reasoner: reasoner, threshold: threshold, hooks: hooks, logger: logger}
}

// maybe compacts when due. Below the threshold it returns an empty patch, so
// running it every turn is cheap and idempotent.
func (c *compactor) maybe(ctx context.Context, state *domain.State) (domain.Patch, error) {
	if len(state.Messages) < c.threshold {
		return domain.Patch{}, nil
	}

	cut := len(state.Messages) - compactionKeep
	summary, err := c.summarize(ctx, state.Summary, state.Messages[:cut])
	if err != nil {
		return domain.Patch{}, fmt.Errorf("compact history: %w", err)
	}
	if summary == "" {
		// A degenerate summary must not wipe context; skip this cycle.
		c.logger.Warn("summarizer returned nothing, skipping compaction")
		return domain.Patch{}, nil
	}

	c.emit(ctx, state.SessionID, cut)
	c.logger.Info("history compacted", "dropped", cut, "kept", compactionKeep)
	return domain.Patch{
		ReplaceAll: true,
		Replace:    append([]domain.Message(nil), state.Messages[cut:]...),
		Summary:    &summary,
	}, nil
}

func (c *compactor) summarize(ctx context.Context, prior string, dropped []domain.Message) (string, error) {
	var transcript strings.Builder
	if prior != "" {
		transcript.WriteString("Previous summary: ")
		transcript.WriteString(prior)
		transcript.WriteString("\n\n")
	}
	for _, m := range dropped {
		transcript.WriteString(string(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	reply, err := c.reasoner.Respond(ctx, ports.RespondRequest{
		System:   prompt.Summarizer,
		Messages: []domain.Message{domain.UserMessage(transcript.String())},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.Content), nil
}

func (c *compactor) emit(ctx context.Context, sessionID string, dropped int) {
	if c.hooks.OnCompaction == nil {
		return
	}
	c.hooks.OnCompaction(ctx, &domain.CompactionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCompaction, SessionID: sessionID},
		Dropped:   dropped,
	})
}
