// Package guard screens inbound user messages for prompt injection before
// they reach the router.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cadenzahq/cadenza/internal/prompt"
	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

const (
	verdictSafe      = "SAFE"
	verdictInjection = "INJECTION"
)

// Refusal is the fixed reply for a message flagged as injection.
const Refusal = "I can't help with that request. Is there something about your account or our music catalog I can help you with?"

// Screener classifies one user message as safe or injection.
type Screener struct {
	reasoner ports.Reasoner
	logger   *slog.Logger
}

// New creates a screener over the given reasoner.
func New(reasoner ports.Reasoner, logger *slog.Logger) *Screener {
	return &Screener{reasoner: reasoner, logger: logger}
}

// Screen returns true when the message is safe to route. A classification
// error propagates; callers decide whether to abort or fail open.
func (s *Screener) Screen(ctx context.Context, message string) (bool, error) {
	verdict, err := s.reasoner.Decide(ctx, ports.DecideRequest{
		System:   prompt.Guard,
		Messages: []domain.Message{domain.UserMessage(message)},
		Choices:  []string{verdictSafe, verdictInjection},
	})
	if err != nil {
		return false, fmt.Errorf("screen message: %w", err)
	}

	switch strings.ToUpper(strings.TrimSpace(verdict)) {
	case verdictSafe:
		return true, nil
	case verdictInjection:
		s.logger.Warn("message flagged as injection")
		return false, nil
	default:
		return false, fmt.Errorf("screen message: %w", domain.ErrMalformedDecision)
	}
}
