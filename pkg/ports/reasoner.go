package ports

import (
	"context"

	"github.com/cadenzahq/cadenza/pkg/domain"
)

// DecideRequest asks the reasoning engine for a structured decision
// constrained to a closed value set.
type DecideRequest struct {
	System   string
	Messages []domain.Message

	// Choices is the closed enum the output must belong to. The adapter
	// returns domain.ErrMalformedDecision when the engine's output cannot
	// be parsed into it.
	Choices []string
}

// RespondRequest asks the reasoning engine for a free-form reply, optionally
// offering tools it may request.
type RespondRequest struct {
	System   string
	Messages []domain.Message
	Tools    []domain.ToolDescriptor
}

// Reasoner is the uniform interface over the natural-language reasoning
// engine. Implementations must honor the context deadline.
type Reasoner interface {
	// Decide returns one of req.Choices or fails with
	// domain.ErrMalformedDecision. Malformed output is not retryable by
	// default; callers retry at most once before failing hard.
	Decide(ctx context.Context, req DecideRequest) (string, error)

	// Respond returns the engine's next message. The raw engine may return
	// a degenerate (empty) result; the assistant wrapper in the runtime
	// layers retry and fallback on top of this call.
	Respond(ctx context.Context, req RespondRequest) (domain.Message, error)
}
