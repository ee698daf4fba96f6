package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cadenzahq/cadenza/internal/prompt"
	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

// router classifies the conversation into one routing decision. The decision
// is total over the enum: an output outside it is retried once, then the turn
// fails rather than defaulting to any destination.
type router struct {
	reasoner ports.Reasoner
	logger   *slog.Logger
}

func newRouter(reasoner ports.Reasoner, logger *slog.Logger) *router {
	return &router{reasoner: reasoner, logger: logger}
}

func (r *router) route(ctx context.Context, state *domain.State) (domain.RoutingDecision, error) {
	req := ports.DecideRequest{
		System:   prompt.Router,
		Messages: routingView(state),
		Choices:  domain.RoutingDecisionValues(),
	}

	raw, err := r.reasoner.Decide(ctx, req)
	if err != nil && errors.Is(err, domain.ErrMalformedDecision) {
		r.logger.Warn("malformed routing decision, retrying once", "raw", raw)
		raw, err = r.reasoner.Decide(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("route conversation: %w", err)
	}

	decision, err := domain.ParseRoutingDecision(raw)
	if err != nil {
		return "", fmt.Errorf("route conversation: %w", err)
	}
	return decision, nil
}

// routingView strips tool traffic from the conversation so the classifier
// sees only what the user and the handlers actually said. The rolling summary
// is surfaced as leading context when present.
func routingView(state *domain.State) []domain.Message {
	var view []domain.Message
	if state.Summary != "" {
		view = append(view, domain.Message{
			Role:    domain.RoleUser,
			Content: "Conversation so far: " + state.Summary,
		})
	}
	for _, m := range state.Messages {
		if m.Role == domain.RoleTool {
			continue
		}
		m.Requests = nil
		view = append(view, m)
	}
	return view
}

// handlerFor maps a routing decision to its specialist. Both account
// destinations land on the account handler; sensitivity is enforced at the
// tool boundary, not here.
func handlerFor(decision domain.RoutingDecision) domain.HandlerTag {
	switch decision {
	case domain.RouteAccount, domain.RouteAccountSensitive:
		return domain.HandlerAccount
	case domain.RouteInventory:
		return domain.HandlerInventory
	default:
		return domain.HandlerGeneral
	}
}
