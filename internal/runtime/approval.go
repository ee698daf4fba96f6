package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/cadenzahq/cadenza/pkg/domain"
)

// approvalOutcome is the gate's resolution of a suspended turn.
type approvalOutcome int

const (
	outcomeReprompted approvalOutcome = iota
	outcomeApproved
	outcomeDenied
	// outcomeResuspended means the approval was given but a queued mutating
	// request now awaits its own confirmation.
	outcomeResuspended
)

// Token sets the gate recognizes. Matching is exact after normalization;
// anything else re-prompts rather than guessing.
var (
	affirmativeTokens = map[string]struct{}{
		"yes": {}, "y": {}, "confirm": {}, "proceed": {},
	}
	negativeTokens = map[string]struct{}{
		"no": {}, "n": {}, "cancel": {}, "abort": {},
	}
)

const (
	deniedReply   = "Update cancelled. No changes made."
	repromptReply = "I still need a clear answer before making this change. Please reply 'yes' to proceed or 'no' to cancel."
)

// gate resolves a pending approval against the user's answer. An approval
// covers exactly the request the confirmation prompt named: read-only queued
// requests ride along, but a queued mutating request re-suspends with its own
// prompt.
type gate struct {
	tools  toolRunner
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

func newGate(tools toolRunner, hooks domain.LifecycleHooks, logger *slog.Logger) *gate {
	return &gate{tools: tools, hooks: hooks, logger: logger}
}

func (g *gate) resolve(ctx context.Context, state *domain.State, answer string) (domain.Patch, approvalOutcome) {
	pending := state.Pending

	switch classifyAnswer(answer) {
	case outcomeApproved:
		g.emit(ctx, state.SessionID, pending.Request.Name, "approved")
		var patch domain.Patch
		patch.ClearPending = true
		res := g.tools.Execute(ctx, pending.Handler, state.CustomerID, pending.Request)
		patch.Append = append(patch.Append, domain.ToolResultMessage(pending.Handler, res))
		for i, req := range pending.Queued {
			if desc, ok := g.tools.Descriptor(req.Name); ok && desc.Mutating {
				// The answer confirmed only the named request. A further
				// mutation needs its own confirmation before anything runs.
				patch.Pending = &domain.PendingApproval{
					Handler: pending.Handler,
					Request: req,
					Queued:  append([]domain.OperationRequest(nil), pending.Queued[i+1:]...),
				}
				patch.Append = append(patch.Append, domain.AssistantMessage(pending.Handler, approvalPromptFor(req)))
				g.emit(ctx, state.SessionID, req.Name, "requested")
				return patch, outcomeResuspended
			}
			res := g.tools.Execute(ctx, pending.Handler, state.CustomerID, req)
			patch.Append = append(patch.Append, domain.ToolResultMessage(pending.Handler, res))
		}
		return patch, outcomeApproved

	case outcomeDenied:
		g.emit(ctx, state.SessionID, pending.Request.Name, "denied")
		return domain.Patch{
			ClearPending: true,
			Append:       []domain.Message{domain.AssistantMessage(pending.Handler, deniedReply)},
		}, outcomeDenied

	default:
		g.emit(ctx, state.SessionID, pending.Request.Name, "reprompted")
		g.logger.Debug("ambiguous approval answer, re-prompting", "answer", answer)
		return domain.Patch{
			Append: []domain.Message{domain.AssistantMessage(pending.Handler, repromptReply)},
		}, outcomeReprompted
	}
}

func (g *gate) emit(ctx context.Context, sessionID, tool, outcome string) {
	emitApproval(ctx, g.hooks, sessionID, tool, outcome)
}

func emitApproval(ctx context.Context, hooks domain.LifecycleHooks, sessionID, tool, outcome string) {
	if hooks.OnApproval == nil {
		return
	}
	hooks.OnApproval(ctx, &domain.ApprovalEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventApproval, SessionID: sessionID},
		Tool:      tool,
		Outcome:   outcome,
	})
}

func classifyAnswer(answer string) approvalOutcome {
	token := strings.ToLower(strings.Trim(strings.TrimSpace(answer), ".!"))
	if _, ok := affirmativeTokens[token]; ok {
		return outcomeApproved
	}
	if _, ok := negativeTokens[token]; ok {
		return outcomeDenied
	}
	return outcomeReprompted
}

// DecodeApproval normalizes an out-of-band approval payload into the typed
// record. It accepts either a structured map or a JSON string, which is what
// HTTP clients and queue consumers respectively tend to send.
func DecodeApproval(payload any) (*domain.PendingApproval, error) {
	if raw, ok := payload.(string); ok {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("decode approval payload: %w", err)
		}
		payload = decoded
	}

	var pending domain.PendingApproval
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &pending,
		TagName: "json",
	})
	if err != nil {
		return nil, fmt.Errorf("decode approval payload: %w", err)
	}
	if err := dec.Decode(payload); err != nil {
		return nil, fmt.Errorf("decode approval payload: %w", err)
	}
	if pending.Request.Name == "" {
		return nil, fmt.Errorf("decode approval payload: missing request name")
	}
	return &pending, nil
}
