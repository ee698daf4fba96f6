package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

// toolRunner is the slice of the tool executor the runtime needs.
type toolRunner interface {
	Execute(ctx context.Context, handler domain.HandlerTag, identity *int64, req domain.OperationRequest) domain.OperationResult
	Descriptor(name string) (domain.ToolDescriptor, bool)
	WhitelistFor(handler domain.HandlerTag) []domain.ToolDescriptor
}

// approvalPrompt is appended when a sensitive operation suspends the turn.
const approvalPrompt = "This change needs your confirmation. Reply 'yes' to proceed or 'no' to cancel."

// approvalPromptFor names the field and new value when the held request
// carries them, falling back to the generic confirmation.
func approvalPromptFor(req domain.OperationRequest) string {
	field, okField := req.Args["parameter"].(string)
	value, okValue := req.Args["value"].(string)
	if okField && okValue {
		return fmt.Sprintf("You're asking me to update your %s to %q. Reply 'yes' to proceed or 'no' to cancel.", field, value)
	}
	return approvalPrompt
}

// specialist runs one handler's respond/execute loop. Every tool failure is
// absorbed into the conversation as a tool-result message so the dialogue
// continues; only reasoner errors abort the turn.
type specialist struct {
	tag       domain.HandlerTag
	system    string
	assistant *assistant
	tools     toolRunner
	maxRounds int
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

func newSpecialist(tag domain.HandlerTag, system string, assistant *assistant, tools toolRunner, maxRounds int, hooks domain.LifecycleHooks, logger *slog.Logger) *specialist {
	if maxRounds < 1 {
		maxRounds = 1
	}
	return &specialist{
		tag:       tag,
		system:    system,
		assistant: assistant,
		tools:     tools,
		maxRounds: maxRounds,
		hooks:     hooks,
		logger:    logger,
	}
}

// run drives the loop over the given conversation view. The returned patch
// appends everything the handler produced; when a sensitive request is hit it
// also installs the pending approval and the turn suspends.
func (sp *specialist) run(ctx context.Context, state *domain.State) (domain.Patch, bool, error) {
	conv := conversationView(state)
	whitelist := sp.tools.WhitelistFor(sp.tag)

	var patch domain.Patch
	appendMsg := func(m domain.Message) {
		patch.Append = append(patch.Append, m)
		conv = append(conv, m)
	}

	for round := 1; round <= sp.maxRounds; round++ {
		reply, err := sp.assistant.respond(ctx, sp.tag, ports.RespondRequest{
			System:   sp.system,
			Messages: conv,
			Tools:    whitelist,
		})
		if err != nil {
			return domain.Patch{}, false, fmt.Errorf("%s handler: %w", sp.tag, err)
		}
		appendMsg(reply)
		if len(reply.Requests) == 0 {
			return patch, false, nil
		}

		for i, req := range reply.Requests {
			if desc, ok := sp.tools.Descriptor(req.Name); ok && desc.Mutating {
				patch.Pending = &domain.PendingApproval{
					Handler: sp.tag,
					Request: req,
					Queued:  append([]domain.OperationRequest(nil), reply.Requests[i+1:]...),
				}
				appendMsg(domain.AssistantMessage(sp.tag, approvalPromptFor(req)))
				emitApproval(ctx, sp.hooks, state.SessionID, req.Name, "requested")
				return patch, true, nil
			}
			res := sp.tools.Execute(ctx, sp.tag, state.CustomerID, req)
			appendMsg(domain.ToolResultMessage(sp.tag, res))
		}
	}

	// The loop bound was hit with requests still flowing. Force a closing
	// reply with no tools on offer so the turn ends with words.
	sp.logger.Warn("tool loop bound reached", "handler", string(sp.tag), "err", domain.ErrToolLoopBound)
	reply, err := sp.assistant.respond(ctx, sp.tag, ports.RespondRequest{
		System:   sp.system,
		Messages: conv,
	})
	if err != nil {
		return domain.Patch{}, false, fmt.Errorf("%s handler: %w", sp.tag, err)
	}
	reply.Requests = nil
	patch.Append = append(patch.Append, reply)
	return patch, false, nil
}

// conversationView is what a handler sees: the rolling summary as leading
// context followed by the live message window.
func conversationView(state *domain.State) []domain.Message {
	var view []domain.Message
	if state.Summary != "" {
		view = append(view, domain.Message{
			Role:    domain.RoleUser,
			Content: "Conversation so far: " + state.Summary,
		})
	}
	view = append(view, state.Messages...)
	return view
}
