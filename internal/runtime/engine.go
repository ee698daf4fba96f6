package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode"

	"github.com/cadenzahq/cadenza/internal/guard"
	"github.com/cadenzahq/cadenza/internal/prompt"
	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

// Node names as they appear in traces and metrics.
const (
	NodeIdentity   = "identity"
	NodeGuard      = "guard"
	NodeRouter     = "router"
	NodeAccount    = "account"
	NodeInventory  = "inventory"
	NodeGeneral    = "general"
	NodeApproval   = "approval"
	NodeCompaction = "compaction"
)

const (
	identityPrompt  = "Before I can help with your account, could you share your customer ID?"
	identityUnknown = "I couldn't find an account with that customer ID. Could you double-check it?"
)

// NodeVisit records one node's contribution to a turn.
type NodeVisit struct {
	Node     string
	Messages []domain.Message
}

// TurnResult is what one user turn produced.
type TurnResult struct {
	// Reply is the last assistant message of the turn.
	Reply string
	// Trace lists the nodes visited, in order, with the messages each one
	// appended.
	Trace []NodeVisit
	// Suspended reports that the turn ended at the approval gate and the
	// next turn resumes there.
	Suspended bool
}

// Engine drives the fixed conversation graph. It is stateless across turns;
// everything a turn needs lives in the State it is handed.
type Engine struct {
	reasoner ports.Reasoner
	tools    toolRunner
	records  ports.RecordStore

	router      *router
	gate        *gate
	compactor   *compactor
	screener    *guard.Screener
	specialists map[domain.HandlerTag]*specialist

	guardEnabled bool
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
}

// EngineOption configures the engine.
type EngineOption func(*engineSettings)

type engineSettings struct {
	maxEmptyRetries     int
	maxToolRounds       int
	compactionThreshold int
	guardEnabled        bool
	hooks               domain.LifecycleHooks
	logger              *slog.Logger
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(s *engineSettings) { s.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(s *engineSettings) { s.hooks = hooks }
}

// WithGuard toggles the prompt-injection screen.
func WithGuard(enabled bool) EngineOption {
	return func(s *engineSettings) { s.guardEnabled = enabled }
}

// WithCompactionThreshold sets the message count that triggers compaction.
func WithCompactionThreshold(n int) EngineOption {
	return func(s *engineSettings) { s.compactionThreshold = n }
}

// WithMaxToolRounds caps respond/execute cycles per handler invocation.
func WithMaxToolRounds(n int) EngineOption {
	return func(s *engineSettings) { s.maxToolRounds = n }
}

// WithMaxEmptyRetries bounds the degenerate-reply retry loop.
func WithMaxEmptyRetries(n int) EngineOption {
	return func(s *engineSettings) { s.maxEmptyRetries = n }
}

// NewEngine assembles the graph over a reasoner, a tool executor, and the
// record store used for identity verification.
func NewEngine(reasoner ports.Reasoner, tools toolRunner, records ports.RecordStore, opts ...EngineOption) *Engine {
	settings := engineSettings{
		maxEmptyRetries:     3,
		maxToolRounds:       5,
		compactionThreshold: 15,
		guardEnabled:        true,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(&settings)
	}

	asst := newAssistant(reasoner, settings.maxEmptyRetries, settings.logger)
	e := &Engine{
		reasoner:     reasoner,
		tools:        tools,
		records:      records,
		router:       newRouter(reasoner, settings.logger),
		gate:         newGate(tools, settings.hooks, settings.logger),
		compactor:    newCompactor(reasoner, settings.compactionThreshold, settings.hooks, settings.logger),
		screener:     guard.New(reasoner, settings.logger),
		guardEnabled: settings.guardEnabled,
		hooks:        settings.hooks,
		logger:       settings.logger,
		specialists: map[domain.HandlerTag]*specialist{
			domain.HandlerAccount:   newSpecialist(domain.HandlerAccount, prompt.Account, asst, tools, settings.maxToolRounds, settings.hooks, settings.logger),
			domain.HandlerInventory: newSpecialist(domain.HandlerInventory, prompt.Inventory, asst, tools, settings.maxToolRounds, settings.hooks, settings.logger),
			domain.HandlerGeneral:   newSpecialist(domain.HandlerGeneral, prompt.General, asst, tools, settings.maxToolRounds, settings.hooks, settings.logger),
		},
	}
	return e
}

// turnState threads the evolving state and trace through a turn.
type turnState struct {
	state *domain.State
	trace []NodeVisit
}

// apply validates and applies a node's patch. On violation the turn aborts
// and the caller's state is left exactly as loaded.
func (t *turnState) apply(node string, patch domain.Patch) error {
	if patch.Empty() {
		return nil
	}
	next, err := t.state.Apply(patch)
	if err != nil {
		return fmt.Errorf("apply %s patch: %w", node, err)
	}
	t.state = next
	if node != "" {
		t.trace = append(t.trace, NodeVisit{Node: node, Messages: patch.Append})
	}
	return nil
}

// Turn runs one user message through the graph and returns the advanced
// state. On error the returned state is nil and the stored state must not
// advance; the turn simply never happened.
func (e *Engine) Turn(ctx context.Context, state *domain.State, input string) (*domain.State, TurnResult, error) {
	t := &turnState{state: state}
	if err := t.apply("", domain.Patch{Append: []domain.Message{domain.UserMessage(input)}}); err != nil {
		return nil, TurnResult{}, err
	}

	suspended, err := e.runGraph(ctx, t, input)
	if err != nil {
		return nil, TurnResult{}, err
	}

	reply := ""
	if m, ok := t.state.LastAssistantMessage(); ok {
		reply = m.Content
	}
	return t.state, TurnResult{Reply: reply, Trace: t.trace, Suspended: suspended}, nil
}

func (e *Engine) runGraph(ctx context.Context, t *turnState, input string) (bool, error) {
	// A suspended session re-enters at the gate, nowhere else.
	if t.state.Pending != nil {
		return e.runApproval(ctx, t, input)
	}

	if !t.state.Identified() {
		proceed, err := e.runIdentity(ctx, t, input)
		if err != nil || !proceed {
			return false, err
		}
	}

	if e.guardEnabled {
		safe, err := e.runGuard(ctx, t, input)
		if err != nil || !safe {
			return false, err
		}
	}

	handler, err := e.runRouter(ctx, t)
	if err != nil {
		return false, err
	}

	suspended, err := e.runSpecialist(ctx, t, handler)
	if err != nil {
		return false, err
	}
	if suspended {
		return true, nil
	}

	return false, e.runCompaction(ctx, t)
}

func (e *Engine) runApproval(ctx context.Context, t *turnState, input string) (bool, error) {
	e.enterNode(ctx, t.state.SessionID, NodeApproval)
	defer e.leaveNode(ctx, t.state.SessionID, NodeApproval)

	pending := t.state.Pending
	patch, outcome := e.gate.resolve(ctx, t.state, input)
	if err := t.apply(NodeApproval, patch); err != nil {
		return false, err
	}

	switch outcome {
	case outcomeReprompted, outcomeResuspended:
		return true, nil
	}

	// Approved or denied: the owning handler closes the loop, over the tool
	// results or over the cancellation.
	suspended, err := e.runSpecialist(ctx, t, pending.Handler)
	if err != nil {
		return false, err
	}
	if suspended {
		return true, nil
	}
	return false, e.runCompaction(ctx, t)
}

func (e *Engine) runIdentity(ctx context.Context, t *turnState, input string) (bool, error) {
	e.enterNode(ctx, t.state.SessionID, NodeIdentity)
	defer e.leaveNode(ctx, t.state.SessionID, NodeIdentity)

	id, ok := parseCustomerID(input)
	if !ok {
		return false, t.apply(NodeIdentity, domain.Patch{
			Append: []domain.Message{domain.AssistantMessage(domain.HandlerSystem, identityPrompt)},
		})
	}

	if _, err := e.records.GetCustomer(ctx, id); err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			return false, t.apply(NodeIdentity, domain.Patch{
				Append: []domain.Message{domain.AssistantMessage(domain.HandlerSystem, identityUnknown)},
			})
		}
		return false, fmt.Errorf("verify identity: %w", err)
	}

	e.logger.Info("identity verified", "session", t.state.SessionID, "customer", id)
	return true, t.apply(NodeIdentity, domain.Patch{Identity: &id})
}

func (e *Engine) runGuard(ctx context.Context, t *turnState, input string) (bool, error) {
	e.enterNode(ctx, t.state.SessionID, NodeGuard)
	defer e.leaveNode(ctx, t.state.SessionID, NodeGuard)

	safe, err := e.screener.Screen(ctx, input)
	if err != nil {
		return false, err
	}
	if safe {
		return true, nil
	}
	return false, t.apply(NodeGuard, domain.Patch{
		Append: []domain.Message{domain.AssistantMessage(domain.HandlerSystem, guard.Refusal)},
	})
}

func (e *Engine) runRouter(ctx context.Context, t *turnState) (domain.HandlerTag, error) {
	e.enterNode(ctx, t.state.SessionID, NodeRouter)
	defer e.leaveNode(ctx, t.state.SessionID, NodeRouter)

	decision, err := e.router.route(ctx, t.state)
	if err != nil {
		return domain.HandlerNone, err
	}
	if err := t.apply(NodeRouter, domain.Patch{Route: &decision}); err != nil {
		return domain.HandlerNone, err
	}
	e.logger.Debug("routed", "session", t.state.SessionID, "decision", string(decision))
	return handlerFor(decision), nil
}

func (e *Engine) runSpecialist(ctx context.Context, t *turnState, handler domain.HandlerTag) (bool, error) {
	sp, ok := e.specialists[handler]
	if !ok {
		return false, fmt.Errorf("no specialist for handler %q", handler)
	}
	node := string(handler)
	e.enterNode(ctx, t.state.SessionID, node)
	defer e.leaveNode(ctx, t.state.SessionID, node)

	patch, suspended, err := sp.run(ctx, t.state)
	if err != nil {
		return false, err
	}
	return suspended, t.apply(node, patch)
}

func (e *Engine) runCompaction(ctx context.Context, t *turnState) error {
	patch, err := e.compactor.maybe(ctx, t.state)
	if err != nil {
		// Compaction is maintenance; a failed cycle must not lose the turn.
		e.logger.Warn("compaction failed, keeping full history", "err", err)
		return nil
	}
	if patch.Empty() {
		return nil
	}
	e.enterNode(ctx, t.state.SessionID, NodeCompaction)
	defer e.leaveNode(ctx, t.state.SessionID, NodeCompaction)
	return t.apply(NodeCompaction, patch)
}

func (e *Engine) enterNode(ctx context.Context, sessionID, node string) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeEnter, SessionID: sessionID},
		Node:      node,
	})
}

func (e *Engine) leaveNode(ctx context.Context, sessionID, node string) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeLeave, SessionID: sessionID},
		Node:      node,
	})
}

// parseCustomerID extracts the first run of digits from the input, so both
// a bare "42" and "my id is 42" resolve.
func parseCustomerID(input string) (int64, bool) {
	start := -1
	for i, r := range input {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			id, err := strconv.ParseInt(input[start:i], 10, 64)
			return id, err == nil
		}
	}
	if start >= 0 {
		id, err := strconv.ParseInt(input[start:], 10, 64)
		return id, err == nil
	}
	return 0, false
}
