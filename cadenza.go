package cadenza

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cadenzahq/cadenza/internal/logging"
	"github.com/cadenzahq/cadenza/internal/runtime"
	"github.com/cadenzahq/cadenza/internal/tools"
	"github.com/cadenzahq/cadenza/pkg/adapters/memory"
	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
	"github.com/cadenzahq/cadenza/pkg/session"
)

// TurnResult re-exports the engine's turn outcome.
type TurnResult = runtime.TurnResult

// NodeVisit re-exports one trace entry.
type NodeVisit = runtime.NodeVisit

// Orchestrator is the high-level entry point. It binds the conversation
// engine to a session manager so each turn runs under the session's lock:
// load, advance, save, atomically per session.
type Orchestrator struct {
	engine   *runtime.Engine
	sessions *session.Manager
}

// Option configures the Orchestrator.
type Option func(*settings)

type settings struct {
	store       ports.StateStore
	locker      ports.DistributedLocker
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	engineOpts  []runtime.EngineOption
	retryPolicy *tools.RetryPolicy
}

// WithStateStore selects where session state persists. Defaults to memory.
func WithStateStore(store ports.StateStore) Option {
	return func(s *settings) { s.store = store }
}

// WithLocker enables distributed locking for multi-replica deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *settings) { s.locker = locker }
}

// WithLogger sets the logger used across the engine and session manager.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) { s.hooks = hooks }
}

// WithRetryPolicy overrides the tool executor's backoff policy.
func WithRetryPolicy(p tools.RetryPolicy) Option {
	return func(s *settings) { s.retryPolicy = &p }
}

// WithGuard toggles the prompt-injection screen.
func WithGuard(enabled bool) Option {
	return func(s *settings) {
		s.engineOpts = append(s.engineOpts, runtime.WithGuard(enabled))
	}
}

// WithCompactionThreshold sets the message count that triggers compaction.
func WithCompactionThreshold(n int) Option {
	return func(s *settings) {
		s.engineOpts = append(s.engineOpts, runtime.WithCompactionThreshold(n))
	}
}

// WithMaxToolRounds caps respond/execute cycles per handler invocation.
func WithMaxToolRounds(n int) Option {
	return func(s *settings) {
		s.engineOpts = append(s.engineOpts, runtime.WithMaxToolRounds(n))
	}
}

// New assembles an orchestrator over a reasoner and a record store.
func New(reasoner ports.Reasoner, records ports.RecordStore, opts ...Option) *Orchestrator {
	s := settings{
		store:  memory.NewStore(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	execOpts := []tools.Option{
		tools.WithLogger(s.logger),
		tools.WithLifecycleHooks(s.hooks),
	}
	if s.retryPolicy != nil {
		execOpts = append(execOpts, tools.WithRetryPolicy(*s.retryPolicy))
	}
	executor := tools.NewExecutor(tools.Catalog(records), execOpts...)

	engineOpts := append([]runtime.EngineOption{
		runtime.WithLogger(s.logger),
		runtime.WithLifecycleHooks(s.hooks),
	}, s.engineOpts...)
	engine := runtime.NewEngine(reasoner, executor, records, engineOpts...)

	managerOpts := []session.Option{session.WithLogger(s.logger)}
	if s.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(s.locker))
	}

	return &Orchestrator{
		engine:   engine,
		sessions: session.NewManager(s.store, managerOpts...),
	}
}

// Turn runs one user message against the session. The session lock is held
// for the whole load-advance-save cycle; a failed turn leaves the stored
// state untouched.
func (o *Orchestrator) Turn(ctx context.Context, sessionID, input string) (TurnResult, error) {
	var result TurnResult
	err := o.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := o.sessions.Store().Load(ctx, sessionID)
		if err == domain.ErrSessionNotFound {
			state = domain.NewState(sessionID)
		} else if err != nil {
			return fmt.Errorf("load session %q: %w", sessionID, err)
		}

		next, res, err := o.engine.Turn(ctx, state, input)
		if err != nil {
			return err
		}
		if err := o.sessions.Store().Save(ctx, sessionID, next); err != nil {
			return fmt.Errorf("save session %q: %w", sessionID, err)
		}
		result = res
		return nil
	})
	return result, err
}

// InstallPending installs an out-of-band approval record on the session, for
// operators migrating a suspended conversation from another system. The
// payload may be a structured object or a JSON string.
func (o *Orchestrator) InstallPending(ctx context.Context, sessionID string, payload any) error {
	pending, err := runtime.DecodeApproval(payload)
	if err != nil {
		return err
	}
	return o.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := o.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		next, err := state.Apply(domain.Patch{Pending: pending})
		if err != nil {
			return err
		}
		return o.sessions.Store().Save(ctx, sessionID, next)
	})
}

// State returns a snapshot of the session's stored state.
func (o *Orchestrator) State(ctx context.Context, sessionID string) (*domain.State, error) {
	return o.sessions.Load(ctx, sessionID)
}

// EndSession deletes the session's stored state.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	return o.sessions.Delete(ctx, sessionID)
}

// Sessions lists active session IDs.
func (o *Orchestrator) Sessions(ctx context.Context) ([]string, error) {
	return o.sessions.List(ctx)
}
