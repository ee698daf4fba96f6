package tools

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
	"github.com/cadenzahq/cadenza/pkg/schema"
)

// RetryPolicy bounds retries of transient failures: exponential backoff with
// full jitter, capped per-delay and per-attempt-count.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy mirrors the configured defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Factor:       2.0,
		MaxDelay:     60 * time.Second,
	}
}

// Executor runs operation requests against the tool catalog.
type Executor struct {
	bindings map[string]Binding
	ordered  []Binding
	retry    RetryPolicy
	timeout  time.Duration
	locks    *keyLocks
	logger   *slog.Logger
	hooks    domain.LifecycleHooks

	// sleep and jitter are swappable for tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// Option configures the Executor.
type Option func(*Executor)

// WithRetryPolicy overrides the default backoff policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Executor) { e.retry = p }
}

// WithTimeout bounds each execution attempt.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) { e.hooks = hooks }
}

// withSleeper replaces the backoff sleeper; used by tests to observe delays.
func withSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// withJitter replaces the jitter source; used by tests for determinism.
func withJitter(fn func() float64) Option {
	return func(e *Executor) { e.jitter = fn }
}

// NewExecutor builds an executor over the given bindings.
func NewExecutor(bindings []Binding, opts ...Option) *Executor {
	e := &Executor{
		bindings: make(map[string]Binding, len(bindings)),
		retry:    DefaultRetryPolicy(),
		locks:    newKeyLocks(),
		logger:   slog.Default(),
		sleep:    sleepCtx,
		jitter:   rand.Float64,
	}
	for _, b := range bindings {
		e.bindings[b.Descriptor.Name] = b
		e.ordered = append(e.ordered, b)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Descriptor returns the static descriptor for a tool name.
func (e *Executor) Descriptor(name string) (domain.ToolDescriptor, bool) {
	b, ok := e.bindings[name]
	return b.Descriptor, ok
}

// WhitelistFor returns the descriptors owned by a handler, in catalog order.
func (e *Executor) WhitelistFor(handler domain.HandlerTag) []domain.ToolDescriptor {
	var out []domain.ToolDescriptor
	for _, b := range e.ordered {
		if b.Descriptor.Handler == handler {
			out = append(out, b.Descriptor)
		}
	}
	return out
}

// Execute runs a single operation request on behalf of a handler. It always
// resolves the request to exactly one result: every failure is absorbed into
// a typed OperationFailure rather than an error, so the dialogue continues.
func (e *Executor) Execute(ctx context.Context, handler domain.HandlerTag, identity *int64, req domain.OperationRequest) domain.OperationResult {
	binding, ok := e.bindings[req.Name]
	if !ok {
		return failure(req.ID, domain.FailurePermission, domain.ErrToolNotPermitted.Error()+": unknown tool "+req.Name)
	}
	if binding.Descriptor.Handler != handler {
		e.logger.Warn("tool requested outside owning handler", "tool", req.Name, "handler", string(handler))
		return failure(req.ID, domain.FailurePermission, domain.ErrToolNotPermitted.Error()+": "+req.Name)
	}
	if (binding.Descriptor.Mutating || binding.NeedsIdentity) && identity == nil {
		return failure(req.ID, domain.FailurePermission, domain.ErrIdentityRequired.Error())
	}
	if err := binding.Descriptor.Parameters.Validate(req.Args); err != nil {
		return failure(req.ID, domain.FailureValidation, err.Error())
	}

	run := func(ctx context.Context) (any, error) {
		var id int64
		if identity != nil {
			id = *identity
		}
		if binding.Descriptor.Mutating {
			// Serialize writes per subject key.
			var payload any
			err := e.locks.withLock(id, func() error {
				var runErr error
				payload, runErr = binding.Run(ctx, id, req.Args)
				return runErr
			})
			return payload, err
		}
		return binding.Run(ctx, id, req.Args)
	}

	payload, err := e.executeWithRetry(ctx, req, run)
	if err != nil {
		return domain.OperationResult{ID: req.ID, Failure: classify(err)}
	}
	return domain.OperationResult{ID: req.ID, Payload: payload}
}

// executeWithRetry retries transient failures with exponential backoff and
// full jitter. Non-transient failures return immediately.
func (e *Executor) executeWithRetry(ctx context.Context, req domain.OperationRequest, run func(context.Context) (any, error)) (any, error) {
	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		e.emitToolCall(ctx, req.Name, attempt)

		attemptCtx := ctx
		var cancel context.CancelFunc
		if e.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.timeout)
		}
		payload, err := run(attemptCtx)
		if cancel != nil {
			cancel()
		}

		e.emitToolReturn(ctx, req.Name, attempt, err != nil)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if !ports.IsTransient(err) {
			return nil, err
		}
		if attempt == e.retry.MaxAttempts {
			break
		}

		delay := e.backoffDelay(attempt)
		e.logger.Debug("transient tool failure, backing off",
			"tool", req.Name,
			"attempt", attempt,
			"delay", delay,
			"err", err,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// backoffDelay computes the jittered delay for the given 1-based attempt.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	delay := float64(e.retry.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= e.retry.Factor
	}
	if max := float64(e.retry.MaxDelay); delay > max {
		delay = max
	}
	// Full jitter within [delay/2, delay].
	jittered := delay/2 + e.jitter()*delay/2
	return time.Duration(jittered)
}

func (e *Executor) emitToolCall(ctx context.Context, tool string, attempt int) {
	if e.hooks.OnToolCall == nil {
		return
	}
	e.hooks.OnToolCall(ctx, &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolCall},
		Tool:      tool,
		Attempt:   attempt,
	})
}

func (e *Executor) emitToolReturn(ctx context.Context, tool string, attempt int, isErr bool) {
	if e.hooks.OnToolReturn == nil {
		return
	}
	e.hooks.OnToolReturn(ctx, &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolReturn},
		Tool:      tool,
		Attempt:   attempt,
		IsError:   isErr,
	})
}

func classify(err error) *domain.OperationFailure {
	var verr *schema.ValidationError
	switch {
	case errors.As(err, &verr):
		return &domain.OperationFailure{Kind: domain.FailureValidation, Message: err.Error()}
	case errors.Is(err, domain.ErrIdentityRequired), errors.Is(err, domain.ErrToolNotPermitted):
		return &domain.OperationFailure{Kind: domain.FailurePermission, Message: err.Error()}
	case errors.Is(err, ports.ErrRecordNotFound):
		return &domain.OperationFailure{Kind: domain.FailureNotFound, Message: err.Error()}
	case ports.IsTransient(err):
		return &domain.OperationFailure{Kind: domain.FailureTransient, Message: err.Error()}
	default:
		return &domain.OperationFailure{Kind: domain.FailureInternal, Message: err.Error()}
	}
}

func failure(id string, kind domain.FailureKind, msg string) domain.OperationResult {
	return domain.OperationResult{
		ID:      id,
		Failure: &domain.OperationFailure{Kind: kind, Message: msg},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
