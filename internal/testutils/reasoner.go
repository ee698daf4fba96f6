// Package testutils provides scripted collaborators for engine tests.
package testutils

import (
	"context"
	"sync"

	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

// FakeReasoner is a scripted ports.Reasoner. Decisions and replies are
// consumed in FIFO order; optional funcs take precedence when set.
type FakeReasoner struct {
	mu sync.Mutex

	// DecideFn, when set, handles every Decide call.
	DecideFn func(req ports.DecideRequest) (string, error)
	// RespondFn, when set, handles every Respond call.
	RespondFn func(req ports.RespondRequest) (domain.Message, error)

	// Decisions and Replies are consumed per call when the funcs are unset.
	Decisions []string
	Replies   []domain.Message

	DecideCalls  []ports.DecideRequest
	RespondCalls []ports.RespondRequest
}

var _ ports.Reasoner = (*FakeReasoner)(nil)

func (f *FakeReasoner) Decide(_ context.Context, req ports.DecideRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DecideCalls = append(f.DecideCalls, req)

	if f.DecideFn != nil {
		return f.DecideFn(req)
	}
	if len(f.Decisions) == 0 {
		return "", domain.ErrMalformedDecision
	}
	next := f.Decisions[0]
	f.Decisions = f.Decisions[1:]
	return next, nil
}

func (f *FakeReasoner) Respond(_ context.Context, req ports.RespondRequest) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RespondCalls = append(f.RespondCalls, req)

	if f.RespondFn != nil {
		return f.RespondFn(req)
	}
	if len(f.Replies) == 0 {
		return domain.Message{}, nil
	}
	next := f.Replies[0]
	f.Replies = f.Replies[1:]
	return next, nil
}

// Reply builds an assistant message for scripting.
func Reply(content string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: content}
}

// ToolReply builds an assistant message that requests operations.
func ToolReply(content string, reqs ...domain.OperationRequest) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: content, Requests: reqs}
}
