package middleware

import (
	"context"
	"regexp"

	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

const mask = "***"

type redactionMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks pattern matches in
// persisted message content and summaries. Redaction is lossy: a reloaded
// session sees the masked transcript.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.StateStore) ports.StateStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	// Clone so the in-memory state used by the engine is untouched.
	cloned := state.Clone()

	cloned.Summary = redactEnvelopeAware(cloned.Summary, m.patterns)
	for i := range cloned.Messages {
		cloned.Messages[i].Content = redact(cloned.Messages[i].Content, m.patterns)
	}
	if cloned.Pending != nil {
		cloned.Pending.Request.Args = redactArgs(cloned.Pending.Request.Args, m.patterns)
		for i := range cloned.Pending.Queued {
			cloned.Pending.Queued[i].Args = redactArgs(cloned.Pending.Queued[i].Args, m.patterns)
		}
	}

	return m.next.Save(ctx, sessionID, cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func redact(s string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, mask)
	}
	return s
}

// redactEnvelopeAware leaves sealed envelopes alone so redaction composes
// under encryption.
func redactEnvelopeAware(s string, patterns []*regexp.Regexp) string {
	if len(s) >= len(envelopePrefix) && s[:len(envelopePrefix)] == envelopePrefix {
		return s
	}
	return redact(s, patterns)
}

func redactArgs(args map[string]any, patterns []*regexp.Regexp) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if str, ok := v.(string); ok {
			out[k] = redact(str, patterns)
		} else {
			out[k] = v
		}
	}
	return out
}
