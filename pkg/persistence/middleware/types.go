// Package middleware provides composable StateStore wrappers for
// at-rest concerns: encryption of session state and redaction of
// personal data from persisted transcripts.
package middleware

import "github.com/cadenzahq/cadenza/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain applies middlewares to a store, outermost first.
func Chain(store ports.StateStore, mws ...Middleware) ports.StateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
