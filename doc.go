/*
Package cadenza is a resumable conversation orchestrator for customer support
over a music-store catalog.

Each user turn runs through a fixed graph: identity resolution, an optional
prompt-injection screen, a router that classifies the request, and a
specialist handler that may call tools against the record store. Sensitive
operations suspend the turn at an approval gate; the session state persists
between turns, so approval can arrive minutes or days later, from any
replica. Long conversations are folded into a rolling summary so context
never grows without bound.

# Architecture

The engine is hexagonal: the orchestration core depends only on ports
(Reasoner, StateStore, RecordStore, DistributedLocker), and adapters supply
Gemini, Redis, SQLite, or in-memory implementations. State is the unit of
persistence and concurrency; nodes mutate it exclusively through validated
patches, so a failed turn never half-applies.

# Usage

	orc := cadenza.New(reasoner, records,
		cadenza.WithStateStore(redisStore),
		cadenza.WithLocker(redisLocker),
	)

	result, err := orc.Turn(ctx, "session-1", "I want to change my email")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.Reply)
	if result.Suspended {
		// The next Turn on this session resolves the approval.
	}
*/
package cadenza
