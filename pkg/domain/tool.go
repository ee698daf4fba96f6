package domain

import "github.com/cadenzahq/cadenza/pkg/schema"

// ToolDescriptor is the static, build-time definition of a tool: its name,
// sensitivity, parameter schema and owning handler. Descriptors are never
// mutated at runtime.
type ToolDescriptor struct {
	Name        string
	Description string

	// Mutating marks the tool as sensitive: it writes to the record store
	// and must pass the approval gate before executing.
	Mutating bool

	// Parameters validates arguments before dispatch.
	Parameters schema.Schema

	// Handler is the specialist that owns this tool. The executor refuses
	// requests coming from any other handler.
	Handler HandlerTag
}
