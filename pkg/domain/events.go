package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventNodeEnter  EventType = "node_enter"
	EventNodeLeave  EventType = "node_leave"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventApproval   EventType = "approval"
	EventCompaction EventType = "compaction"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NodeEvent represents entry to or exit from a graph node.
type NodeEvent struct {
	EventBase
	Node string `json:"node"`
}

// ToolEvent represents a tool execution attempt or its return.
type ToolEvent struct {
	EventBase
	Tool    string `json:"tool"`
	Attempt int    `json:"attempt"`
	IsError bool   `json:"is_error,omitempty"`
}

// ApprovalEvent represents an approval gate outcome.
type ApprovalEvent struct {
	EventBase
	Tool    string `json:"tool"`
	Outcome string `json:"outcome"` // requested | approved | denied | reprompted
}

// CompactionEvent represents a history compaction.
type CompactionEvent struct {
	EventBase
	Dropped int `json:"dropped"` // messages folded into the summary
}

// LifecycleHooks defines callbacks for engine observability. Any field may
// be nil.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnApproval   func(context.Context, *ApprovalEvent)
	OnCompaction func(context.Context, *CompactionEvent)
}
