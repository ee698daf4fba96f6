package domain

// Role identifies the producer of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// HandlerTag is a closed tag identifying which handler produced a message.
// It replaces loose string fields so routing and filtering points can switch
// exhaustively on it.
type HandlerTag string

const (
	HandlerNone      HandlerTag = ""
	HandlerAccount   HandlerTag = "account"
	HandlerInventory HandlerTag = "inventory"
	HandlerGeneral   HandlerTag = "general"
	HandlerSystem    HandlerTag = "system"
)

// Message is a single entry in a conversation. Messages are immutable once
// appended; ordering is append-only.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Requests carries the operations an assistant message asked for.
	Requests []OperationRequest `json:"requests,omitempty"`

	// Handler tags the message with its producing handler.
	Handler HandlerTag `json:"handler,omitempty"`

	// CorrelationID links a tool-result message back to its request.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message tagged with its handler.
func AssistantMessage(handler HandlerTag, content string) Message {
	return Message{Role: RoleAssistant, Content: content, Handler: handler}
}

// ToolResultMessage renders an operation result as a conversation entry.
func ToolResultMessage(handler HandlerTag, res OperationResult) Message {
	content := res.Render()
	return Message{
		Role:          RoleTool,
		Content:       content,
		Handler:       handler,
		CorrelationID: res.ID,
	}
}

// Empty reports whether the message carries neither content nor requests.
func (m Message) Empty() bool {
	return m.Content == "" && len(m.Requests) == 0
}
