package lmstudio

import "github.com/nugget/lmstudio-go/internal/endpoint"

// Role identifies the speaker of a History entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one chat-history entry. This is intentionally minimal —
// spec.md §1 scopes the chat-history model to only the operations the
// core calls on it: appending an assistant response, appending tool
// results, and producing wire form.
type Message struct {
	Role       Role            `json:"role"`
	Content    string          `json:"content"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolCalls  []ToolCallEntry `json:"toolCalls,omitempty"`
}

// ToolCallEntry records one tool call the assistant made, so it can
// be replayed into wire form alongside the eventual tool-result
// messages.
type ToolCallEntry struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// History is an ordered sequence of chat messages.
type History struct {
	messages []Message
}

// NewHistory creates a History seeded with the given messages.
func NewHistory(messages ...Message) *History {
	h := &History{}
	h.messages = append(h.messages, messages...)
	return h
}

// Append adds a message to the end of the history.
func (h *History) Append(m Message) {
	h.messages = append(h.messages, m)
}

// AppendAssistantResponse appends the assistant's reply, including any
// tool calls it made, so the next round's request reflects them.
func (h *History) AppendAssistantResponse(content string, toolCalls []endpoint.ToolCallRequest) {
	entries := make([]ToolCallEntry, len(toolCalls))
	for i, tc := range toolCalls {
		entries[i] = ToolCallEntry{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
	}
	h.Append(Message{Role: RoleAssistant, Content: content, ToolCalls: entries})
}

// AppendToolResult appends one tool-role message correlated to a
// prior tool call by id.
func (h *History) AppendToolResult(toolCallID, content string) {
	h.Append(Message{Role: RoleTool, Content: content, ToolCallID: toolCallID})
}

// Messages returns a copy of the history's messages.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// WireForm renders the history as the "history" creationParameter
// field the predict channel expects.
func (h *History) WireForm() any {
	return h.messages
}

// Clone returns an independent copy, used by Act to mutate a
// round-local history without aliasing the caller's copy.
func (h *History) Clone() *History {
	return NewHistory(h.messages...)
}
