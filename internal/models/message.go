package models

import "time"

// Conversation represents a conversation container on the agent backend. It provides basic
// identification and labeling for organizing message threads.
type Conversation struct {
	ID    string
	Title string
}

// Message is one entry of a conversation's persisted history as the backend returns it: a flat,
// ordered list mixing user turns, assistant turns, and tool-response turns.
type Message struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	// ToolCalls is filled on assistant messages that requested tool invocations.
	ToolCalls []MessageToolCall `json:"tool_calls,omitempty"`

	// ToolID and ToolName are filled on tool-role messages carrying a tool result.
	ToolID   string `json:"tool_id,omitempty"`
	ToolName string `json:"tool_name,omitempty"`
}

// MessageToolCall is a tool invocation as recorded on a persisted assistant message. Arguments
// holds the raw JSON string exactly as the provider issued it.
type MessageToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a user message. A message with this role only carries text content.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message. A message with this role carries text
	// content and potentially tool call requests.
	RoleAssistant Role = "assistant"
	// RoleTool represents a tool result message answering a previous assistant tool call.
	RoleTool Role = "tool"
)
