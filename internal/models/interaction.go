package models

import (
	"time"

	"github.com/google/uuid"
)

// Interaction pairs one user turn with its assistant answer and any tool calls made in between.
// It is the unit of conversation state the UI renders, produced either by the transcript
// reconstructor from persisted history or live by the session controller while a response streams.
type Interaction struct {
	ID          string
	UserMessage string

	AssistantResponse  string
	AssistantReasoning string

	Status   InteractionStatus
	Feedback FeedbackState

	// ErrorMessage is filled when Status is InteractionError.
	ErrorMessage string

	ToolCalls []*ToolCall

	// Timestamp is inherited from the originating user message.
	Timestamp time.Time
}

// NewInteraction creates a pending interaction for a user message with a generated ID.
func NewInteraction(userMessage string, timestamp time.Time) *Interaction {
	return &Interaction{
		ID:          uuid.New().String(),
		UserMessage: userMessage,
		Status:      InteractionPending,
		Feedback:    FeedbackNone,
		Timestamp:   timestamp,
	}
}

// ToolCallByID returns the interaction's tool call with the given id, or nil if none matches.
func (i *Interaction) ToolCallByID(id string) *ToolCall {
	for _, tc := range i.ToolCalls {
		if tc.ID == id {
			return tc
		}
	}
	return nil
}

// ToolCall is an assistant-initiated invocation of an external function, identified by a
// provider-issued id unique within its interaction. Entries are appended when a tool call is
// requested and mutated in place when the matching response arrives.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]string
	Status    ToolStatus
	Result    string
	Error     string
	Duration  time.Duration
}

// InteractionStatus represents the lifecycle state of an interaction.
type InteractionStatus string

const (
	InteractionWaiting    InteractionStatus = "waiting"
	InteractionReasoning  InteractionStatus = "reasoning"
	InteractionResponding InteractionStatus = "responding"
	InteractionThinking   InteractionStatus = "thinking"
	InteractionPending    InteractionStatus = "pending"
	InteractionStreaming  InteractionStatus = "streaming"
	InteractionCompleted  InteractionStatus = "completed"
	InteractionError      InteractionStatus = "error"
)

// Terminal reports whether the status is a terminal one. At most one interaction in a
// conversation may be in a non-terminal status at a time.
func (s InteractionStatus) Terminal() bool {
	return s == InteractionCompleted || s == InteractionError
}

// ToolStatus represents the lifecycle state of a tool call.
type ToolStatus string

const (
	ToolPending ToolStatus = "pending"
	ToolRunning ToolStatus = "running"
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// Terminal reports whether the tool status is final. A tool call in a terminal status must not
// be transitioned again; a second response for the same id is ignored.
func (s ToolStatus) Terminal() bool {
	return s == ToolSuccess || s == ToolError
}

// FeedbackState represents user-applied feedback on an interaction.
type FeedbackState string

const (
	FeedbackNone     FeedbackState = "none"
	FeedbackLiked    FeedbackState = "liked"
	FeedbackDisliked FeedbackState = "disliked"
)

// Usage holds the token counts reported by the backend on a completed message.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
