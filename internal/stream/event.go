// Package stream defines the typed events of the agent backend's SSE protocol and the parser
// turning raw (eventType, data) frames into them.
package stream

import "github.com/lumenlabs/agentchat/internal/models"

// Event is one member of the closed set of stream events the backend can deliver. Exactly one
// event is produced per parsed SSE frame. Consumers dispatch with a type switch; variants they
// do not recognize must be ignored rather than treated as failures.
type Event interface {
	streamEvent()
}

// ThinkingStart marks the beginning of the reasoning phase.
type ThinkingStart struct{}

// ThinkingEnd marks the end of the reasoning phase.
type ThinkingEnd struct{}

// MessageStart marks the beginning of the response phase.
type MessageStart struct{}

// MessageEnd marks the end of the response phase.
type MessageEnd struct{}

// Preprocessing is a non-content control marker emitted before the model runs.
type Preprocessing struct{}

// Postprocessing is a non-content control marker emitted after the model finishes.
type Postprocessing struct{}

// Done signals that the backend finished the request and no further events follow.
type Done struct{}

// Close signals that the backend is closing the stream.
type Close struct{}

// Heartbeat is a keep-alive marker carrying no content.
type Heartbeat struct{}

// Delta carries one chunk of assistant response text. Accumulated, when present, is the
// server's own running concatenation and is authoritative over client-side concatenation.
type Delta struct {
	Content     string
	Accumulated *string
}

// Reasoning carries one chunk of hidden reasoning text, with the same accumulation semantics
// as Delta.
type Reasoning struct {
	Reasoning   string
	Accumulated *string
}

// ToolCallEvent carries one or more tool invocations requested by the assistant in this turn.
type ToolCallEvent struct {
	ToolCalls []ToolCallData
}

// ToolResponseEvent carries results for previously requested tool calls.
type ToolResponseEvent struct {
	Responses []ToolResponseData
}

// MessageComplete is the terminal successful payload of a stream.
type MessageComplete struct {
	ID      string
	Content string
	Usage   *models.Usage
}

// ErrorEvent is the terminal failure payload of a stream. Parse failures are surfaced through
// it as well, with Code set to "parse_error".
type ErrorEvent struct {
	Message string
	Code    string
}

// Unknown is the forward-compatibility catch-all for unrecognized event names.
type Unknown struct {
	Type string
}

// ToolCallData describes one requested tool invocation. Arguments is the raw JSON string of the
// call arguments exactly as the backend sent it.
type ToolCallData struct {
	ID           string
	Type         string
	FunctionName string
	Arguments    string
}

// ToolResponseData is the result of one tool invocation, matched back to its request by ToolID.
type ToolResponseData struct {
	ToolID  string
	Content string
	Error   *string
}

func (ThinkingStart) streamEvent()     {}
func (ThinkingEnd) streamEvent()       {}
func (MessageStart) streamEvent()      {}
func (MessageEnd) streamEvent()        {}
func (Preprocessing) streamEvent()     {}
func (Postprocessing) streamEvent()    {}
func (Done) streamEvent()              {}
func (Close) streamEvent()             {}
func (Heartbeat) streamEvent()         {}
func (Delta) streamEvent()             {}
func (Reasoning) streamEvent()         {}
func (ToolCallEvent) streamEvent()     {}
func (ToolResponseEvent) streamEvent() {}
func (MessageComplete) streamEvent()   {}
func (ErrorEvent) streamEvent()        {}
func (Unknown) streamEvent()           {}
