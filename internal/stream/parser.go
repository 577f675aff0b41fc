package stream

import (
	"encoding/json"
	"strings"

	"github.com/lumenlabs/agentchat/internal/models"
)

// markerEvents maps content-free SSE event names to their events. These frames may legally
// arrive with an ignorable JSON body.
var markerEvents = map[string]Event{
	"reasoning_start": ThinkingStart{},
	"thinking_start":  ThinkingStart{},
	"reasoning_end":   ThinkingEnd{},
	"thinking_end":    ThinkingEnd{},
	"message_start":   MessageStart{},
	"message_end":     MessageEnd{},
	"preprocessing":   Preprocessing{},
	"postprocessing":  Postprocessing{},
	"done":            Done{},
	"close":           Close{},
	"heartbeat":       Heartbeat{},
}

// Parse converts a named SSE event and its raw data payload into a typed stream event. It is a
// total function: malformed payloads come back as ErrorEvent with code "parse_error" and
// unrecognized event names come back as Unknown, so a live stream never breaks on a frame the
// client cannot make sense of. The backend protocol is loosely typed and still evolving, so
// every field access defaults rather than fails.
func Parse(eventType, data string) Event {
	if strings.TrimSpace(data) == "" {
		if ev, ok := markerEvents[eventType]; ok {
			return ev
		}
		return Unknown{Type: eventType}
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return ErrorEvent{Message: "Parse error: " + err.Error(), Code: "parse_error"}
	}

	switch eventType {
	case "delta":
		return Delta{
			Content:     stringField(payload, "content"),
			Accumulated: optStringField(payload, "accumulated"),
		}
	case "reasoning":
		return Reasoning{
			Reasoning:   stringField(payload, "reasoning"),
			Accumulated: optStringField(payload, "accumulated"),
		}
	case "tool_call":
		return ToolCallEvent{ToolCalls: parseToolCalls(payload["tool_calls"])}
	case "tool_response":
		return ToolResponseEvent{Responses: parseToolResponses(payload["tool_responses"])}
	case "message":
		return MessageComplete{
			ID:      stringField(payload, "id"),
			Content: stringField(payload, "content"),
			Usage:   parseUsage(payload["usage"]),
		}
	case "error":
		msg := stringField(payload, "error")
		if msg == "" {
			msg = "Unknown error"
		}
		return ErrorEvent{Message: msg, Code: stringField(payload, "code")}
	default:
		if ev, ok := markerEvents[eventType]; ok {
			return ev
		}
		return Unknown{Type: eventType}
	}
}

type wireToolCall struct {
	ID       string  `json:"id"`
	Type     *string `json:"type"`
	Function struct {
		Name      *string `json:"name"`
		Arguments *string `json:"arguments"`
	} `json:"function"`
}

type wireToolResponse struct {
	ToolID  string  `json:"tool_id"`
	Content string  `json:"content"`
	Error   *string `json:"error"`
}

type wireUsage struct {
	InputTokens  *int `json:"input_tokens"`
	OutputTokens *int `json:"output_tokens"`
}

func parseToolCalls(raw json.RawMessage) []ToolCallData {
	var wire []wireToolCall
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &wire)
	}

	calls := make([]ToolCallData, 0, len(wire))
	for _, tc := range wire {
		calls = append(calls, ToolCallData{
			ID:           tc.ID,
			Type:         orDefault(tc.Type, "function"),
			FunctionName: orDefault(tc.Function.Name, ""),
			Arguments:    orDefault(tc.Function.Arguments, "{}"),
		})
	}
	return calls
}

func parseToolResponses(raw json.RawMessage) []ToolResponseData {
	var wire []wireToolResponse
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &wire)
	}

	responses := make([]ToolResponseData, 0, len(wire))
	for _, tr := range wire {
		responses = append(responses, ToolResponseData{
			ToolID:  tr.ToolID,
			Content: tr.Content,
			Error:   tr.Error,
		})
	}
	return responses
}

func parseUsage(raw json.RawMessage) *models.Usage {
	if len(raw) == 0 {
		return nil
	}
	var wire wireUsage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}
	usage := models.Usage{}
	if wire.InputTokens != nil {
		usage.InputTokens = *wire.InputTokens
	}
	if wire.OutputTokens != nil {
		usage.OutputTokens = *wire.OutputTokens
	}
	return &usage
}

func stringField(payload map[string]json.RawMessage, key string) string {
	s := optStringField(payload, key)
	if s == nil {
		return ""
	}
	return *s
}

func optStringField(payload map[string]json.RawMessage, key string) *string {
	raw, ok := payload[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func orDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

// ParseArguments turns a tool call's raw arguments JSON into a flat string-keyed map.
// Non-string values keep their JSON text representation. Malformed input never fails; it
// degrades to a single "raw" key holding the original string.
func ParseArguments(raw string) map[string]string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return map[string]string{"raw": raw}
	}

	args := make(map[string]string, len(fields))
	for key, val := range fields {
		var s string
		if err := json.Unmarshal(val, &s); err == nil {
			args[key] = s
			continue
		}
		args[key] = string(val)
	}
	return args
}
