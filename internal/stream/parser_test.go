package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/agentchat/internal/models"
	"github.com/lumenlabs/agentchat/internal/stream"
)

func TestParseMarkers(t *testing.T) {
	tests := []struct {
		eventType string
		want      stream.Event
	}{
		{"reasoning_start", stream.ThinkingStart{}},
		{"thinking_start", stream.ThinkingStart{}},
		{"reasoning_end", stream.ThinkingEnd{}},
		{"thinking_end", stream.ThinkingEnd{}},
		{"message_start", stream.MessageStart{}},
		{"message_end", stream.MessageEnd{}},
		{"preprocessing", stream.Preprocessing{}},
		{"postprocessing", stream.Postprocessing{}},
		{"done", stream.Done{}},
		{"close", stream.Close{}},
		{"heartbeat", stream.Heartbeat{}},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.want, stream.Parse(tt.eventType, ""))
			assert.Equal(t, tt.want, stream.Parse(tt.eventType, "   \n"))
			// Markers may legally carry an ignorable JSON body.
			assert.Equal(t, tt.want, stream.Parse(tt.eventType, `{"ignored":true}`))
		})
	}
}

func TestParseUnknownEventType(t *testing.T) {
	assert.Equal(t, stream.Unknown{Type: "mystery"}, stream.Parse("mystery", ""))
	assert.Equal(t, stream.Unknown{Type: "mystery"}, stream.Parse("mystery", `{"whatever":1}`))
}

func TestParseMalformedJSON(t *testing.T) {
	for _, eventType := range []string{"delta", "reasoning", "tool_call", "message", "error", "mystery"} {
		ev := stream.Parse(eventType, "{not json")
		errEv, ok := ev.(stream.ErrorEvent)
		require.True(t, ok, "event type %s should produce ErrorEvent, got %T", eventType, ev)
		assert.Equal(t, "parse_error", errEv.Code)
		assert.Contains(t, errEv.Message, "Parse error:")
	}
}

func TestParseDelta(t *testing.T) {
	ev := stream.Parse("delta", `{"content":"Hel","accumulated":"Hel"}`)
	delta, ok := ev.(stream.Delta)
	require.True(t, ok)
	assert.Equal(t, "Hel", delta.Content)
	require.NotNil(t, delta.Accumulated)
	assert.Equal(t, "Hel", *delta.Accumulated)

	ev = stream.Parse("delta", `{"accumulated":"full text"}`)
	delta, ok = ev.(stream.Delta)
	require.True(t, ok)
	assert.Equal(t, "", delta.Content)
	require.NotNil(t, delta.Accumulated)
	assert.Equal(t, "full text", *delta.Accumulated)

	ev = stream.Parse("delta", `{"content":"chunk"}`)
	delta, ok = ev.(stream.Delta)
	require.True(t, ok)
	assert.Equal(t, "chunk", delta.Content)
	assert.Nil(t, delta.Accumulated)
}

func TestParseReasoning(t *testing.T) {
	ev := stream.Parse("reasoning", `{"reasoning":"step one"}`)
	reasoning, ok := ev.(stream.Reasoning)
	require.True(t, ok)
	assert.Equal(t, "step one", reasoning.Reasoning)
	assert.Nil(t, reasoning.Accumulated)

	ev = stream.Parse("reasoning", `{"accumulated":"step one, step two"}`)
	reasoning, ok = ev.(stream.Reasoning)
	require.True(t, ok)
	assert.Equal(t, "", reasoning.Reasoning)
	require.NotNil(t, reasoning.Accumulated)
	assert.Equal(t, "step one, step two", *reasoning.Accumulated)
}

func TestParseToolCall(t *testing.T) {
	data := `{"tool_calls":[
		{"id":"call-1","type":"function","function":{"name":"search","arguments":"{\"q\":\"go\"}"}},
		{"id":"call-2","function":{}}
	]}`

	ev := stream.Parse("tool_call", data)
	tce, ok := ev.(stream.ToolCallEvent)
	require.True(t, ok)
	require.Len(t, tce.ToolCalls, 2)

	assert.Equal(t, stream.ToolCallData{
		ID:           "call-1",
		Type:         "function",
		FunctionName: "search",
		Arguments:    `{"q":"go"}`,
	}, tce.ToolCalls[0])

	// Missing fields default rather than fail.
	assert.Equal(t, stream.ToolCallData{
		ID:           "call-2",
		Type:         "function",
		FunctionName: "",
		Arguments:    "{}",
	}, tce.ToolCalls[1])
}

func TestParseToolCallMissingList(t *testing.T) {
	ev := stream.Parse("tool_call", `{}`)
	tce, ok := ev.(stream.ToolCallEvent)
	require.True(t, ok)
	assert.Empty(t, tce.ToolCalls)
}

func TestParseToolResponse(t *testing.T) {
	data := `{"tool_responses":[
		{"tool_id":"call-1","content":"42"},
		{"tool_id":"call-2","content":"","error":"boom"}
	]}`

	ev := stream.Parse("tool_response", data)
	tre, ok := ev.(stream.ToolResponseEvent)
	require.True(t, ok)
	require.Len(t, tre.Responses, 2)

	assert.Equal(t, "call-1", tre.Responses[0].ToolID)
	assert.Equal(t, "42", tre.Responses[0].Content)
	assert.Nil(t, tre.Responses[0].Error)

	require.NotNil(t, tre.Responses[1].Error)
	assert.Equal(t, "boom", *tre.Responses[1].Error)
}

func TestParseMessageComplete(t *testing.T) {
	ev := stream.Parse("message", `{"id":"m1","content":"done","usage":{"input_tokens":10,"output_tokens":20}}`)
	mc, ok := ev.(stream.MessageComplete)
	require.True(t, ok)
	assert.Equal(t, "m1", mc.ID)
	assert.Equal(t, "done", mc.Content)
	require.NotNil(t, mc.Usage)
	assert.Equal(t, models.Usage{InputTokens: 10, OutputTokens: 20}, *mc.Usage)

	ev = stream.Parse("message", `{"usage":{}}`)
	mc, ok = ev.(stream.MessageComplete)
	require.True(t, ok)
	assert.Equal(t, "", mc.ID)
	assert.Equal(t, "", mc.Content)
	require.NotNil(t, mc.Usage)
	assert.Equal(t, models.Usage{}, *mc.Usage)

	ev = stream.Parse("message", `{"id":"m2","content":"x"}`)
	mc, ok = ev.(stream.MessageComplete)
	require.True(t, ok)
	assert.Nil(t, mc.Usage)
}

func TestParseError(t *testing.T) {
	ev := stream.Parse("error", `{"error":"rate limited","code":"429"}`)
	assert.Equal(t, stream.ErrorEvent{Message: "rate limited", Code: "429"}, ev)

	ev = stream.Parse("error", `{}`)
	assert.Equal(t, stream.ErrorEvent{Message: "Unknown error", Code: ""}, ev)
}

func TestParseArguments(t *testing.T) {
	args := stream.ParseArguments(`{"q":"golang","limit":5,"strict":true}`)
	assert.Equal(t, map[string]string{
		"q":      "golang",
		"limit":  "5",
		"strict": "true",
	}, args)
}

func TestParseArgumentsMalformed(t *testing.T) {
	raw := `{"q": unterminated`
	assert.Equal(t, map[string]string{"raw": raw}, stream.ParseArguments(raw))

	assert.Equal(t, map[string]string{"raw": "[1,2]"}, stream.ParseArguments("[1,2]"))
}

func TestParseArgumentsEmpty(t *testing.T) {
	assert.Empty(t, stream.ParseArguments(`{}`))
}
