// Package transcript rebuilds linear interaction lists from the flat, interleaved message
// history the agent backend persists.
package transcript

import (
	"github.com/lumenlabs/agentchat/internal/models"
	"github.com/lumenlabs/agentchat/internal/stream"
)

// Reconstruct converts an ordered history of user, assistant, and tool messages into the
// ordered list of interactions the rest of the client works with. It is pure and deterministic:
// every history load replaces the previous interaction list wholesale, so cold-loaded and
// live-streamed views share one data model.
//
// Each user message opens an interaction. The messages up to the next user message are its
// window: assistant messages carrying tool calls are intermediate turns whose calls are matched
// against tool-role responses by id, and the first assistant message without tool calls closes
// the window as the answer. A user message with no reply at all yields a pending interaction.
// Leading assistant or tool messages before any user message produce nothing.
func Reconstruct(history []models.Message) []*models.Interaction {
	responses := make(map[string]string)
	for _, msg := range history {
		if msg.Role == models.RoleTool && msg.ToolID != "" {
			responses[msg.ToolID] = msg.Content
		}
	}

	var interactions []*models.Interaction

	i := 0
	for i < len(history) {
		if history[i].Role != models.RoleUser {
			i++
			continue
		}

		interaction := models.NewInteraction(history[i].Content, history[i].Timestamp)

		var firstAssistant, finalAssistant *models.Message
		sawToolCalls := false

		j := i + 1
		for j < len(history) {
			msg := &history[j]

			if msg.Role == models.RoleUser {
				// Starts the next interaction; leave it for the outer scan.
				break
			}

			if msg.Role == models.RoleAssistant {
				if len(msg.ToolCalls) > 0 {
					// Intermediate turn: the assistant asked for tools and the final
					// answer is still ahead.
					for _, tc := range msg.ToolCalls {
						interaction.ToolCalls = append(interaction.ToolCalls, resolveToolCall(tc, responses))
					}
					if firstAssistant == nil {
						firstAssistant = msg
					}
					sawToolCalls = true
					j++
					continue
				}

				if sawToolCalls {
					finalAssistant = msg
				} else if firstAssistant == nil {
					firstAssistant = msg
				}
				j++
				break
			}

			// Tool responses were consumed by the lookup pre-scan above.
			j++
		}

		switch {
		case finalAssistant != nil:
			interaction.AssistantResponse = finalAssistant.Content
			interaction.Status = models.InteractionCompleted
		case firstAssistant != nil:
			interaction.AssistantResponse = firstAssistant.Content
			interaction.Status = models.InteractionCompleted
		default:
			interaction.Status = models.InteractionPending
		}

		interactions = append(interactions, interaction)
		i = j
	}

	return interactions
}

// resolveToolCall pairs a persisted tool call with its response, if one exists. Calls whose id
// never got a response stay pending; a response whose id matches no call is silently unused.
func resolveToolCall(tc models.MessageToolCall, responses map[string]string) *models.ToolCall {
	call := &models.ToolCall{
		ID:        tc.ID,
		Name:      tc.Name,
		Arguments: stream.ParseArguments(tc.Arguments),
		Status:    models.ToolPending,
	}
	if result, ok := responses[tc.ID]; ok {
		call.Status = models.ToolSuccess
		call.Result = result
	}
	return call
}
