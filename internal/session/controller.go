// Package session drives per-interaction state for one conversation while a response streams
// in from the agent backend.
package session

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenlabs/agentchat/internal/models"
	"github.com/lumenlabs/agentchat/internal/stream"
)

// Controller owns one conversation's interaction list and applies live stream events to its
// most recent interaction. Events are applied strictly in delivery order under a single-writer
// discipline: Apply, Cancel, Begin, and Replace serialize on an internal mutex, and no two
// events are ever applied concurrently to the same interaction.
//
// At most one interaction is open (non-terminal) at a time, and it is always the last element
// of the list. Starting a new interaction, or cancelling, closes the previous one first.
type Controller struct {
	mu           sync.Mutex
	interactions []*models.Interaction

	// streaming is true while events from the active subscription may still be applied.
	// Cancel flips it off; later events for that stream are dropped.
	streaming bool

	logger *slog.Logger
}

// NewController creates a controller with an empty interaction list.
func NewController(logger *slog.Logger) *Controller {
	return &Controller{
		logger: logger.With(slog.String("module", "session")),
	}
}

// Replace swaps in a freshly reconstructed interaction list, discarding the previous one. Any
// active stream is cancelled first so the new snapshot starts with no open interaction.
func (c *Controller) Replace(interactions []*models.Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeOpenInteraction()
	c.interactions = interactions
}

// Begin appends a pending interaction for a locally submitted user message and makes it the
// target of subsequent Apply calls. A still-open previous interaction is forced completed
// first, preserving the single-open-interaction invariant.
func (c *Controller) Begin(userMessage string) *models.Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeOpenInteraction()

	interaction := models.NewInteraction(userMessage, time.Now())
	c.interactions = append(c.interactions, interaction)
	c.streaming = true
	return interaction
}

// Cancel stops the active stream, if any. The open interaction is forced to completed and no
// event delivered afterwards mutates it. Cancelling with no active stream is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeOpenInteraction()
}

func (c *Controller) closeOpenInteraction() {
	c.streaming = false
	if last := c.last(); last != nil && !last.Status.Terminal() {
		last.Status = models.InteractionCompleted
	}
}

// Apply applies one stream event to the open interaction. Events arriving after cancellation,
// or with no interaction open, are dropped.
func (c *Controller) Apply(ev stream.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return
	}
	interaction := c.last()
	if interaction == nil {
		return
	}

	switch ev := ev.(type) {
	case stream.ThinkingStart:
		interaction.Status = models.InteractionThinking
	case stream.ThinkingEnd:
		interaction.Status = models.InteractionStreaming
	case stream.Delta:
		if ev.Accumulated != nil {
			interaction.AssistantResponse = *ev.Accumulated
		} else {
			interaction.AssistantResponse += ev.Content
		}
		interaction.Status = models.InteractionStreaming
	case stream.Reasoning:
		if ev.Accumulated != nil {
			interaction.AssistantReasoning = *ev.Accumulated
		} else {
			interaction.AssistantReasoning += ev.Reasoning
		}
	case stream.ToolCallEvent:
		for _, tc := range ev.ToolCalls {
			interaction.ToolCalls = append(interaction.ToolCalls, &models.ToolCall{
				ID:        tc.ID,
				Name:      tc.FunctionName,
				Arguments: stream.ParseArguments(tc.Arguments),
				Status:    models.ToolRunning,
			})
		}
	case stream.ToolResponseEvent:
		for _, res := range ev.Responses {
			c.applyToolResponse(interaction, res)
		}
	case stream.MessageComplete:
		if ev.Content != "" {
			interaction.AssistantResponse = ev.Content
		}
		interaction.Status = models.InteractionCompleted
		c.streaming = false
	case stream.ErrorEvent:
		interaction.ErrorMessage = ev.Message
		interaction.Status = models.InteractionError
		c.streaming = false
	default:
		// MessageStart, MessageEnd, Preprocessing, Postprocessing, Done, Close,
		// Heartbeat, and Unknown carry no interaction state.
	}
}

func (c *Controller) applyToolResponse(interaction *models.Interaction, res stream.ToolResponseData) {
	call := interaction.ToolCallByID(res.ToolID)
	if call == nil {
		c.logger.Debug("Dropping response for unknown tool call", slog.String("toolID", res.ToolID))
		return
	}
	if call.Status.Terminal() {
		// Each tool call resolves exactly once; a duplicate response is ignored.
		return
	}

	call.Result = res.Content
	if res.Error != nil {
		call.Error = *res.Error
		call.Status = models.ToolError
		return
	}
	call.Status = models.ToolSuccess
}

// Run consumes a live event sequence for the interaction opened by the last Begin, applying
// events one at a time until the sequence ends, the backend signals done or close, the stream
// reaches a terminal state, or ctx is cancelled. A transport error marks the open interaction
// as errored. However the stream ends, the interaction is left in a terminal status.
func (c *Controller) Run(ctx context.Context, events iter.Seq2[stream.Event, error]) {
	defer c.Cancel()

	for ev, err := range events {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.fail(err.Error())
			return
		}

		c.Apply(ev)

		switch ev.(type) {
		case stream.Done, stream.Close:
			return
		case stream.MessageComplete, stream.ErrorEvent:
			return
		}
	}
}

func (c *Controller) fail(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return
	}
	if last := c.last(); last != nil && !last.Status.Terminal() {
		last.ErrorMessage = message
		last.Status = models.InteractionError
	}
	c.streaming = false
}

// ToggleFeedback applies user feedback to an interaction. Setting the value the interaction
// already carries clears it back to none.
func (c *Controller) ToggleFeedback(interactionID string, state models.FeedbackState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, interaction := range c.interactions {
		if interaction.ID != interactionID {
			continue
		}
		if interaction.Feedback == state {
			interaction.Feedback = models.FeedbackNone
		} else {
			interaction.Feedback = state
		}
		return
	}
}

// Interactions returns the current interaction list. The slice is copied; the interactions it
// points to are the live ones.
func (c *Controller) Interactions() []*models.Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.Interaction, len(c.interactions))
	copy(out, c.interactions)
	return out
}

func (c *Controller) last() *models.Interaction {
	if len(c.interactions) == 0 {
		return nil
	}
	return c.interactions[len(c.interactions)-1]
}
