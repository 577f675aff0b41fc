package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/lumenlabs/agentchat/internal/bus"
	"github.com/lumenlabs/agentchat/internal/models"
	"github.com/lumenlabs/agentchat/internal/stream"
)

// ErrSessionExpired is returned when the backend rejects the client's token. The same
// condition is also broadcast on the notice bus so the shell can prompt for re-authentication.
var ErrSessionExpired = errors.New("session expired")

// TokenProvider supplies the bearer token for backend requests. Token storage and refresh live
// outside this client.
type TokenProvider func(ctx context.Context) (string, error)

// Backend is the HTTP client for the agent backend. It fetches conversation lists and message
// history as plain JSON, and opens SSE subscriptions for streamed responses. Retry and backoff
// are deliberately absent; a failed request surfaces as an error and the caller decides.
type Backend struct {
	baseURL string
	token   TokenProvider

	client  *http.Client
	notices *bus.Bus

	logger *slog.Logger
}

// NewBackend creates a backend client for the given base URL. The notice bus may be shared
// with other components; session-expiry notices are published on it.
func NewBackend(baseURL string, token TokenProvider, notices *bus.Bus, logger *slog.Logger) *Backend {
	return &Backend{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{},
		notices: notices,
		logger:  logger.With(slog.String("module", "backend")),
	}
}

type wireConversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type conversationsResponse struct {
	Conversations []wireConversation `json:"conversations"`
}

type wireMessage struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata"`
	ToolCalls []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"tool_calls"`
	ToolID   string `json:"tool_id"`
	ToolName string `json:"tool_name"`
}

type historyResponse struct {
	Messages []wireMessage `json:"messages"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
	Stream  bool   `json:"stream"`
}

// Conversations fetches the conversation list.
func (b *Backend) Conversations(ctx context.Context) ([]models.Conversation, error) {
	resp, err := b.doRequest(ctx, http.MethodGet, "/v1/conversations", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res conversationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("error decoding conversations: %w", err)
	}

	conversations := make([]models.Conversation, len(res.Conversations))
	for i, c := range res.Conversations {
		conversations[i] = models.Conversation{ID: c.ID, Title: c.Title}
	}
	return conversations, nil
}

// History fetches the full persisted message history of one conversation, in the order the
// backend stored it. The result is what the transcript reconstructor consumes.
func (b *Backend) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	resp, err := b.doRequest(ctx, http.MethodGet, "/v1/conversations/"+conversationID+"/messages", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("error decoding history: %w", err)
	}

	messages := make([]models.Message, len(res.Messages))
	for i, m := range res.Messages {
		msg := models.Message{
			ID:        m.ID,
			Role:      models.Role(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Metadata:  m.Metadata,
			ToolID:    m.ToolID,
			ToolName:  m.ToolName,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, models.MessageToolCall{
				ID:        tc.ID,
				Name:      tc.Name,
				Arguments: tc.Arguments,
			})
		}
		messages[i] = msg
	}
	return messages, nil
}

// Stream posts a user message to a conversation and returns the live event sequence of the
// backend's SSE response. The iterator yields one typed event per frame, in delivery order;
// malformed frames come through as typed error events rather than ending the sequence. The
// subscription closes when the iterator is abandoned or ctx is cancelled, after which no
// further events are yielded.
func (b *Backend) Stream(ctx context.Context, conversationID, message string) iter.Seq2[stream.Event, error] {
	return func(yield func(stream.Event, error) bool) {
		body, err := json.Marshal(sendMessageRequest{Message: message, Stream: true})
		if err != nil {
			yield(nil, fmt.Errorf("error marshaling request: %w", err))
			return
		}

		resp, err := b.doRequest(ctx, http.MethodPost, "/v1/conversations/"+conversationID+"/messages", body)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield(nil, fmt.Errorf("error reading stream: %w", err))
				return
			}

			// Frames without an event name default to "message" per the SSE spec;
			// ones that carry no data either are discarded.
			typ := ev.Type
			if typ == "" {
				if ev.Data == "" {
					continue
				}
				typ = "message"
			}

			b.logger.Debug("Received event",
				slog.String("type", typ),
				slog.String("data", ev.Data))

			if !yield(stream.Parse(typ, ev.Data), nil) {
				return
			}
		}
	}
}

func (b *Backend) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if b.token != nil {
		token, err := b.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("error getting token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if b.notices != nil {
			b.notices.Publish(bus.Notice{Reason: "session expired", At: time.Now()})
		}
		return nil, ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(payload))
	}

	return resp, nil
}
