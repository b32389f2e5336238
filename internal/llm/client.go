package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DCbrown/interview-ai-app/internal/conversation"
	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

// Client talks to an OpenAI-compatible chat completions endpoint (OpenAI, Cerebras, ...).
type Client struct {
	HTTPClient  *http.Client
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Provider    string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature float64       `json:"temperature"`
}

// NewClient constructs a streaming chat client. Streams can be long-lived, so the HTTP
// client has no overall timeout; callers bound requests with the context.
func NewClient(baseURL, apiKey, model string, temperature float64) *Client {
	return &Client{
		HTTPClient:  &http.Client{Timeout: 0},
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		Model:       model,
		Temperature: temperature,
		Provider:    "openai",
	}
}

// StreamChat submits the prompt history and returns the reply as a stream of deltas.
func (c *Client) StreamChat(ctx context.Context, history []conversation.Message) (Stream, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("llm: api key missing")
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("llm: empty prompt history")
	}
	messages := make([]chatMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	reqBody, err := json.Marshal(chatCompletionsRequest{
		Model:       c.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: c.Temperature,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.DefaultMetrics.RecordProviderCall(c.Provider, "chat", err, time.Since(start).Seconds())
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("llm: status=%d body=%s", resp.StatusCode, string(b))
		metrics.DefaultMetrics.RecordProviderCall(c.Provider, "chat", err, time.Since(start).Seconds())
		return nil, err
	}
	metrics.DefaultMetrics.RecordProviderCall(c.Provider, "chat", nil, time.Since(start).Seconds())
	return newSSEStream(resp.Body), nil
}

// Complete drains a stream into the full reply.
func Complete(s Stream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		delta, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(delta)
	}
}
