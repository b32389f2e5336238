package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

// OpenAIClient calls the /audio/speech endpoint and returns mp3.
type OpenAIClient struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Model      string
	Voice      string
	Speed      float64
}

func NewOpenAIClient(baseURL, apiKey, model, voice string) *OpenAIClient {
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "onyx"
	}
	return &OpenAIClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		Voice:      voice,
		Speed:      1.0,
	}
}

type speechRequest struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

func (c *OpenAIClient) Synthesize(ctx context.Context, text string) (Audio, error) {
	if c.APIKey == "" {
		return Audio{}, fmt.Errorf("openai tts: api key missing")
	}
	if strings.TrimSpace(text) == "" {
		return Audio{}, fmt.Errorf("openai tts: empty text")
	}
	body, _ := json.Marshal(speechRequest{
		Model:          c.Model,
		Voice:          c.Voice,
		Input:          text,
		ResponseFormat: "mp3",
		Speed:          c.Speed,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	data, err := doAudioRequest(c.HTTPClient, req, "openai tts")
	metrics.DefaultMetrics.RecordProviderCall("openai", "speech", err, time.Since(start).Seconds())
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, ContentType: "audio/mpeg"}, nil
}

func doAudioRequest(client *http.Client, req *http.Request, name string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s: status=%d body=%s", name, resp.StatusCode, string(b))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty audio", name)
	}
	return data, nil
}
