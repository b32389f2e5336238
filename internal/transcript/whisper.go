package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

// WhisperClient posts recordings to an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperClient struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Model      string
}

func NewWhisperClient(baseURL, apiKey, model string) *WhisperClient {
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
	}
}

func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("whisper: api key missing")
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("whisper: empty recording")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", FileName(mimeType))
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	_ = mw.WriteField("model", c.Model)
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	text, err := c.do(req)
	metrics.DefaultMetrics.RecordProviderCall("openai", "transcribe", err, time.Since(start).Seconds())
	return text, err
}

func (c *WhisperClient) do(req *http.Request) (string, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("whisper: status=%d body=%s", resp.StatusCode, string(b))
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("whisper: decode: %w", err)
	}
	return out.Text, nil
}
