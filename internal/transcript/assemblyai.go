package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

// AssemblyAIClient transcribes a whole recording via the AssemblyAI REST API:
// upload, create a transcript job, then poll it.
type AssemblyAIClient struct {
	HTTPClient   *http.Client
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
}

func NewAssemblyAIClient(apiKey string) *AssemblyAIClient {
	return &AssemblyAIClient{
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		BaseURL:      "https://api.assemblyai.com",
		APIKey:       apiKey,
		PollInterval: 500 * time.Millisecond,
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

func (a *AssemblyAIClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if a.APIKey == "" {
		return "", fmt.Errorf("assemblyai: api key missing")
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("assemblyai: empty recording")
	}
	start := time.Now()
	text, err := a.transcribe(ctx, audio)
	metrics.DefaultMetrics.RecordProviderCall("assemblyai", "transcribe", err, time.Since(start).Seconds())
	return text, err
}

func (a *AssemblyAIClient) transcribe(ctx context.Context, audio []byte) (string, error) {
	var up uploadResponse
	if err := a.call(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", bytes.NewReader(audio), &up); err != nil {
		return "", err
	}
	if up.UploadURL == "" {
		return "", fmt.Errorf("assemblyai: upload returned no url")
	}

	reqBody, _ := json.Marshal(map[string]any{"audio_url": up.UploadURL})
	var job transcriptJob
	if err := a.call(ctx, http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(reqBody), &job); err != nil {
		return "", err
	}
	log.Debug().Str("job", job.ID).Msg("assemblyai: transcript job created")

	ticker := time.NewTicker(a.PollInterval)
	defer ticker.Stop()
	for {
		switch job.Status {
		case "completed":
			return job.Text, nil
		case "error":
			return "", fmt.Errorf("assemblyai: transcript failed: %s", job.Error)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if err := a.call(ctx, http.MethodGet, "/v2/transcript/"+job.ID, "", nil, &job); err != nil {
			return "", err
		}
	}
}

func (a *AssemblyAIClient) call(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", a.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("assemblyai: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("assemblyai: %s %s status=%d body=%s", method, path, resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
