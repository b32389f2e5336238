package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

// ElevenLabsClient synthesizes speech through the ElevenLabs HTTP streaming endpoint.
type ElevenLabsClient struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	VoiceID    string
	ModelID    string
}

func NewElevenLabsClient(apiKey, voiceID string) *ElevenLabsClient {
	return &ElevenLabsClient{
		HTTPClient: &http.Client{Timeout: 0},
		BaseURL:    "https://api.elevenlabs.io",
		APIKey:     apiKey,
		VoiceID:    voiceID,
		ModelID:    "eleven_flash_v2_5",
	}
}

func (e *ElevenLabsClient) Synthesize(ctx context.Context, text string) (Audio, error) {
	if e.APIKey == "" || e.VoiceID == "" {
		return Audio{}, fmt.Errorf("elevenlabs: api key or voice id missing")
	}
	u, err := url.Parse(e.BaseURL + "/v1/text-to-speech/" + url.PathEscape(e.VoiceID) + "/stream")
	if err != nil {
		return Audio{}, err
	}
	q := u.Query()
	q.Set("model_id", e.ModelID)
	q.Set("output_format", "mp3_44100_128")
	// lower streaming latency target (0..4 where lower is lower latency, may trade quality)
	q.Set("optimize_streaming_latency", "2")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": e.ModelID,
		"text":     text,
		"voice_settings": map[string]any{
			"stability":         0.4,
			"similarity_boost":  0.7,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	data, err := doAudioRequest(e.HTTPClient, req, "elevenlabs")
	metrics.DefaultMetrics.RecordProviderCall("elevenlabs", "speech", err, time.Since(start).Seconds())
	if err != nil {
		return Audio{}, err
	}
	log.Debug().Int("bytes", len(data)).Msg("elevenlabs: audio received")
	return Audio{Data: data, ContentType: "audio/mpeg"}, nil
}
