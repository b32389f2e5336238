// Package transcript converts recorded answers into text.
package transcript

import (
	"context"
	"fmt"
	"strings"

	"github.com/DCbrown/interview-ai-app/internal/config"
)

// Transcriber converts one recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// New picks the configured speech-to-text provider.
func New(cfg config.Config) (Transcriber, error) {
	switch cfg.STTProvider {
	case "", "openai":
		return NewWhisperClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.TranscribeModel), nil
	case "assemblyai":
		return NewAssemblyAIClient(cfg.AssemblyAIKey), nil
	default:
		return nil, fmt.Errorf("transcript: unknown provider %q", cfg.STTProvider)
	}
}

// FileName derives an upload file name the provider can sniff the container from.
func FileName(mimeType string) string {
	base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	switch base {
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "audio.wav"
	case "audio/ogg":
		return "audio.ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "audio.m4a"
	default:
		return "audio.webm"
	}
}
