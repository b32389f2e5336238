// Package tts turns interviewer replies into playable audio.
package tts

import (
	"context"
	"fmt"

	"github.com/DCbrown/interview-ai-app/internal/config"
)

// Audio is a complete, playable clip.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// New picks the configured speech provider.
func New(cfg config.Config) (Synthesizer, error) {
	switch cfg.TTSProvider {
	case "", "openai":
		return NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.SpeechModel, cfg.SpeechVoice), nil
	case "elevenlabs":
		return NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID), nil
	case "deepgram":
		return NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramModel), nil
	default:
		return nil, fmt.Errorf("tts: unknown provider %q", cfg.TTSProvider)
	}
}
