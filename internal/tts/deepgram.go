package tts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
	"github.com/rs/zerolog/log"

	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

// DeepgramClient synthesizes linear16 speech over the Deepgram speak websocket and wraps it as WAV.
type DeepgramClient struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string

	idleWindow time.Duration
	maxWait    time.Duration
}

func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramClient{
		apiKey:     apiKey,
		model:      model,
		sampleRate: 48000,
		encoding:   "linear16",
		idleWindow: 400 * time.Millisecond,
		maxWait:    12 * time.Second,
	}
}

func (d *DeepgramClient) Synthesize(ctx context.Context, text string) (Audio, error) {
	if d.apiKey == "" {
		return Audio{}, fmt.Errorf("deepgram: API key missing")
	}
	if text == "" {
		return Audio{}, fmt.Errorf("deepgram: empty text")
	}
	start := time.Now()
	pcm, err := d.collectPCM(ctx, text)
	metrics.DefaultMetrics.RecordProviderCall("deepgram", "speech", err, time.Since(start).Seconds())
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: WAV(pcm, d.sampleRate, 1), ContentType: "audio/wav"}, nil
}

func (d *DeepgramClient) collectPCM(ctx context.Context, text string) ([]byte, error) {
	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   d.encoding,
		SampleRate: d.sampleRate,
	}

	var (
		mu           sync.Mutex
		pcm          []byte
		lastRecvUnix int64
		seenAudio    int32
	)
	cb := &speakCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
		atomic.StoreInt32(&seenAudio, 1)
		mu.Lock()
		pcm = append(pcm, data...)
		mu.Unlock()
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return nil, fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return nil, fmt.Errorf("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return nil, fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		log.Warn().Err(err).Msg("deepgram: flush error")
	}

	// the socket stays open after the last frame, so end on an idle gap
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(d.maxWait)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if atomic.LoadInt32(&seenAudio) == 1 {
				last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
				if time.Since(last) > d.idleWindow {
					mu.Lock()
					defer mu.Unlock()
					return pcm, nil
				}
			}
			if time.Now().After(deadline) {
				mu.Lock()
				defer mu.Unlock()
				if len(pcm) == 0 {
					return nil, fmt.Errorf("deepgram: no audio before deadline")
				}
				return pcm, nil
			}
		}
	}
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(w *msginterfaces.WarningResponse) error {
	log.Warn().Interface("warning", w).Msg("deepgram: warning")
	return nil
}
func (s *speakCallback) Error(e *msginterfaces.ErrorResponse) error {
	log.Error().Interface("error", e).Msg("deepgram: error")
	return nil
}
func (s *speakCallback) UnhandledEvent([]byte) error { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
