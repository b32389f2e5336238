package live

import (
	"context"
	"errors"
	"time"

	"github.com/DCbrown/interview-ai-app/internal/tts"
)

// socketPlayer ships a clip to the browser and waits for it to report the end of playback.
type socketPlayer struct {
	send       func(serverMessage) error
	sendBinary func([]byte) error
	maxWait    time.Duration
	done       chan error
}

func newSocketPlayer(send func(serverMessage) error, sendBinary func([]byte) error) *socketPlayer {
	return &socketPlayer{send: send, sendBinary: sendBinary, maxWait: 5 * time.Minute, done: make(chan error, 1)}
}

func (p *socketPlayer) Play(ctx context.Context, audio tts.Audio) error {
	select {
	case <-p.done:
	default:
	}
	if err := p.send(serverMessage{Type: msgAudio, ContentType: audio.ContentType}); err != nil {
		return err
	}
	if err := p.sendBinary(audio.Data); err != nil {
		return err
	}

	timer := time.NewTimer(p.maxWait)
	defer timer.Stop()
	select {
	case err := <-p.done:
		return err
	case <-timer.C:
		_ = p.send(serverMessage{Type: msgAudioCancel})
		return errors.New("playback did not finish in time")
	case <-ctx.Done():
		_ = p.send(serverMessage{Type: msgAudioCancel})
		return ctx.Err()
	}
}

// finished delivers playback_ended (nil) or playback_error.
func (p *socketPlayer) finished(err error) {
	select {
	case p.done <- err:
	default:
	}
}
