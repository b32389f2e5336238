package live

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DCbrown/interview-ai-app/internal/agent"
	"github.com/DCbrown/interview-ai-app/internal/infra/storage"
)

// socketRecorder drives the browser's microphone: it asks the client to start capture,
// waits for the acknowledgement and buffers the audio chunks the client streams back.
type socketRecorder struct {
	send       func(serverMessage) error
	ackTimeout time.Duration
	maxBytes   int

	mu        sync.Mutex
	capturing bool
	buf       bytes.Buffer
	mimeType  string
	overflow  bool

	acks chan error
}

func newSocketRecorder(send func(serverMessage) error, maxBytes int) *socketRecorder {
	return &socketRecorder{
		send:       send,
		ackTimeout: 10 * time.Second,
		maxBytes:   maxBytes,
		acks:       make(chan error, 1),
	}
}

func (r *socketRecorder) Start(ctx context.Context) error {
	// a stale ack from an earlier attempt must not satisfy this one
	select {
	case <-r.acks:
	default:
	}

	r.mu.Lock()
	r.capturing = true
	r.buf.Reset()
	r.mimeType = ""
	r.overflow = false
	r.mu.Unlock()

	if err := r.send(serverMessage{Type: msgCapture, Action: "start"}); err != nil {
		r.reset()
		return err
	}

	timer := time.NewTimer(r.ackTimeout)
	defer timer.Stop()
	select {
	case err := <-r.acks:
		if err != nil {
			r.reset()
			return err
		}
		return nil
	case <-timer.C:
		r.reset()
		_ = r.send(serverMessage{Type: msgCapture, Action: "stop"})
		return errors.New("microphone did not start in time")
	case <-ctx.Done():
		r.reset()
		return ctx.Err()
	}
}

func (r *socketRecorder) Stop(ctx context.Context) (agent.Recording, error) {
	r.mu.Lock()
	r.capturing = false
	data := append([]byte(nil), r.buf.Bytes()...)
	mime := r.mimeType
	overflow := r.overflow
	r.buf.Reset()
	r.mu.Unlock()

	_ = r.send(serverMessage{Type: msgCapture, Action: "stop"})
	if overflow {
		return agent.Recording{}, fmt.Errorf("recording exceeds %d bytes", r.maxBytes)
	}
	if mime == "" {
		mime = "audio/webm"
	}
	return agent.Recording{Data: data, MimeType: mime}, nil
}

func (r *socketRecorder) Abort() {
	r.reset()
	_ = r.send(serverMessage{Type: msgCapture, Action: "stop"})
}

func (r *socketRecorder) reset() {
	r.mu.Lock()
	r.capturing = false
	r.buf.Reset()
	r.mu.Unlock()
}

// ack delivers the client's capture_started / capture_failed reply.
func (r *socketRecorder) ack(err error) {
	select {
	case r.acks <- err:
	default:
	}
}

func (r *socketRecorder) appendChunk(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capturing {
		return
	}
	if r.buf.Len()+len(b) > r.maxBytes {
		r.overflow = true
		return
	}
	r.buf.Write(b)
}

func (r *socketRecorder) setMimeType(m string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m != "" {
		r.mimeType = m
	}
}

// archivingRecorder uploads every non-empty recording in the background.
type archivingRecorder struct {
	agent.Recorder
	archiver  storage.Archiver
	sessionID string

	mu  sync.Mutex
	seq int
	wg  sync.WaitGroup
}

func (a *archivingRecorder) Stop(ctx context.Context) (agent.Recording, error) {
	rec, err := a.Recorder.Stop(ctx)
	if err != nil || len(rec.Data) == 0 {
		return rec, err
	}
	a.mu.Lock()
	a.seq++
	seq := a.seq
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		actx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.archiver.Archive(actx, a.sessionID, seq, rec.MimeType, rec.Data); err != nil {
			log.Warn().Err(err).Str("sessionId", a.sessionID).Int("seq", seq).Msg("archive recording failed")
		}
	}()
	return rec, nil
}

// wait blocks until pending uploads finish.
func (a *archivingRecorder) wait() { a.wg.Wait() }
