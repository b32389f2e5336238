package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DCbrown/interview-ai-app/internal/agent"
	"github.com/DCbrown/interview-ai-app/internal/conversation"
	"github.com/DCbrown/interview-ai-app/internal/events"
	"github.com/DCbrown/interview-ai-app/internal/llm"
	"github.com/DCbrown/interview-ai-app/internal/session"
	"github.com/DCbrown/interview-ai-app/internal/tts"
)

type stubTranscriber struct {
	mu       sync.Mutex
	audio    []byte
	mimeType string
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio, s.mimeType = append([]byte(nil), audio...), mimeType
	return "I have five years of Go", nil
}

type sliceStream struct{ parts []string }

func (s *sliceStream) Recv() (string, error) {
	if len(s.parts) == 0 {
		return "", io.EOF
	}
	p := s.parts[0]
	s.parts = s.parts[1:]
	return p, nil
}

func (s *sliceStream) Close() error { return nil }

type stubModel struct{}

func (stubModel) StreamChat(ctx context.Context, history []conversation.Message) (llm.Stream, error) {
	return &sliceStream{parts: []string{"Great.", " Tell me more."}}, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	return tts.Audio{Data: []byte("mp3:" + text), ContentType: "audio/mpeg"}, nil
}

type stubArchiver struct {
	mu   sync.Mutex
	keys []string
}

func (a *stubArchiver) Archive(ctx context.Context, sessionID string, seq int, mimeType string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, sessionID+"|"+mimeType)
	return nil
}

func (a *stubArchiver) archived() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.keys...)
}

type stubPublisher struct {
	mu     sync.Mutex
	events []events.TurnEvent
}

func (p *stubPublisher) PublishTurn(ctx context.Context, ev events.TurnEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *stubPublisher) published() []events.TurnEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.TurnEvent(nil), p.events...)
}

type fixture struct {
	sessions  session.Store
	stt       *stubTranscriber
	archiver  *stubArchiver
	publisher *stubPublisher
	srv       *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions := session.NewMemoryStore(time.Minute)
	require.NoError(t, sessions.Create(context.Background(), &session.Record{
		ID: "iv-1", InterviewType: "behavioral", SystemPrompt: "You are Bob.",
	}))

	f := &fixture{sessions: sessions, stt: &stubTranscriber{}, archiver: &stubArchiver{}, publisher: &stubPublisher{}}
	h := NewHandler(sessions, f.stt, stubModel{}, stubSynth{})
	h.Archiver = f.archiver
	h.Publisher = f.publisher

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/interviews/")
		if err := h.Serve(w, r, id); errors.Is(err, ErrSessionNotFound) {
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) dial(t *testing.T, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/interviews/" + id
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, m clientMessage) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(m))
}

// readUntil reads text frames until match returns true; binary frames are skipped.
func readUntil(t *testing.T, ws *websocket.Conn, match func(serverMessage) bool) serverMessage {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		mt, data, err := ws.ReadMessage()
		require.NoError(t, err)
		if mt != websocket.TextMessage {
			continue
		}
		var m serverMessage
		require.NoError(t, json.Unmarshal(data, &m))
		if match(m) {
			return m
		}
	}
}

func isState(s agent.State) func(serverMessage) bool {
	return func(m serverMessage) bool { return m.Type == msgState && m.State != nil && *m.State == s }
}

func isType(typ string) func(serverMessage) bool {
	return func(m serverMessage) bool { return m.Type == typ }
}

func TestLive_TypedAnswerRoundTrip(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "iv-1")

	first := readUntil(t, ws, isType(msgState))
	assert.Equal(t, agent.StateIdle, *first.State)
	assert.True(t, first.Controls.ListenEnabled)

	send(t, ws, clientMessage{Type: msgText, Text: "I like Go"})

	var assistantTexts []string
	audio := readUntil(t, ws, func(m serverMessage) bool {
		if m.Type == msgTurn && m.Role == "assistant" {
			assistantTexts = append(assistantTexts, m.Text)
		}
		return m.Type == msgAudio
	})
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, []string{"...", "Great.", "Great. Tell me more.", "Great. Tell me more."}, assistantTexts)

	mt, clip, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, "mp3:Great. Tell me more.", string(clip))

	send(t, ws, clientMessage{Type: msgPlaybackEnded})
	readUntil(t, ws, isState(agent.StateIdle))

	require.Eventually(t, func() bool {
		rec, _ := f.sessions.Get(context.Background(), "iv-1")
		return rec != nil && len(rec.History) == 2
	}, 2*time.Second, 10*time.Millisecond)
	rec, _ := f.sessions.Get(context.Background(), "iv-1")
	assert.Equal(t, conversation.RoleUser, rec.History[0].Role)
	assert.Equal(t, "I like Go", rec.History[0].Content)
	assert.Equal(t, "Great. Tell me more.", rec.History[1].Content)

	pub := f.publisher.published()
	require.Len(t, pub, 2)
	assert.Equal(t, 0, pub[0].Index)
	assert.Equal(t, 1, pub[1].Index)
	assert.Equal(t, "behavioral", pub[1].InterviewType)
}

func TestLive_VoiceAnswer(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "iv-1")
	readUntil(t, ws, isState(agent.StateIdle))

	send(t, ws, clientMessage{Type: msgStart})
	capture := readUntil(t, ws, isType(msgCapture))
	assert.Equal(t, "start", capture.Action)
	send(t, ws, clientMessage{Type: msgCaptureStarted})
	readUntil(t, ws, isState(agent.StateListening))

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte("chunk-1;")))
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte("chunk-2")))
	send(t, ws, clientMessage{Type: msgStop, MimeType: "audio/ogg;codecs=opus"})

	stop := readUntil(t, ws, isType(msgCapture))
	assert.Equal(t, "stop", stop.Action)
	user := readUntil(t, ws, func(m serverMessage) bool { return m.Type == msgTurn && m.Role == "user" })
	assert.Equal(t, "I have five years of Go", user.Text)
	assert.True(t, user.Final)

	readUntil(t, ws, isType(msgAudio))
	send(t, ws, clientMessage{Type: msgPlaybackEnded})
	readUntil(t, ws, isState(agent.StateIdle))

	f.stt.mu.Lock()
	assert.Equal(t, "chunk-1;chunk-2", string(f.stt.audio))
	assert.Equal(t, "audio/ogg;codecs=opus", f.stt.mimeType)
	f.stt.mu.Unlock()

	require.Eventually(t, func() bool { return len(f.archiver.archived()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "iv-1|audio/ogg;codecs=opus", f.archiver.archived()[0])
}

func TestLive_CaptureFailedIsDeviceError(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "iv-1")
	readUntil(t, ws, isState(agent.StateIdle))

	send(t, ws, clientMessage{Type: msgStart})
	readUntil(t, ws, isType(msgCapture))
	send(t, ws, clientMessage{Type: msgCaptureFailed, Error: "NotAllowedError"})

	e := readUntil(t, ws, isType(msgError))
	assert.Equal(t, "device", e.Kind)
	assert.Equal(t, "Failed to access microphone", e.Message)
}

func TestLive_ReconnectReplaysTranscript(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.sessions.Get(context.Background(), "iv-1")
	rec.History = []session.Entry{
		{Role: conversation.RoleAssistant, Content: "Hi, I'm Bob."},
		{Role: conversation.RoleUser, Content: "Hello Bob."},
	}
	require.NoError(t, f.sessions.Update(context.Background(), rec))

	ws := f.dial(t, "iv-1")
	first := readUntil(t, ws, isType(msgTurn))
	require.NotNil(t, first.Index)
	assert.Equal(t, 0, *first.Index)
	assert.Equal(t, "Hi, I'm Bob.", first.Text)
	second := readUntil(t, ws, isType(msgTurn))
	assert.Equal(t, "Hello Bob.", second.Text)
	readUntil(t, ws, isState(agent.StateIdle))

	// greet is ignored once the transcript has turns; bye closes the socket
	send(t, ws, clientMessage{Type: msgGreet})
	send(t, ws, clientMessage{Type: msgBye})
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

func TestLive_UnknownInterview(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/interviews/nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
