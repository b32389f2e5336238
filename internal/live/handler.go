// Package live serves the voice interview over a WebSocket: the browser is the
// microphone and the speaker, the coordinator runs here.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/DCbrown/interview-ai-app/internal/agent"
	"github.com/DCbrown/interview-ai-app/internal/conversation"
	"github.com/DCbrown/interview-ai-app/internal/events"
	"github.com/DCbrown/interview-ai-app/internal/infra/storage"
	"github.com/DCbrown/interview-ai-app/internal/logging"
	"github.com/DCbrown/interview-ai-app/internal/metrics"
	"github.com/DCbrown/interview-ai-app/internal/session"
)

var ErrSessionNotFound = errors.New("live: interview not found")

// TurnPublisher receives every finalized turn.
type TurnPublisher interface {
	PublishTurn(ctx context.Context, ev events.TurnEvent) error
}

// Handler upgrades interview connections and runs one coordinator per socket.
type Handler struct {
	Sessions    session.Store
	Transcriber agent.Transcriber
	Model       agent.ChatModel
	Synthesizer agent.Synthesizer
	Archiver    storage.Archiver
	Publisher   TurnPublisher

	AutoListen     bool
	MaxRecordBytes int

	upgrader websocket.Upgrader
}

// NewHandler wires a handler. Archiver and Publisher may be nil.
func NewHandler(sessions session.Store, stt agent.Transcriber, model agent.ChatModel, synth agent.Synthesizer) *Handler {
	return &Handler{
		Sessions:       sessions,
		Transcriber:    stt,
		Model:          model,
		Synthesizer:    synth,
		Archiver:       storage.Nop{},
		MaxRecordBytes: 10 << 20,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  65536,
			WriteBufferSize: 65536,
			CheckOrigin: func(r *http.Request) bool {
				// CORS for the HTTP routes is handled by echo; the socket accepts any origin
				return true
			},
		},
	}
}

// Serve runs the interview identified by id on this request. It returns
// ErrSessionNotFound before upgrading when the interview does not exist.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, id string) error {
	rec, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrSessionNotFound
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		return nil
	}

	s := h.newSession(rec, ws)
	s.run()
	return nil
}

// liveSession is the state of one connected socket.
type liveSession struct {
	h      *Handler
	id     string
	kind   string
	log    zerolog.Logger
	conn   *conn
	rec    *socketRecorder
	arch   *archivingRecorder
	player *socketPlayer
	coord  *agent.Coordinator

	persist     chan session.Entry
	persistDone chan struct{}
}

func (h *Handler) newSession(rec *session.Record, ws *websocket.Conn) *liveSession {
	log := logging.WithSession("live", rec.ID)
	s := &liveSession{
		h:           h,
		id:          rec.ID,
		kind:        rec.InterviewType,
		log:         log,
		conn:        newConn(ws, log),
		persist:     make(chan session.Entry, 64),
		persistDone: make(chan struct{}),
	}
	s.rec = newSocketRecorder(s.conn.sendJSON, h.MaxRecordBytes)
	archiver := h.Archiver
	if archiver == nil {
		archiver = storage.Nop{}
	}
	s.arch = &archivingRecorder{Recorder: s.rec, archiver: archiver, sessionID: rec.ID}
	s.player = newSocketPlayer(s.conn.sendJSON, s.conn.sendBinary)

	store := conversation.NewStoreFromHistory(rec.PromptHistory())
	s.replay(store)

	go s.persistLoop(store.Len())

	s.coord = agent.NewCoordinator(context.Background(), store, agent.Deps{
		Transcriber: h.Transcriber,
		Model:       h.Model,
		Synthesizer: h.Synthesizer,
		Recorder:    s.arch,
		Player:      s.player,
	},
		agent.WithSessionID(rec.ID),
		agent.WithAutoListen(h.AutoListen),
		agent.WithObserver(s.onUpdate),
	)
	return s
}

// replay sends the stored transcript and the initial state so a reconnecting client
// can redraw.
func (s *liveSession) replay(store *conversation.Store) {
	for i, t := range store.Transcript() {
		idx := i
		_ = s.conn.sendJSON(serverMessage{Type: msgTurn, Index: &idx, Role: string(t.Role), Text: t.DisplayText, Final: true})
	}
	_ = s.conn.sendJSON(stateMessage(agent.StateIdle))
}

func (s *liveSession) run() {
	metrics.DefaultMetrics.SessionOpened()
	defer metrics.DefaultMetrics.SessionClosed()
	s.log.Info().Msg("live session connected")

	s.readLoop()

	s.coord.Teardown()
	close(s.persist)
	<-s.persistDone
	s.arch.wait()
	_ = s.conn.Close()
	s.log.Info().Msg("live session closed")
}

// readLoop only dispatches; coordinator commands are enqueued and never block on the
// loop, so acknowledgements the loop waits for keep flowing.
func (s *liveSession) readLoop() {
	for {
		mt, data, err := s.conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("ws read ended")
			}
			return
		}
		if mt == websocket.BinaryMessage {
			s.rec.appendChunk(data)
			continue
		}
		if mt != websocket.TextMessage {
			continue
		}
		var m clientMessage
		if err := json.Unmarshal(data, &m); err != nil {
			s.log.Debug().Err(err).Msg("ignoring malformed client message")
			continue
		}
		if !s.dispatch(m) {
			return
		}
	}
}

func (s *liveSession) dispatch(m clientMessage) bool {
	var err error
	switch m.Type {
	case msgStart:
		err = s.coord.Start()
	case msgStop:
		s.rec.setMimeType(m.MimeType)
		err = s.coord.Stop()
	case msgText:
		err = s.coord.SubmitText(m.Text)
	case msgGreet:
		err = s.coord.Greet()
	case msgCaptureStarted:
		s.rec.ack(nil)
	case msgCaptureFailed:
		s.rec.ack(errors.New(orDefault(m.Error, "capture failed")))
	case msgPlaybackEnded:
		s.player.finished(nil)
	case msgPlaybackError:
		s.player.finished(errors.New(orDefault(m.Error, "playback failed")))
	case msgBye:
		return false
	default:
		s.log.Debug().Str("type", m.Type).Msg("unknown client message")
	}
	if errors.Is(err, agent.ErrClosed) {
		return false
	}
	return true
}

// onUpdate runs on the coordinator loop: forward to the socket and queue finalized
// turns for persistence.
func (s *liveSession) onUpdate(u agent.Update) {
	_ = s.conn.sendJSON(fromUpdate(u))
	if u.Kind == agent.UpdateTurn && u.Final {
		select {
		case s.persist <- session.Entry{Role: u.Role, Content: u.Text, Timestamp: time.Now()}:
		default:
			s.log.Error().Int("index", u.Index).Msg("persist queue full, dropping turn")
		}
	}
}

// persistLoop appends finalized turns in order and publishes them.
func (s *liveSession) persistLoop(index int) {
	defer close(s.persistDone)
	for e := range s.persist {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := session.AppendEntry(ctx, s.h.Sessions, s.id, e); err != nil {
			s.log.Error().Err(err).Msg("persist turn failed")
		}
		if s.h.Publisher != nil {
			ev := events.TurnEvent{
				SessionID:     s.id,
				InterviewType: s.kind,
				Index:         index,
				Role:          string(e.Role),
				Text:          e.Content,
				Timestamp:     e.Timestamp,
			}
			if err := s.h.Publisher.PublishTurn(ctx, ev); err != nil {
				s.log.Warn().Err(err).Msg("publish turn failed")
			}
		}
		cancel()
		index++
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
