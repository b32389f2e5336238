package live

import (
	"github.com/DCbrown/interview-ai-app/internal/agent"
)

// Client → server message types.
const (
	msgStart          = "start"
	msgStop           = "stop"
	msgText           = "text"
	msgGreet          = "greet"
	msgCaptureStarted = "capture_started"
	msgCaptureFailed  = "capture_failed"
	msgPlaybackEnded  = "playback_ended"
	msgPlaybackError  = "playback_error"
	msgBye            = "bye"
)

// Server → client message types.
const (
	msgState       = "state"
	msgTurn        = "turn"
	msgTurnRemoved = "turn_removed"
	msgError       = "error"
	msgCapture     = "capture"
	msgAudio       = "audio"
	msgAudioCancel = "audio_cancel"
)

type clientMessage struct {
	Type     string `json:"type"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
}

type serverMessage struct {
	Type string `json:"type"`

	State    *agent.State    `json:"state,omitempty"`
	Controls *agent.Controls `json:"controls,omitempty"`

	Index *int   `json:"index,omitempty"`
	Role  string `json:"role,omitempty"`
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`

	Action      string `json:"action,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

func stateMessage(s agent.State) serverMessage {
	c := s.Controls()
	return serverMessage{Type: msgState, State: &s, Controls: &c}
}

// fromUpdate maps a coordinator update onto the wire.
func fromUpdate(u agent.Update) serverMessage {
	switch u.Kind {
	case agent.UpdateState:
		return stateMessage(u.State)
	case agent.UpdateTurn:
		idx := u.Index
		return serverMessage{Type: msgTurn, Index: &idx, Role: string(u.Role), Text: u.Text, Final: u.Final}
	case agent.UpdateTurnRemoved:
		idx := u.Index
		return serverMessage{Type: msgTurnRemoved, Index: &idx}
	default:
		return serverMessage{Type: msgError, Kind: u.ErrKind.String(), Message: u.Message}
	}
}
