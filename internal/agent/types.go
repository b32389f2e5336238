package agent

import (
	"context"

	"github.com/DCbrown/interview-ai-app/internal/apperr"
	"github.com/DCbrown/interview-ai-app/internal/conversation"
	"github.com/DCbrown/interview-ai-app/internal/llm"
	"github.com/DCbrown/interview-ai-app/internal/tts"
)

// Transcriber converts one recorded answer to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// ChatModel streams the interviewer's reply for the given prompt history.
type ChatModel interface {
	StreamChat(ctx context.Context, history []conversation.Message) (llm.Stream, error)
}

// Synthesizer turns reply text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (tts.Audio, error)
}

// Recording is one captured answer.
type Recording struct {
	Data     []byte
	MimeType string
}

// Recorder owns the microphone. Start acquires it, Stop releases it and returns the
// captured audio, Abort releases it and discards anything captured.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (Recording, error)
	Abort()
}

// Player plays one clip and blocks until playback ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio tts.Audio) error
}

// Deps are the boundaries the coordinator drives.
type Deps struct {
	Transcriber Transcriber
	Model       ChatModel
	Synthesizer Synthesizer
	Recorder    Recorder
	Player      Player
}

// UpdateKind tags an Update.
type UpdateKind string

const (
	UpdateState       UpdateKind = "state"
	UpdateTurn        UpdateKind = "turn"
	UpdateTurnRemoved UpdateKind = "turn_removed"
	UpdateError       UpdateKind = "error"
)

// Update is pushed to the observer on every visible change.
type Update struct {
	Kind UpdateKind

	// state
	State    State
	Controls Controls

	// turn, turn_removed
	Index int
	Role  conversation.Role
	Text  string
	Final bool

	// error
	ErrKind apperr.Kind
	Message string
	Err     error
}
