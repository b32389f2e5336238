package agent

import "fmt"

// State is the single source of truth for what the voice loop is doing.
type State int

const (
	StateIdle State = iota
	StateListening
	StateTranscribing
	StateAwaitingModel
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateTranscribing:
		return "transcribing"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateIdle, StateListening, StateTranscribing, StateAwaitingModel, StateSpeaking} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("agent: unknown state %q", b)
}

// Controls is what the UI may offer in a given state. The activity flags are
// projections of one State, so at most one of them is ever true.
type Controls struct {
	ListenEnabled bool `json:"listenEnabled"`
	TextEnabled   bool `json:"textEnabled"`
	Capturing     bool `json:"capturing"`
	Transcribing  bool `json:"transcribing"`
	AwaitingModel bool `json:"awaitingModel"`
	Speaking      bool `json:"speaking"`
}

// Controls derives enablement from the state.
func (s State) Controls() Controls {
	return Controls{
		ListenEnabled: s == StateIdle || s == StateListening,
		TextEnabled:   s == StateIdle,
		Capturing:     s == StateListening,
		Transcribing:  s == StateTranscribing,
		AwaitingModel: s == StateAwaitingModel,
		Speaking:      s == StateSpeaking,
	}
}

// Active reports how many activity flags are set.
func (c Controls) Active() int {
	n := 0
	for _, b := range []bool{c.Capturing, c.Transcribing, c.AwaitingModel, c.Speaking} {
		if b {
			n++
		}
	}
	return n
}
