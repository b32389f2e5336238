package conversation

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrAssistantPending   = errors.New("conversation: assistant turn already pending")
	ErrNoPendingAssistant = errors.New("conversation: no pending assistant turn")
	ErrEmptyText          = errors.New("conversation: empty text")
)

// Store keeps the transcript and prompt history aligned. A single owner mutates it;
// readers may call the accessors concurrently.
//
// Prompt history changes only on AppendUserTurn and FinalizeAssistantTurn, so a stream
// that fails or is cancelled never reaches the model context.
type Store struct {
	mu         sync.RWMutex
	transcript []Turn
	history    []Message
	seq        uint64
	now        func() time.Time
}

// NewStore creates a store whose prompt history starts with the system prompt. An empty
// system prompt starts an empty history.
func NewStore(systemPrompt string) *Store {
	s := &Store{now: time.Now}
	if systemPrompt != "" {
		s.history = append(s.history, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return s
}

// NewStoreFromHistory rebuilds a store from persisted prompt history. System entries stay
// prompt-only; every user/assistant entry becomes a finalized transcript turn.
func NewStoreFromHistory(history []Message) *Store {
	s := &Store{now: time.Now}
	for _, m := range history {
		s.history = append(s.history, m)
		if m.Role == RoleSystem {
			continue
		}
		s.seq++
		s.transcript = append(s.transcript, Turn{
			Role:        m.Role,
			DisplayText: m.Content,
			PromptText:  m.Content,
			Seq:         s.seq,
			CreatedAt:   s.now(),
		})
	}
	return s
}

// AppendUserTurn appends text to both the transcript and the prompt history.
func (s *Store) AppendUserTurn(text string) (Turn, error) {
	if text == "" {
		return Turn{}, ErrEmptyText
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingLocked() {
		return Turn{}, ErrAssistantPending
	}
	t := s.newTurnLocked(RoleUser, text)
	t.PromptText = text
	s.transcript = append(s.transcript, t)
	s.history = append(s.history, Message{Role: RoleUser, Content: text})
	return t, nil
}

// AppendPlaceholderAssistantTurn reserves a transcript slot for a streaming reply.
func (s *Store) AppendPlaceholderAssistantTurn() (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingLocked() {
		return Turn{}, ErrAssistantPending
	}
	t := s.newTurnLocked(RoleAssistant, Placeholder)
	t.Pending = true
	s.transcript = append(s.transcript, t)
	return t, nil
}

// UpdateTrailingAssistantText replaces the placeholder's display text.
func (s *Store) UpdateTrailingAssistantText(text string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pendingLocked() {
		return Turn{}, ErrNoPendingAssistant
	}
	last := &s.transcript[len(s.transcript)-1]
	last.DisplayText = text
	return *last, nil
}

// FinalizeAssistantTurn commits the reply to the transcript and the prompt history.
func (s *Store) FinalizeAssistantTurn(fullText string) (Turn, error) {
	if fullText == "" {
		return Turn{}, ErrEmptyText
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pendingLocked() {
		return Turn{}, ErrNoPendingAssistant
	}
	last := &s.transcript[len(s.transcript)-1]
	last.DisplayText = fullText
	last.PromptText = fullText
	last.Pending = false
	s.history = append(s.history, Message{Role: RoleAssistant, Content: fullText})
	return *last, nil
}

// RemoveTrailingAssistantTurn drops the placeholder. It returns the removed index.
func (s *Store) RemoveTrailingAssistantTurn() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pendingLocked() {
		return -1, ErrNoPendingAssistant
	}
	idx := len(s.transcript) - 1
	s.transcript = s.transcript[:idx]
	return idx, nil
}

// Pending reports whether an assistant placeholder is open.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingLocked()
}

// Transcript returns a copy of the display transcript.
func (s *Store) Transcript() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// PromptHistory returns a copy of the prompt history.
func (s *Store) PromptHistory() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Last returns the trailing transcript turn.
func (s *Store) Last() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.transcript) == 0 {
		return Turn{}, false
	}
	return s.transcript[len(s.transcript)-1], true
}

// Len returns the transcript length.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcript)
}

func (s *Store) pendingLocked() bool {
	n := len(s.transcript)
	return n > 0 && s.transcript[n-1].Pending
}

func (s *Store) newTurnLocked(role Role, text string) Turn {
	s.seq++
	return Turn{Role: role, DisplayText: text, Seq: s.seq, CreatedAt: s.now()}
}
