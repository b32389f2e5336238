package session

import (
	"time"

	"github.com/DCbrown/interview-ai-app/internal/conversation"
)

// Entry is one finalized transcript turn.
type Entry struct {
	Role      conversation.Role `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
}

// Record is the persisted state of one interview: its setup and the finalized turns.
// Pending placeholders are never persisted.
type Record struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"` // optimistic locking
	InterviewType string    `json:"interview_type"`
	JobURL        string    `json:"job_url"`
	SystemPrompt  string    `json:"system_prompt"`
	History       []Entry   `json:"history"`
}

// PromptHistory rebuilds the model context: system prompt followed by every turn.
func (r *Record) PromptHistory() []conversation.Message {
	out := make([]conversation.Message, 0, len(r.History)+1)
	if r.SystemPrompt != "" {
		out = append(out, conversation.Message{Role: conversation.RoleSystem, Content: r.SystemPrompt})
	}
	for _, e := range r.History {
		out = append(out, conversation.Message{Role: e.Role, Content: e.Content})
	}
	return out
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.History = append([]Entry(nil), r.History...)
	return &cp
}
