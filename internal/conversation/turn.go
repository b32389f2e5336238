// Package conversation holds the interview transcript shown to the user and the
// parallel prompt history sent to the model.
package conversation

import (
	"fmt"
	"time"
)

// Role tags a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole validates a role received over the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("conversation: unknown role %q", s)
	}
}

// Placeholder is shown while an assistant reply is streaming.
const Placeholder = "..."

// Turn is one entry of the display transcript.
type Turn struct {
	Role        Role      `json:"role"`
	DisplayText string    `json:"text"`
	PromptText  string    `json:"-"`
	Seq         uint64    `json:"seq"`
	CreatedAt   time.Time `json:"createdAt"`
	// Pending is true for the assistant placeholder until it is finalized or removed.
	Pending bool `json:"pending,omitempty"`
}

// Message is one entry of the prompt history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
