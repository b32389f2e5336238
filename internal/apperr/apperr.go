// Package apperr defines the recoverable error kinds surfaced to users.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the boundary it crossed.
type Kind int

const (
	KindDevice Kind = iota + 1
	KindTranscription
	KindModel
	KindSynthesis
	KindPlayback
	KindScrape
	KindValidation
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindTranscription:
		return "transcription"
	case KindModel:
		return "model"
	case KindSynthesis:
		return "synthesis"
	case KindPlayback:
		return "playback"
	case KindScrape:
		return "scrape"
	case KindValidation:
		return "validation"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is a recoverable failure. Fields carries per-field messages for validation errors.
type Error struct {
	Kind   Kind
	Op     string
	Err    error
	Fields map[string]string
}

// New wraps err with a kind and the operation that failed.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a validation error from field messages.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.New("invalid input"), Fields: fields}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the short text shown to the user.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindDevice:
		return "Failed to access microphone"
	case KindTranscription:
		return "Failed to transcribe audio"
	case KindModel:
		return "The interviewer could not respond. Please try again."
	case KindSynthesis:
		return "Failed to generate speech"
	case KindPlayback:
		return "Failed to play the interviewer audio"
	case KindScrape:
		return "Error fetching job description. Please check the URL and try again."
	case KindValidation:
		return "Please fix the highlighted fields"
	default:
		return "Something went wrong"
	}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
