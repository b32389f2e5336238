package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Stream is a lazy, finite, non-restartable sequence of reply fragments.
// Recv returns io.EOF once the reply is complete; any other error ends the stream.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sseStream decodes "data:" lines of a server-sent event body.
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	err    error
	once   sync.Once
}

func newSSEStream(body io.ReadCloser) *sseStream {
	return &sseStream{body: body, reader: bufio.NewReaderSize(body, 16*1024)}
}

func (s *sseStream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				// body ended without the [DONE] marker
				err = io.ErrUnexpectedEOF
			}
			s.err = fmt.Errorf("llm: stream read: %w", err)
			return "", s.err
		}
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			s.err = io.EOF
			return "", io.EOF
		}
		var chunk streamChunk
		if jerr := json.Unmarshal([]byte(payload), &chunk); jerr != nil {
			s.err = fmt.Errorf("llm: bad stream chunk: %w", jerr)
			return "", s.err
		}
		if chunk.Error != nil {
			s.err = fmt.Errorf("llm: stream error: %s", chunk.Error.Message)
			return "", s.err
		}
		var b strings.Builder
		for _, c := range chunk.Choices {
			b.WriteString(c.Delta.Content)
		}
		if b.Len() == 0 {
			continue
		}
		return b.String(), nil
	}
}

func (s *sseStream) Close() error {
	var err error
	s.once.Do(func() { err = s.body.Close() })
	return err
}
