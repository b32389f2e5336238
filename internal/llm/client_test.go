package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DCbrown/interview-ai-app/internal/conversation"
)

var history = []conversation.Message{
	{Role: conversation.RoleSystem, Content: "persona"},
	{Role: conversation.RoleUser, Content: "hello"},
}

func TestClient_NoKey(t *testing.T) {
	c := NewClient("http://unused", "", "model", 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.StreamChat(ctx, history); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func TestClient_HTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte("oops")) }},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(401) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewClient("https://api.example.com/v1", "key", "model", 1)
			c.HTTPClient = &http.Client{Timeout: 1 * time.Second, Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
				req.URL.Scheme = "http"
				req.URL.Host = srv.Listener.Addr().String()
				return http.DefaultTransport.RoundTrip(req)
			})}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := c.StreamChat(ctx, history); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestClient_StreamsDeltas(t *testing.T) {
	var got chatCompletionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"I\"}}]}\n\n")
		_, _ = io.WriteString(w, ": keepalive\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\" am\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\" ready\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1/", "key", "gpt-test", 0.5)
	s, err := c.StreamChat(context.Background(), history)
	require.NoError(t, err)

	var deltas []string
	for {
		d, err := s.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		deltas = append(deltas, d)
	}
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"I", " am", " ready"}, deltas)
	assert.True(t, got.Stream)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)

	// further reads keep returning EOF
	_, err = s.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestClient_TruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "model", 1)
	s, err := c.StreamChat(context.Background(), history)
	require.NoError(t, err)
	text, err := Complete(s)
	assert.Equal(t, "partial", text)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestClient_StreamErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: {\"error\":{\"message\":\"overloaded\"}}\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "model", 1)
	s, err := c.StreamChat(context.Background(), history)
	require.NoError(t, err)
	_, err = Complete(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
