package events

import (
	"context"
	"testing"
	"time"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"no brokers", &Config{Topic: "interview.turns", Brokers: []string{}}},
		{"empty brokers", &Config{Topic: "interview.turns", Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writer != nil {
				t.Error("expected nil writer when disabled")
			}
		})
	}
}

func TestNew_Enabled(t *testing.T) {
	p := New(&Config{Brokers: []string{"localhost:9092"}, Topic: "interview.turns"})
	defer p.Close()
	if !p.enabled || p.writer == nil {
		t.Fatal("expected enabled publisher with a writer")
	}
	if p.writer.Topic != "interview.turns" {
		t.Errorf("topic = %q", p.writer.Topic)
	}
}

func TestPublishTurn_DisabledMode(t *testing.T) {
	p := New(&Config{Topic: "interview.turns"})
	err := p.PublishTurn(context.Background(), TurnEvent{
		SessionID: "s1",
		Index:     1,
		Role:      "assistant",
		Text:      "Tell me about yourself.",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Errorf("expected no error in disabled mode, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
