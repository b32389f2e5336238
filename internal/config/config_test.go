package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("CHAT_MODEL", "")
	t.Setenv("SPEECH_VOICE", "")
	t.Setenv("SESSION_STORE", "")
	cfg := Load()
	if cfg.HTTPAddress != ":8080" {
		t.Fatalf("expected default http address, got %q", cfg.HTTPAddress)
	}
	if cfg.ChatModel != "gpt-4-1106-preview" {
		t.Fatalf("expected default chat model, got %q", cfg.ChatModel)
	}
	if cfg.SpeechVoice != "onyx" {
		t.Fatalf("expected default voice, got %q", cfg.SpeechVoice)
	}
	if cfg.SessionStore != "memory" {
		t.Fatalf("expected memory session store, got %q", cfg.SessionStore)
	}
	if cfg.AutoListen {
		t.Fatalf("expected auto listen off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("AUTO_LISTEN", "true")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("CHAT_TEMPERATURE", "0.3")
	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if !cfg.AutoListen {
		t.Fatalf("expected auto listen")
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.SessionTTL)
	}
	if cfg.ChatTemperature != 0.3 {
		t.Fatalf("unexpected temperature %v", cfg.ChatTemperature)
	}
}

func TestLoad_RedisWithoutURLFallsBack(t *testing.T) {
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_URL", "")
	if cfg := Load(); cfg.SessionStore != "memory" {
		t.Fatalf("expected fallback to memory, got %q", cfg.SessionStore)
	}
}
