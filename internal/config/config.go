package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string
	LogLevel    string
	LogFormat   string

	// OpenAI-compatible provider used for chat, speech and transcription by default.
	OpenAIKey       string
	OpenAIBaseURL   string
	ChatModel       string
	ChatTemperature float64
	SpeechModel     string
	SpeechVoice     string
	TranscribeModel string

	TTSProvider       string // openai, elevenlabs, deepgram
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramKey       string
	DeepgramModel     string

	STTProvider   string // openai, assemblyai
	AssemblyAIKey string

	SessionStore string // memory, redis
	RedisURL     string
	SessionTTL   time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseBucket         string

	// AutoListen re-enters listening after the interviewer finishes speaking.
	AutoListen     bool
	MaxUploadBytes int64
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := Config{
		HTTPAddress: getEnv("HTTP_ADDRESS", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-4-1106-preview"),
		ChatTemperature: getFloat("CHAT_TEMPERATURE", 1),
		SpeechModel:     getEnv("SPEECH_MODEL", "tts-1"),
		SpeechVoice:     getEnv("SPEECH_VOICE", "onyx"),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),

		TTSProvider:       strings.ToLower(getEnv("TTS_PROVIDER", "openai")),
		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		DeepgramKey:       os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramModel:     getEnv("DEEPGRAM_MODEL", "aura-2-thalia-en"),

		STTProvider:   strings.ToLower(getEnv("STT_PROVIDER", "openai")),
		AssemblyAIKey: os.Getenv("ASSEMBLYAI_API_KEY"),

		SessionStore: strings.ToLower(getEnv("SESSION_STORE", "memory")),
		RedisURL:     os.Getenv("REDIS_URL"),
		SessionTTL:   getDuration("SESSION_TTL", 24*time.Hour),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "interview.turns"),

		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:         getEnv("SUPABASE_BUCKET", "interview-recordings"),

		AutoListen:     getBool("AUTO_LISTEN", false),
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 10<<20)),
	}

	if cfg.OpenAIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set - chat will fail with authentication errors")
	}
	if cfg.TTSProvider == "elevenlabs" && (cfg.ElevenLabsKey == "" || cfg.ElevenLabsVoiceID == "") {
		log.Warn().Msg("ELEVENLABS_API_KEY or ELEVENLABS_VOICE_ID not set - speech will not work")
	}
	if cfg.TTSProvider == "deepgram" && cfg.DeepgramKey == "" {
		log.Warn().Msg("DEEPGRAM_API_KEY not set - speech will not work")
	}
	if cfg.STTProvider == "assemblyai" && cfg.AssemblyAIKey == "" {
		log.Warn().Msg("ASSEMBLYAI_API_KEY not set - transcription will not work")
	}
	if cfg.SessionStore == "redis" && cfg.RedisURL == "" {
		log.Warn().Msg("SESSION_STORE=redis but REDIS_URL not set - falling back to memory")
		cfg.SessionStore = "memory"
	}

	log.Info().Str("addr", cfg.HTTPAddress).Str("tts", cfg.TTSProvider).Str("stt", cfg.STTProvider).
		Str("sessionStore", cfg.SessionStore).Msg("config loaded")
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
