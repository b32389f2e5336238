package httpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/DCbrown/interview-ai-app/internal/agent"
	"github.com/DCbrown/interview-ai-app/internal/config"
	"github.com/DCbrown/interview-ai-app/internal/events"
	"github.com/DCbrown/interview-ai-app/internal/infra/storage"
	"github.com/DCbrown/interview-ai-app/internal/live"
	"github.com/DCbrown/interview-ai-app/internal/llm"
	"github.com/DCbrown/interview-ai-app/internal/resume"
	"github.com/DCbrown/interview-ai-app/internal/scrape"
	"github.com/DCbrown/interview-ai-app/internal/session"
	"github.com/DCbrown/interview-ai-app/internal/transcript"
	"github.com/DCbrown/interview-ai-app/internal/tts"
)

// Scraper fetches a job posting as text.
type Scraper interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Chat          agent.ChatModel
	Speech        agent.Synthesizer
	Transcriber   agent.Transcriber
	Scraper       Scraper
	ExtractResume func([]byte) (string, error)
	Sessions      session.Store
	Live          *live.Handler
	Publisher     *events.Publisher
}

// DefaultDeps builds the production dependencies from configuration.
func DefaultDeps(cfg config.Config) (Deps, error) {
	model := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.ChatModel, cfg.ChatTemperature)

	speech, err := tts.New(cfg)
	if err != nil {
		return Deps{}, err
	}
	stt, err := transcript.New(cfg)
	if err != nil {
		return Deps{}, err
	}

	opts := []session.StoreOption{session.WithTTL(cfg.SessionTTL)}
	if session.StoreType(cfg.SessionStore) == session.StoreTypeRedis {
		client, err := session.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return Deps{}, fmt.Errorf("redis url: %w", err)
		}
		opts = append(opts, session.WithRedisClient(client))
	}
	sessions, err := session.NewStore(session.StoreType(cfg.SessionStore), opts...)
	if err != nil {
		return Deps{}, fmt.Errorf("session store %q: %w", cfg.SessionStore, err)
	}

	archiver, err := storage.New(storage.Config{
		URL:            cfg.SupabaseURL,
		ServiceRoleKey: cfg.SupabaseServiceRoleKey,
		Bucket:         cfg.SupabaseBucket,
	})
	if err != nil {
		return Deps{}, err
	}
	publisher := events.New(&events.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})

	lh := live.NewHandler(sessions, stt, model, speech)
	lh.Archiver = archiver
	lh.Publisher = publisher
	lh.AutoListen = cfg.AutoListen
	if cfg.MaxUploadBytes > 0 {
		lh.MaxRecordBytes = int(cfg.MaxUploadBytes)
	}

	return Deps{
		Chat:          model,
		Speech:        speech,
		Transcriber:   stt,
		Scraper:       scrape.NewClient(),
		ExtractResume: resume.ExtractText,
		Sessions:      sessions,
		Live:          lh,
		Publisher:     publisher,
	}, nil
}

// Close releases the session store and the event publisher.
func (d Deps) Close() error {
	var errs []error
	if d.Publisher != nil {
		errs = append(errs, d.Publisher.Close())
	}
	if d.Sessions != nil {
		errs = append(errs, d.Sessions.Close())
	}
	return errors.Join(errs...)
}
