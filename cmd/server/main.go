package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DCbrown/interview-ai-app/internal/config"
	httpserver "github.com/DCbrown/interview-ai-app/internal/httpserver"
	"github.com/DCbrown/interview-ai-app/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	deps, err := httpserver.DefaultDeps(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Warn().Err(err).Msg("closing dependencies")
		}
	}()

	srv := httpserver.New(cfg, deps)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddress).Msg("server listening")
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			return
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = server.Close()
	}
}
