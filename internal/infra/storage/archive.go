// Package storage archives captured answer recordings to object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/supabase-community/supabase-go"

	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

// Archiver stores one recording. Implementations must be safe for concurrent use.
type Archiver interface {
	Archive(ctx context.Context, sessionID string, seq int, mimeType string, data []byte) error
}

// Config holds Supabase storage settings.
type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// Enabled reports whether enough settings are present to upload.
func (c Config) Enabled() bool {
	return c.URL != "" && c.ServiceRoleKey != "" && c.Bucket != ""
}

// uploader is the slice of the supabase storage client we use.
type uploader interface {
	upload(bucket, key string, body io.Reader) error
}

type supabaseUploader struct{ client *supabase.Client }

func (u supabaseUploader) upload(bucket, key string, body io.Reader) error {
	_, err := u.client.Storage.UploadFile(bucket, key, body)
	return err
}

// SupabaseArchiver uploads recordings to a Supabase storage bucket.
type SupabaseArchiver struct {
	up     uploader
	bucket string
}

// New returns a Supabase archiver, or a no-op archiver when storage is not configured.
func New(cfg Config) (Archiver, error) {
	if !cfg.Enabled() {
		log.Info().Msg("recording archive disabled")
		return Nop{}, nil
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	log.Info().Str("bucket", cfg.Bucket).Msg("recording archive enabled")
	return &SupabaseArchiver{up: supabaseUploader{client: client}, bucket: cfg.Bucket}, nil
}

func (a *SupabaseArchiver) Archive(ctx context.Context, sessionID string, seq int, mimeType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := ObjectKey(sessionID, seq, mimeType)
	start := time.Now()
	err := a.up.upload(a.bucket, key, bytes.NewReader(data))
	metrics.DefaultMetrics.RecordProviderCall("supabase", "upload", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to upload to Supabase: %w", err)
	}
	return nil
}

// ObjectKey names a recording as <sessionID>/<seq>.<ext>.
func ObjectKey(sessionID string, seq int, mimeType string) string {
	return fmt.Sprintf("%s/%03d.%s", sessionID, seq, extension(mimeType))
}

func extension(mimeType string) string {
	base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	switch base {
	case "audio/ogg":
		return "ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	case "audio/wav", "audio/x-wav":
		return "wav"
	default:
		return "webm"
	}
}

// Nop discards recordings.
type Nop struct{}

func (Nop) Archive(context.Context, string, int, string, []byte) error { return nil }
