// Package events publishes finalized interview turns to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

// TurnEvent is emitted once per finalized turn.
type TurnEvent struct {
	SessionID     string    `json:"sessionId"`
	InterviewType string    `json:"interviewType,omitempty"`
	Index         int       `json:"index"`
	Role          string    `json:"role"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher writes turn events keyed by session id. With no brokers it only logs.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	metrics *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
}

func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	if cfg == nil || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		p := &Publisher{metrics: m}
		if cfg != nil {
			p.topic = cfg.Topic
		}
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // keeps one session's turns on one partition, in order
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka publisher initialized")

	return &Publisher{writer: writer, topic: cfg.Topic, enabled: true, metrics: m}
}

// PublishTurn writes one event. Callers treat errors as non-fatal.
func (p *Publisher) PublishTurn(ctx context.Context, ev TurnEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("topic", p.topic).
		Str("key", ev.SessionID).
		RawJSON("payload", payload).
		Msg("Publishing turn event")

	if !p.enabled || p.writer == nil {
		p.metrics.RecordPublish(p.topic, nil)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("turn.finalized")},
			{Key: "role", Value: []byte(ev.Role)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", p.topic).
			Str("key", ev.SessionID).
			Msg("Failed to write to Kafka")
		p.metrics.RecordPublish(p.topic, err)
		return err
	}
	p.metrics.RecordPublish(p.topic, nil)
	return nil
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing kafka writer")
		return err
	}
	return nil
}
