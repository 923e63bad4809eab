package service

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Event subjects published by the workflow engine.
const (
	EventInteractionStarted   = "interaction.started"
	EventInteractionCompleted = "interaction.completed"
	EventPromptSubmitted      = "interaction.prompt_submitted"
	EventFeedbackSubmitted    = "feedback.submitted"
	EventFeedbackValidated    = "feedback.validated"
	EventFeedbackRejected     = "feedback.rejected"
	EventDatasetEntryCreated  = "dataset.entry_created"
)

// EventPublisher emits workflow events for downstream consumers. Publishing is
// best-effort: failures are logged and never fail the originating operation.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload map[string]interface{})
}

type natsPublisher struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
}

// NewNATSPublisher builds an EventPublisher backed by a NATS connection. Subjects
// are prefixed so multiple deployments can share one cluster.
func NewNATSPublisher(conn *nats.Conn, prefix string, logger zerolog.Logger) EventPublisher {
	return &natsPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsPublisher) Publish(_ context.Context, subject string, payload map[string]interface{}) {
	if p.conn == nil {
		return
	}

	full := subject
	if p.prefix != "" {
		full = p.prefix + "." + subject
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("subject", full).Msg("failed to encode event payload")
		return
	}

	if err := p.conn.Publish(full, data); err != nil {
		p.logger.Warn().Err(err).Str("subject", full).Msg("failed to publish event")
	}
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that discards all events.
func NewNopPublisher() EventPublisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, string, map[string]interface{}) {}
