// Package events publishes submission events to a Redis list for
// downstream consumers (CRM sync, analytics).
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/internal/submission"
)

// Envelope wraps every published payload.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Lister is the part of a go-redis client used for publishing.
type Lister interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Publisher pushes envelopes onto one list; consumers pop from the other end.
type Publisher struct {
	rdb   Lister
	queue string
	now   func() time.Time
}

var _ submission.Publisher = (*Publisher)(nil)

func NewPublisher(rdb Lister, queue string) (*Publisher, error) {
	if rdb == nil {
		return nil, errors.New("events: redis client must not be nil")
	}
	if queue == "" {
		return nil, errors.New("events: queue name is required")
	}
	return &Publisher{rdb: rdb, queue: queue, now: time.Now}, nil
}

// Publish serializes payload into an envelope and pushes it.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: encode %s payload: %w", eventType, err)
	}
	env := Envelope{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Payload:    body,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: encode envelope: %w", err)
	}
	if err := p.rdb.LPush(ctx, p.queue, raw).Err(); err != nil {
		logger.LogEvent(ctx, logger.Events, slog.LevelWarn, "events.publish",
			slog.String("status", "fail"),
			slog.String("type", eventType),
			slog.String("queue", p.queue),
			logger.Err(err),
		)
		return fmt.Errorf("events: push %s: %w", eventType, err)
	}
	logger.LogEvent(ctx, logger.Events, slog.LevelDebug, "events.publish",
		slog.String("status", "ok"),
		slog.String("type", eventType),
		slog.String("event_id", env.ID.String()),
	)
	return nil
}
