package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/messaging/kafka"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// ─────────────────────────────────────────────────────────────────────────────
// Health checkers
// ─────────────────────────────────────────────────────────────────────────────

type postgresHealthAdapter struct {
	pool *pgxpool.Pool
}

func (a *postgresHealthAdapter) Name() string {
	return "postgres"
}

func (a *postgresHealthAdapter) Check(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

type redisHealthAdapter struct {
	client *redis.Client
}

func (a *redisHealthAdapter) Name() string {
	return "redis"
}

func (a *redisHealthAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Session recorders
// ─────────────────────────────────────────────────────────────────────────────

// kafkaSessionRecorder publishes finalized sessions to the session topic;
// the dictionary worker consumes them asynchronously.
type kafkaSessionRecorder struct {
	producer *kafka.Producer
	topic    string
}

func (r *kafkaSessionRecorder) RecordSession(ctx context.Context, sessionID string, events []*mappingtypes.SessionEvent) error {
	return r.producer.PublishSessionFinalized(ctx, r.topic, &kafka.SessionFinalizedPayload{
		SessionID:   sessionID,
		Events:      events,
		FinalizedAt: time.Now().UTC(),
	})
}

// directSessionRecorder writes confirmations straight into the dictionary
// when no message broker is deployed.
type directSessionRecorder struct {
	dict *dictionary.Service
}

func (r *directSessionRecorder) RecordSession(ctx context.Context, sessionID string, events []*mappingtypes.SessionEvent) error {
	for _, ev := range events {
		if err := r.dict.Record(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
