package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AlertsDLQ is the Redis list key for alert messages the consumer gave up on.
const AlertsDLQ = "worker:alerts:dlq"

// DeadLetter is a message parked for inspection or manual replay.
type DeadLetter struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	RoutingKey string    `json:"routing_key"`
	Body       string    `json:"body"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Queue is a Redis list of dead letters.
type Queue struct {
	client redis.Cmdable
	key    string
	logger *zap.Logger
}

// NewQueue creates a dead-letter queue stored under key.
func NewQueue(client redis.Cmdable, key string, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, key: key, logger: logger}
}

// Push appends a dead letter. ID and CreatedAt are filled in when empty.
func (q *Queue) Push(ctx context.Context, dl DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Warn("message moved to DLQ",
		zap.String("id", dl.ID), zap.String("source", dl.Source),
		zap.String("routing_key", dl.RoutingKey), zap.String("reason", dl.Reason))
	return nil
}

// Len returns the number of parked messages.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Pop removes and returns the oldest dead letter, or nil when the queue is empty.
func (q *Queue) Pop(ctx context.Context) (*DeadLetter, error) {
	raw, err := q.client.LPop(ctx, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dl DeadLetter
	if err := json.Unmarshal([]byte(raw), &dl); err != nil {
		q.logger.Warn("invalid dead letter", zap.String("raw", raw), zap.Error(err))
		return nil, fmt.Errorf("unmarshal dead letter: %w", err)
	}
	return &dl, nil
}
