package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// BalanceChangedChannel is the Redis channel balance change events are
// published on. Frontend push subscriptions and pollers consume it.
const BalanceChangedChannel = "tokens:balance_changed"

// BalanceNotifier receives a notification after every mutating ledger
// operation. Implementations must not block the calling request for long;
// delivery is best effort.
type BalanceNotifier interface {
	BalanceChanged(ctx context.Context, userID uuid.UUID)
}

// RedisBalanceNotifier publishes balance change events to a Redis channel.
type RedisBalanceNotifier struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisBalanceNotifier creates a notifier backed by the given Redis client.
func NewRedisBalanceNotifier(client *redis.Client, logger zerolog.Logger) *RedisBalanceNotifier {
	return &RedisBalanceNotifier{client: client, logger: logger}
}

func (n *RedisBalanceNotifier) BalanceChanged(ctx context.Context, userID uuid.UUID) {
	if err := n.client.Publish(ctx, BalanceChangedChannel, userID.String()).Err(); err != nil {
		// A missed UI refresh is not worth failing the mutation over.
		n.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to publish balance change")
	}
}

// NoopBalanceNotifier discards balance change events. Used in tests and
// when Redis is unavailable.
type NoopBalanceNotifier struct{}

func (NoopBalanceNotifier) BalanceChanged(context.Context, uuid.UUID) {}
