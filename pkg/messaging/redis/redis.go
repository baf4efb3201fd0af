package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/dental-api/pkg/circuitbreaker"
	"github.com/jwalitptl/dental-api/pkg/messaging"
)

type RedisBroker struct {
	client        *redis.Client
	cb            *circuitbreaker.CircuitBreaker
	logger        *zerolog.Logger
	channelPrefix string
}

type Config struct {
	URL           string
	MaxRetries    int
	RetryBackoff  time.Duration
	PoolSize      int
	MinIdleConns  int
	ChannelPrefix string
}

func NewRedisBroker(ctx context.Context, config Config, logger *zerolog.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisBrokerWithClient(client, config.ChannelPrefix, logger), nil
}

// NewRedisBrokerWithClient wraps an existing client without pinging it.
func NewRedisBrokerWithClient(client *redis.Client, channelPrefix string, logger *zerolog.Logger) *RedisBroker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "redis-broker",
		MaxFailures: 5,
		Interval:    10 * time.Second,
		Timeout:     5 * time.Second,
		OnStateChange: func(name, from, to string) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from).
				Str("to", to).
				Msg("Circuit breaker state changed")
		},
	})

	return &RedisBroker{
		client:        client,
		cb:            cb,
		logger:        logger,
		channelPrefix: channelPrefix,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return b.cb.Execute(func() error {
		return b.client.Publish(ctx, b.channelPrefix+channel, payload).Err()
	})
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

var _ messaging.Broker = (*RedisBroker)(nil)
