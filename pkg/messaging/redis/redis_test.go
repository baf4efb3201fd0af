package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-api/pkg/circuitbreaker"
)

func TestNewRedisBroker_InvalidURL(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), Config{URL: "not-a-url"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}

func TestRedisBroker_PublishMarshalError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	b := NewRedisBrokerWithClient(client, "dental.", nil)
	defer b.Close()

	err := b.Publish(context.Background(), "procedure.created", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal message")
}

func TestRedisBroker_BreakerOpensWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	b := NewRedisBrokerWithClient(client, "", nil)
	defer b.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assert.Error(t, b.Publish(ctx, "material.stock_changed", map[string]int{"delta": 1}))
	}

	err := b.Publish(ctx, "material.stock_changed", map[string]int{"delta": 1})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}
