package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/praxisdev/identity-api/pkg/circuitbreaker"
	"github.com/praxisdev/identity-api/pkg/messaging"
	"github.com/praxisdev/identity-api/pkg/metrics"
)

type Broker struct {
	client  *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

var _ messaging.Broker = (*Broker)(nil)

type Config struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// NewBroker connects to redis and verifies the connection before returning.
// Metrics may be nil.
func NewBroker(cfg Config, logger zerolog.Logger, m *metrics.Metrics) (*Broker, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Broker{
		client: client,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-broker",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		logger:  logger.With().Str("component", "redis_broker").Logger(),
		metrics: m,
	}, nil
}

// Publish runs through the circuit breaker so a redis outage fails fast
// instead of stalling every outbox batch.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	start := time.Now()
	err := b.breaker.Execute(func() error {
		return b.client.Publish(ctx, topic, payload).Err()
	})
	b.observe("publish", start, err)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	out := make(chan []byte, 100)
	go func() {
		defer func() {
			pubsub.Close()
			close(out)
		}()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				out <- []byte(msg.Payload)
			}
		}
	}()

	return out, nil
}

func (b *Broker) Close() error {
	return b.client.Close()
}

func (b *Broker) observe(op string, start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	b.metrics.RedisOperations.WithLabelValues(op, status).Inc()
	b.metrics.RedisLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
