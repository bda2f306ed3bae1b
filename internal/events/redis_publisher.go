package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisPublisher implements Publisher using a Redis list
type redisPublisher struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

// RedisConfig holds Redis publisher configuration
type RedisConfig struct {
	URL    string
	Stream string
}

// NewRedisPublisher creates a Redis-backed delivery event publisher
func NewRedisPublisher(cfg RedisConfig, logger *slog.Logger) (Publisher, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		slog.String("addr", opts.Addr),
		slog.String("stream", cfg.Stream),
	)

	return &redisPublisher{
		client: client,
		stream: cfg.Stream,
		logger: logger,
	}, nil
}

// Publish emits a delivery event onto the Redis list
func (p *redisPublisher) Publish(ctx context.Context, event *DeliveryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.LPush(ctx, p.stream, data).Err(); err != nil {
		return fmt.Errorf("failed to push event: %w", err)
	}

	p.logger.Debug("delivery event published",
		slog.Int64("campaign_id", event.CampaignID),
		slog.Int64("contact_id", event.ContactID),
		slog.String("status", event.Status),
	)

	return nil
}

// Close closes the Redis connection
func (p *redisPublisher) Close() error {
	p.logger.Info("closing Redis connection")
	return p.client.Close()
}

// Health checks if Redis is healthy
func (p *redisPublisher) Health(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis health check failed: %w", err)
	}
	return nil
}
