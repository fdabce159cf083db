package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis operations used to forward metric lines.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	List     string `yaml:"list"`
}

// NewClient creates a new Redis client and checks the connection.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// PushLines appends lines to the tail of list in a single round trip.
func (c *Client) PushLines(ctx context.Context, list string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	values := make([]any, len(lines))
	for i, l := range lines {
		values[i] = l
	}
	if err := c.rdb.RPush(ctx, list, values...).Err(); err != nil {
		return fmt.Errorf("rpush failed: %w", err)
	}
	return nil
}
