package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	translationKeyPrefix  = "tr:"
	subscriptionKeyPrefix = "push:subs:"

	// MaxSubsPerUser bounds Web Push subscriptions per user (oldest evicted).
	MaxSubsPerUser  = 10
	subscriptionTTL = 30 * 24 * time.Hour
)

type Client struct {
	cli            *redis.Client
	translationTTL time.Duration
}

func New(ctx context.Context, url string, translationTTL time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli, translationTTL: translationTTL}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) GetTranslation(ctx context.Context, key string) (string, bool, error) {
	val, err := c.cli.Get(ctx, translationKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *Client) SetTranslation(ctx context.Context, key, text string) error {
	return c.cli.Set(ctx, translationKeyPrefix+key, text, c.translationTTL).Err()
}

// AddSubscription appends a raw subscription, trims to MaxSubsPerUser
// (oldest first) and refreshes the key TTL.
func (c *Client) AddSubscription(ctx context.Context, userID, raw string) error {
	key := subscriptionKeyPrefix + userID
	pipe := c.cli.Pipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -MaxSubsPerUser, -1)
	pipe.Expire(ctx, key, subscriptionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Client) GetSubscriptions(ctx context.Context, userID string) ([]string, error) {
	return c.cli.LRange(ctx, subscriptionKeyPrefix+userID, 0, -1).Result()
}

// SetSubscriptions replaces the user's subscription list (used when pruning
// endpoints the push service reported as gone).
func (c *Client) SetSubscriptions(ctx context.Context, userID string, raw []string) error {
	key := subscriptionKeyPrefix + userID
	pipe := c.cli.Pipeline()
	pipe.Del(ctx, key)
	if len(raw) > 0 {
		vals := make([]interface{}, len(raw))
		for i, v := range raw {
			vals[i] = v
		}
		pipe.RPush(ctx, key, vals...)
		pipe.Expire(ctx, key, subscriptionTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// FlushDB clears the current Redis database (tests / full reset).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
