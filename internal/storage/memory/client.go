// Package memory is the in-process storage.Store used by -dev mode and
// tests, mirroring the Redis client's semantics.
package memory

import (
	"context"
	"sync"
	"time"
)

const maxSubsPerUser = 10

type item struct {
	val string
	exp time.Time
}

type Client struct {
	mu             sync.RWMutex
	translations   map[string]item
	subs           map[string][]string
	translationTTL time.Duration
}

func New(translationTTL time.Duration) *Client {
	return &Client{
		translations:   make(map[string]item),
		subs:           make(map[string][]string),
		translationTTL: translationTTL,
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) GetTranslation(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.translations[key]
	if !ok || time.Now().After(v.exp) {
		return "", false, nil
	}
	return v.val, true, nil
}

func (c *Client) SetTranslation(ctx context.Context, key, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.translations[key] = item{val: text, exp: time.Now().Add(c.translationTTL)}
	return nil
}

func (c *Client) AddSubscription(ctx context.Context, userID, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := append(c.subs[userID], raw)
	if len(subs) > maxSubsPerUser {
		subs = subs[len(subs)-maxSubsPerUser:]
	}
	c.subs[userID] = subs
	return nil
}

func (c *Client) GetSubscriptions(ctx context.Context, userID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	subs := c.subs[userID]
	out := make([]string, len(subs))
	copy(out, subs)
	return out, nil
}

func (c *Client) SetSubscriptions(ctx context.Context, userID string, raw []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(raw) == 0 {
		delete(c.subs, userID)
		return nil
	}
	subs := make([]string, len(raw))
	copy(subs, raw)
	c.subs[userID] = subs
	return nil
}
