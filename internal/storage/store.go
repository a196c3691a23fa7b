package storage

import "context"

// Store holds the ephemeral key/value state kept outside PostgreSQL:
// the translation cache and Web Push subscriptions.
// Implementations: redis.Client, memory.Client (for -dev without Redis).
type Store interface {
	// Translation cache: key is derived from (text, target language),
	// value is the translated text. Entries expire with the cache TTL.
	GetTranslation(ctx context.Context, key string) (string, bool, error)
	SetTranslation(ctx context.Context, key, text string) error

	// Web Push subscriptions, raw JSON per browser subscription, capped
	// per user with oldest-first eviction.
	AddSubscription(ctx context.Context, userID, raw string) error
	GetSubscriptions(ctx context.Context, userID string) ([]string, error)
	SetSubscriptions(ctx context.Context, userID string, raw []string) error

	Close() error
}
