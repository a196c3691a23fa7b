package push

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jisero/internal/storage/memory"
)

func sub(endpoint string) Subscription {
	s := Subscription{Endpoint: endpoint}
	s.Keys.P256dh = "p"
	s.Keys.Auth = "a"
	return s
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := memory.New(time.Minute)
	n := NewNotifier(store, nil)
	ctx := context.Background()

	if n.Enabled() {
		t.Fatalf("notifier without keys must report disabled")
	}

	if err := n.Subscribe(ctx, "u", sub("https://push/one")); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := n.Subscribe(ctx, "u", sub("https://push/two")); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := n.Unsubscribe(ctx, "u", "https://push/one"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	raw, err := store.GetSubscriptions(ctx, "u")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(raw))
	}
	var s Subscription
	if err := json.Unmarshal([]byte(raw[0]), &s); err != nil {
		t.Fatalf("stored subscription not json: %v", err)
	}
	if s.Endpoint != "https://push/two" {
		t.Fatalf("wrong subscription removed, kept %s", s.Endpoint)
	}
}

func TestNotifyDisabledIsNoop(t *testing.T) {
	store := memory.New(time.Minute)
	n := NewNotifier(store, nil)
	n.Subscribe(context.Background(), "u", sub("https://push/one"))

	// Without VAPID keys Notify must return without touching the network
	// or the stored subscriptions.
	n.Notify(context.Background(), "u", "title", "body", nil)
	raw, _ := store.GetSubscriptions(context.Background(), "u")
	if len(raw) != 1 {
		t.Fatalf("disabled notify modified subscriptions")
	}
}
