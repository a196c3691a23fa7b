package memory

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestTranslationRoundTrip(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()

	if _, ok, _ := c.GetTranslation(ctx, "k"); ok {
		t.Fatalf("unexpected hit on empty cache")
	}
	if err := c.SetTranslation(ctx, "k", "hola"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := c.GetTranslation(ctx, "k")
	if err != nil || !ok || v != "hola" {
		t.Fatalf("get = (%q, %v, %v), want (hola, true, nil)", v, ok, err)
	}
}

func TestTranslationExpires(t *testing.T) {
	c := New(-time.Second) // already expired on write
	ctx := context.Background()

	c.SetTranslation(ctx, "k", "hola")
	if _, ok, _ := c.GetTranslation(ctx, "k"); ok {
		t.Fatalf("expired entry must miss")
	}
}

func TestSubscriptionsCapped(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()

	for i := 0; i < maxSubsPerUser+5; i++ {
		if err := c.AddSubscription(ctx, "u", fmt.Sprintf("sub-%d", i)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	subs, err := c.GetSubscriptions(ctx, "u")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(subs) != maxSubsPerUser {
		t.Fatalf("len = %d, want %d", len(subs), maxSubsPerUser)
	}
	// Oldest entries are dropped first.
	if subs[0] != "sub-5" {
		t.Fatalf("oldest surviving = %q, want sub-5", subs[0])
	}
}

func TestSetSubscriptionsReplaces(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()

	c.AddSubscription(ctx, "u", "a")
	c.AddSubscription(ctx, "u", "b")
	if err := c.SetSubscriptions(ctx, "u", []string{"b"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	subs, _ := c.GetSubscriptions(ctx, "u")
	if len(subs) != 1 || subs[0] != "b" {
		t.Fatalf("subs = %v, want [b]", subs)
	}

	if err := c.SetSubscriptions(ctx, "u", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	subs, _ = c.GetSubscriptions(ctx, "u")
	if len(subs) != 0 {
		t.Fatalf("subs = %v, want empty", subs)
	}
}
