// Package push sends Web Push notifications to users who are offline, so
// they come back and drain their pending queue. Subscriptions live in the
// storage layer; sending is best-effort and never blocks the send path.
package push

import (
	"context"
	"encoding/json"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/jisero/internal/logger"
	"github.com/jisero/internal/storage"
)

// Subscription is the browser push subscription as delivered by the client.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Notifier delivers Web Push notifications. With nil VAPID options (keys
// not configured) Notify is a no-op; subscriptions are still stored.
type Notifier struct {
	store storage.Store
	vapid *webpush.Options
}

func NewNotifier(store storage.Store, keys *VAPIDKeys) *Notifier {
	n := &Notifier{store: store}
	if keys != nil && keys.PublicKey != "" && keys.PrivateKey != "" {
		n.vapid = &webpush.Options{
			Subscriber:      "jisero-push",
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             30,
		}
	}
	return n
}

// Enabled reports whether VAPID keys are configured.
func (n *Notifier) Enabled() bool { return n.vapid != nil }

// Subscribe stores a browser subscription for the user.
func (n *Notifier) Subscribe(ctx context.Context, userID string, sub Subscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return n.store.AddSubscription(ctx, userID, string(raw))
}

// Unsubscribe removes the subscription with the given endpoint.
func (n *Notifier) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	list, err := n.store.GetSubscriptions(ctx, userID)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(list))
	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != endpoint {
			kept = append(kept, item)
		}
	}
	return n.store.SetSubscriptions(ctx, userID, kept)
}

// Notify pushes a notification to every subscription of the user.
// Endpoints the push gateway reports gone (404/410) are pruned.
func (n *Notifier) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	if n.vapid == nil {
		return
	}
	list, err := n.store.GetSubscriptions(ctx, userID)
	if err != nil {
		logger.Errorf("push notify: subscriptions for %s: %v", userID, err)
		return
	}
	if len(list) == 0 {
		return
	}
	payload, _ := json.Marshal(map[string]any{"title": title, "body": body, "data": data})

	kept := list[:0]
	pruned := false
	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) != nil || sub.Endpoint == "" {
			pruned = true
			continue
		}
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, n.vapid)
		if err != nil {
			logger.Errorf("push notify user=%s: %v", userID, err)
			kept = append(kept, item)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			pruned = true
			continue
		}
		kept = append(kept, item)
	}
	if pruned {
		if err := n.store.SetSubscriptions(ctx, userID, kept); err != nil {
			logger.Errorf("push notify: prune subscriptions for %s: %v", userID, err)
		}
	}
}
