package handler

import (
	"net/http"
	"strings"

	"github.com/jisero/internal/push"
)

type PushHandler struct {
	notifier       *push.Notifier
	vapidPublicKey string
}

func NewPushHandler(notifier *push.Notifier, vapidPublicKey string) *PushHandler {
	return &PushHandler{notifier: notifier, vapidPublicKey: vapidPublicKey}
}

type subscribeRequest struct {
	UserID       string            `json:"user_id"`
	Subscription push.Subscription `json:"subscription"`
}

// Subscribe stores a browser push subscription for the user.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || req.Subscription.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "user_id and subscription required")
		return
	}
	if err := h.notifier.Subscribe(r.Context(), req.UserID, req.Subscription); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": true})
}

type unsubscribeRequest struct {
	UserID   string `json:"user_id"`
	Endpoint string `json:"endpoint"`
}

// Unsubscribe removes the subscription with the given endpoint.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Endpoint) == "" {
		writeError(w, http.StatusBadRequest, "user_id and endpoint required")
		return
	}
	if err := h.notifier.Unsubscribe(r.Context(), req.UserID, req.Endpoint); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": false})
}

// Config exposes the VAPID public key the browser needs to subscribe.
func (h *PushHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":    h.notifier.Enabled(),
		"public_key": h.vapidPublicKey,
	})
}
