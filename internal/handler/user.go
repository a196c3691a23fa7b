package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jisero/internal/model"
	"github.com/jisero/internal/presence"
	"github.com/jisero/internal/repository"
)

const maxUsernameLen = 50

type UserHandler struct {
	userRepo *repository.UserRepository
	registry *presence.Registry
}

func NewUserHandler(userRepo *repository.UserRepository, registry *presence.Registry) *UserHandler {
	return &UserHandler{userRepo: userRepo, registry: registry}
}

type registerRequest struct {
	UserID            string `json:"user_id"`
	Username          string `json:"username"`
	Avatar            string `json:"avatar"`
	PreferredLanguage string `json:"preferred_language"`
}

type userResponse struct {
	UserID            string    `json:"user_id"`
	Username          string    `json:"username"`
	Avatar            string    `json:"avatar"`
	PreferredLanguage string    `json:"preferred_language"`
	Online            bool      `json:"online"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	CreatedAt         time.Time `json:"created_at"`
}

func (h *UserHandler) toResponse(u *model.User) userResponse {
	return userResponse{
		UserID:            u.ID,
		Username:          u.Username,
		Avatar:            u.Avatar,
		PreferredLanguage: u.PreferredLanguage,
		// The registry is authoritative; the durable flag can lag.
		Online:     h.registry.IsOnline(u.ID),
		LastSeenAt: u.LastSeenAt,
		CreatedAt:  u.CreatedAt,
	}
}

// newUserID builds a shareable identity handle, unique by timestamp plus a
// random suffix.
func newUserID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:6]
	return fmt.Sprintf("USER-%d-%s", time.Now().UnixMilli(), suffix)
}

// defaultAvatar derives a two-letter avatar from the username.
func defaultAvatar(username string) string {
	runes := []rune(strings.ToUpper(username))
	if len(runes) >= 2 {
		return string(runes[:2])
	}
	if len(runes) == 1 {
		return string(runes)
	}
	return "??"
}

// Register creates a user. The server assigns the id unless the client
// brings its own (restoring a profile on a new device).
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}
	if utf8.RuneCountInString(req.Username) > maxUsernameLen {
		writeError(w, http.StatusBadRequest, "username too long")
		return
	}

	id := strings.TrimSpace(req.UserID)
	if id == "" {
		id = newUserID()
	}
	avatar := strings.TrimSpace(req.Avatar)
	if avatar == "" {
		avatar = defaultAvatar(req.Username)
	}
	lang := strings.ToLower(strings.TrimSpace(req.PreferredLanguage))
	if lang == "" {
		lang = "en"
	}

	now := time.Now().UTC()
	u := &model.User{
		ID:                id,
		Username:          req.Username,
		Avatar:            avatar,
		PreferredLanguage: lang,
		IsOnline:          false,
		LastSeenAt:        now,
		CreatedAt:         now,
	}
	if err := h.userRepo.Create(r.Context(), u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusConflict, "user id already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(u))
}

// Get returns a user's public profile by id.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")
	u, err := h.userRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(u))
}
