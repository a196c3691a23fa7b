package model

import "time"

type User struct {
	ID                string    `json:"user_id"`
	Username          string    `json:"username"`
	Avatar            string    `json:"avatar"`
	PreferredLanguage string    `json:"preferred_language"`
	IsOnline          bool      `json:"is_online"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// UserSummary is the presence-level view of a user, broadcast with
// online/offline events and the online-users snapshot.
type UserSummary struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
