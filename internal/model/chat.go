package model

import "time"

// Chat is a deduplicated pairing of two users. UserAID/UserBID are stored
// in lexicographic order so that (A,B) and (B,A) resolve to the same row.
type Chat struct {
	ID            string    `json:"chat_id"`
	UserAID       string    `json:"user_a_id"`
	UserBID       string    `json:"user_b_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// NormalizePair orders a participant pair lexicographically.
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
