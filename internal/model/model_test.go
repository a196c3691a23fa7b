package model

import "testing"

func TestNormalizePair(t *testing.T) {
	a, b := NormalizePair("USER-2", "USER-1")
	if a != "USER-1" || b != "USER-2" {
		t.Fatalf("NormalizePair = (%q, %q), want sorted", a, b)
	}
	a2, b2 := NormalizePair("USER-1", "USER-2")
	if a2 != a || b2 != b {
		t.Fatalf("pair normalization is not order-independent")
	}
}

func TestStatusRank(t *testing.T) {
	if StatusRank(MessageStatusSent) != 0 || StatusRank(MessageStatusQueued) != 0 {
		t.Fatalf("sent and queued must share the lowest rank")
	}
	if !(StatusRank(MessageStatusDelivered) < StatusRank(MessageStatusSeen)) {
		t.Fatalf("delivered must rank below seen")
	}
	// queued -> seen is a legal jump; only retrograde moves are blocked.
	if StatusRank(MessageStatusQueued) >= StatusRank(MessageStatusSeen) {
		t.Fatalf("queued must rank below seen")
	}
}
