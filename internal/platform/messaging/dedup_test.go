package messaging

import (
	"fmt"
	"testing"
)

func TestDedupSeen(t *testing.T) {
	dedup := NewDedup(8)

	if dedup.Seen("msg-1") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !dedup.Seen("msg-1") {
		t.Fatal("second sighting not reported as duplicate")
	}
	if dedup.Seen("") {
		t.Fatal("empty id must never count as duplicate")
	}
}

func TestDedupEvictsOldestFirst(t *testing.T) {
	dedup := NewDedup(3)

	for i := 0; i < 4; i++ {
		dedup.Seen(fmt.Sprintf("msg-%d", i))
	}

	// msg-0 was evicted when msg-3 arrived; the rest are retained.
	if dedup.Seen("msg-0") {
		t.Fatal("evicted id still reported as duplicate")
	}
	if !dedup.Seen("msg-3") {
		t.Fatal("retained id lost")
	}
}
