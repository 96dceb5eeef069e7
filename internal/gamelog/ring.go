package gamelog

import (
	"fmt"
	"sync"
	"time"
)

// RingEntry is one classified event kept for the ops API's recent-events
// view.
type RingEntry struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Summary string    `json:"summary"`
}

// Ring is a bounded in-memory history of classified events. Oldest entries
// are overwritten once the capacity is reached.
type Ring struct {
	mu      sync.Mutex
	entries []RingEntry
	next    int
	full    bool
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{entries: make([]RingEntry, capacity)}
}

// Add records an event. Safe for concurrent use.
func (r *Ring) Add(ev Event) {
	entry := RingEntry{Time: time.Now().UTC()}
	switch e := ev.(type) {
	case ChatLine:
		entry.Kind = "chat"
		entry.Summary = fmt.Sprintf("<%s> %s", e.Sender, e.Body)
	case AuctionAdded:
		entry.Kind = "auction_added"
		entry.Summary = fmt.Sprintf("%s listed x%d %s for %s", e.Seller, e.Qty, e.Item, e.Price)
	case AuctionSold:
		entry.Kind = "auction_sold"
		entry.Summary = fmt.Sprintf("%s bought x%d %s from %s for %s", e.Buyer, e.Qty, e.Item, e.Seller, e.Price)
	case VerifyRequest:
		entry.Kind = "verify"
		entry.Summary = e.Username
	case Unrecognized:
		entry.Kind = "unrecognized"
		entry.Summary = e.Raw
	default:
		return
	}

	r.mu.Lock()
	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// Recent returns entries newest-first.
func (r *Ring) Recent() []RingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.entries)
	}
	out := make([]RingEntry, 0, size)
	for i := 1; i <= size; i++ {
		idx := (r.next - i + len(r.entries)) % len(r.entries)
		out = append(out, r.entries[idx])
	}
	return out
}
