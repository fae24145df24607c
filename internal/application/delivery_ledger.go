package application

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// deliveryKey identifies one reminder delivered to one recipient for one
// scheduled firing.
type deliveryKey struct {
	slot      string
	lectureID int64
	username  string
}

// deliveryLedger remembers recent reminder deliveries so a duplicate firing
// of the same slot does not notify anyone twice. Entries expire after ttl and
// the oldest are evicted beyond maxEntries.
type deliveryLedger struct {
	entries *expirable.LRU[deliveryKey, struct{}]
}

func newDeliveryLedger(ttl time.Duration, maxEntries int) *deliveryLedger {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &deliveryLedger{entries: expirable.NewLRU[deliveryKey, struct{}](maxEntries, nil, ttl)}
}

// Seen reports whether key was recorded and has not expired.
func (l *deliveryLedger) Seen(key deliveryKey) bool {
	if l == nil {
		return false
	}
	_, ok := l.entries.Get(key)
	return ok
}

// Record marks key as delivered.
func (l *deliveryLedger) Record(key deliveryKey) {
	if l == nil {
		return
	}
	l.entries.Add(key, struct{}{})
}

// Len returns the number of remembered deliveries.
func (l *deliveryLedger) Len() int {
	if l == nil {
		return 0
	}
	return l.entries.Len()
}
