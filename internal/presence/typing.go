package presence

import (
	"sync"
	"time"
)

// TypingTTL is how long a single typing signal stays visible.
const TypingTTL = 3000 * time.Millisecond

type typingKey struct {
	from int
	to   int
}

// TypingTracker records "from is typing to to" signals. Entries are never
// swept; a stale entry is dropped when it is read.
type TypingTracker struct {
	mu      sync.Mutex
	signals map[typingKey]time.Time
	now     func() time.Time
}

// NewTypingTracker constructs a tracker. A nil clock uses time.Now.
func NewTypingTracker(now func() time.Time) *TypingTracker {
	if now == nil {
		now = time.Now
	}
	return &TypingTracker{signals: make(map[typingKey]time.Time), now: now}
}

// Signal stamps the (from, to) pair with the current time.
func (t *TypingTracker) Signal(from, to int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signals[typingKey{from, to}] = t.now()
}

// IsTyping reports whether from signalled typing to to within TypingTTL.
func (t *TypingTracker) IsTyping(from, to int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{from, to}
	at, ok := t.signals[key]
	if !ok {
		return false
	}
	if t.now().Sub(at) < TypingTTL {
		return true
	}
	delete(t.signals, key)
	return false
}
