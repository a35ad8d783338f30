package router

import (
	"sync"
	"time"
)

// dedupe remembers recently committed webhook message ids. WhatsApp
// redelivers events it thinks were not acknowledged; a redelivered id must
// not run the transition again. Ids are recorded via Mark only after the
// transition is persisted, so the redelivery of an event that failed
// mid-processing is handled like a fresh one.
type dedupe struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func newDedupe(ttl time.Duration) *dedupe {
	return &dedupe{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen reports whether id was marked within the ttl. Expired entries are
// pruned opportunistically.
func (d *dedupe) Seen(id string) bool {
	if id == "" {
		return false
	}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for k, t := range d.seen {
		if now.Sub(t) >= d.ttl {
			delete(d.seen, k)
		}
	}
	t, ok := d.seen[id]
	return ok && now.Sub(t) < d.ttl
}

// Mark records id as processed.
func (d *dedupe) Mark(id string) {
	if id == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = d.now()
}
