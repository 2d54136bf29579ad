package station

import (
	"sync"
	"time"
)

// Dedupe drops a repeat of the same key inside a window that starts at the
// last accepted occurrence. Repeats do not extend the window.
type Dedupe struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func NewDedupe(window time.Duration) *Dedupe {
	return &Dedupe{window: window, seen: map[string]time.Time{}, now: time.Now}
}

func (d *Dedupe) Allow(key string) bool {
	if d == nil || d.window <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.seen[key] = now
	if len(d.seen) > 256 {
		for k, t := range d.seen {
			if now.Sub(t) >= d.window {
				delete(d.seen, k)
			}
		}
	}
	return true
}
