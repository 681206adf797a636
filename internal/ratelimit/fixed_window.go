package ratelimit

import (
	"sync"
	"time"
)

// bucket is the counter for one key in one class.
type bucket struct {
	windowStart time.Time
	count       int
}

// fixedWindow implements the fixed window algorithm for one class. A window
// starts at the first request after the previous one expired, so a client
// can send up to 2*Max requests across a window boundary.
type fixedWindow struct {
	class Class

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newFixedWindow(c Class) *fixedWindow {
	return &fixedWindow{
		class:   c,
		buckets: make(map[string]*bucket),
	}
}

func (w *fixedWindow) allow(key string, now time.Time) *Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.buckets[key]
	if !ok {
		b = &bucket{windowStart: now}
		w.buckets[key] = b
	}

	if !now.Before(b.windowStart.Add(w.class.Window)) {
		b.windowStart = now
		b.count = 0
	}

	allowed := b.count < w.class.Max
	if allowed {
		b.count++
	}

	return &Result{
		Allowed:   allowed,
		Limit:     w.class.Max,
		Remaining: max(w.class.Max-b.count, 0),
		ResetAt:   b.windowStart.Add(w.class.Window),
	}
}

func (w *fixedWindow) refund(key string, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.buckets[key]
	if !ok || b.count == 0 {
		return
	}
	if !now.Before(b.windowStart.Add(w.class.Window)) {
		return
	}
	b.count--
}

func (w *fixedWindow) sweep(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for key, b := range w.buckets {
		if !now.Before(b.windowStart.Add(w.class.Window)) {
			delete(w.buckets, key)
			removed++
		}
	}
	return removed
}

func (w *fixedWindow) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buckets)
}
