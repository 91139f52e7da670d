package http

import (
	"sync"
	"time"
)

// rateLimiter caps mutating requests per client IP over a sliding
// window. Entries idle past the window are swept periodically.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	seen   map[string][]time.Time

	quit     chan struct{}
	stopOnce sync.Once
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	rl := &rateLimiter{
		limit:  requestsPerMinute,
		window: time.Minute,
		seen:   make(map[string][]time.Time),
		quit:   make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

// allow records the request and reports whether the client stays under
// the limit. Only timestamps inside the window count.
func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	stamps := rl.seen[clientIP]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rl.limit {
		rl.seen[clientIP] = kept
		return false
	}
	rl.seen[clientIP] = append(kept, now)
	return true
}

func (rl *rateLimiter) janitor() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.quit:
			return
		}
	}
}

// sweep drops clients whose newest request fell out of the window.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	for ip, stamps := range rl.seen {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(rl.seen, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.quit) })
}
