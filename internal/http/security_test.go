package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIPHonorsForwardingOnlyFromTrustedProxies(t *testing.T) {
	defaults, err := newProxyFilter(nil)
	if err != nil {
		t.Fatalf("newProxyFilter: %v", err)
	}
	custom, err := newProxyFilter([]string{"203.0.113.0/24"})
	if err != nil {
		t.Fatalf("newProxyFilter: %v", err)
	}

	tests := []struct {
		name       string
		filter     *proxyFilter
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{
			name:       "direct client, no proxy",
			filter:     defaults,
			remoteAddr: "192.0.2.10:4321",
			want:       "192.0.2.10",
		},
		{
			name:       "forwarded header from untrusted peer is ignored",
			filter:     defaults,
			remoteAddr: "192.0.2.10:4321",
			xff:        "198.51.100.7",
			want:       "192.0.2.10",
		},
		{
			name:       "forwarded header from loopback proxy",
			filter:     defaults,
			remoteAddr: "127.0.0.1:9000",
			xff:        "198.51.100.7, 10.0.0.1",
			want:       "198.51.100.7",
		},
		{
			name:       "real ip fallback from private proxy",
			filter:     defaults,
			remoteAddr: "10.1.2.3:9000",
			realIP:     "198.51.100.9",
			want:       "198.51.100.9",
		},
		{
			name:       "configured proxy range overrides defaults",
			filter:     custom,
			remoteAddr: "10.1.2.3:9000",
			xff:        "198.51.100.7",
			want:       "10.1.2.3",
		},
		{
			name:       "garbage forwarded value falls back to peer",
			filter:     defaults,
			remoteAddr: "127.0.0.1:9000",
			xff:        "not-an-ip",
			want:       "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/healthz", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := tt.filter.clientIP(r); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProxyFilterRejectsBadCIDR(t *testing.T) {
	if _, err := newProxyFilter([]string{"not-a-cidr"}); err == nil {
		t.Fatal("expected error for malformed CIDR")
	}
}

func TestSuspiciousRequestDetection(t *testing.T) {
	tests := []struct {
		name   string
		target string
		agent  string
		want   bool
	}{
		{name: "normal chat request", target: "/chatbot", agent: "Mozilla/5.0", want: false},
		{name: "curl is a legitimate client", target: "/healthz", agent: "curl/8.4.0", want: false},
		{name: "path traversal", target: "/../../etc/passwd", agent: "Mozilla/5.0", want: true},
		{name: "sql injection in query", target: "/chatbot?q=union%20select", agent: "Mozilla/5.0", want: true},
		{name: "scanner user agent", target: "/chatbot", agent: "sqlmap/1.7", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := suspiciousRequest(r); got != tt.want {
				t.Errorf("suspiciousRequest = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := newRateLimiter(2)
	defer rl.stop()

	if !rl.allow("192.0.2.1") || !rl.allow("192.0.2.1") {
		t.Fatal("requests under the limit were rejected")
	}
	if rl.allow("192.0.2.1") {
		t.Fatal("request over the limit was allowed")
	}
	if !rl.allow("192.0.2.2") {
		t.Fatal("limit leaked across clients")
	}

	// Expire the first client's window and the slot frees up.
	rl.mu.Lock()
	stale := time.Now().Add(-2 * time.Minute)
	rl.seen["192.0.2.1"] = []time.Time{stale, stale}
	rl.mu.Unlock()

	if !rl.allow("192.0.2.1") {
		t.Fatal("expired timestamps still counted against the limit")
	}

	rl.sweep()
	rl.mu.Lock()
	_, kept := rl.seen["192.0.2.2"]
	rl.mu.Unlock()
	if !kept {
		t.Fatal("sweep dropped an active client")
	}
}
