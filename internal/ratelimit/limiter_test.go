package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAllow_CallerLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		Window:       time.Minute,
		MaxPerCaller: 3,
		MaxPerIP:     100,
		Clock:        clock,
	})
	defer limiter.Close()

	caller := "3f1c2a9e-8b7d-4e6f-9a0b-1c2d3e4f5a6b"
	for i := 0; i < 3; i++ {
		if result := limiter.Allow(caller, "192.168.1.1"); !result.Allowed {
			t.Fatalf("write %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
	}

	result := limiter.Allow(caller, "192.168.1.1")
	if result.Allowed {
		t.Fatal("fourth write should be blocked")
	}
	if result.Reason != "caller_limit" {
		t.Errorf("Reason = %q, want caller_limit", result.Reason)
	}
	if result.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", result.RetryAfter)
	}

	// Another caller on the same IP is unaffected
	if result := limiter.Allow("9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d", "192.168.1.1"); !result.Allowed {
		t.Errorf("other caller should be allowed, got blocked: %s", result.Reason)
	}

	// The window resets
	clock.Advance(time.Minute)
	if result := limiter.Allow(caller, "192.168.1.1"); !result.Allowed {
		t.Errorf("write after window should be allowed, got blocked: %s", result.Reason)
	}
}

func TestAllow_IPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		Window:       time.Minute,
		MaxPerCaller: 100,
		MaxPerIP:     2,
		Clock:        clock,
	})
	defer limiter.Close()

	limiter.Allow("", "203.0.113.7")
	limiter.Allow("caller-a", "203.0.113.7")

	result := limiter.Allow("caller-b", "203.0.113.7")
	if result.Allowed {
		t.Fatal("third write from the same IP should be blocked")
	}
	if result.Reason != "ip_limit" {
		t.Errorf("Reason = %q, want ip_limit", result.Reason)
	}

	clock.Advance(30 * time.Second)
	if result := limiter.Allow("caller-b", "203.0.113.8"); !result.Allowed {
		t.Errorf("other IP should be allowed, got blocked: %s", result.Reason)
	}
}

func TestAllow_BlockedWriteIsNotCounted(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{Window: time.Minute, MaxPerCaller: 1, MaxPerIP: 2, Clock: clock})
	defer limiter.Close()

	limiter.Allow("caller-a", "10.0.0.1")
	for i := 0; i < 5; i++ {
		limiter.Allow("caller-a", "10.0.0.1")
	}

	// Only the allowed write counted against the IP.
	if result := limiter.Allow("caller-b", "10.0.0.1"); !result.Allowed {
		t.Errorf("caller-b should be allowed, got blocked: %s", result.Reason)
	}
}

func TestAllow_IdentifierNormalization(t *testing.T) {
	limiter := New(&Config{MaxPerCaller: 1, Clock: newMockClock()})
	defer limiter.Close()

	limiter.Allow("ABC", "10.0.0.1")
	if result := limiter.Allow("  abc ", "10.0.0.2"); result.Allowed {
		t.Error("caller ids should be compared case-insensitively")
	}
}

func TestCleanup(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{Window: time.Minute, Clock: clock})
	defer limiter.Close()

	limiter.Allow("caller-a", "10.0.0.1")
	clock.Advance(2 * time.Minute)
	limiter.cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if len(limiter.byCaller) != 0 || len(limiter.byIP) != 0 {
		t.Errorf("expected idle entries to be dropped, got %d callers and %d IPs", len(limiter.byCaller), len(limiter.byIP))
	}
}

func TestGetClientIP_TrustProxy(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expected   string
	}{
		{
			name:       "TrustProxy=true, XFF rightmost public IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.50", // Rightmost non-private
		},
		{
			name:       "TrustProxy=true, XFF all private",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "10.0.0.1", // Last one when all private
		},
		{
			name:       "TrustProxy=true, X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.51",
		},
		{
			name:       "TrustProxy=false, ignores XFF",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50"},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: false,
			expected:   "192.168.1.100", // Uses RemoteAddr, ignores spoofed XFF
		},
		{
			name:       "TrustProxy=false, ignores X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
		{
			name:       "No headers, RemoteAddr only",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: true,
			expected:   "192.168.1.100",
		},
		{
			name:       "RemoteAddr without port",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			got := GetClientIP(r, tt.trustProxy)
			if got != tt.expected {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetClientIP_SpoofingPrevention(t *testing.T) {
	// Attacker sends fake X-Forwarded-For header
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "1.2.3.4") // Attacker-supplied
	r.RemoteAddr = "192.168.1.100:54321"       // Real connection

	// With TrustProxy=false, the fake header is ignored
	got := GetClientIP(r, false)
	if got != "192.168.1.100" {
		t.Errorf("Should ignore X-Forwarded-For when TrustProxy=false, got %q", got)
	}
}


func TestNew_NilConfig(t *testing.T) {
	limiter := New(nil)
	defer limiter.Close()

	if limiter == nil {
		t.Fatal("New(nil) should return a valid limiter")
	}
	if limiter.config.Window != time.Minute || limiter.config.MaxPerCaller != 120 || limiter.config.MaxPerIP != 600 {
		t.Error("New(nil) should use default config")
	}
}

func TestLimiter_Close(t *testing.T) {
	limiter := New(nil)

	// Trigger cleanup goroutine
	limiter.Allow("caller-a", "1.2.3.4")

	// Close should not hang
	done := make(chan struct{})
	go func() {
		limiter.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("Close() should not hang")
	}
}

func TestConcurrentAccess(t *testing.T) {
	limiter := New(&Config{Window: time.Minute, MaxPerCaller: 50, MaxPerIP: 1_000_000, Clock: newMockClock()})
	defer limiter.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if limiter.Allow("shared-caller", "192.168.1.1").Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		// IPv4 private ranges
		{"10.0.0.1", true},
		{"10.255.255.255", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"192.168.255.255", true},
		{"127.0.0.1", true},
		// IPv6 private/reserved
		{"::1", true},
		{"fc00::1", true},
		{"fe80::1", true}, // Link-local
		// IPv4-mapped IPv6 addresses (must match their IPv4 equivalents)
		{"::ffff:10.0.0.1", true},
		{"::ffff:192.168.1.1", true},
		{"::ffff:172.16.0.1", true},
		{"::ffff:127.0.0.1", true},
		{"::ffff:8.8.8.8", false},   // Public IP in IPv4-mapped format
		{"::ffff:1.1.1.1", false},   // Public IP in IPv4-mapped format
		// Public IPs
		{"203.0.113.50", false},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"2001:4860:4860::8888", false}, // Google DNS IPv6
		// Invalid
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			got := isPrivateIP(tt.ip)
			if got != tt.expected {
				t.Errorf("isPrivateIP(%q) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
}

