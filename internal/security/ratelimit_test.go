package security

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBudget(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d denied within budget", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request over budget allowed")
	}

	// A different client has its own budget.
	if !rl.Allow("10.0.0.2") {
		t.Error("independent client denied")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first request denied")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("second request in window allowed")
	}

	time.Sleep(20 * time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Error("request after window reset denied")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		realIP    string
		remote    string
		want      string
	}{
		{"forwarded single", "203.0.113.7", "", "10.0.0.1:1234", "203.0.113.7"},
		{"forwarded chain", "203.0.113.7, 10.0.0.2", "", "10.0.0.1:1234", "203.0.113.7"},
		{"real ip", "", "203.0.113.9", "10.0.0.1:1234", "203.0.113.9"},
		{"remote addr", "", "", "10.0.0.1:1234", "10.0.0.1:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
