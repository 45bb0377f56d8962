package ratelimit

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAllowWindowRollover(t *testing.T) {
	l := New(2, 50*time.Millisecond)

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("third request in the window should be denied")
	}
	if !l.Allow("other") {
		t.Fatal("a different key has its own window")
	}

	time.Sleep(60 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("request after the window expires should be allowed")
	}
}

func TestReset(t *testing.T) {
	l := New(1, time.Minute)
	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("second request should be denied")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Fatal("request after Reset should be allowed")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Fatalf("ClientIP = %q, want 10.0.0.1", got)
	}

	r.Header.Set("X-Real-IP", "203.0.113.5")
	if got := ClientIP(r); got != "203.0.113.5" {
		t.Fatalf("ClientIP = %q, want X-Real-IP", got)
	}

	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := ClientIP(r); got != "198.51.100.7" {
		t.Fatalf("ClientIP = %q, want first X-Forwarded-For hop", got)
	}
}

func TestLoginLimiterUsernameBudget(t *testing.T) {
	ll := NewLoginLimiter()
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 5; i++ {
		if ok, _ := ll.Check(r, "Rosa"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	// Case folding: "rosa" shares the budget with "Rosa".
	ok, reason := ll.Check(r, "rosa")
	if ok {
		t.Fatal("sixth attempt for the username should be denied")
	}
	if !strings.Contains(reason, "account") {
		t.Fatalf("reason = %q, want the per-account message", reason)
	}

	if ok, _ := ll.Check(r, "marco"); !ok {
		t.Fatal("a different username is not affected")
	}

	ll.ResetUsername("ROSA")
	if ok, _ := ll.Check(r, "rosa"); !ok {
		t.Fatal("attempt after ResetUsername should be allowed")
	}
}

func TestLoginLimiterIPBudget(t *testing.T) {
	ll := NewLoginLimiter()
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "10.0.0.2:1234"

	// Spread across usernames so only the IP window fills.
	for i := 0; i < 10; i++ {
		if ok, _ := ll.Check(r, fmt.Sprintf("user%d", i)); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	ok, reason := ll.Check(r, "user-x")
	if ok {
		t.Fatal("eleventh attempt from the IP should be denied")
	}
	if strings.Contains(reason, "account") {
		t.Fatalf("reason = %q, want the per-IP message", reason)
	}

	other := httptest.NewRequest("POST", "/login", nil)
	other.RemoteAddr = "10.0.0.3:1234"
	if ok, _ := ll.Check(other, "user-x"); !ok {
		t.Fatal("a different IP is not affected")
	}
}
