package ratelimit

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowWithinLimit(t *testing.T) {
	l := New(NewMemoryStore(), 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("attempt 4 should be blocked")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(NewMemoryStore(), 1, time.Minute)

	if !l.Allow("a") {
		t.Error("first hit on a should pass")
	}
	if !l.Allow("b") {
		t.Error("first hit on b should pass")
	}
	if l.Allow("a") {
		t.Error("second hit on a should be blocked")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	store := NewMemoryStore()
	window := 50 * time.Millisecond
	l := New(store, 1, window)

	if !l.Allow("k") {
		t.Fatal("first hit should pass")
	}
	if l.Allow("k") {
		t.Fatal("second immediate hit should be blocked")
	}

	time.Sleep(window + 10*time.Millisecond)
	if !l.Allow("k") {
		t.Error("hit after window expiry should pass")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := New(NewMemoryStore(), 1, time.Minute)

	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("should be blocked before reset")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Error("should be allowed after reset")
	}
}

func TestMemoryStore_PrunesLazily(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	s.Hits("k", now.Add(-time.Hour), time.Minute)
	// The stale hit falls outside the window and must not be counted.
	if got := s.Hits("k", now, time.Minute); got != 1 {
		t.Errorf("Hits = %d, want 1 (stale entries pruned)", got)
	}
}

func TestLoginLimiter_BlocksAccountAcrossIPs(t *testing.T) {
	ll := NewLoginLimiter(NewMemoryStore())

	blocked := false
	for i := 0; i < 6; i++ {
		r := httptest.NewRequest("POST", "/login", nil)
		r.RemoteAddr = fmt.Sprintf("10.0.0.%d:1234", i+1)
		ok, _ := ll.Check(r, "target@example.rw")
		if !ok {
			blocked = true
		}
	}
	if !blocked {
		t.Error("expected account-level limit to trigger across distinct IPs")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	if got := ClientIP(r); got != "192.0.2.10" {
		t.Errorf("ClientIP = %q, want 192.0.2.10", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Errorf("ClientIP with XFF = %q, want 203.0.113.7", got)
	}
}
