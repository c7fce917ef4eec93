// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Store holds per-key hit timestamps for sliding-window limiting. It is an
// interface so a multi-process deployment can back it with a shared cache;
// the in-memory implementation below is the default.
type Store interface {
	// Hits records a hit at now and returns how many hits fall inside
	// the window ending at now, including the new one.
	Hits(key string, now time.Time, window time.Duration) int
	// Reset clears all hits for a key.
	Reset(key string)
}

// MemoryStore keeps timestamp lists in process memory, pruned lazily on
// each check. State is not persisted and resets on restart.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

func (s *MemoryStore) Hits(key string, now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.hits[key][:0]
	for _, ts := range s.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	s.hits[key] = kept
	return len(kept)
}

func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hits, key)
}

// Limiter enforces a max-hits-per-window policy over a Store.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

// New creates a limiter allowing limit hits per window.
func New(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	return l.store.Hits(key, time.Now(), l.window) <= l.limit
}

// Reset clears the window for a key, e.g. after successful authentication.
func (l *Limiter) Reset(key string) {
	l.store.Reset(key)
}

// ClientIP extracts the client IP from an HTTP request, honoring
// X-Forwarded-For and X-Real-IP before falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LoginLimiter limits login attempts by both client IP and account, so
// neither a single IP hammering many accounts nor many IPs targeting one
// account slips through.
type LoginLimiter struct {
	ip      *Limiter
	account *Limiter
}

// NewLoginLimiter builds a login limiter over the given store.
// Defaults: 10 attempts per IP per minute, 5 per account per 5 minutes.
func NewLoginLimiter(store Store) *LoginLimiter {
	return &LoginLimiter{
		ip:      New(store, 10, time.Minute),
		account: New(store, 5, 5*time.Minute),
	}
}

// Check records an attempt and reports whether it is allowed, with a
// human-readable reason when blocked.
func (ll *LoginLimiter) Check(r *http.Request, account string) (bool, string) {
	if !ll.ip.Allow("ip:" + ClientIP(r)) {
		return false, "Too many attempts. Please wait a minute before trying again."
	}
	if account != "" {
		key := "acct:" + strings.ToLower(strings.TrimSpace(account))
		if !ll.account.Allow(key) {
			return false, "Too many attempts for this account. Please wait a few minutes."
		}
	}
	return true, ""
}

// ResetAccount clears the per-account window after a successful login.
func (ll *LoginLimiter) ResetAccount(account string) {
	if account != "" {
		ll.account.Reset("acct:" + strings.ToLower(strings.TrimSpace(account)))
	}
}
