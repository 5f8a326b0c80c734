// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/patrickmn/go-cache"
)

// Limiter is a fixed-window request counter keyed by string.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  *cache.Cache
	limit    int
	duration time.Duration
}

// New creates a new rate limiter allowing limit requests per duration.
// Expired windows are swept by the cache janitor.
func New(limit int, duration time.Duration) *Limiter {
	return &Limiter{
		windows:  cache.New(duration, duration*2),
		limit:    limit,
		duration: duration,
	}
}

// Allow checks if a request from the given key should be allowed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// First request opens a new window.
	if err := l.windows.Add(key, 1, l.duration); err == nil {
		return true
	}

	n, err := l.windows.IncrementInt(key, 1)
	if err != nil {
		// expired between Add and Increment
		l.windows.Set(key, 1, l.duration)
		return true
	}
	return n <= l.limit
}

// Remaining returns how many requests are left for this key in the current window.
func (l *Limiter) Remaining(key string) int {
	v, ok := l.windows.Get(key)
	if !ok {
		return l.limit
	}
	remaining := l.limit - v.(int)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the rate limit for a specific key.
func (l *Limiter) Reset(key string) {
	l.windows.Delete(key)
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
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

// LoginLimiter throttles sign-in attempts per client IP and per account.
type LoginLimiter struct {
	ipLimiter      *Limiter
	accountLimiter *Limiter
}

// NewLoginLimiter creates a limiter configured for login protection.
// Defaults: 10 attempts per IP per minute, 5 attempts per account per 5 minutes.
func NewLoginLimiter() *LoginLimiter {
	return NewLoginLimiterWithConfig(10, time.Minute, 5, 5*time.Minute)
}

// NewLoginLimiterWithConfig creates a login limiter with custom limits.
func NewLoginLimiterWithConfig(ipLimit int, ipDuration time.Duration, accountLimit int, accountDuration time.Duration) *LoginLimiter {
	return &LoginLimiter{
		ipLimiter:      New(ipLimit, ipDuration),
		accountLimiter: New(accountLimit, accountDuration),
	}
}

// AccountKey builds the per-account key. A corporate portal account and
// an office user may share an email, so the account kind is part of it.
// It returns "" for a blank email.
func AccountKey(kind, email string) string {
	email = text.Fold(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	return kind + ":" + email
}

// Check reports whether a sign-in attempt may proceed, and if not, why.
// An empty account key is limited by IP only.
func (ll *LoginLimiter) Check(r *http.Request, account string) (bool, string) {
	if !ll.ipLimiter.Allow(ClientIP(r)) {
		return false, "Too many login attempts. Please wait a minute before trying again."
	}
	if account != "" && !ll.accountLimiter.Allow(account) {
		return false, "Too many login attempts for this account. Please wait a few minutes."
	}
	return true, ""
}

// ResetAccount clears the account's counter after a successful sign-in.
func (ll *LoginLimiter) ResetAccount(account string) {
	if account != "" {
		ll.accountLimiter.Reset(account)
	}
}
