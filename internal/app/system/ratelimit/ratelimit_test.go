package ratelimit_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/courierhub/internal/app/system/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowAndRemaining(t *testing.T) {
	l := ratelimit.New(3, time.Minute)

	assert.Equal(t, 3, l.Remaining("k"))
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
	assert.Equal(t, 0, l.Remaining("k"))

	// other keys unaffected
	assert.True(t, l.Allow("other"))

	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestLimiter_WindowExpires(t *testing.T) {
	l := ratelimit.New(1, 20*time.Millisecond)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
	time.Sleep(40 * time.Millisecond)
	assert.True(t, l.Allow("k"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:4321"
	assert.Equal(t, "10.0.0.5", ratelimit.ClientIP(r))

	r.Header.Set("X-Real-IP", " 10.1.1.1 ")
	assert.Equal(t, "10.1.1.1", ratelimit.ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ratelimit.ClientIP(r))
}

func TestAccountKey(t *testing.T) {
	assert.Equal(t, "corporate:ops@acme.test", ratelimit.AccountKey("corporate", "  Ops@Acme.TEST "))
	assert.Equal(t, "", ratelimit.AccountKey("corporate", "  "))
	assert.NotEqual(t,
		ratelimit.AccountKey("corporate", "ops@acme.test"),
		ratelimit.AccountKey("office_user", "ops@acme.test"))
}

func TestLoginLimiter(t *testing.T) {
	ll := ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	r := httptest.NewRequest("POST", "/login", nil)
	corp := ratelimit.AccountKey("corporate", "Ops@Acme.test")

	ok, _ := ll.Check(r, corp)
	assert.True(t, ok)
	ok, _ = ll.Check(r, ratelimit.AccountKey("corporate", "ops@acme.test "))
	assert.True(t, ok)
	ok, reason := ll.Check(r, ratelimit.AccountKey("corporate", "OPS@ACME.TEST"))
	assert.False(t, ok)
	assert.Contains(t, reason, "this account")

	// The office account with the same email has its own counter.
	ok, _ = ll.Check(r, ratelimit.AccountKey("office_user", "ops@acme.test"))
	assert.True(t, ok)

	ll.ResetAccount(corp)
	ok, _ = ll.Check(r, corp)
	assert.True(t, ok)
}

func TestLoginLimiter_IPLimit(t *testing.T) {
	ll := ratelimit.NewLoginLimiterWithConfig(1, time.Minute, 100, time.Minute)
	r := httptest.NewRequest("POST", "/login", nil)

	ok, _ := ll.Check(r, "")
	assert.True(t, ok)
	ok, reason := ll.Check(r, "")
	assert.False(t, ok)
	assert.Contains(t, reason, "wait a minute")
}
