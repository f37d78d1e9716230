package handlers

import (
	"net/http/httptest"
	"os"
	"testing"

	"github.com/plutusgrip/backend/src/logger"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestRateLimiterRegistryBurst(t *testing.T) {
	registry := NewRateLimiterRegistry(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, registry.Allow("198.51.100.1"), "request %d within burst", i)
	}
	assert.False(t, registry.Allow("198.51.100.1"))

	// Separate keys get separate buckets.
	assert.True(t, registry.Allow("198.51.100.2"))
}

func TestRateLimiterRegistryFreshKeysNeverThrottle(t *testing.T) {
	registry := NewRateLimiterRegistry(1, 1)

	// The whitelist bypass relies on every call arriving under a brand new
	// key starting with a full bucket.
	for i := 0; i < 50; i++ {
		key := "whitelist_exempt_203.0.113.7_" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		assert.True(t, registry.Allow(key))
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:4321"

	assert.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", ClientIP(r))
}
