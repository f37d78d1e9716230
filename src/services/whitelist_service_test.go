package services

import (
	"strings"
	"testing"
	"time"

	"github.com/plutusgrip/backend/src/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWhitelistService(t *testing.T, ttl time.Duration) *WhitelistService {
	t.Helper()
	db := newTestDB(t)
	return NewWhitelistService(db, NewWhitelistCache(ttl))
}

func TestIsWhitelistedActiveEntry(t *testing.T) {
	svc := newTestWhitelistService(t, time.Minute)

	require.NoError(t, svc.AddEntry(&model.WhitelistEntry{IPAddress: "203.0.113.7"}))

	assert.True(t, svc.IsWhitelisted("203.0.113.7"))
	assert.False(t, svc.IsWhitelisted("203.0.113.8"))
}

func TestIsWhitelistedExpiredEntry(t *testing.T) {
	svc := newTestWhitelistService(t, time.Minute)

	require.NoError(t, svc.AddEntry(&model.WhitelistEntry{
		IPAddress: "203.0.113.9",
		ExpiresAt: model.NullTime{Time: time.Now().Add(-time.Hour), Valid: true},
	}))

	// Expiry makes the entry invalid without touching its stored state.
	assert.False(t, svc.IsWhitelisted("203.0.113.9"))

	entries, err := svc.ListEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsActive)
}

func TestIsWhitelistedServesCacheWithinTTL(t *testing.T) {
	svc := newTestWhitelistService(t, time.Minute)

	require.NoError(t, svc.AddEntry(&model.WhitelistEntry{IPAddress: "203.0.113.10"}))
	require.True(t, svc.IsWhitelisted("203.0.113.10"))

	// Remove behind the cache's back: raw SQL so the cache is not
	// invalidated. The stale cache still answers true until the TTL.
	_, err := svc.db.Exec(`DELETE FROM whitelist_entries`)
	require.NoError(t, err)
	assert.True(t, svc.IsWhitelisted("203.0.113.10"))

	// Past the TTL the next check reloads and sees the removal.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.False(t, svc.IsWhitelisted("203.0.113.10"))
}

func TestWriteOperationsInvalidateCache(t *testing.T) {
	svc := newTestWhitelistService(t, time.Hour)

	entry := &model.WhitelistEntry{IPAddress: "203.0.113.11"}
	require.NoError(t, svc.AddEntry(entry))
	require.True(t, svc.IsWhitelisted("203.0.113.11"))

	// Despite the long TTL, deactivation is visible immediately.
	require.NoError(t, svc.DeactivateEntry(entry.ID))
	assert.False(t, svc.IsWhitelisted("203.0.113.11"))
}

func TestRateLimitKeyUniquePerCallForWhitelistedIP(t *testing.T) {
	svc := newTestWhitelistService(t, time.Minute)

	require.NoError(t, svc.AddEntry(&model.WhitelistEntry{IPAddress: "203.0.113.12"}))

	key1 := svc.RateLimitKey("203.0.113.12")
	key2 := svc.RateLimitKey("203.0.113.12")

	assert.True(t, strings.HasPrefix(key1, "whitelist_exempt_203.0.113.12_"))
	assert.NotEqual(t, key1, key2)
}

func TestRateLimitKeyStableForRegularIP(t *testing.T) {
	svc := newTestWhitelistService(t, time.Minute)

	assert.Equal(t, "198.51.100.1", svc.RateLimitKey("198.51.100.1"))
	assert.Equal(t, "198.51.100.1", svc.RateLimitKey("198.51.100.1"))
}

func TestDeleteEntryRemovesRow(t *testing.T) {
	svc := newTestWhitelistService(t, time.Minute)

	entry := &model.WhitelistEntry{IPAddress: "203.0.113.13"}
	require.NoError(t, svc.AddEntry(entry))
	require.NoError(t, svc.DeleteEntry(entry.ID))

	entries, err := svc.ListEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.False(t, svc.IsWhitelisted("203.0.113.13"))
}
