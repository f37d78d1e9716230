package services

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
)

// WhitelistCache is a time-boxed snapshot of the currently-valid whitelisted
// IPs. It is constructed once at process start and passed to whoever needs
// it; Invalidate forces the next check to reload from the store.
//
// Readers never observe a partially-updated set: a refresh builds the new
// map aside and swaps it in under the write lock in a single assignment.
type WhitelistCache struct {
	mu          sync.RWMutex
	ips         map[string]struct{}
	lastRefresh time.Time
	populated   bool
	ttl         time.Duration
}

func NewWhitelistCache(ttl time.Duration) *WhitelistCache {
	return &WhitelistCache{
		ips: make(map[string]struct{}),
		ttl: ttl,
	}
}

func (c *WhitelistCache) contains(ip string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ips[ip]
	return ok
}

func (c *WhitelistCache) stale(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.populated {
		return true
	}
	return now.Sub(c.lastRefresh) >= c.ttl
}

func (c *WhitelistCache) replace(ips []string, now time.Time) {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		set[ip] = struct{}{}
	}
	c.mu.Lock()
	c.ips = set
	c.lastRefresh = now
	c.populated = true
	c.mu.Unlock()
}

// Invalidate empties the cache so the next membership check reloads from
// the store instead of serving stale entries for up to the TTL.
func (c *WhitelistCache) Invalidate() {
	c.mu.Lock()
	c.ips = make(map[string]struct{})
	c.lastRefresh = time.Time{}
	c.populated = false
	c.mu.Unlock()
}

// WhitelistService answers "is this IP exempt from rate limiting?" and
// manages the whitelist entries behind that answer.
type WhitelistService struct {
	db    *sql.DB
	cache *WhitelistCache
	now   func() time.Time
}

func NewWhitelistService(db *sql.DB, cache *WhitelistCache) *WhitelistService {
	return &WhitelistService{db: db, cache: cache, now: time.Now}
}

// IsWhitelisted checks membership against the cache, reloading from the
// store first when the cache is stale. A failed reload keeps the previous
// contents; the check only degrades to "not whitelisted" if the cache was
// never successfully populated. Concurrent reloads are tolerated: the
// reload is idempotent, last writer wins.
func (s *WhitelistService) IsWhitelisted(ip string) bool {
	now := s.now()
	if s.cache.stale(now) {
		ips, err := model.ListValidWhitelistIPs(s.db, now)
		if err != nil {
			logger.L.Warn("Whitelist cache refresh failed, keeping previous contents", "error", err)
		} else {
			s.cache.replace(ips, now)
		}
	}
	return s.cache.contains(ip)
}

// RateLimitKey returns the string the rate limiter buckets this client
// under. A whitelisted IP gets a key that is unique per call, so its bucket
// is always fresh and nothing ever accumulates against it. This rides on
// the limiter keying counters by string; it is a bypass workaround, not a
// first-class exemption flag, but it preserves the exact behavior history
// was built on.
func (s *WhitelistService) RateLimitKey(ip string) string {
	if s.IsWhitelisted(ip) {
		return fmt.Sprintf("whitelist_exempt_%s_%d", ip, s.now().UnixNano())
	}
	return ip
}

// AddEntry whitelists an IP and invalidates the cache.
func (s *WhitelistService) AddEntry(entry *model.WhitelistEntry) error {
	entry.IsActive = true
	if err := entry.Create(s.db); err != nil {
		return err
	}
	s.cache.Invalidate()
	logger.L.Info("Whitelist entry added", "ip", entry.IPAddress, "id", entry.ID)
	return nil
}

// DeactivateEntry soft-deletes an entry and invalidates the cache.
func (s *WhitelistService) DeactivateEntry(id int64) error {
	if err := model.DeactivateWhitelistEntry(s.db, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// DeleteEntry permanently removes an entry and invalidates the cache.
func (s *WhitelistService) DeleteEntry(id int64) error {
	if err := model.DeleteWhitelistEntry(s.db, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

func (s *WhitelistService) ListEntries() ([]model.WhitelistEntry, error) {
	return model.ListWhitelistEntries(s.db)
}
