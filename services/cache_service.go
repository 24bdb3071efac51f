package services

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// CacheEntry represents a cached payload with expiration
type CacheEntry struct {
	Data       []byte
	ExpiresAt  time.Time
	lastAccess atomic.Int64
}

// CacheService is the process-wide response cache. Capacity is bounded by an
// LRU; on top of it every entry expires at its own TTL (clamped to a ceiling)
// or after sitting unread for the idle window, whichever comes first.
// Lookups and inserts are safe for concurrent use without external locking.
type CacheService struct {
	enabled bool
	store   *lru.Cache[string, *CacheEntry]
	// serializes writes with stale-entry removal
	writeMu sync.Mutex
	idleTTL time.Duration
	maxTTL  time.Duration
	hits    atomic.Uint64
	misses  atomic.Uint64
	metrics *shared.ServiceMetrics
	now     func() time.Time
	logger  *logrus.Entry
}

// NewCacheService creates the cache from its configuration.
func NewCacheService(cfg shared.CacheConfig, metrics *shared.ServiceMetrics) (*CacheService, error) {
	size := cfg.MaxEntries
	if size <= 0 {
		size = shared.NewDefaultUnifiedConfiguration().Cache.MaxEntries
	}
	store, err := lru.New[string, *CacheEntry](size)
	if err != nil {
		return nil, err
	}

	cs := &CacheService{
		enabled: cfg.Enabled,
		store:   store,
		idleTTL: cfg.IdleTTL,
		maxTTL:  cfg.MaxTTL,
		metrics: metrics,
		now:     time.Now,
		logger:  logrus.WithField("component", "CacheService"),
	}

	cs.logger.WithFields(logrus.Fields{
		"enabled":     cfg.Enabled,
		"max_entries": size,
		"idle_ttl":    cfg.IdleTTL,
		"max_ttl":     cfg.MaxTTL,
	}).Info("Cache initialized")

	return cs, nil
}

// Enabled reports whether the cache stores anything at all.
func (cs *CacheService) Enabled() bool {
	return cs.enabled
}

// Get returns the raw payload stored under key.
func (cs *CacheService) Get(key string) ([]byte, bool) {
	if !cs.enabled {
		return nil, false
	}
	data, ok := cs.lookup(key)
	cs.record(ok)
	return data, ok
}

func (cs *CacheService) lookup(key string) ([]byte, bool) {
	entry, ok := cs.store.Get(key)
	if !ok {
		return nil, false
	}
	now := cs.now()
	if !now.Before(entry.ExpiresAt) {
		cs.removeStale(key, entry)
		return nil, false
	}
	if cs.idleTTL > 0 && now.Sub(time.Unix(0, entry.lastAccess.Load())) >= cs.idleTTL {
		cs.removeStale(key, entry)
		return nil, false
	}
	entry.lastAccess.Store(now.UnixNano())
	return entry.Data, true
}

// removeStale drops key only while it still holds entry, so a value stored
// after entry was read survives.
func (cs *CacheService) removeStale(key string, entry *CacheEntry) {
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	if cur, ok := cs.store.Peek(key); ok && cur == entry {
		cs.store.Remove(key)
	}
	cs.metrics.RecordCacheSize(cs.store.Len())
}

func (cs *CacheService) record(hit bool) {
	if hit {
		cs.hits.Add(1)
	} else {
		cs.misses.Add(1)
	}
	cs.metrics.RecordCacheLookup(hit)
}

// Set stores data with the ceiling TTL.
func (cs *CacheService) Set(key string, data []byte) {
	cs.SetWithTTL(key, data, cs.maxTTL)
}

// SetWithTTL stores data for ttl, clamped to the configured ceiling.
func (cs *CacheService) SetWithTTL(key string, data []byte, ttl time.Duration) {
	if cs.maxTTL > 0 && ttl > cs.maxTTL {
		ttl = cs.maxTTL
	}
	cs.set(key, data, ttl)
}

func (cs *CacheService) set(key string, data []byte, ttl time.Duration) {
	if !cs.enabled || ttl <= 0 {
		return
	}
	now := cs.now()
	entry := &CacheEntry{Data: data, ExpiresAt: now.Add(ttl)}
	entry.lastAccess.Store(now.UnixNano())

	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	cs.store.Add(key, entry)
	cs.metrics.RecordCacheSize(cs.store.Len())
}

// GetJSON decodes the value stored under key into dest. A payload that does
// not decode is dropped and reported as a miss.
func (cs *CacheService) GetJSON(key CacheKey, dest interface{}) bool {
	if !cs.enabled {
		return false
	}
	k := key.String()
	data, ok := cs.lookup(k)
	if !ok {
		cs.record(false)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		cs.logger.WithFields(logrus.Fields{
			"key": k,
		}).WithError(err).Warn("Failed to deserialize cached value, treating as miss")
		cs.store.Remove(k)
		cs.record(false)
		return false
	}
	cs.record(true)
	return true
}

// SetJSON encodes value and stores it under key with the key's TTL.
// Immutable values are exempt from the TTL ceiling.
func (cs *CacheService) SetJSON(key CacheKey, value interface{}) {
	if !cs.enabled {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		cs.logger.WithField("key", key.String()).WithError(err).Warn("Failed to serialize value for cache")
		return
	}
	if key.immutable() {
		cs.set(key.String(), data, key.TTL())
		return
	}
	cs.SetWithTTL(key.String(), data, key.TTL())
}

// Invalidate removes a value from cache
func (cs *CacheService) Invalidate(key string) {
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	cs.store.Remove(key)
	cs.metrics.RecordCacheSize(cs.store.Len())
}

// Clear removes all values from cache
func (cs *CacheService) Clear() {
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	cs.store.Purge()
	cs.metrics.RecordCacheSize(0)
	cs.logger.Info("Cache cleared")
}

// Size returns the number of items in cache, expired ones included until
// they are next read or evicted.
func (cs *CacheService) Size() int {
	return cs.store.Len()
}

// Stats returns the process-wide counters.
func (cs *CacheService) Stats() models.CacheStats {
	hits := cs.hits.Load()
	misses := cs.misses.Load()
	stats := models.CacheStats{
		Enabled: cs.enabled,
		Entries: cs.store.Len(),
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}
