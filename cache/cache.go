// Package cache is a tiered read-through/write-through cache of translation
// artifacts keyed by request fingerprint. The memory tier answers repeat
// lookups in O(1); the disk tier is authoritative and survives restarts.
// The cache never triggers a network call and its I/O failures degrade to
// misses instead of propagating.
package cache

import (
	"errors"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/voicetra/pipeline/translation"
	"github.com/voicetra/pipeline/utils/logger"
)

// Config tunes a TieredCache.
type Config struct {
	MemoryMaxItems  int     // memory tier entry bound (default 100)
	MemoryMaxBytes  int64   // memory tier byte bound (default 50MB)
	DiskMaxBytes    int64   // disk tier byte budget (default 100MB)
	EvictToFraction float64 // hysteresis target after eviction (default 0.75)
}

// DefaultConfig returns the cache defaults. The disk budget is the single
// authoritative cap; hosts override it through configuration rather than
// editing constants.
func DefaultConfig() Config {
	return Config{
		MemoryMaxItems:  100,
		MemoryMaxBytes:  50 << 20,
		DiskMaxBytes:    100 << 20,
		EvictToFraction: 0.75,
	}
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	MemoryItems  int
	MemoryBytes  int64
	DiskBytes    int64
	Hits         int
	Misses       int
	Evictions    int
	WriteErrors  int
	ReadErrors   int
	DiskMaxBytes int64
}

// TieredCache coordinates the memory and disk tiers. Safe for concurrent use.
type TieredCache struct {
	cfg    Config
	memory *memoryTier
	disk   BlobStore
	logger logger.Logger

	mu        sync.Mutex
	diskBytes int64
	hits      int
	misses    int
	evictions int
	writeErrs int
	readErrs  int
}

// NewTieredCache creates a cache over the given disk store. The disk tier is
// scanned once to seed the usage accounting, so budgets hold across restarts.
func NewTieredCache(cfg Config, disk BlobStore) (*TieredCache, error) {
	def := DefaultConfig()
	if cfg.MemoryMaxItems <= 0 {
		cfg.MemoryMaxItems = def.MemoryMaxItems
	}
	if cfg.MemoryMaxBytes <= 0 {
		cfg.MemoryMaxBytes = def.MemoryMaxBytes
	}
	if cfg.DiskMaxBytes <= 0 {
		cfg.DiskMaxBytes = def.DiskMaxBytes
	}
	if cfg.EvictToFraction <= 0 || cfg.EvictToFraction > 1 {
		cfg.EvictToFraction = def.EvictToFraction
	}

	c := &TieredCache{
		cfg:    cfg,
		memory: newMemoryTier(cfg.MemoryMaxItems, cfg.MemoryMaxBytes),
		disk:   disk,
		logger: logger.NewNoopLogger(),
	}

	usage, err := c.scanDiskUsage()
	if err != nil {
		return nil, translation.NewCacheIO("scan", err)
	}
	c.diskBytes = usage

	return c, nil
}

// SetLogger sets the logger for cache I/O diagnostics.
func (c *TieredCache) SetLogger(log logger.Logger) *TieredCache {
	c.logger = log
	return c
}

// Get returns the cached value for key, consulting memory first and
// promoting disk hits into memory. A disk read failure is logged and
// reported as a miss.
func (c *TieredCache) Get(key string) ([]byte, bool) {
	if value, ok := c.memory.get(key); ok {
		c.count(func() { c.hits++ })
		return value, true
	}

	value, err := c.disk.Read(key)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.count(func() { c.readErrs++ })
			c.logger.Printf("cache: disk read failed for %s: %v", key, err)
		}
		c.count(func() { c.misses++ })
		return nil, false
	}

	c.memory.put(key, value)
	c.count(func() { c.hits++ })
	return value, true
}

// Put writes the value through to both tiers. A disk write that pushes total
// usage over budget triggers an eviction pass. The returned error is always
// a non-fatal CacheIOError; callers may ignore it.
func (c *TieredCache) Put(key string, value []byte) error {
	c.memory.put(key, value)

	var prevSize int64
	if info, err := c.disk.Stat(key); err == nil {
		prevSize = info.Size
	}

	if err := c.disk.Write(key, value); err != nil {
		c.count(func() { c.writeErrs++ })
		c.logger.Printf("cache: disk write failed for %s: %v", key, err)
		return translation.NewCacheIO("write", err)
	}

	c.mu.Lock()
	c.diskBytes += int64(len(value)) - prevSize
	over := c.diskBytes > c.cfg.DiskMaxBytes
	c.mu.Unlock()

	if over {
		if err := c.evictDisk(); err != nil {
			c.logger.Printf("cache: eviction pass failed: %v", err)
			return translation.NewCacheIO("evict", err)
		}
	}
	return nil
}

// Clear empties both tiers.
func (c *TieredCache) Clear() error {
	c.memory.clear()

	keys, err := c.disk.ListKeys()
	if err != nil {
		return translation.NewCacheIO("list", err)
	}
	for _, key := range keys {
		if err := c.disk.Delete(key); err != nil {
			return translation.NewCacheIO("delete", err)
		}
	}

	c.mu.Lock()
	c.diskBytes = 0
	c.mu.Unlock()
	return nil
}

// GetStats returns a snapshot of cache counters.
func (c *TieredCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		MemoryItems:  c.memory.len(),
		MemoryBytes:  c.memory.bytes(),
		DiskBytes:    c.diskBytes,
		Hits:         c.hits,
		Misses:       c.misses,
		Evictions:    c.evictions,
		WriteErrors:  c.writeErrs,
		ReadErrors:   c.readErrs,
		DiskMaxBytes: c.cfg.DiskMaxBytes,
	}
}

// evictDisk deletes oldest-modified entries until usage drops to the
// hysteresis target (EvictToFraction of the budget), so one over-budget
// write does not cause an eviction on every write that follows.
func (c *TieredCache) evictDisk() error {
	keys, err := c.disk.ListKeys()
	if err != nil {
		return err
	}

	type aged struct {
		key     string
		size    int64
		modTime time.Time
	}

	entries := make([]aged, 0, len(keys))
	var total int64
	for _, key := range keys {
		info, err := c.disk.Stat(key)
		if err != nil {
			continue // deleted underneath us
		}
		entries = append(entries, aged{key: key, size: info.Size, modTime: info.ModTime})
		total += info.Size
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})

	target := int64(float64(c.cfg.DiskMaxBytes) * c.cfg.EvictToFraction)
	evicted := 0
	for _, entry := range entries {
		if total <= target {
			break
		}
		if err := c.disk.Delete(entry.key); err != nil {
			return err
		}
		c.memory.delete(entry.key)
		total -= entry.size
		evicted++
	}

	c.mu.Lock()
	c.diskBytes = total
	c.evictions += evicted
	c.mu.Unlock()

	c.logger.Printf("cache: evicted %d entries, disk usage now %dB", evicted, total)
	return nil
}

// scanDiskUsage sums the size of every stored blob.
func (c *TieredCache) scanDiskUsage() (int64, error) {
	keys, err := c.disk.ListKeys()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, key := range keys {
		info, err := c.disk.Stat(key)
		if err != nil {
			continue
		}
		total += info.Size
	}
	return total, nil
}

// count mutates a counter under the lock.
func (c *TieredCache) count(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}
