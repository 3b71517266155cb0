package cache_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voicetra/pipeline/cache"
	"github.com/voicetra/pipeline/cache/backends/fs"
	"github.com/voicetra/pipeline/translation"
)

func newDiskCache(t *testing.T, cfg cache.Config) (*cache.TieredCache, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := fs.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	c, err := cache.NewTieredCache(cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	return c, dir
}

func TestPutThenGetRoundTrip(t *testing.T) {
	c, _ := newDiskCache(t, cache.Config{})

	value := []byte(`{"translated_text":"hola"}`)
	assert.NoError(t, c.Put("abc123", value))

	got, ok := c.Get("abc123")
	assert.True(t, ok)
	assert.Equal(t, value, got)
}

func TestGetMissesUnknownKey(t *testing.T) {
	c, _ := newDiskCache(t, cache.Config{})

	_, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, 1, c.GetStats().Misses)
	assert.Equal(t, 0, c.GetStats().ReadErrors, "a plain miss is not a read error")
}

func TestDiskHitIsPromotedToMemory(t *testing.T) {
	cfg := cache.Config{}
	first, dir := newDiskCache(t, cfg)
	value := []byte("cached artifact")
	assert.NoError(t, first.Put("key", value))

	// A fresh cache over the same directory starts with a cold memory tier.
	store, err := fs.NewStore(dir)
	assert.NoError(t, err)
	second, err := cache.NewTieredCache(cfg, store)
	assert.NoError(t, err)

	got, ok := second.Get("key")
	assert.True(t, ok)
	assert.Equal(t, value, got)
	assert.Equal(t, 1, second.GetStats().MemoryItems, "disk hit must be promoted")
}

func TestDiskUsageSurvivesRestart(t *testing.T) {
	cfg := cache.Config{DiskMaxBytes: 1 << 20}
	first, dir := newDiskCache(t, cfg)
	assert.NoError(t, first.Put("a", bytes.Repeat([]byte("x"), 300)))
	assert.NoError(t, first.Put("b", bytes.Repeat([]byte("y"), 200)))

	store, err := fs.NewStore(dir)
	assert.NoError(t, err)
	second, err := cache.NewTieredCache(cfg, store)
	assert.NoError(t, err)

	assert.Equal(t, int64(500), second.GetStats().DiskBytes, "accounting must be rebuilt from disk")
}

func TestOverBudgetWriteEvictsOldestFirst(t *testing.T) {
	cfg := cache.Config{DiskMaxBytes: 1000, EvictToFraction: 0.75}
	c, dir := newDiskCache(t, cfg)

	entry := bytes.Repeat([]byte("x"), 150)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		key := fmt.Sprintf("k%d", i)
		assert.NoError(t, c.Put(key, entry))
		// Pin distinct mtimes so eviction age order is unambiguous.
		path := filepath.Join(dir, key+".blob")
		assert.NoError(t, os.Chtimes(path, base, base.Add(time.Duration(i)*time.Second)))
	}

	// 7th entry pushes usage to 1050B; eviction must drop to <= 750B by
	// removing the oldest entries.
	assert.NoError(t, c.Put("k6", entry))

	stats := c.GetStats()
	assert.LessOrEqual(t, stats.DiskBytes, int64(750))
	assert.Equal(t, 2, stats.Evictions)

	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get("k1")
	assert.False(t, ok, "second-oldest entry should be evicted")
	_, ok = c.Get("k6")
	assert.True(t, ok, "newest entry must survive eviction")
	_, ok = c.Get("k5")
	assert.True(t, ok)
}

func TestOversizeValueStillServedFromDisk(t *testing.T) {
	c, _ := newDiskCache(t, cache.Config{MemoryMaxBytes: 64})

	big := bytes.Repeat([]byte("x"), 256)
	assert.NoError(t, c.Put("big", big))

	got, ok := c.Get("big")
	assert.True(t, ok)
	assert.Equal(t, big, got)
}

func TestClearEmptiesBothTiers(t *testing.T) {
	c, _ := newDiskCache(t, cache.Config{})
	assert.NoError(t, c.Put("a", []byte("1")))
	assert.NoError(t, c.Put("b", []byte("2")))

	assert.NoError(t, c.Clear())

	_, ok := c.Get("a")
	assert.False(t, ok)
	stats := c.GetStats()
	assert.Equal(t, 0, stats.MemoryItems)
	assert.Equal(t, int64(0), stats.DiskBytes)
}

// failingStore simulates a broken disk tier.
type failingStore struct {
	readErr  error
	writeErr error
}

func (f *failingStore) Read(key string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return nil, os.ErrNotExist
}

func (f *failingStore) Write(key string, data []byte) error { return f.writeErr }
func (f *failingStore) ListKeys() ([]string, error)         { return nil, nil }
func (f *failingStore) Delete(key string) error             { return nil }
func (f *failingStore) Stat(key string) (cache.BlobInfo, error) {
	return cache.BlobInfo{}, os.ErrNotExist
}

func TestDiskReadFailureDegradesToMiss(t *testing.T) {
	store := &failingStore{readErr: errors.New("disk on fire")}
	c, err := cache.NewTieredCache(cache.Config{}, store)
	assert.NoError(t, err)

	_, ok := c.Get("key")
	assert.False(t, ok, "read failure must look like a miss, never an error")
	assert.Equal(t, 1, c.GetStats().ReadErrors)
}

func TestDiskWriteFailureIsNonFatal(t *testing.T) {
	store := &failingStore{writeErr: errors.New("disk full")}
	c, err := cache.NewTieredCache(cache.Config{}, store)
	assert.NoError(t, err)

	putErr := c.Put("key", []byte("value"))
	assert.True(t, translation.IsKind(putErr, translation.KindCacheIO))
	assert.Equal(t, 1, c.GetStats().WriteErrors)

	// The memory tier still holds the value for this process lifetime.
	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), got)
}
