package cache

import (
	"container/list"
	"sync"
)

// memoryTier is an LRU cache bounded by both item count and total bytes.
// It only ever holds a subset of what the disk tier holds; evicting from it
// loses nothing durable.
type memoryTier struct {
	maxItems int
	maxBytes int64

	mu       sync.Mutex
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	curBytes int64
}

type memoryEntry struct {
	key   string
	value []byte
}

func newMemoryTier(maxItems int, maxBytes int64) *memoryTier {
	return &memoryTier{
		maxItems: maxItems,
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// get returns the value and marks it most recently used.
func (m *memoryTier) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return nil, false
	}

	m.order.MoveToFront(elem)
	return elem.Value.(*memoryEntry).value, true
}

// put inserts or refreshes a value, evicting least-recently-used entries
// until both bounds hold. Values larger than the byte budget are not cached.
func (m *memoryTier) put(key string, value []byte) {
	if int64(len(value)) > m.maxBytes {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		m.curBytes += int64(len(value)) - int64(len(entry.value))
		entry.value = value
		m.order.MoveToFront(elem)
	} else {
		elem := m.order.PushFront(&memoryEntry{key: key, value: value})
		m.entries[key] = elem
		m.curBytes += int64(len(value))
	}

	for (m.order.Len() > m.maxItems || m.curBytes > m.maxBytes) && m.order.Len() > 0 {
		m.evictOldest()
	}
}

// delete removes a single entry if present.
func (m *memoryTier) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		m.removeElement(elem)
	}
}

// clear empties the tier.
func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order.Init()
	m.entries = make(map[string]*list.Element)
	m.curBytes = 0
}

// len returns the number of entries held.
func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// bytes returns the total byte size held.
func (m *memoryTier) bytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curBytes
}

// evictOldest removes the least recently used entry.
// Note: caller must hold the lock.
func (m *memoryTier) evictOldest() {
	if elem := m.order.Back(); elem != nil {
		m.removeElement(elem)
	}
}

// removeElement unlinks one element.
// Note: caller must hold the lock.
func (m *memoryTier) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	m.order.Remove(elem)
	delete(m.entries, entry.key)
	m.curBytes -= int64(len(entry.value))
}
