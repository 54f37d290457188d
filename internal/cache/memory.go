package cache

import (
	"container/list"
	"sync"
)

// Memory is an LRU cache bounded by the total size of its values.
type Memory struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[string]*list.Element
	order    *list.List // front is most recently used
	stats    Stats
}

type memoryEntry struct {
	key   string
	value []byte
}

// NewMemory creates a cache holding at most capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the value for key and marks it recently used.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	m.order.MoveToFront(elem)
	m.stats.Hits++
	return elem.Value.(*memoryEntry).value, true
}

// Put stores value, evicting least recently used entries to make room.
func (m *Memory) Put(key string, value []byte) error {
	n := int64(len(value))
	if n > m.capacity {
		return ErrItemTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
	for m.size+n > m.capacity {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.remove(oldest)
		m.stats.Evictions++
	}

	m.items[key] = m.order.PushFront(&memoryEntry{key: key, value: value})
	m.size += n
	return nil
}

// Delete removes key.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
}

// Contains reports whether key is cached without touching recency.
func (m *Memory) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

// Stats returns the cache counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Capacity = m.capacity
	s.Size = m.size
	s.Items = len(m.items)
	return s
}

func (m *Memory) remove(elem *list.Element) {
	entry := m.order.Remove(elem).(*memoryEntry)
	delete(m.items, entry.key)
	m.size -= int64(len(entry.value))
}
