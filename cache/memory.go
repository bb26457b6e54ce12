package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time // 零值表示永不过期
}

// MemoryStore 进程内缓存 - Redis不可用时的降级方案
// TTL为惰性检查：仅在读取时判断过期，没有后台清理协程
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	order   []string // 插入顺序，用于近似LRU淘汰
	maxSize int
}

// NewMemoryStore 创建有界内存缓存
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 2000
	}
	return &MemoryStore{
		entries: make(map[string]memEntry),
		maxSize: maxSize,
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if m.expired(e, time.Now()) {
		m.remove(key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		if len(m.entries) >= m.maxSize {
			m.cleanup()
		}
		m.order = append(m.order, key)
	}

	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if m.expired(e, time.Now()) {
		m.remove(key)
		return false, nil
	}
	return true, nil
}

// Keys 返回匹配pattern的key列表，pattern为glob风格（如 kline_storage:000001.SZ:*）
func (m *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var keys []string
	for k, e := range m.entries {
		if m.expired(e, now) {
			continue
		}
		if pattern == "*" {
			keys = append(keys, k)
			continue
		}
		// 缓存key不含'/'，path.Match即fnmatch语义
		if ok, err := path.Match(pattern, k); err == nil && ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *MemoryStore) FlushAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memEntry)
	m.order = nil
	return nil
}

func (m *MemoryStore) Size(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *MemoryStore) Backend() string { return "memory" }

func (m *MemoryStore) Close() error { return nil }

// cleanup 容量满时先清理过期项，仍然超限则按插入顺序淘汰最旧的20%
// 调用方必须持有锁
func (m *MemoryStore) cleanup() {
	now := time.Now()
	live := m.order[:0]
	for _, k := range m.order {
		e, ok := m.entries[k]
		if !ok {
			continue
		}
		if m.expired(e, now) {
			delete(m.entries, k)
			continue
		}
		live = append(live, k)
	}
	m.order = live

	if len(m.entries) < m.maxSize {
		return
	}

	toRemove := len(m.order) / 5
	if toRemove < 1 {
		toRemove = 1
	}
	for _, k := range m.order[:toRemove] {
		delete(m.entries, k)
	}
	m.order = append([]string(nil), m.order[toRemove:]...)
}

func (m *MemoryStore) expired(e memEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// remove 调用方必须持有锁
func (m *MemoryStore) remove(key string) {
	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
