package redis

import (
	"context"
	"sync"
	"time"
)

// MemoryCache 进程内的 AsyncCacheService 实现
// 用于测试以及未部署 Redis 的单机调试，SubmitTask 同步执行
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value    string
	expireAt time.Time // 零值表示永不过期
}

// NewMemoryCache 创建空的进程内缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expireAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.lookup(key)
	if !ok {
		return "", nil
	}
	return item.value, nil
}

func (m *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	return ok, nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *MemoryCache) SubmitTask(action func()) {
	action()
}

// lookup 调用方持有锁；过期的键顺手清掉
func (m *MemoryCache) lookup(key string) (memoryItem, bool) {
	item, ok := m.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expireAt.IsZero() && !m.now().Before(item.expireAt) {
		delete(m.items, key)
		return memoryItem{}, false
	}
	return item, true
}

var _ AsyncCacheService = (*MemoryCache)(nil)
