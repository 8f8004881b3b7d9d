package websearch

import (
	"sync"
	"time"
)

// Cache TTL-кэш разобранных страниц живого поиска.
// Повторные описания в одном RFQ не должны дергать сайт поставщика.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	skus      []string
	expiresAt time.Time
}

// NewCache создает кэш с заданным TTL
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get возвращает запись, если она есть и не истекла.
// Истекшие записи удаляются лениво при обращении.
func (c *Cache) Get(key string) ([]string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.skus, true
}

// Set сохраняет запись с TTL кэша
func (c *Cache) Set(key string, skus []string) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		skus:      skus,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Len возвращает количество записей, включая истекшие
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
