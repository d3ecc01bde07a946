package repository

import (
	"context"
	"sync"
	"time"

	"stocksync/internal/models"
)

type memoryEntry struct {
	product   models.CachedProduct
	expiresAt time.Time
}

// MemoryProductCache is the in-process fallback for the product
// lookup layer, used when Redis is disabled or unavailable.
type MemoryProductCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

func NewMemoryProductCache(ttl time.Duration) *MemoryProductCache {
	return &MemoryProductCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (m *MemoryProductCache) Get(_ context.Context, site, sku string) (*models.CachedProduct, error) {
	m.mu.RLock()
	entry, ok := m.entries[productKey(site, sku)]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, productKey(site, sku))
		m.mu.Unlock()
		return nil, nil
	}
	product := entry.product
	return &product, nil
}

func (m *MemoryProductCache) Set(_ context.Context, product *models.CachedProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[productKey(product.Site, product.SKU)] = memoryEntry{
		product:   *product,
		expiresAt: time.Now().Add(m.ttl),
	}
	return nil
}

func (m *MemoryProductCache) Invalidate(_ context.Context, site, sku string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, productKey(site, sku))
	return nil
}
