package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"formintake/internal/registration/models"
)

// MemoryBackend is an in-process cache used when Redis is not configured.
type MemoryBackend struct {
	c *gocache.Cache
}

// NewMemoryBackend creates a backend whose expired entries are purged every cleanup.
func NewMemoryBackend(defaultTTL, cleanup time.Duration) *MemoryBackend {
	return &MemoryBackend{c: gocache.New(defaultTTL, cleanup)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (*models.Registration, bool, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.(*models.Registration).Clone(), true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, reg *models.Registration, ttl time.Duration) error {
	b.c.Set(key, reg.Clone(), ttl)
	return nil
}

// Len reports the number of cached entries, expired ones included until cleanup.
func (b *MemoryBackend) Len() int {
	return b.c.ItemCount()
}
