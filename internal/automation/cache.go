package automation

import (
	"context"
	"sync"
)

// ProcessedCache remembers which queued filenames have already been picked up,
// so a file left behind after a failed move is not reprocessed on every tick.
// Forced runs bypass the cache but still record the filenames they touch.
type ProcessedCache interface {
	Contains(ctx context.Context, filename string) bool
	Add(ctx context.Context, filename string)
	Clear(ctx context.Context) int
	Size(ctx context.Context) int
}

// MemoryProcessedCache is the in-process fallback used when Redis is not
// configured. The cache is lost on restart, which is acceptable because
// successfully routed files leave the queue directory anyway.
type MemoryProcessedCache struct {
	mu    sync.RWMutex
	files map[string]struct{}
}

func NewMemoryProcessedCache() *MemoryProcessedCache {
	return &MemoryProcessedCache{files: make(map[string]struct{})}
}

func (c *MemoryProcessedCache) Contains(_ context.Context, filename string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.files[filename]
	return ok
}

func (c *MemoryProcessedCache) Add(_ context.Context, filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[filename] = struct{}{}
}

func (c *MemoryProcessedCache) Clear(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cleared := len(c.files)
	c.files = make(map[string]struct{})
	return cleared
}

func (c *MemoryProcessedCache) Size(_ context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}
