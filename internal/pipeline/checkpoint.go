package pipeline

import (
	"context"
	"sync"
	"time"
)

// CheckpointStore remembers the newest published alert time of each source.
type CheckpointStore interface {
	Since(ctx context.Context, source string) (time.Time, bool, error)
	Advance(ctx context.Context, source string, t time.Time) error
}

// MemoryCheckpoints is a CheckpointStore that forgets everything on restart.
type MemoryCheckpoints struct {
	mu sync.Mutex
	m  map[string]time.Time
}

func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{m: make(map[string]time.Time)}
}

func (c *MemoryCheckpoints) Since(_ context.Context, source string) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.m[source]
	return t, ok, nil
}

// Advance moves the checkpoint forward. An older t is ignored.
func (c *MemoryCheckpoints) Advance(_ context.Context, source string, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.m[source]; !ok || t.After(cur) {
		c.m[source] = t
	}
	return nil
}
