package pcoll

import (
	"context"
	"fmt"
	"sync"
)

// memoryPersist holds node blobs in a map, keyed by their
// content-hash names.
type memoryPersist struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewInMemoryStore returns a Persist that keeps node blobs in memory,
// for tests and examples. Snapshots stored through it live only as
// long as the process.
func NewInMemoryStore() Persist {
	return &memoryPersist{blobs: map[string][]byte{}}
}

// Store records the blob under its name. Names are derived from the
// blob's content, so rewriting an existing name is harmless.
func (p *memoryPersist) Store(ctx context.Context, name string, value []byte) error {
	p.mu.Lock()
	p.blobs[name] = value
	p.mu.Unlock()
	return nil
}

// Load returns the blob stored under name.
func (p *memoryPersist) Load(ctx context.Context, name string) ([]byte, error) {
	p.mu.Lock()
	value, ok := p.blobs[name]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no stored node %s", name)
	}
	return value, nil
}
