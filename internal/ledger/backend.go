package ledger

import (
	"context"
	"fmt"
	"sync"

	"shardauth/pkg/platform/sentinel"
)

// Backend persists admitted blocks. Append must reject any block whose index
// is not exactly one past the stored tail.
type Backend interface {
	Append(ctx context.Context, b Block) error
	Load(ctx context.Context) ([]Block, error)
	Close() error
}

// MemoryBackend keeps blocks in process memory only.
type MemoryBackend struct {
	mu     sync.Mutex
	blocks []Block
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Append(_ context.Context, b Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.Index != uint64(len(m.blocks))+1 {
		return fmt.Errorf("append block %d after %d: %w", b.Index, len(m.blocks), sentinel.ErrConflict)
	}
	m.blocks = append(m.blocks, b.clone())
	return nil
}

func (m *MemoryBackend) Load(_ context.Context) ([]Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Block, len(m.blocks))
	for i, b := range m.blocks {
		out[i] = b.clone()
	}
	return out, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
