package ledger

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardauth/internal/chainnode"
	"shardauth/internal/validator"
	"shardauth/pkg/platform/sentinel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBadgerBackend_Reload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	provider := chainnode.NewSimulated()
	pool, err := validator.NewPool(provider, validator.WithSource(rand.New(rand.NewPCG(3, 4))))
	require.NoError(t, err)

	backend, err := OpenBadger(dir, discardLogger())
	require.NoError(t, err)
	l, err := New(ctx, backend, provider, pool, WithLogger(discardLogger()))
	require.NoError(t, err)
	for range 3 {
		_, err := l.Create(ctx, Registration{Username: "alice", PasswordHash: "h"}, 1)
		require.NoError(t, err)
	}
	want := l.Blocks(ctx)
	require.NoError(t, l.Close())

	backend, err = OpenBadger(dir, discardLogger())
	require.NoError(t, err)
	reloaded, err := New(ctx, backend, provider, pool, WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reloaded.Close() })

	got := reloaded.Blocks(ctx)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Index, got[i].Index)
		assert.Equal(t, want[i].Hash, got[i].Hash)
		assert.Equal(t, want[i].PreviousHash, got[i].PreviousHash)
		assert.Equal(t, want[i].PrivateKey, got[i].PrivateKey)
		assert.JSONEq(t, string(want[i].Data), string(got[i].Data))
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
	}

	next, err := reloaded.Create(ctx, Registration{Username: "bob", PasswordHash: "h"}, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), next.Index)
}

func TestBadgerBackend_AppendOutOfOrder(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenBadger("", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	require.NoError(t, backend.Append(ctx, Block{Index: 1, Hash: "0x1"}))
	err = backend.Append(ctx, Block{Index: 3, Hash: "0x3"})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	err = backend.Append(ctx, Block{Index: 1, Hash: "0x1"})
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	blocks, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestMemoryBackend_AppendOutOfOrder(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	assert.ErrorIs(t, backend.Append(ctx, Block{Index: 2}), sentinel.ErrConflict)
	require.NoError(t, backend.Append(ctx, Block{Index: 1}))
	assert.NoError(t, backend.Append(ctx, Block{Index: 2}))
}
