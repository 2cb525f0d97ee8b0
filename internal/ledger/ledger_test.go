package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"shardauth/internal/chainnode"
	"shardauth/internal/chainnode/mocks"
	"shardauth/internal/platform/metrics"
	"shardauth/internal/validator"
	"shardauth/pkg/digest"
	dErrors "shardauth/pkg/domain-errors"
	"shardauth/pkg/platform/sentinel"
)

type LedgerSuite struct {
	suite.Suite
	ctx      context.Context
	provider *chainnode.SimulatedProvider
	metrics  *metrics.Metrics
	ledger   *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.provider = chainnode.NewSimulated()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ledger = s.newLedger(NewMemoryBackend(), s.provider)
}

func (s *LedgerSuite) newLedger(backend Backend, provider *chainnode.SimulatedProvider, opts ...Option) *Ledger {
	pool, err := validator.NewPool(provider, validator.WithSource(rand.New(rand.NewPCG(1, 2))))
	s.Require().NoError(err)
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	}, opts...)
	l, err := New(s.ctx, backend, provider, pool, opts...)
	s.Require().NoError(err)
	return l
}

func alice() Registration {
	return Registration{Username: "alice", PasswordHash: "hash"}
}

// =============================================================================
// Genesis
// =============================================================================

func (s *LedgerSuite) TestGenesisIsLazy() {
	s.Empty(s.ledger.Blocks(s.ctx))

	_, err := s.ledger.Create(s.ctx, alice(), 1)
	s.Require().NoError(err)

	blocks := s.ledger.Blocks(s.ctx)
	s.Require().Len(blocks, 2)
	genesis := blocks[0]
	s.Equal(uint64(1), genesis.Index)
	s.Empty(genesis.PreviousHash)
	s.Zero(genesis.Nonce)
	s.Equal(GenesisPublicKey, genesis.PublicKey)
	s.Equal(GenesisPrivateKey, genesis.PrivateKey)
	s.JSONEq(`{"message":"Genesis Block"}`, string(genesis.Data))
}

func (s *LedgerSuite) TestGenesisHash() {
	_, err := s.ledger.Create(s.ctx, alice(), 0)
	s.Require().NoError(err)
	s.Equal(digestGenesis(), s.ledger.Blocks(s.ctx)[0].Hash)
	s.Len(digestGenesis(), 66)
}

// =============================================================================
// Create
// =============================================================================

func (s *LedgerSuite) TestCreate() {
	s.Run("first registration follows genesis", func() {
		block, err := s.ledger.Create(s.ctx, alice(), 1)
		s.Require().NoError(err)
		s.Equal(uint64(2), block.Index)
		s.Len(block.PrivateKey, 66)
		s.GreaterOrEqual(LeadingZeros(block.Hash), 1)

		var reg Registration
		s.Require().NoError(json.Unmarshal(block.Data, &reg))
		s.Equal("alice", reg.Username)

		addr, err := chainnode.AddressFromKey(block.PrivateKey)
		s.Require().NoError(err)
		s.Equal(block.PublicKey, string(addr))
	})

	s.Run("chain links and contiguous indexes", func() {
		for range 3 {
			_, err := s.ledger.Create(s.ctx, alice(), 1)
			s.Require().NoError(err)
		}
		blocks := s.ledger.Blocks(s.ctx)
		s.Require().Len(blocks, 5)
		for i, b := range blocks {
			s.Equal(uint64(i+1), b.Index)
			if i > 0 {
				s.Equal(blocks[i-1].Hash, b.PreviousHash)
				s.True(VerifyWork(b, 1))
			}
		}
	})

	s.Run("negative difficulty", func() {
		_, err := s.ledger.Create(s.ctx, alice(), -1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("metrics", func() {
		s.Equal(4.0, testutil.ToFloat64(s.metrics.BlocksAppended))
		s.GreaterOrEqual(testutil.ToFloat64(s.metrics.PowHashes), 4.0)
	})
}

func (s *LedgerSuite) TestCreate_Difficulty() {
	for _, d := range []int{0, 1, 2, 3} {
		block, err := s.ledger.Create(s.ctx, alice(), d)
		s.Require().NoError(err)
		s.GreaterOrEqual(LeadingZeros(block.Hash), d, "difficulty %d", d)
		s.True(VerifyWork(*block, d))
	}
}

func (s *LedgerSuite) TestCreate_ValidatorGate() {
	s.Run("empty validator set admits with zero approvals", func() {
		l := s.newLedger(NewMemoryBackend(), chainnode.NewSimulated(chainnode.WithAccounts(nil)))
		block, err := l.Create(s.ctx, alice(), 1)
		s.Require().NoError(err)
		s.Equal(uint64(2), block.Index)
	})

	s.Run("min quorum refuses blocks without enough approvals", func() {
		// 30% of 3 validators samples none
		provider := chainnode.NewSimulated(chainnode.WithAccounts(chainnode.DevAccounts[:3]))
		l := s.newLedger(NewMemoryBackend(), provider, WithMinQuorum(1))
		_, err := l.Create(s.ctx, alice(), 1)
		s.True(dErrors.HasCode(err, dErrors.CodeBlockValidation))

		// genesis exists, the refused block does not
		s.Len(l.Blocks(s.ctx), 1)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.AdmissionRefusals))
	})

	s.Run("min quorum met by the sample", func() {
		l := s.newLedger(NewMemoryBackend(), s.provider, WithMinQuorum(3))
		_, err := l.Create(s.ctx, alice(), 1)
		s.NoError(err)
	})
}

func (s *LedgerSuite) TestCreate_Concurrent() {
	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.Create(s.ctx, alice(), 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	blocks := s.ledger.Blocks(s.ctx)
	s.Require().Len(blocks, n+1)
	indexes := make([]int, len(blocks))
	for i, b := range blocks {
		indexes[i] = int(b.Index)
		if i > 0 {
			s.Equal(blocks[i-1].Hash, b.PreviousHash)
		}
	}
	s.True(sort.IntsAreSorted(indexes))
	s.Equal(n+1, indexes[len(indexes)-1])
}

func (s *LedgerSuite) TestCreate_CanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.ledger.Create(ctx, alice(), 1)
	s.Error(err)
}

// =============================================================================
// Lookup and snapshots
// =============================================================================

func (s *LedgerSuite) TestFindByHashedIndex() {
	created, err := s.ledger.Create(s.ctx, alice(), 1)
	s.Require().NoError(err)

	s.Run("found", func() {
		found, err := s.ledger.FindByHashedIndex(s.ctx, digest.SHA256Hex("2"))
		s.Require().NoError(err)
		s.Equal(created.Hash, found.Hash)
		s.Equal(created.PrivateKey, found.PrivateKey)
	})

	s.Run("genesis is addressable", func() {
		found, err := s.ledger.FindByHashedIndex(s.ctx, digest.SHA256Hex("1"))
		s.Require().NoError(err)
		s.Equal(GenesisPrivateKey, found.PrivateKey)
	})

	s.Run("raw index does not match", func() {
		_, err := s.ledger.FindByHashedIndex(s.ctx, "2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown", func() {
		_, err := s.ledger.FindByHashedIndex(s.ctx, digest.SHA256Hex("99"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *LedgerSuite) TestBlocksIsSnapshot() {
	_, err := s.ledger.Create(s.ctx, alice(), 0)
	s.Require().NoError(err)

	snap := s.ledger.Blocks(s.ctx)
	snap[1].Hash = "tampered"
	snap[1].Data[0] = 'X'

	again := s.ledger.Blocks(s.ctx)
	s.NotEqual("tampered", again[1].Hash)
	s.True(VerifyWork(again[1], 0))
}

func (s *LedgerSuite) TestPublicHidesPrivateKey() {
	block, err := s.ledger.Create(s.ctx, alice(), 0)
	s.Require().NoError(err)

	out, err := json.Marshal(block.Public())
	s.Require().NoError(err)
	s.NotContains(string(out), "privateKey")
	s.NotContains(string(out), block.PrivateKey)
}

// =============================================================================
// Persistence
// =============================================================================

func (s *LedgerSuite) TestReloadFromBackend() {
	backend := NewMemoryBackend()
	l := s.newLedger(backend, s.provider)
	for range 3 {
		_, err := l.Create(s.ctx, alice(), 1)
		s.Require().NoError(err)
	}

	reloaded := s.newLedger(backend, s.provider)
	s.Equal(l.Blocks(s.ctx), reloaded.Blocks(s.ctx))

	next, err := reloaded.Create(s.ctx, alice(), 1)
	s.Require().NoError(err)
	s.Equal(uint64(5), next.Index)
}

func (s *LedgerSuite) TestNew_RejectsCorruptChain() {
	backend := NewMemoryBackend()
	l := s.newLedger(backend, s.provider)
	_, err := l.Create(s.ctx, alice(), 1)
	s.Require().NoError(err)

	blocks, err := backend.Load(s.ctx)
	s.Require().NoError(err)
	blocks[1].Data = json.RawMessage(`{"username":"mallory","passwordHash":"x"}`)

	tampered := NewMemoryBackend()
	for _, b := range blocks {
		s.Require().NoError(tampered.Append(s.ctx, b))
	}

	pool, err := validator.NewPool(s.provider)
	s.Require().NoError(err)
	_, err = New(s.ctx, tampered, s.provider, pool)
	s.ErrorIs(err, ErrCorruptChain)
}

func TestNew_RequiresDependencies(t *testing.T) {
	ctx := context.Background()
	provider := chainnode.NewSimulated()
	pool, err := validator.NewPool(provider)
	require.NoError(t, err)

	_, err = New(ctx, nil, provider, pool)
	assert.Error(t, err)
	_, err = New(ctx, NewMemoryBackend(), nil, pool)
	assert.Error(t, err)
	_, err = New(ctx, NewMemoryBackend(), provider, nil)
	assert.Error(t, err)
}

func TestCreate_WalletFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().CreateWallet(gomock.Any()).Return(chainnode.Wallet{}, errors.New("node down"))

	pool, err := validator.NewPool(chainnode.NewSimulated())
	require.NoError(t, err)
	l, err := New(context.Background(), NewMemoryBackend(), provider, pool,
		WithClock(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)

	_, err = l.Create(context.Background(), alice(), 1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeProviderUnavailable))
	assert.Len(t, l.Blocks(context.Background()), 1)
}
