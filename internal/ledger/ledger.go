package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shardauth/internal/chainnode"
	"shardauth/internal/platform/metrics"
	"shardauth/internal/validator"
	"shardauth/pkg/digest"
	dErrors "shardauth/pkg/domain-errors"
	"shardauth/pkg/platform/sentinel"
)

// ErrCorruptChain is returned by New when persisted blocks do not form a
// valid chain.
var ErrCorruptChain = errors.New("corrupt chain")

// WalletIssuer creates the keypair embedded in each new block.
type WalletIssuer interface {
	CreateWallet(ctx context.Context) (chainnode.Wallet, error)
}

// ValidatorSampler lists validators and draws the subset that re-verifies a
// candidate block. *validator.Pool satisfies it.
type ValidatorSampler interface {
	List(ctx context.Context) ([]chainnode.Address, error)
	Sample(validators []chainnode.Address, percentage int) []chainnode.Address
}

// Ledger owns the chain. Create is serialized by an append lock held from
// the tail read to the append, so indexes stay contiguous under concurrency.
type Ledger struct {
	appendMu sync.Mutex

	mu     sync.RWMutex
	blocks []Block

	backend          Backend
	wallets          WalletIssuer
	validators       ValidatorSampler
	samplePercentage int
	minQuorum        int
	now              func() time.Time
	logger           *slog.Logger
	metrics          *metrics.Metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithMetrics records mining and admission metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithSamplePercentage sets the share of validators polled per block.
func WithSamplePercentage(pct int) Option {
	return func(l *Ledger) {
		l.samplePercentage = pct
	}
}

// WithMinQuorum requires at least n approving validators on top of the
// sampled majority. Zero admits blocks even when no validator was sampled.
func WithMinQuorum(n int) Option {
	return func(l *Ledger) {
		l.minQuorum = max(n, 0)
	}
}

// WithClock overrides the block timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New loads the persisted chain from backend and verifies its links.
func New(ctx context.Context, backend Backend, wallets WalletIssuer, validators ValidatorSampler, opts ...Option) (*Ledger, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if wallets == nil {
		return nil, errors.New("wallet issuer is required")
	}
	if validators == nil {
		return nil, errors.New("validator sampler is required")
	}
	l := &Ledger{
		backend:          backend,
		wallets:          wallets,
		validators:       validators,
		samplePercentage: validator.DefaultSamplePercentage,
		now:              time.Now,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	blocks, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if err := verifyChain(blocks); err != nil {
		return nil, err
	}
	l.blocks = blocks
	l.logger.InfoContext(ctx, "ledger loaded", "blocks", len(blocks))
	return l, nil
}

func verifyChain(blocks []Block) error {
	for i, b := range blocks {
		if b.Index != uint64(i)+1 {
			return fmt.Errorf("%w: block at position %d has index %d", ErrCorruptChain, i, b.Index)
		}
		if i == 0 {
			continue
		}
		if b.PreviousHash != blocks[i-1].Hash {
			return fmt.Errorf("%w: block %d does not link to block %d", ErrCorruptChain, b.Index, i)
		}
		if !VerifyWork(b, 0) {
			return fmt.Errorf("%w: block %d hash does not match its content", ErrCorruptChain, b.Index)
		}
	}
	return nil
}

// Create mines a block carrying payload at difficulty, has a sample of
// validators re-verify it and appends it when a majority of the sample (and
// at least the minimum quorum) approves. The returned block includes the
// owner's private key.
func (l *Ledger) Create(ctx context.Context, payload any, difficulty int) (*Block, error) {
	if difficulty < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "difficulty must be >= 0")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "payload is not serializable")
	}

	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	tail, err := l.ensureGenesis(ctx)
	if err != nil {
		return nil, err
	}

	wallet, err := l.wallets.CreateWallet(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to create wallet")
	}

	block := Block{
		Index:        tail.Index + 1,
		Timestamp:    l.now().UTC(),
		Data:         data,
		PreviousHash: tail.Hash,
		PublicKey:    string(wallet.Address),
		PrivateKey:   wallet.PrivateKey,
	}
	hashes, err := Mine(ctx, &block, difficulty)
	l.metrics.AddPowHashes(hashes)
	if err != nil {
		return nil, err
	}

	all, err := l.validators.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to list validators")
	}
	selected := l.validators.Sample(all, l.samplePercentage)
	approvals, err := reverify(ctx, block, difficulty, selected)
	if err != nil {
		return nil, err
	}

	threshold := validator.MajorityThreshold(len(selected))
	if approvals < threshold || approvals < l.minQuorum {
		l.metrics.IncrementAdmissionRefusals()
		l.logger.WarnContext(ctx, "block refused by validators",
			"index", block.Index,
			"approvals", approvals,
			"selected", len(selected),
			"min_quorum", l.minQuorum,
		)
		return nil, dErrors.New(dErrors.CodeBlockValidation, "block validation failed")
	}

	if err := l.backend.Append(ctx, block); err != nil {
		return nil, fmt.Errorf("persist block %d: %w", block.Index, err)
	}
	l.mu.Lock()
	l.blocks = append(l.blocks, block)
	l.mu.Unlock()

	l.metrics.IncrementBlocksAppended()
	l.logger.InfoContext(ctx, "block admitted",
		"index", block.Index,
		"hash", block.Hash,
		"nonce", block.Nonce,
		"approvals", approvals,
		"selected", len(selected),
	)
	out := block.clone()
	return &out, nil
}

// reverify has every selected validator check the work concurrently and
// returns how many approved.
func reverify(ctx context.Context, block Block, difficulty int, selected []chainnode.Address) (int, error) {
	results := make([]bool, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = VerifyWork(block, difficulty)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("validator re-verification: %w", err)
	}
	approvals := 0
	for _, ok := range results {
		if ok {
			approvals++
		}
	}
	return approvals, nil
}

// ensureGenesis creates block 1 on first use. Callers hold appendMu.
func (l *Ledger) ensureGenesis(ctx context.Context) (Block, error) {
	l.mu.RLock()
	n := len(l.blocks)
	var tail Block
	if n > 0 {
		tail = l.blocks[n-1]
	}
	l.mu.RUnlock()
	if n > 0 {
		return tail, nil
	}

	data, err := json.Marshal(GenesisPayload{Message: GenesisMessage})
	if err != nil {
		return Block{}, err
	}
	genesis := Block{
		Index:      1,
		Timestamp:  l.now().UTC(),
		Data:       data,
		Hash:       digestGenesis(),
		PublicKey:  GenesisPublicKey,
		PrivateKey: GenesisPrivateKey,
	}
	if err := l.backend.Append(ctx, genesis); err != nil {
		return Block{}, fmt.Errorf("persist genesis block: %w", err)
	}
	l.mu.Lock()
	l.blocks = append(l.blocks, genesis)
	l.mu.Unlock()
	l.logger.InfoContext(ctx, "genesis block added", "hash", genesis.Hash)
	return genesis, nil
}

// Blocks returns a snapshot of the chain in index order.
func (l *Ledger) Blocks(_ context.Context) []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, len(l.blocks))
	for i, b := range l.blocks {
		out[i] = b.clone()
	}
	return out
}

// FindByHashedIndex returns the block whose sha256(decimal index) equals
// hashedID.
func (l *Ledger) FindByHashedIndex(_ context.Context, hashedID string) (*Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, b := range l.blocks {
		if digest.SHA256Hex(strconv.FormatUint(b.Index, 10)) == hashedID {
			out := b.clone()
			return &out, nil
		}
	}
	return nil, fmt.Errorf("block for %s: %w", hashedID, sentinel.ErrNotFound)
}

// Close releases the backend.
func (l *Ledger) Close() error {
	return l.backend.Close()
}
