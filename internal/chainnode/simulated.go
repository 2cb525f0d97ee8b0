package chainnode

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// DevAccounts are the deterministic accounts of a ganache node started with
// the default mnemonic. The first one is the well-known challenge signer.
var DevAccounts = []Address{
	"0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
	"0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0",
	"0x22d491Bde2303f2f43325b2108D26f1eAbA1e32b",
	"0xE11BA2b4D45Eaed5996Cd0823791E0C93114882d",
	"0xd03ea8624C8C5987235048901fB614fDcA89b117",
	"0x95cED938F7991cd0dFcb48F0a06a40FA1aF46EBC",
	"0x3E5e9111Ae8eB78Fe1CC3bb8915d5D461F3Ef9A9",
	"0x28a8746e75304c0780E011BEd21C72cD78cd535E",
	"0xACa94ef8bD5ffEE41947b4585a84BdA5a3d3DA6E",
	"0x1dF62f291b2E969fB0849d99D9Ce41e2F137006e",
}

// defaultRetainedBlocks matches the RPC provider's default block window.
const defaultRetainedBlocks = 50

// SimulatedProvider is an in-process chain node. Every LatestBlock call seals
// a new empty block so successive challenge tokens differ. Only the most
// recent blocks are kept.
type SimulatedProvider struct {
	mu       sync.Mutex
	accounts []Address
	blocks   []BlockHeader
	height   uint64
	retain   int
	now      func() time.Time
}

// SimulatedOption configures a SimulatedProvider.
type SimulatedOption func(*SimulatedProvider)

// WithAccounts replaces the default account list. An empty list simulates a
// node with no validators.
func WithAccounts(accts []Address) SimulatedOption {
	return func(p *SimulatedProvider) {
		p.accounts = append([]Address(nil), accts...)
	}
}

// WithRetainedBlocks caps how many recent blocks the provider keeps.
func WithRetainedBlocks(n int) SimulatedOption {
	return func(p *SimulatedProvider) {
		if n > 0 {
			p.retain = n
		}
	}
}

// WithClock overrides the block timestamp source.
func WithClock(now func() time.Time) SimulatedOption {
	return func(p *SimulatedProvider) {
		p.now = now
	}
}

// NewSimulated returns a provider seeded with DevAccounts and a genesis block.
func NewSimulated(opts ...SimulatedOption) *SimulatedProvider {
	p := &SimulatedProvider{
		accounts: append([]Address(nil), DevAccounts...),
		retain:   defaultRetainedBlocks,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.blocks = []BlockHeader{p.seal(0)}
	return p
}

func (p *SimulatedProvider) seal(number uint64) BlockHeader {
	prev := ""
	if len(p.blocks) > 0 {
		prev = p.blocks[len(p.blocks)-1].Hash
	}
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s|%d", prev, number)))
	return BlockHeader{
		Number:    number,
		Hash:      hash.Hex(),
		Timestamp: p.now().UTC(),
	}
}

func (p *SimulatedProvider) ListAccounts(ctx context.Context) ([]Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Address(nil), p.accounts...), nil
}

func (p *SimulatedProvider) LatestBlock(ctx context.Context) (BlockHeader, error) {
	if err := ctx.Err(); err != nil {
		return BlockHeader{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.height++
	next := p.seal(p.height)
	p.blocks = append(p.blocks, next)
	if extra := len(p.blocks) - p.retain; extra > 0 {
		p.blocks = append(p.blocks[:0:0], p.blocks[extra:]...)
	}
	return next, nil
}

func (p *SimulatedProvider) CreateWallet(ctx context.Context) (Wallet, error) {
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}
	return GenerateWallet()
}

func (p *SimulatedProvider) Sign(privateKey, message string) (string, error) {
	return SignMessage(privateKey, message)
}

func (p *SimulatedProvider) GetSigner(_ context.Context, addr Address) (Signer, error) {
	checked, err := ParseAddress(string(addr))
	if err != nil {
		return nil, err
	}
	return accountSigner{addr: checked}, nil
}

func (p *SimulatedProvider) Balances(ctx context.Context) ([]AccountBalance, error) {
	accts, err := p.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	hundred := new(big.Int).Mul(big.NewInt(100), big.NewInt(1_000_000_000_000_000_000))
	out := make([]AccountBalance, 0, len(accts))
	for _, a := range accts {
		out = append(out, AccountBalance{Account: a, Balance: FormatEther(hundred)})
	}
	return out, nil
}

func (p *SimulatedProvider) Blocks(ctx context.Context) ([]BlockHeader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]BlockHeader(nil), p.blocks...), nil
}
