package chainnode

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"shardauth/pkg/platform/sentinel"
)

// RPCProvider talks to an Ethereum JSON-RPC node (Ganache, anvil, geth --dev).
// Blocks are read through raw eth_getBlockByNumber calls so the node's own
// block hash is used verbatim.
type RPCProvider struct {
	rpc         *rpc.Client
	eth         *ethclient.Client
	blockWindow int
}

// RPCOption configures an RPCProvider.
type RPCOption func(*RPCProvider)

// WithBlockWindow caps how many recent blocks Blocks returns.
func WithBlockWindow(n int) RPCOption {
	return func(p *RPCProvider) {
		if n > 0 {
			p.blockWindow = n
		}
	}
}

// Dial connects to the node at url.
func Dial(ctx context.Context, url string, opts ...RPCOption) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial chain node %s: %w", url, err)
	}
	p := &RPCProvider{
		rpc:         client,
		eth:         ethclient.NewClient(client),
		blockWindow: 50,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type rpcTransaction struct {
	Hash  common.Hash     `json:"hash"`
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

type rpcBlock struct {
	Number       hexutil.Uint64   `json:"number"`
	Hash         common.Hash      `json:"hash"`
	Timestamp    hexutil.Uint64   `json:"timestamp"`
	Transactions []rpcTransaction `json:"transactions"`
}

func (b *rpcBlock) header() BlockHeader {
	h := BlockHeader{
		Number:    uint64(b.Number),
		Hash:      b.Hash.Hex(),
		Timestamp: time.Unix(int64(b.Timestamp), 0).UTC(),
	}
	for _, tx := range b.Transactions {
		to := ""
		if tx.To != nil {
			to = tx.To.Hex()
		}
		h.Transactions = append(h.Transactions, Transaction{
			Hash:  tx.Hash.Hex(),
			From:  tx.From.Hex(),
			To:    to,
			Value: FormatEther((*big.Int)(tx.Value)),
		})
	}
	return h
}

func (p *RPCProvider) ListAccounts(ctx context.Context) ([]Address, error) {
	var accts []common.Address
	if err := p.rpc.CallContext(ctx, &accts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w: %v", sentinel.ErrUnavailable, err)
	}
	out := make([]Address, len(accts))
	for i, a := range accts {
		out[i] = Address(a.Hex())
	}
	return out, nil
}

// getBlock always requests full transaction objects; hash-only transaction
// lists would not decode into rpcTransaction.
func (p *RPCProvider) getBlock(ctx context.Context, number string) (*rpcBlock, error) {
	var raw *rpcBlock
	if err := p.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", number, true); err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber(%s): %w: %v", number, sentinel.ErrUnavailable, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("block %s: %w", number, sentinel.ErrNotFound)
	}
	return raw, nil
}

func (p *RPCProvider) LatestBlock(ctx context.Context) (BlockHeader, error) {
	b, err := p.getBlock(ctx, "latest")
	if err != nil {
		return BlockHeader{}, err
	}
	h := b.header()
	h.Transactions = nil
	return h, nil
}

// CreateWallet generates a wallet locally; the node never sees the key.
func (p *RPCProvider) CreateWallet(_ context.Context) (Wallet, error) {
	return GenerateWallet()
}

func (p *RPCProvider) Sign(privateKey, message string) (string, error) {
	return SignMessage(privateKey, message)
}

func (p *RPCProvider) GetSigner(_ context.Context, addr Address) (Signer, error) {
	checked, err := ParseAddress(string(addr))
	if err != nil {
		return nil, err
	}
	return accountSigner{addr: checked}, nil
}

func (p *RPCProvider) Balances(ctx context.Context) ([]AccountBalance, error) {
	accts, err := p.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AccountBalance, 0, len(accts))
	for _, a := range accts {
		wei, err := p.eth.BalanceAt(ctx, common.HexToAddress(string(a)), nil)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w: %v", a, sentinel.ErrUnavailable, err)
		}
		out = append(out, AccountBalance{Account: a, Balance: FormatEther(wei)})
	}
	return out, nil
}

// Blocks returns the most recent blocks, oldest first, with transaction detail.
func (p *RPCProvider) Blocks(ctx context.Context) ([]BlockHeader, error) {
	latest, err := p.eth.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_blockNumber: %w: %v", sentinel.ErrUnavailable, err)
	}
	var first uint64
	if latest+1 > uint64(p.blockWindow) {
		first = latest + 1 - uint64(p.blockWindow)
	}
	out := make([]BlockHeader, 0, latest-first+1)
	for n := first; n <= latest; n++ {
		b, err := p.getBlock(ctx, hexutil.EncodeUint64(n))
		if err != nil {
			return nil, err
		}
		out = append(out, b.header())
	}
	return out, nil
}

// Close releases the RPC connection.
func (p *RPCProvider) Close() {
	p.rpc.Close()
}
