// Package chainnode is the boundary to the external chain node. The node
// supplies the validator set (its accounts), the latest block hash used to
// freshen challenge tokens, wallets for registrants and message signing.
package chainnode

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks Provider,Signer

import (
	"context"
	"time"
)

// Address is a 0x-prefixed, checksummed account address.
type Address string

func (a Address) String() string {
	return string(a)
}

// BlockHeader is the subset of a chain-node block this system reads.
type BlockHeader struct {
	Number       uint64        `json:"number"`
	Hash         string        `json:"hash"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactionsDetail,omitempty"`
}

// Transaction is a chain-node transaction summary.
type Transaction struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// Wallet is a freshly generated keypair.
type Wallet struct {
	PrivateKey string
	Address    Address
}

// AccountBalance pairs an account with its balance formatted in ETH.
type AccountBalance struct {
	Account Address `json:"account"`
	Balance string  `json:"balance"`
}

// Signer is a node-held account.
type Signer interface {
	Address() Address
}

// Provider is the chain-node contract consumed by the core.
type Provider interface {
	// ListAccounts returns the node's accounts in node order. The order is
	// significant: the first account acts as the voting leader.
	ListAccounts(ctx context.Context) ([]Address, error)
	LatestBlock(ctx context.Context) (BlockHeader, error)
	CreateWallet(ctx context.Context) (Wallet, error)
	Sign(privateKey, message string) (string, error)
	GetSigner(ctx context.Context, addr Address) (Signer, error)
}

// Inspector exposes read-only node state for operators.
type Inspector interface {
	Balances(ctx context.Context) ([]AccountBalance, error)
	Blocks(ctx context.Context) ([]BlockHeader, error)
}

type accountSigner struct {
	addr Address
}

func (s accountSigner) Address() Address {
	return s.addr
}
