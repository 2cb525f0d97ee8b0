// Package validator models the network participants that gate block
// admission and vote on authentication attempts. The participants are the
// chain node's accounts, fetched fresh on every use.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"shardauth/internal/chainnode"
	"shardauth/internal/platform/metrics"
)

// ErrNoValidators is returned when the chain node reports no accounts.
var ErrNoValidators = errors.New("no validators available")

// DefaultSamplePercentage is the share of validators asked to re-verify a block.
const DefaultSamplePercentage = 30

// AccountLister is the slice of the chain-node provider the pool needs.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]chainnode.Address, error)
}

// Source supplies the randomness for sampling. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// Pool lists, samples and polls validators.
type Pool struct {
	accounts AccountLister
	source   Source
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Pool.
type Option func(*Pool)

// WithSource injects the randomness source used by Sample.
func WithSource(src Source) Option {
	return func(p *Pool) {
		if src != nil {
			p.source = src
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithMetrics records validator set sizes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// NewPool creates a Pool backed by the chain node's account list.
func NewPool(accounts AccountLister, opts ...Option) (*Pool, error) {
	if accounts == nil {
		return nil, errors.New("account lister is required")
	}
	p := &Pool{
		accounts: accounts,
		source:   globalSource{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// List returns the current validator addresses in provider order.
func (p *Pool) List(ctx context.Context) ([]chainnode.Address, error) {
	accts, err := p.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list validators: %w", err)
	}
	return accts, nil
}

// Sample returns floor(len*percentage/100) validators drawn without
// replacement. The input slice is not modified.
func (p *Pool) Sample(validators []chainnode.Address, percentage int) []chainnode.Address {
	percentage = min(max(percentage, 0), 100)
	n := len(validators) * percentage / 100
	shuffled := append([]chainnode.Address(nil), validators...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := p.source.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}
