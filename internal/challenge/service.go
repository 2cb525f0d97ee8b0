package challenge

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"shardauth/internal/chainnode"
	"shardauth/internal/platform/metrics"
	"shardauth/internal/shard"
	"shardauth/pkg/digest"
	dErrors "shardauth/pkg/domain-errors"
	"shardauth/pkg/requestcontext"
)

// Config holds the sharding and token parameters. SignerKey signs every
// token in the bundle and SignerAddress heads it; the address is derived
// from the key when empty.
type Config struct {
	ShardCount    int
	NodesPerShard int
	TokenTTL      time.Duration
	SignerKey     string
	SignerAddress chainnode.Address
}

// DefaultConfig is the reference deployment: two shards of two nodes, tokens
// valid for 3000s, signed by the first dev account.
func DefaultConfig() Config {
	return Config{
		ShardCount:    2,
		NodesPerShard: 2,
		TokenTTL:      3000 * time.Second,
		SignerKey:     "0x4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d",
		SignerAddress: "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
	}
}

// Service issues challenge tokens.
type Service struct {
	provider chainnode.Provider
	tokens   TokenStore
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics counts issued tokens.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a challenge Service.
func NewService(provider chainnode.Provider, tokens TokenStore, cfg Config, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, errors.New("chain-node provider is required")
	}
	if tokens == nil {
		return nil, errors.New("token store is required")
	}
	if cfg.ShardCount <= 0 || cfg.NodesPerShard <= 0 {
		return nil, errors.New("shard count and nodes per shard must be positive")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	if cfg.SignerAddress == "" {
		addr, err := chainnode.AddressFromKey(cfg.SignerKey)
		if err != nil {
			return nil, err
		}
		cfg.SignerAddress = addr
	}
	s := &Service{
		provider: provider,
		tokens:   tokens,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PreAuthenticate hashes rawUserID, picks a shard for this request, derives a
// fresh token from the chain-node tip, signs the shard's bundle, then caches
// the token under the hashed identity.
func (s *Service) PreAuthenticate(ctx context.Context, rawUserID string) (*PreAuthResult, error) {
	if rawUserID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	hashedID := digest.SHA256Hex(rawUserID)
	now := requestcontext.Now(ctx)
	timestamp := now.UnixMilli()
	selected := shard.Select(hashedID, timestamp, s.cfg.ShardCount)

	tip, err := s.provider.LatestBlock(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to read latest chain-node block")
	}
	token := Token{
		Value:         digest.SHA256Hex(tip.Hash + strconv.FormatInt(timestamp, 10)),
		OwnerHashedID: hashedID,
		IssuedAt:      now,
		TTL:           s.cfg.TokenTTL,
	}
	accounts, err := s.provider.ListAccounts(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to list chain-node accounts")
	}
	nodes := shard.Nodes(accounts, selected, s.cfg.NodesPerShard)

	bundle, err := s.signBundle(ctx, token.Value, nodes)
	if err != nil {
		return nil, err
	}

	// The token is cached only once its bundle is signed.
	if err := s.tokens.Set(ctx, hashedID, token.Value, token.TTL); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCacheUnavailable, "failed to store challenge token")
	}

	s.metrics.IncrementTokensIssued()
	s.logger.InfoContext(ctx, "challenge token issued",
		"request_id", requestcontext.RequestID(ctx),
		"hashed_user_id", hashedID,
		"shard", selected,
		"signers", len(bundle),
		"expires_at", token.ExpiresAt(),
	)

	return &PreAuthResult{
		RequestAuth:    RequestAuth{UserID: hashedID, Timestamp: timestamp},
		SelectedShard:  selected,
		ChallengeToken: token.Value,
		SignedTokens:   bundle,
	}, nil
}

// signBundle signs token once with the configured key and pairs that
// signature with the fixed signer and then each shard node.
func (s *Service) signBundle(ctx context.Context, token string, nodes []chainnode.Address) ([]SignedToken, error) {
	sig, err := s.provider.Sign(s.cfg.SignerKey, token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigning, "failed to sign challenge token")
	}
	bundle := make([]SignedToken, 0, len(nodes)+1)
	bundle = append(bundle, SignedToken{PublicKey: s.cfg.SignerAddress, Signature: sig})
	for _, node := range nodes {
		signer, err := s.provider.GetSigner(ctx, node)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to resolve shard signer")
		}
		bundle = append(bundle, SignedToken{PublicKey: signer.Address(), Signature: sig})
	}
	return bundle, nil
}
