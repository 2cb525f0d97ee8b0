package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"shardauth/internal/auth/models"
	"shardauth/internal/ledger"
	"shardauth/internal/platform/metrics"
	"shardauth/internal/validator"
	"shardauth/pkg/digest"
	dErrors "shardauth/pkg/domain-errors"
	"shardauth/pkg/platform/middleware/metadata"
	"shardauth/pkg/platform/sentinel"
	"shardauth/pkg/requestcontext"
)

// Auth outcome labels for the outcome counter.
const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// Ledger issues and resolves identities.
type Ledger interface {
	Create(ctx context.Context, payload any, difficulty int) (*ledger.Block, error)
	FindByHashedIndex(ctx context.Context, hashedID string) (*ledger.Block, error)
}

// Tokens reads and consumes challenge tokens by hashed identity.
type Tokens interface {
	Get(ctx context.Context, hashedID string) (string, error)
	Consume(ctx context.Context, hashedID, expected string) (bool, error)
}

// MessageSigner signs a message with a hex private key.
type MessageSigner interface {
	Sign(privateKey, message string) (string, error)
}

// Voter runs the consensus round over two signatures.
type Voter interface {
	Decide(ctx context.Context, candidate, reference string) (validator.Decision, error)
}

// Service registers identities and verifies proofs of key possession.
type Service struct {
	ledger     Ledger
	tokens     Tokens
	signer     MessageSigner
	voter      Voter
	difficulty int
	bcryptCost int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDifficulty sets the proof-of-work difficulty of registration blocks.
func WithDifficulty(d int) Option {
	return func(s *Service) {
		if d >= 0 {
			s.difficulty = d
		}
	}
}

// WithBcryptCost sets the cost used to hash registration passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func New(l Ledger, tokens Tokens, signer MessageSigner, voter Voter, opts ...Option) (*Service, error) {
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	if tokens == nil {
		return nil, errors.New("token store is required")
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if voter == nil {
		return nil, errors.New("voter is required")
	}
	s := &Service{
		ledger:     l,
		tokens:     tokens,
		signer:     signer,
		voter:      voter,
		difficulty: 1,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register issues a new identity: a ledger block holding the username and a
// bcrypt hash of the password, owned by a freshly generated wallet.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "password cannot be hashed")
	}

	block, err := s.ledger.Create(ctx, ledger.Registration{
		Username:     req.Username,
		PasswordHash: string(hash),
	}, s.difficulty)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "identity registered",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", block.Index,
		"public_key", block.PublicKey,
	)
	return &models.RegisterResult{
		UserID:     block.Index,
		PrivateKey: block.PrivateKey,
	}, nil
}

// Authenticate checks that the caller holds the private key registered for
// the identity by comparing their signature of the challenge token with the
// one derived from the ledger. An accepted proof consumes the token; a
// rejected one leaves it in place until it expires. Only the call that
// removes the token succeeds, so concurrent proofs for one issuance yield a
// single success.
func (s *Service) Authenticate(ctx context.Context, req models.AuthenticateRequest) (_ *models.AuthenticateResult, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveAuth(start)
		switch {
		case err == nil:
			s.metrics.IncrementAuthOutcome(outcomeAccepted)
		case dErrors.HasCode(err, dErrors.CodeConsensusRejected):
			s.metrics.IncrementAuthOutcome(outcomeRejected)
		default:
			s.metrics.IncrementAuthOutcome(outcomeError)
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	requestID := requestcontext.RequestID(ctx)

	candidate, err := s.signer.Sign(req.PrivateKey, req.ChallengeToken)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigning, "failed to sign challenge token")
	}

	hashedID := digest.SHA256Hex(req.UserID.String())
	audit := models.Audit{
		HashedUserID:      hashedID,
		HashedSignedToken: digest.SHA256Hex(candidate),
	}
	s.logger.InfoContext(ctx, "authentication attempt",
		"request_id", requestID,
		"hashed_user_id", audit.HashedUserID,
		"hashed_signed_token", audit.HashedSignedToken,
		"client_ip", metadata.ClientIP(ctx),
	)

	block, err := s.ledger.FindByHashedIndex(ctx, hashedID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeIdentityNotFound, "No block found for the provided user ID")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up identity")
	}

	stored, err := s.tokens.Get(ctx, hashedID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeTokenNotFound, "Stored token not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeCacheUnavailable, "failed to read challenge token")
	}

	reference, err := s.signer.Sign(block.PrivateKey, stored)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigning, "failed to sign stored token")
	}

	decision, err := s.voter.Decide(ctx, candidate, reference)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "consensus round failed")
	}
	if !decision.Accepted {
		s.logger.WarnContext(ctx, "authentication rejected",
			"request_id", requestID,
			"hashed_user_id", hashedID,
			"positive", decision.Positive,
			"threshold", decision.Threshold,
		)
		return nil, dErrors.New(dErrors.CodeConsensusRejected, "Authentication failed: tokens do not match")
	}

	consumed, err := s.tokens.Consume(ctx, hashedID, stored)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCacheUnavailable, "failed to consume challenge token")
	}
	if !consumed {
		s.logger.WarnContext(ctx, "challenge token already consumed or replaced",
			"request_id", requestID,
			"hashed_user_id", hashedID,
		)
		return nil, dErrors.New(dErrors.CodeTokenNotFound, "Stored token not found")
	}

	s.logger.InfoContext(ctx, "authentication accepted",
		"request_id", requestID,
		"hashed_user_id", hashedID,
		"positive", decision.Positive,
		"threshold", decision.Threshold,
	)
	return &models.AuthenticateResult{
		Message:   models.AuthenticationSuccessful,
		Signature: candidate,
		SignedTokenData: models.SignedTokenData{
			UserID:          req.UserID.String(),
			StoredToken:     stored,
			UserSignedToken: candidate,
			UserPrivateKey:  req.PrivateKey,
		},
		BlockchainData: audit,
		Consensus:      decision,
	}, nil
}
