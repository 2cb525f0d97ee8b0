package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	authhandler "shardauth/internal/auth/handler"
	authservice "shardauth/internal/auth/service"
	"shardauth/internal/chainnode"
	nodehandler "shardauth/internal/chainnode/handler"
	"shardauth/internal/challenge"
	"shardauth/internal/ledger"
	ledgerhandler "shardauth/internal/ledger/handler"
	"shardauth/internal/platform/config"
	"shardauth/internal/platform/httpserver"
	"shardauth/internal/platform/logger"
	"shardauth/internal/platform/metrics"
	"shardauth/internal/platform/redis"
	httptransport "shardauth/internal/transport/http"
	"shardauth/internal/validator"
)

func serveCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// chainNode is what the server needs from a provider: the core contract and
// the operator inspection endpoints.
type chainNode interface {
	chainnode.Provider
	chainnode.Inspector
}

func openChainNode(ctx context.Context, cfg config.ChainConfig) (chainNode, func(), error) {
	if cfg.Mode == config.ChainModeSimulated {
		return chainnode.NewSimulated(chainnode.WithRetainedBlocks(cfg.BlockWindow)), func() {}, nil
	}
	p, err := chainnode.Dial(ctx, cfg.RPCURL, chainnode.WithBlockWindow(cfg.BlockWindow))
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func openBackend(cfg config.StorageConfig, log *slog.Logger) (ledger.Backend, error) {
	if cfg.Directory == "" {
		return ledger.NewMemoryBackend(), nil
	}
	return ledger.OpenBadger(cfg.Directory, log)
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	node, closeNode, err := openChainNode(ctx, cfg.Chain)
	if err != nil {
		return err
	}
	defer closeNode()

	backend, err := openBackend(cfg.Storage, log)
	if err != nil {
		return err
	}

	pool, err := validator.NewPool(node, validator.WithLogger(log), validator.WithMetrics(m))
	if err != nil {
		return err
	}
	l, err := ledger.New(ctx, backend, node, pool,
		ledger.WithLogger(log),
		ledger.WithMetrics(m),
		ledger.WithSamplePercentage(cfg.Ledger.SamplePercentage),
		ledger.WithMinQuorum(cfg.Ledger.MinQuorum),
	)
	if err != nil {
		_ = backend.Close()
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			log.Error("failed to close ledger", "error", err)
		}
	}()

	checks := map[string]httptransport.HealthCheck{}
	var tokens challenge.TokenStore
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
		tokens = challenge.NewRedisStore(rc.Client)
		checks["redis"] = rc.Health
	} else {
		log.Warn("redis not configured, challenge tokens are kept in memory")
		tokens = challenge.NewMemoryStore()
	}

	challenges, err := challenge.NewService(node, tokens, challenge.Config{
		ShardCount:    cfg.Challenge.ShardCount,
		NodesPerShard: cfg.Challenge.NodesPerShard,
		TokenTTL:      cfg.Challenge.TokenTTL,
		SignerKey:     cfg.Challenge.SignerKey,
		SignerAddress: chainnode.Address(cfg.Challenge.SignerAddress),
	}, challenge.WithLogger(log), challenge.WithMetrics(m))
	if err != nil {
		return err
	}
	auth, err := authservice.New(l, tokens, node, pool,
		authservice.WithLogger(log),
		authservice.WithMetrics(m),
		authservice.WithDifficulty(cfg.Ledger.Difficulty),
		authservice.WithBcryptCost(cfg.Ledger.BcryptCost),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterOptions{
		Logger:   log,
		Gatherer: reg,
		Checks:   checks,
	},
		authhandler.New(auth, log),
		challenge.NewHandler(challenges, log),
		ledgerhandler.New(l, log),
		nodehandler.New(node, log),
	)
	srv := httpserver.New(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting shardauth",
			"addr", cfg.Server.Addr,
			"chain_mode", cfg.Chain.Mode,
			"difficulty", cfg.Ledger.Difficulty,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
