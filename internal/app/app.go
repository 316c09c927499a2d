// Package app assembles the execution chain from configuration. It is shared
// by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Harsh-BH/codepad/internal/config"
	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/executor"
	"github.com/Harsh-BH/codepad/internal/judge"
	"github.com/Harsh-BH/codepad/internal/orchestrator"
	"github.com/Harsh-BH/codepad/internal/relay"
	"github.com/Harsh-BH/codepad/internal/repository"
	"github.com/Harsh-BH/codepad/internal/repository/memory"
	"github.com/Harsh-BH/codepad/internal/repository/postgres"
	redislock "github.com/Harsh-BH/codepad/internal/repository/redis"
	"github.com/Harsh-BH/codepad/internal/simulate"
)

// NewLogger builds a production zap logger at the given level ("debug",
// "info", "warn", "error").
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// Chain holds the configured execution strategies in fallback order.
type Chain struct {
	Toolchain  *executor.ToolchainStrategy
	Relay      *relay.Strategy
	Judge      *judge.Strategy
	Simulation *simulate.Strategy
	Languages  *judge.LanguageTable

	transportFallthrough bool
	closers              []func() error
}

// ChainOptions selects which strategies are assembled.
type ChainOptions struct {
	// WithoutRelay leaves the relay out, as a relay runner must not forward
	// requests onwards.
	WithoutRelay bool
}

// NewChain builds the strategies described by cfg.
func NewChain(cfg *config.Config, logger *zap.Logger, opts ChainOptions) (*Chain, error) {
	table, err := judge.NewLanguageTable(cfg.Judge.LanguageIDs, cfg.Judge.DefaultLanguage)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		Languages:            table,
		Simulation:           simulate.NewStrategy(cfg.Orchestrator.SimulationMaxLoops, logger),
		transportFallthrough: cfg.Orchestrator.TransportFallthrough,
	}

	if cfg.Toolchain.Enabled {
		c.Toolchain = executor.NewToolchainStrategy(cfg.ExecutorConfig(), logger)
	}

	if !opts.WithoutRelay {
		transport, err := newRelayTransport(cfg.Relay, logger)
		if err != nil {
			// An unreachable peer leaves the relay unpaired.
			logger.Warn("Relay transport unavailable, continuing unpaired",
				zap.String("transport", cfg.Relay.Transport),
				zap.Error(err),
			)
			transport = nil
		}
		c.Relay = relay.NewStrategy(transport, cfg.Relay.Subject, cfg.Relay.Timeout, logger)
		if transport != nil {
			c.closers = append(c.closers, c.Relay.Close)
		}
	}

	var client *judge.Client
	if cfg.Judge.BaseURL != "" {
		client = judge.NewClient(cfg.Judge.BaseURL, cfg.Judge.APIKey, cfg.Judge.APIKeyHeader, cfg.Judge.HTTPTimeout)
	}
	c.Judge = judge.NewStrategy(client, table, cfg.JudgeStrategyConfig(), logger)

	return c, nil
}

func newRelayTransport(cfg config.RelayConfig, logger *zap.Logger) (relay.Transport, error) {
	switch cfg.Transport {
	case config.RelayNATS:
		return relay.NewNATSTransport(cfg.URL, logger)
	case config.RelayAMQP:
		return relay.NewAMQPTransport(cfg.URL, logger)
	}
	return nil, nil
}

// Strategies returns the non-fallback strategies in order.
func (c *Chain) Strategies() []orchestrator.Strategy {
	var out []orchestrator.Strategy
	if c.Toolchain != nil {
		out = append(out, c.Toolchain)
	}
	if c.Relay != nil {
		out = append(out, c.Relay)
	}
	if c.Judge != nil {
		out = append(out, c.Judge)
	}
	return out
}

// Orchestrator builds an orchestrator over the chain.
func (c *Chain) Orchestrator(lock repository.ExecutionLock, logger *zap.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(c.Strategies(), c.Simulation, lock, logger,
		orchestrator.WithTransportFallthrough(c.transportFallthrough))
}

// LanguageInfo reports supported languages with local toolchain and judge details.
func (c *Chain) LanguageInfo() []domain.LanguageInfo {
	var infos []domain.LanguageInfo
	if c.Toolchain != nil {
		infos = c.Toolchain.Languages()
	} else {
		for _, l := range domain.Languages {
			infos = append(infos, domain.LanguageInfo{Name: l, Extensions: l.Extensions()})
		}
	}
	for i := range infos {
		infos[i].JudgeID = c.Languages.ID(infos[i].Name)
	}
	return infos
}

// Close releases transport connections.
func (c *Chain) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

// NewExecutionLock returns a Redis lock when a Redis URL is configured and an
// in-process lock otherwise. The returned client is nil for the in-process lock.
func NewExecutionLock(ctx context.Context, cfg config.RedisConfig) (repository.ExecutionLock, *goredis.Client, error) {
	if cfg.URL == "" {
		return memory.NewExecutionLock(), nil, nil
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return redislock.NewRedisExecutionLock(client, cfg.LockTTL), client, nil
}

// NewResultStore connects the Postgres result store when a database URL is
// configured. Both return values are nil otherwise.
func NewResultStore(ctx context.Context, cfg config.DatabaseConfig) (repository.ResultStore, *pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, nil, nil
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.NewPostgresResultStore(pool), pool, nil
}
