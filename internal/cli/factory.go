// Package cli wires configuration into a running orchestrator: reasoner,
// record store, state store, locking, and metrics.
package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"

	"github.com/cadenzahq/cadenza"
	"github.com/cadenzahq/cadenza/internal/config"
	"github.com/cadenzahq/cadenza/internal/tools"
	genaiAdapter "github.com/cadenzahq/cadenza/pkg/adapters/genai"
	"github.com/cadenzahq/cadenza/pkg/adapters/memory"
	redisAdapter "github.com/cadenzahq/cadenza/pkg/adapters/redis"
	"github.com/cadenzahq/cadenza/pkg/adapters/sqlite"
	"github.com/cadenzahq/cadenza/pkg/observability"
	"github.com/cadenzahq/cadenza/pkg/persistence/middleware"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

// App bundles everything a command needs to run.
type App struct {
	Orchestrator *cadenza.Orchestrator
	Registry     *prometheus.Registry
	Config       config.Config

	closers []func() error
}

// Close releases the app's resources.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build assembles the orchestrator from configuration. Redis backs state and
// locking when configured; otherwise state lives in process memory.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	reasoner, err := genaiAdapter.New(ctx, cfg.Reasoner.APIKey, cfg.Reasoner.Model, cfg.Reasoner.DecisionModel)
	if err != nil {
		return nil, fmt.Errorf("build reasoner: %w", err)
	}

	records, err := sqlite.Open(cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	if err := records.Bootstrap(ctx); err != nil {
		records.Close()
		return nil, fmt.Errorf("bootstrap record store: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	opts := []cadenza.Option{
		cadenza.WithLogger(logger),
		cadenza.WithLifecycleHooks(metrics.Hooks()),
		cadenza.WithGuard(cfg.Guard.Enabled),
		cadenza.WithCompactionThreshold(cfg.Compaction.Threshold),
		cadenza.WithMaxToolRounds(cfg.Tools.MaxRounds),
		cadenza.WithRetryPolicy(retryPolicy(cfg)),
	}

	app := &App{Registry: registry, Config: cfg}
	app.closers = append(app.closers, records.Close)

	var store ports.StateStore = memory.NewStore()
	if cfg.Store.RedisURL != "" {
		redisOpts, err := backend.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := backend.NewClient(redisOpts)
		app.closers = append(app.closers, client.Close)

		store = redisAdapter.NewFromClient(client)
		opts = append(opts, cadenza.WithLocker(redisAdapter.NewLocker(client, "cadenza:")))
		logger.Info("using redis state store", "url", cfg.Store.RedisURL)
	}

	store, err = wrapStore(store, cfg.Store)
	if err != nil {
		app.Close()
		return nil, err
	}
	opts = append(opts, cadenza.WithStateStore(store))

	app.Orchestrator = cadenza.New(reasoner, records, opts...)
	return app, nil
}

// wrapStore layers at-rest middleware over the state store. Redaction sits
// outermost so transcripts are masked before they are sealed.
func wrapStore(store ports.StateStore, cfg config.StoreConfig) (ports.StateStore, error) {
	var mws []middleware.Middleware

	if len(cfg.RedactPatterns) > 0 {
		for _, p := range cfg.RedactPatterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
			}
		}
		mws = append(mws, middleware.NewRedactionMiddleware(cfg.RedactPatterns))
	}

	if cfg.StateKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.StateKey)
		if err != nil {
			return nil, fmt.Errorf("decode state key: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("state key must decode to 32 bytes, got %d", len(key))
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}

	return middleware.Chain(store, mws...), nil
}

func retryPolicy(cfg config.Config) tools.RetryPolicy {
	return tools.RetryPolicy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		Factor:       cfg.Retry.Factor,
		MaxDelay:     cfg.Retry.MaxDelay,
	}
}
