package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/address"
	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/fusion"
	"github.com/sells-group/property-cli/internal/ingest"
	"github.com/sells-group/property-cli/internal/resilience"
	"github.com/sells-group/property-cli/internal/store"
	"github.com/sells-group/property-cli/pkg/geocode"
)

func initStore(ctx context.Context, c *config.Config) (store.Repository, error) {
	opts := []store.Option{store.WithTimeout(time.Duration(c.Store.TimeoutSecs) * time.Second)}
	switch c.Store.Driver {
	case config.DriverSQLite:
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "properties.db"
		}
		return store.NewSQLite(dsn, opts...)
	case config.DriverPostgres:
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		}, opts...)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// openStore opens and migrates the configured repository.
func openStore(ctx context.Context, c *config.Config) (store.Repository, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initNormalizer(c *config.Config) *address.Normalizer {
	ac := c.Address
	opts := []address.Option{
		address.WithFallback(ac.Fallback),
		address.WithTimeout(time.Duration(ac.TimeoutSecs) * time.Second),
	}
	if ac.Standardizer == config.StandardizerCensus {
		client := geocode.NewClient(
			geocode.WithGoogleAPIKey(ac.GoogleKey),
			geocode.WithRateLimit(ac.RateLimit),
		)
		breakerCfg := resilience.NewCircuitBreakerConfig(ac.BreakerFailures, ac.BreakerResetSecs)
		breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("address: standardizer breaker state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
		opts = append(opts,
			address.WithStandardizer(address.NewGeocodeStandardizer(client)),
			address.WithBreaker(resilience.NewCircuitBreaker(breakerCfg)),
		)
	}
	return address.NewNormalizer(opts...)
}

func initEngine(c *config.Config) *fusion.Engine {
	return fusion.New(
		fusion.WithPolicy(fusion.NewPolicy(c.Tiers())),
		fusion.WithHistoryLimit(c.Fusion.HistoryLimit),
	)
}

func initService(c *config.Config, repo store.Repository) *ingest.Service {
	return ingest.NewService(repo, initNormalizer(c), initEngine(c),
		ingest.WithConcurrency(c.Ingest.Concurrency),
		ingest.WithRetry(resilience.NewRetryConfig(c.Ingest.RetryAttempts, c.Ingest.RetryBackoffMs)),
	)
}
