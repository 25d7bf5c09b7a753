package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/payment-kingcard/internal/audit"
	"github.com/noah-isme/payment-kingcard/internal/config"
	"github.com/noah-isme/payment-kingcard/internal/db"
	dbgen "github.com/noah-isme/payment-kingcard/internal/db/gen"
	"github.com/noah-isme/payment-kingcard/internal/lock"
	"github.com/noah-isme/payment-kingcard/internal/obs"
	"github.com/noah-isme/payment-kingcard/internal/payment"
	"github.com/noah-isme/payment-kingcard/internal/ratelimit"
	"github.com/noah-isme/payment-kingcard/internal/repo"
	"github.com/noah-isme/payment-kingcard/internal/resilience"
)

// Dependencies enumerates the services shared by the API handlers.
type Dependencies struct {
	DB          *pgxpool.Pool
	Redis       *redis.Client
	Profile     payment.GatewayProfile
	Breaker     *resilience.Breaker
	Ledger      *repo.Ledger
	Audit       audit.Service
	Locker      lock.Locker
	SubmitLimit ratelimit.Allower
	Initiator   payment.Initiator
	Callbacks   payment.CallbackService
}

// NewPool opens the Postgres pool with query tracing.
func NewPool(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis opens the Redis client with tracing and, optionally, metrics.
func NewRedis(ctx context.Context, redisURL string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewGatewayHTTP builds the single-attempt gateway client: otelhttp transport,
// bounded timeout, circuit breaker and latency histogram.
func NewGatewayHTTP(cfg *config.Config, profile payment.GatewayProfile, breaker *resilience.Breaker, logger zerolog.Logger) resilience.HTTPClient {
	gwLogger := logger.With().Str("component", "gateway").Str("gateway", profile.Name).Logger()
	return resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker: breaker,
		Timeout: cfg.GatewayTimeout,
		Target:  profile.Name,
		Logger:  &gwLogger,
		Observe: obs.GatewayObserver(profile.Name),
	}
}

// Build connects to Postgres and Redis, optionally migrates, and wires the
// payment use cases. The returned cleanup closes the connections.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, func(), error) {
	profile, err := payment.ProfileByName(cfg.Gateway, cfg.APIEndpoint)
	if err != nil {
		return nil, nil, err
	}

	if cfg.RunMigrations {
		if err := db.Up(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("migrations applied")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := NewPool(connectCtx, cfg.DatabaseURL, "payment-kingcard")
	if err != nil {
		return nil, nil, err
	}
	rdb, err := NewRedis(connectCtx, cfg.RedisURL, cfg.MetricsEnabled, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
		pool.Close()
	}

	limiter, err := ratelimit.New(cfg.SubmitRateLimitBackend, rdb, "kingcard:ratelimit:")
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	breaker := resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRate, cfg.CircuitOpenFor).
		WithTarget(profile.Name).
		WithLogger(logger)
	gateway := payment.GatewayClient{
		Profile: profile,
		HTTP:    NewGatewayHTTP(cfg, profile, breaker, logger),
	}

	ledger := repo.NewLedger(pool)
	auditSvc := audit.Service{
		Store:  dbgen.New(pool),
		Logger: logger.With().Str("component", "audit").Logger(),
	}
	locker := lock.Locker{R: rdb, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.LockTTL}
	tokens := payment.TokenIssuer{}
	paymentLogger := logger.With().Str("component", "payment").Str("gateway", profile.Name).Logger()

	deps := &Dependencies{
		DB:          pool,
		Redis:       rdb,
		Profile:     profile,
		Breaker:     breaker,
		Ledger:      ledger,
		Audit:       auditSvc,
		Locker:      locker,
		SubmitLimit: limiter,
		Initiator: payment.Initiator{
			Profile:    profile,
			Purchases:  ledger,
			Gateway:    gateway,
			Tokens:     tokens,
			Audit:      auditSvc,
			WebhookURL: cfg.WebhookURL,
			Logger:     paymentLogger,
		},
		Callbacks: payment.CallbackService{
			Verifier: payment.Verifier{
				ProviderID: cfg.ProviderID,
				Profile:    profile,
				Purchases:  ledger,
				Lookup:     gateway,
				Tokens:     tokens,
				Logger:     paymentLogger,
			},
			Ledger:  ledger,
			Audit:   auditSvc,
			Locker:  locker,
			LockTTL: cfg.LockTTL,
			Logger:  paymentLogger,
		},
	}
	return deps, cleanup, nil
}
