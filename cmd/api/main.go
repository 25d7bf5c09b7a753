package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/payment-kingcard/internal/app"
	"github.com/noah-isme/payment-kingcard/internal/common"
	"github.com/noah-isme/payment-kingcard/internal/config"
	"github.com/noah-isme/payment-kingcard/internal/health"
	"github.com/noah-isme/payment-kingcard/internal/obs"
	"github.com/noah-isme/payment-kingcard/internal/payment"
	"github.com/noah-isme/payment-kingcard/internal/ratelimit"
	"github.com/noah-isme/payment-kingcard/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	}

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:       cfg.TracingEnabled,
		ServiceName:   "payment-kingcard",
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: cfg.TracingSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		cfg.TracingEnabled = false
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	deps, cleanup, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer cleanup()

	checkoutHandler := &payment.Handler{
		Profile:   deps.Profile,
		Submitter: deps.Initiator,
		ThanksURL: cfg.ThanksURL,
		Logger:    logger,
	}
	webhook := payment.Webhook{Callbacks: deps.Callbacks, Logger: logger}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL, Prefix: "kingcard:idem:"}
	submitLimit := ratelimit.Handler{
		Limiter: deps.SubmitLimit,
		Config: ratelimit.Config{
			Key:    ratelimit.SubmissionKey,
			Window: cfg.SubmitRateLimitWindow,
			Max:    cfg.SubmitRateLimitMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("submit rate limiter unavailable")
		},
	}
	healthHandler := health.Handler{
		Checker:      health.Probes{DB: deps.DB, Redis: deps.Redis},
		GatewayState: func() string { return deps.Breaker.State().String() },
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction(), NoStore: true}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/payments/kingcard", func(p chi.Router) {
			p.Get("/providers", checkoutHandler.Providers)
			p.Get("/thanks", checkoutHandler.Thanks)
			p.With(submitLimit.Middleware, idem.Middleware).Post("/{requestKey}", checkoutHandler.Submit)
		})
		v.With(security.BodyLimit{Max: cfg.WebhookMaxBodyBytes}.Middleware).Post("/webhooks/kingcard", webhook.Handle)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("gateway", deps.Profile.Name).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
