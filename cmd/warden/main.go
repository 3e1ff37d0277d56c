package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/warden/pkg/api"
	"github.com/platinummonkey/warden/pkg/async"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/config"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/jobs"
	"github.com/platinummonkey/warden/pkg/mail"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/secrets"
	"github.com/platinummonkey/warden/pkg/sso"
	"github.com/platinummonkey/warden/pkg/storage/postgres"
)

const maxRequestBytes = 1 << 20

var (
	configFile = flag.String("config", "", "YAML configuration file (overrides "+config.EnvConfigFile+")")
	purgeOnce  = flag.Bool("purge-once", false, "Purge expired access tokens once and exit")
)

func main() {
	flag.Parse()
	if *configFile != "" {
		_ = os.Setenv(config.EnvConfigFile, *configFile)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("warden exited with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	db, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: cfg.Database.ReplicaURLs,
		MaxConns:    cfg.Database.MaxOpenConns,
		MinConns:    cfg.Database.MaxIdleConns,
		Timeout:     cfg.Database.ConnectTimeout,
		MaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db.Primary()); err != nil {
		return err
	}
	db.StartHealthCheckRoutine(ctx, 30*time.Second, metrics)

	store := postgres.NewStore(db.Primary(), db)

	purger := jobs.NewTokenPurger(store.ApiKeys, metrics, logger, time.Minute)
	if *purgeOnce {
		return purger.Run(ctx)
	}

	var abilities orgs.AbilityCache = postgres.NopAbilityCache{}
	var redisCache *postgres.AbilityCache
	if cfg.Redis.URL != "" {
		redisCache, err = postgres.NewAbilityCache(postgres.RedisConfig{
			URL:        cfg.Redis.URL,
			PoolSize:   cfg.Redis.PoolSize,
			AbilityTTL: cfg.Redis.AbilityTTL,
		}, metrics)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		abilities = redisCache
	} else {
		logger.Warn("No Redis URL configured, organization ability cache disabled")
	}

	events, err := audit.NewDBLogger(db.Primary())
	if err != nil {
		return fmt.Errorf("failed to initialize event log: %w", err)
	}
	references, err := audit.NewReferenceLogger(db.Primary(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize reference events: %w", err)
	}

	mailer, err := newMailService(cfg.Mail, logger)
	if err != nil {
		return err
	}

	inviteTokens, err := auth.NewInviteTokenFactory(cfg.Invites.TokenSecret, cfg.Invites.TokenLifetime)
	if err != nil {
		return fmt.Errorf("failed to initialize invite tokens: %w", err)
	}

	evaluator := rbac.NewEvaluator()
	ssoService := sso.NewService(sso.NewStorage(db.Primary()), store.Policies, store.Users, cfg.Features.TrustedDeviceEncryption, logger)

	orgService := orgs.NewService(orgs.Dependencies{
		Organizations: store.Organizations,
		Members:       store.OrganizationUsers,
		Policies:      store.Policies,
		Users:         store.Users,
		TwoFactor:     store.Users,
		Mail:          mailer,
		Events:        events,
		References:    references,
		Abilities:     abilities,
		KeyConnector:  ssoService,
		InviteTokens:  inviteTokens,
		Evaluator:     evaluator,
		Metrics:       metrics,
		Logger:        logger,
		SelfHosted:    cfg.Features.SelfHosted,
	})

	server := api.NewServer(api.Services{
		Members:         orgService,
		Organizations:   orgService,
		Projects:        secrets.NewProjectService(store.Projects, evaluator, metrics, logger),
		Secrets:         secrets.NewSecretService(store.Secrets, evaluator, metrics, logger),
		ServiceAccounts: secrets.NewServiceAccountService(store.ServiceAccounts, store.ApiKeys, auth.NewTokenGenerator(), evaluator, metrics, logger),
		SSO:             ssoService,
	})
	server.RegisterRoutes(audit.NewHandlers(events))

	apiRouter := server.Router()
	apiRouter.Use(httputil.ContentTypeMiddleware)
	apiRouter.Use(observability.HTTPMetricsMiddleware(metrics))
	apiRouter.Use(middleware.NewActorContextMiddleware(store.OrganizationUsers, orgService).Handler)
	if cfg.RateLimit.Enabled {
		apiRouter.Use(middleware.NewRateLimitMiddleware(newLimiter(ctx, cfg, redisCache, logger)).Handler)
	}

	root := mux.NewRouter()
	var redisClient *redis.Client
	if redisCache != nil {
		redisClient = redisCache.Client()
	}
	observability.RegisterHealthRoutes(root, observability.NewHealthChecker(db.Primary(), redisClient, cfg.Observability.OTelServiceVersion))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(root, registry)
	}
	root.PathPrefix("/").Handler(server)

	handler := httputil.Chain(
		middleware.RequestID(logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		httputil.MaxBytesMiddleware(maxRequestBytes),
	)(root)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "warden")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	scheduler, err := jobs.NewScheduler(purger, cfg.Jobs.AccessTokenPurgeSchedule, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	async.SafeGo(ctx, logger, time.Minute, "startup access token purge", purger.Run)

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("scheduler", scheduler.Stop)
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	if redisCache != nil {
		shutdown.Register("redis", func(context.Context) error { return redisCache.Close() })
	}
	if providers != nil {
		shutdown.Register("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("Starting warden server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()
	go func() {
		if err, ok := <-serveErr; ok {
			logger.WithError(err).Error("HTTP server failed")
			stopWaiting()
		}
	}()

	return shutdown.WaitForSignal(waitCtx)
}

func newMailService(cfg config.MailConfig, logger logrus.FieldLogger) (*mail.Service, error) {
	var sender mail.Sender
	if cfg.SMTPHost == "" {
		logger.Warn("No SMTP host configured, emails will be logged instead of sent")
		sender = mail.NewLogSender(logger)
	} else {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
		})
	}
	return mail.NewService(sender, cfg.WebVaultURL, logger)
}

// newLimiter shares limits through Redis when asked to and a cache client
// exists; otherwise each instance limits on its own.
func newLimiter(ctx context.Context, cfg *config.Config, cache *postgres.AbilityCache, logger logrus.FieldLogger) middleware.Limiter {
	limits := middleware.RateLimitConfig{PerSecond: cfg.RateLimit.PerSecond, Burst: cfg.RateLimit.Burst}
	if cfg.RateLimit.Distributed && cache != nil {
		logger.Info("Using distributed rate limiting")
		return middleware.NewDistributedRateLimiter(cache.Client(), limits, "warden:ratelimit:")
	}

	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx, 5*time.Minute)
	return limiter
}
