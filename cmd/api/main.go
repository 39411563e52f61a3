package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boxoffice/checkout/internal/cache"
	"github.com/boxoffice/checkout/internal/handlers"
	"github.com/boxoffice/checkout/internal/platform/config"
	pfirestore "github.com/boxoffice/checkout/internal/platform/firestore"
	"github.com/boxoffice/checkout/internal/platform/observability"
	"github.com/boxoffice/checkout/internal/platform/secrets"
	"github.com/boxoffice/checkout/internal/repositories"
	firestoreRepo "github.com/boxoffice/checkout/internal/repositories/firestore"
	"github.com/boxoffice/checkout/internal/repositories/memory"
	"github.com/boxoffice/checkout/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	secretFetcher, err := secrets.NewFetcher(ctx,
		secrets.WithProject(chooseFirstNonEmpty(os.Getenv("API_SECRETS_PROJECT_ID"), os.Getenv("API_FIRESTORE_PROJECT_ID"))),
		secrets.WithFallbackFile(chooseFirstNonEmpty(os.Getenv("API_SECRETS_FALLBACK_FILE"), ".secrets.local")),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise secret fetcher: %v\n", err)
		os.Exit(1)
	}
	defer secretFetcher.Close()

	cfg, err := config.Load(ctx, config.WithSecretResolver(secretFetcher))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(observability.WithServiceContext(cfg.Observation.Environment, cfg.Observation.Version))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	buildInfo := services.BuildInfo{
		Version:     chooseFirstNonEmpty(cfg.Observation.Version, "dev"),
		CommitSHA:   chooseFirstNonEmpty(cfg.Observation.CommitSHA, "unknown"),
		Environment: cfg.Observation.Environment,
		StartedAt:   startedAt,
	}

	var checks []repositories.DependencyCheck

	organizers, closeOrganizers, check, err := newOrganizerRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise organizer settings repository", zap.Error(err))
	}
	defer closeOrganizers()
	if check != nil {
		checks = append(checks, *check)
	}

	breakdownCache, closeCache, check := newBreakdownCache(cfg, logger)
	defer closeCache()
	if check != nil {
		checks = append(checks, *check)
	}

	metrics, err := observability.NewBreakdownMetrics(nil)
	if err != nil {
		logger.Fatal("failed to register breakdown metrics", zap.Error(err))
	}

	breakdownService, err := services.NewBreakdownService(services.BreakdownServiceDeps{
		Organizers: organizers,
		Cache:      breakdownCache,
		CacheTTL:   cfg.Breakdown.CacheTTL,
		Metrics:    metrics,
	})
	if err != nil {
		logger.Fatal("failed to initialise breakdown service", zap.Error(err))
	}

	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}
	healthService, err := services.NewHealthService(services.HealthServiceDeps{HealthRepository: healthRepo, Build: buildInfo})
	if err != nil {
		logger.Warn("health: service init failed", zap.Error(err))
	} else {
		healthOpts = append(healthOpts, handlers.WithHealthService(healthService))
	}

	breakdownHandlers := handlers.NewBreakdownHandlers(breakdownService,
		handlers.WithBreakdownMaxBodyBytes(cfg.Server.MaxBodyBytes),
		handlers.WithBreakdownDefaultLocale(cfg.Breakdown.DefaultLocale),
		handlers.WithBreakdownRateLimit(cfg.RateLimits.DefaultPerMinute, nil),
	)

	router := handlers.NewRouter(
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(
			observability.TraceMiddleware(cfg.Observation.TraceProjectID),
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithBreakdownRoutes(breakdownHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("checkout api listening",
			zap.String("cacheBackend", cfg.Breakdown.CacheBackend),
			zap.Bool("firestore", cfg.Firestore.ProjectID != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newOrganizerRepository prefers Firestore, then a seed file, then an empty
// in-memory catalog that only serves requests carrying an inline fee policy.
func newOrganizerRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.OrganizerSettingsRepository, func(), *repositories.DependencyCheck, error) {
	noop := func() {}
	if cfg.Firestore.ProjectID != "" {
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, noop, nil, err
		}
		repo, err := firestoreRepo.NewOrganizerSettingsRepository(provider)
		if err != nil {
			return nil, noop, nil, err
		}
		closer := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Close(closeCtx); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}
		check := &repositories.DependencyCheck{Name: "firestore", Check: provider.Ping}
		return repo, closer, check, nil
	}

	if cfg.Breakdown.OrganizersFile != "" {
		repo, err := memory.LoadOrganizerSettingsFile(cfg.Breakdown.OrganizersFile)
		if err != nil {
			return nil, noop, nil, err
		}
		logger.Info("organizer settings loaded from file", zap.String("path", cfg.Breakdown.OrganizersFile))
		return repo, noop, nil, nil
	}

	logger.Warn("no organizer settings source configured; requests must carry a fee policy")
	return memory.NewOrganizerSettingsRepository(), noop, nil, nil
}

func newBreakdownCache(cfg config.Config, logger *zap.Logger) (cache.BreakdownCache, func(), *repositories.DependencyCheck) {
	switch cfg.Breakdown.CacheBackend {
	case config.CacheBackendRedis:
		redisCache := cache.NewRedisBreakdownCache(cfg.Redis)
		closer := func() {
			if err := redisCache.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}
		return redisCache, closer, &repositories.DependencyCheck{Name: "redis", Check: redisCache.Ping}
	case config.CacheBackendNone:
		return cache.NoopBreakdownCache{}, func() {}, nil
	default:
		return cache.NewMemoryBreakdownCache(), func() {}, nil
	}
}

func chooseFirstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
