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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esre-console/internal/config"
	"github.com/kailas-cloud/esre-console/internal/db"
	dbRedis "github.com/kailas-cloud/esre-console/internal/db/redis"
	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
	logpkg "github.com/kailas-cloud/esre-console/internal/logger"
	"github.com/kailas-cloud/esre-console/internal/metrics"
	budgetrepo "github.com/kailas-cloud/esre-console/internal/repository/budget"
	displayrepo "github.com/kailas-cloud/esre-console/internal/repository/display"
	chiTransport "github.com/kailas-cloud/esre-console/internal/transport/chi"
	"github.com/kailas-cloud/esre-console/internal/transport/esre"
	openaiJudge "github.com/kailas-cloud/esre-console/internal/transport/openai"
	aijudgeuc "github.com/kailas-cloud/esre-console/internal/usecase/aijudge"
	healthuc "github.com/kailas-cloud/esre-console/internal/usecase/health"
	judgementuc "github.com/kailas-cloud/esre-console/internal/usecase/judgement"
	projectuc "github.com/kailas-cloud/esre-console/internal/usecase/project"
	usageuc "github.com/kailas-cloud/esre-console/internal/usecase/usage"
	"github.com/kailas-cloud/esre-console/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting esre-console",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Bool("judge", cfg.Judge.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterConsoleMetrics()

	client, err := esre.New(esre.Config{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout(),
	}, esre.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create backend client", zap.Error(err))
	}

	ctx := context.Background()

	// Pass nil interfaces (not typed nil pointers) when the cache is off.
	var (
		kv         db.KVStore
		shared     db.Store
		cachePing  healthuc.Pinger
		closeCache = func() {}
	)
	if cfg.Cache.Enabled {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Cache.Addrs,
			Username:   cfg.Cache.Username,
			Password:   cfg.Cache.Password,
			DB:         cfg.Cache.DB,
			ClientName: "esre-console",
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
		kv, shared, cachePing, closeCache = store, store, store, store.Close
	}
	defer closeCache()

	displays := displayrepo.New(
		client, kv, cfg.Cache.TTL(), cfg.Cache.KeyPrefix, metrics.DisplayCacheTotal, logger,
	)

	projectSvc := projectuc.New(projectuc.Backend{
		Projects: client.Projects(),
		Scenarios: func(projectID string) projectuc.Records[domproject.Scenario] {
			return client.Scenarios(projectID)
		},
		Strategies: func(projectID string) projectuc.Records[domproject.Strategy] {
			return client.Strategies(projectID)
		},
		Displays: func(projectID string) projectuc.Records[domdisplay.Display] {
			return client.Displays(projectID)
		},
		Evaluations: func(projectID string) projectuc.Records[domproject.Evaluation] {
			return client.Evaluations(projectID)
		},
		Runner: client,
	}, displays)

	judgementSvc := judgementuc.New(client, projectSvc, displays, metrics.RatingWritesTotal, logger)

	var (
		judge   aijudgeuc.Judge
		budget  aijudgeuc.Budget
		usageBR usageuc.BudgetReader
	)
	if cfg.Judge.Enabled {
		j := openaiJudge.NewJudge(&openaiJudge.Config{
			APIKey:  cfg.Judge.APIKey,
			BaseURL: cfg.Judge.BaseURL,
			Model:   cfg.Judge.Model,
			Logger:  logger,
		})
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := j.HealthCheck(checkCtx); err != nil {
			logger.Warn("AI judge health check failed", zap.Error(err))
		}
		cancel()
		judge = j

		tracker := usageuc.NewTracker(j.Model(), cfg.Cache.KeyPrefix, usageuc.Limits{
			Daily:   cfg.Judge.DailyTokenLimit,
			Monthly: cfg.Judge.MonthlyTokenLimit,
			Action:  usageuc.Action(cfg.Judge.BudgetAction),
		}, logger)
		if shared != nil {
			tracker = tracker.WithStore(ctx, budgetrepo.New(
				shared, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL,
			))
		}
		budget, usageBR = tracker, tracker
		logger.Info("AI judge enabled",
			zap.String("model", j.Model()),
			zap.Int64("daily_token_limit", cfg.Judge.DailyTokenLimit),
			zap.Int64("monthly_token_limit", cfg.Judge.MonthlyTokenLimit),
		)
	}
	judgeSvc := aijudgeuc.New(judge, client, projectSvc, projectSvc.Scenarios(), displays, aijudgeuc.Options{
		RatePerSec:  cfg.Judge.RatePerSec,
		Burst:       cfg.Judge.Burst,
		Concurrency: cfg.Judge.Concurrency,
		Budget:      budget,
		Ratings:     judgementSvc,
	}, logger)

	healthSvc := healthuc.New(client, cachePing)

	usageSvc := usageuc.New(usageBR)

	server := chiTransport.NewServer(projectSvc, judgementSvc, judgeSvc, usageSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.APIKeyMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
