package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aidynbek/canvas-scheduler/config"
	"github.com/aidynbek/canvas-scheduler/internal/email"
	"github.com/aidynbek/canvas-scheduler/internal/health"
	"github.com/aidynbek/canvas-scheduler/internal/infrastructure/postgres"
	"github.com/aidynbek/canvas-scheduler/internal/infrastructure/redisq"
	ctxlog "github.com/aidynbek/canvas-scheduler/internal/log"
	"github.com/aidynbek/canvas-scheduler/internal/metrics"
	"github.com/aidynbek/canvas-scheduler/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	rdb, err := redisq.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		stop()
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	logger.Info("db and redis connected")

	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{
		"postgres": pool,
		"redis":    health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}, logger, prometheus.DefaultRegisterer)

	scheduleRepo := postgres.NewScheduleRepository(pool, logger)
	recordRepo := postgres.NewRecordRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	canvasRepo := postgres.NewCanvasRepository(pool)

	lock := redisq.NewLock(rdb)
	queue := redisq.NewQueue(rdb, "runs")
	counter := redisq.NewCounter(rdb)
	bus := redisq.NewEventBus(rdb, logger)

	quotas := scheduler.DefaultTierQuotas()
	priority := scheduler.NewTierPriority(accountRepo)
	credits := scheduler.FlatCredits{PerRun: cfg.CreditsPerRun}

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	notifier := email.NewNotifier(sender, logger, time.Duration(cfg.NotifyMinIntervalSec)*time.Second)

	enforcer := scheduler.NewEnforcer(scheduleRepo, recordRepo, accountRepo, queue, quotas, notifier, logger)
	pipeline := scheduler.NewPipeline(scheduleRepo, recordRepo, canvasRepo, queue, priority, enforcer, logger)
	scanner := scheduler.NewScanner(
		scheduleRepo,
		pipeline,
		lock,
		queue,
		logger,
		time.Duration(cfg.ScanIntervalSec)*time.Second,
		cfg.ScanBatchSize,
	)
	go scanner.Start(ctx)

	reconciler := scheduler.NewReconciler(recordRepo, scheduleRepo, accountRepo, counter, credits, notifier, logger)
	reclaimer := scheduler.NewReclaimer(scheduleRepo, recordRepo, queue, logger)

	go bus.Consume(ctx, redisq.EventHandlers{
		WorkflowCompleted: reconciler.HandleCompleted,
		WorkflowFailed:    reconciler.HandleFailed,
		CanvasDeleted:     reclaimer.HandleCanvasDeleted,
	})

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
