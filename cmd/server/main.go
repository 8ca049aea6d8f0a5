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

	"github.com/gin-gonic/gin"
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
	httptransport "github.com/aidynbek/canvas-scheduler/internal/transport/http"
	"github.com/aidynbek/canvas-scheduler/internal/transport/http/handler"
	"github.com/aidynbek/canvas-scheduler/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

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

	scheduleRepo := postgres.NewScheduleRepository(pool, logger)
	recordRepo := postgres.NewRecordRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	canvasRepo := postgres.NewCanvasRepository(pool)

	lock := redisq.NewLock(rdb)
	queue := redisq.NewQueue(rdb, "runs")

	quotas := scheduler.DefaultTierQuotas()
	priority := scheduler.NewTierPriority(accountRepo)

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	notifier := email.NewNotifier(sender, logger, time.Duration(cfg.NotifyMinIntervalSec)*time.Second)

	// The API shares the trigger pipeline so that a schedule created or
	// re-enabled with an already-due slot fires without waiting for the
	// next scan tick.
	enforcer := scheduler.NewEnforcer(scheduleRepo, recordRepo, accountRepo, queue, quotas, notifier, logger)
	pipeline := scheduler.NewPipeline(scheduleRepo, recordRepo, canvasRepo, queue, priority, enforcer, logger)
	checker := scheduler.NewScanner(
		scheduleRepo,
		pipeline,
		lock,
		queue,
		logger,
		time.Duration(cfg.ScanIntervalSec)*time.Second,
		cfg.ScanBatchSize,
	)

	scheduleUsecase := usecase.NewScheduleUsecase(scheduleRepo, recordRepo, canvasRepo, priority, queue, checker, logger)
	scheduleHandler := handler.NewScheduleHandler(scheduleUsecase, logger)

	recordUsecase := usecase.NewRecordUsecase(recordRepo, priority, queue)
	recordHandler := handler.NewRecordHandler(recordUsecase, logger)

	metrics.Register()
	healthChecker := health.NewChecker(map[string]health.Pinger{
		"postgres": pool,
		"redis":    health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, scheduleHandler, recordHandler, accountRepo, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, healthChecker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
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
