package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/config"
	"studiodesk/internal/dashboard"
	"studiodesk/internal/logging"
	"studiodesk/internal/notify"
	"studiodesk/internal/queue"
	"studiodesk/internal/session"
	"studiodesk/internal/studio"
	"studiodesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.SessionBackend == "redis" || cfg.QueueBackend == "redis" {
		redisClient = session.NewRedisClient(cfg.RedisAddr)
		defer func() { _ = redisClient.Close() }()
	}

	var store session.Storage = session.NewMemoryStorage()
	if cfg.SessionBackend == "redis" {
		store = session.NewRedisStorage(redisClient, cfg.SessionPrefix, cfg.SessionTTL)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient, cfg.QueueKey)
	}

	sess := session.NewManager(store, logger.Named("session"), session.WithRevoker(worker.QueueRevoker{Q: q}))
	if err := sess.Restore(ctx); err != nil {
		logger.Warn("restore session failed", zap.Error(err))
	}
	go logSessionEvents(ctx, sess.Subscribe(), logger)

	client := apiclient.New(cfg.APIBaseURL, cfg.APITimeout, sess)

	// The in-memory queue only exists in this process, so drain it here.
	// The redis queue is drained by cmd/worker.
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := worker.Run(ctx, q, client, logger.Named("worker")); err != nil {
				logger.Error("worker stopped", zap.Error(err))
			}
		}()
	}

	notices := notify.NewRecorder(100)
	notifier := notify.Multi{notices, notify.Logger{L: logger.Named("notice")}}
	views := studio.NewViews(client, sess, notifier, logger.Named("views"))

	srv := dashboard.New(dashboard.Deps{
		Session:         sess,
		Client:          client,
		Views:           views,
		Notices:         notices,
		Notifier:        notifier,
		Logger:          logger.Named("http"),
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
		Metrics:         cfg.MetricsEnabled,
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.APITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting dashboard", zap.String("addr", httpSrv.Addr), zap.String("api", cfg.APIBaseURL))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down dashboard")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	logger.Info("dashboard exited")
	return nil
}

func logSessionEvents(ctx context.Context, events <-chan session.Event, logger *zap.Logger) {
	for {
		select {
		case ev := <-events:
			logger.Info("session event", zap.String("kind", string(ev.Kind)), zap.Uint64("epoch", ev.Epoch))
		case <-ctx.Done():
			return
		}
	}
}
