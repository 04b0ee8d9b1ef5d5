package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/config"
	"studiodesk/internal/logging"
	"studiodesk/internal/queue"
	"studiodesk/internal/session"
	"studiodesk/internal/worker"
)

// noSession is the worker's view of auth: it never holds a credential of
// its own and every logout carries its token explicitly.
type noSession struct{}

func (noSession) Token() string                           { return "" }
func (noSession) Epoch() uint64                           { return 0 }
func (noSession) ExpireAuth(context.Context, uint64) bool { return false }

// Worker drains outbound tasks published by the dashboard to redis.
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
	logger = logger.Named("worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		logger.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the dashboard")
	}
	redisClient := session.NewRedisClient(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	q := queue.NewRedisQueue(redisClient, cfg.QueueKey)
	if !q.Healthy(ctx) {
		logger.Warn("redis not reachable yet, will keep polling", zap.String("addr", cfg.RedisAddr))
	}

	client := apiclient.New(cfg.APIBaseURL, cfg.APITimeout, noSession{})
	if err := worker.Run(ctx, q, client, logger); err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}
}
