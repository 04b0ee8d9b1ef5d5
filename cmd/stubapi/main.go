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
	"go.uber.org/zap"

	"studiodesk/internal/config"
	"studiodesk/internal/logging"
	"studiodesk/internal/stubapi"
)

// Stub API for local development. Data lives in memory unless
// STUB_DATABASE_URL points at postgres.
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
	logger = logger.Named("stubapi")

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	var store stubapi.Store = stubapi.NewMemoryStore()
	if cfg.Stub.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := stubapi.OpenPostgres(ctx, cfg.Stub.DatabaseURL)
		cancel()
		if err != nil {
			logger.Fatal("postgres not reachable", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		store = pg
		logger.Info("using postgres store")
	} else {
		logger.Info("using in-memory store")
	}

	srv := stubapi.New(store, stubapi.Options{
		Issuer:        cfg.Stub.JWTIssuer,
		SigningKey:    cfg.Stub.JWTSigningKey,
		AccessTTL:     cfg.Stub.AccessTTL,
		AdminUser:     cfg.Stub.AdminUser,
		AdminPassword: cfg.Stub.AdminPassword,
	}, logger)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Stub.Port,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting stub api", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	logger.Info("stub api exited")
}
