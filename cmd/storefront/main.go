// cmd/storefront/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "storefront/internal/infra/config"
	"storefront/internal/platform/di"
)

func newLogger(cfg *appcfg.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zc.Level = lvl
	}
	return zc.Build()
}

func main() {
	cfg := appcfg.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("boot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cont, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		log.Fatal("di init failed", zap.Error(err))
	}
	defer cont.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           cont.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// backend calls are bounded by STOREFRONT_API_TIMEOUT
		WriteTimeout: cfg.BackendTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		cont.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("port", cfg.Port), zap.String("store_backend", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("signal received; shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
		stop()
	}

	// Graceful shutdown for Cloud Run
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}
	<-runDone

	log.Info("server stopped")
}
