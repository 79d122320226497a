package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidtube/vidtube-backend/internal/app"
	"github.com/vidtube/vidtube-backend/internal/config"
	"github.com/vidtube/vidtube-backend/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.App.Env == "dev" {
		level = slog.LevelDebug
	}
	log := logging.NewDefault(level).With("service", "vidtube-api", "version", cfg.App.Version)

	ctx := context.Background()
	application, err := app.New(cfg, log)
	if err != nil {
		log.Error(ctx, "app init failed", "err", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      application.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info(ctx, "http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", "err", err)
	}
	if err := application.Close(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "app close failed", "err", err)
	}
}
