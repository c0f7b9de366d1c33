package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/imgfit/imgfit/internal/config"
	"github.com/imgfit/imgfit/internal/engine"
	"github.com/imgfit/imgfit/internal/handler"
	"github.com/imgfit/imgfit/internal/logger"
	"github.com/imgfit/imgfit/internal/middleware"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Console:    cfg.Logging.Console,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New(cfg, log)
	eng.Start()
	defer eng.Stop()

	h := handler.New(eng, log, cfg.Server.MaxUploadMB)

	router := mux.NewRouter()
	router.HandleFunc("/compress", h.Compress).Methods(http.MethodPost)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Apply middlewares in order (outermost first):
	// 1. Security headers (always applied)
	// 2. Rate limiting (per IP)
	// 3. Concurrency limit (global)
	// 4. Request ID (tags the request for log correlation)
	// 5. Recovery (catches panics)
	// 6. Logger (logs requests)
	chain := middleware.Security(
		middleware.RateLimit(log, cfg.Limits.RateLimitPerSec, cfg.Limits.RateLimitBurst)(
			middleware.ConcurrencyLimit(log, cfg.Limits.MaxConcurrent)(
				middleware.RequestID(
					middleware.Recovery(log)(
						middleware.Logger(log)(router),
					),
				),
			),
		),
	)

	// Timeouts prevent slowloris and hanging connections
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":           server.Addr,
			"default_budget": cfg.Compress.DefaultMaxSizeBytes,
			"max_upload_mb":  cfg.Server.MaxUploadMB,
			"max_concurrent": cfg.Limits.MaxConcurrent,
			"rate_limit":     cfg.Limits.RateLimitPerSec,
			"workers":        cfg.Limits.WorkerCount,
		}).Info("image compression API listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}
