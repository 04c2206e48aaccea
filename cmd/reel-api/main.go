// Reel API — HTTP API для запуска пайплайнов и просмотра их статуса.
//
// Без RabbitMQ API сам продвигает jobs (встроенный движок).
// С RabbitMQ API только записывает jobs и публикует job.trigger,
// выполнением занимается reel-engine.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Reel/internal/api"
	"github.com/shaiso/Reel/internal/app"
	"github.com/shaiso/Reel/internal/config"
	"github.com/shaiso/Reel/internal/telemetry"
)

var startTime = time.Now()

func main() {
	configPath := flag.String("config", "", "path to config file (reel.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.Log())
	logger.Info("starting reel-api", "store", cfg.StoreDriver)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	broker, err := app.ConnectBroker(ctx, cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer broker.Close()

	locker, closeLock, err := app.ConnectLock(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer closeLock()

	metrics := telemetry.NewMetrics(nil)

	engine, err := app.NewEngine(cfg, app.EngineOptions{
		Store:   store,
		Broker:  broker,
		Lock:    locker,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	// Встроенный движок: polling и crash recovery в этом же процессе
	if !broker.Enabled() {
		if err := engine.Orchestrator.Start(ctx); err != nil {
			logger.Error("failed to start orchestrator", "error", err)
			os.Exit(1)
		}
		defer engine.Orchestrator.Stop()
		logger.Info("embedded engine started")
	}

	handler := api.NewHandler(api.Config{
		Jobs:      engine.Orchestrator,
		Workflows: engine.Workflows,
		Providers: store.Providers,
		Metrics:   metrics,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.APIAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
