// Reel Engine — выполняет шаги jobs.
//
// Engine:
//   - Получает job.trigger из RabbitMQ (если брокер настроен)
//   - Периодически опрашивает хранилище на незавершённые jobs
//   - Восстанавливает tasks, брошенные упавшим процессом
//   - Публикует job.finished
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

	"github.com/shaiso/Reel/internal/app"
	"github.com/shaiso/Reel/internal/config"
	"github.com/shaiso/Reel/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file (reel.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log())
	logger.Info("starting reel-engine", "store", cfg.StoreDriver)

	// graceful shutdown
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
		logger.Warn("rabbitmq not available, running in polling-only mode", "error", err)
		broker = &app.Broker{}
	}
	defer broker.Close()

	locker, closeLock, err := app.ConnectLock(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer closeLock()

	engine, err := app.NewEngine(cfg, app.EngineOptions{
		Store:   store,
		Broker:  broker,
		Consume: true,
		Lock:    locker,
		Metrics: telemetry.NewMetrics(nil),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	if err := engine.Orchestrator.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok active_jobs=%d", engine.Orchestrator.ActiveJobsCount())
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.EngineAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.EngineAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	// Останавливаем orchestrator: tasks в processing подберёт следующий запуск
	engine.Orchestrator.Stop()
	logger.Info("reel-engine stopped")
}
