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

	"github.com/jordivila/parroquia-assistant/internal/bootstrap"
	"github.com/jordivila/parroquia-assistant/internal/config"
	"github.com/jordivila/parroquia-assistant/internal/core/domain"
	"github.com/jordivila/parroquia-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup("worker", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.Metrics.Handler(),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	go sweepExpired(ctx, app, cfg.SweepInterval)

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeAnswerProduced(ctx, func(handlerCtx context.Context, event domain.AnswerProduced) error {
		persistCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		app.Metrics.StartPersist()
		start := time.Now()
		err := app.Store.Set(persistCtx, event.Question, event.Answer)
		app.Metrics.FinishPersist(time.Since(start), err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// sweepExpired removes expired rows on a timer so the table does not rely on
// lazy expiry alone.
func sweepExpired(ctx context.Context, app *bootstrap.WorkerApp, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			deleted, err := app.Store.DeleteExpired(sweepCtx)
			cancel()
			if err != nil {
				slog.Warn("expired_sweep_failed", "error", err)
				continue
			}
			app.Metrics.RecordSweep(int(deleted))
			if deleted > 0 {
				slog.Info("expired_rows_deleted", "count", deleted)
			}
		}
	}
}
