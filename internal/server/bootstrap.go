package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"aegis/internal/alert"
	"aegis/internal/analyzer"
	"aegis/internal/async"
	"aegis/internal/config"
	"aegis/internal/ingest"
	"aegis/internal/llm"
	"aegis/internal/logging"
	"aegis/internal/metrics"
	"aegis/internal/orchestrator"
	"aegis/internal/reconcile"
	"aegis/internal/store"
)

// Run wires the whole engine from configuration and serves until SIGINT or
// SIGTERM.
func Run(cfg *config.Config) error {
	logging.SetLevel(cfg.LogLevel)
	logger := logging.NewComponentLogger("bootstrap")
	defer logging.Sync()

	gin.SetMode(gin.ReleaseMode)

	st, err := store.Open(cfg.StorePath, logging.NewComponentLogger("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("Store close: %v", cerr)
		}
	}()

	heuristic := analyzer.New()
	classifier := llm.New(cfg, heuristic, logging.NewComponentLogger("llm"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	orch := orchestrator.New(classifier, heuristic, cfg.AIDeadline, cfg.LLMMaxInflight,
		logging.NewComponentLogger("orchestrator"))
	orch.SetObserver(m)

	notifier := alert.New(cfg.AlertWebhookURL, logging.NewComponentLogger("alert"))

	worker := reconcile.NewWorker(st, classifier, m, logging.NewComponentLogger("reconcile"))
	scheduler := reconcile.NewScheduler(worker, st, cfg.ReconcileInterval,
		cfg.ReconcileBatchSize, cfg.ReconcileGap, logging.NewComponentLogger("reconcile"))

	pipeline := ingest.New(orch, st, notifier, scheduler, m, logging.NewComponentLogger("ingest"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	handlers := NewHandlers(pipeline, st, scheduler, logging.NewComponentLogger("http"))
	router := NewRouter(handlers, cfg.AllowedOrigins, registry, logging.NewComponentLogger("http"))

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	err = serveUntilSignal(httpServer, logger)

	// Stop background work before the store closes.
	cancel()
	scheduler.Stop()
	<-scheduler.Done()
	return err
}

func serveUntilSignal(server *http.Server, logger logging.Logger) error {
	logger = logging.OrNop(logger)

	errCh := make(chan error, 1)
	async.Go(logger, "server.listen", func() {
		logger.Info("Server listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err == nil || err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := server.Shutdown(ctx)

		serveErr := <-errCh
		if serveErr == http.ErrServerClosed {
			serveErr = nil
		}

		if shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}
		if serveErr != nil {
			return fmt.Errorf("server error: %w", serveErr)
		}

		logger.Info("Server stopped")
		return nil
	}
}
