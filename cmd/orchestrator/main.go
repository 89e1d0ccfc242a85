// cmd/orchestrator/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"product-discovery/internal/app"
	"product-discovery/internal/common/config"
	commonerrors "product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/common/observability"
	"product-discovery/internal/models"
	"product-discovery/internal/pipeline"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting orchestrator", map[string]interface{}{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.Connect(ctx, cfg, log)
	if err != nil {
		log.Error("infrastructure unavailable", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer infra.Close()

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	pipe, err := app.BuildPipeline(cfg, infra, obs, log)
	if err != nil {
		log.Error("pipeline construction failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         cfg.App.ListenAddr,
		Handler:      newRouter(pipe, infra, log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", map[string]interface{}{"addr": cfg.App.ListenAddr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", map[string]interface{}{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	log.Info("orchestrator stopped", nil)
}

func newRouter(pipe *pipeline.Pipeline, infra *app.Infrastructure, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler(infra))
	mux.HandleFunc("/query", queryHandler(pipe, log))
	return mux
}

func queryHandler(pipe *pipeline.Pipeline, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req models.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, commonerrors.NewValidationError("request body is not valid JSON"))
			return
		}

		resp, err := pipe.Process(r.Context(), &req)
		if err != nil {
			var stdErr *commonerrors.StandardError
			if errors.As(err, &stdErr) && stdErr.Code == commonerrors.ErrCodeValidationFailed {
				writeError(w, http.StatusBadRequest, stdErr)
				return
			}
			log.Error("query processing failed", map[string]interface{}{"error": err.Error()})
			writeError(w, http.StatusInternalServerError, commonerrors.NewToolExecutionError("pipeline", err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error("response encoding failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func healthHandler(infra *app.Infrastructure) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{
			"postgres":      "ok",
			"redis":         "ok",
			"elasticsearch": "ok",
		}
		healthy := true

		if err := infra.Postgres.Ping(ctx); err != nil {
			status["postgres"] = err.Error()
			healthy = false
		}
		if err := infra.Redis.Ping(ctx); err != nil {
			status["redis"] = err.Error()
			healthy = false
		}
		if err := infra.Elasticsearch.Ping(ctx); err != nil {
			status["elasticsearch"] = err.Error()
			healthy = false
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	}
}

func writeError(w http.ResponseWriter, status int, err *commonerrors.StandardError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": err})
}
