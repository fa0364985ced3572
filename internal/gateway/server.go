// Package gateway is the local REST control plane: alert listing, manual
// remediation triggers, and policy management over localhost HTTP.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/internal/policy"
	"github.com/kev765740/dependencywarden/internal/remediation"
	"github.com/kev765740/dependencywarden/internal/store"
)

// Gateway serves the control-plane API over localhost.
type Gateway struct {
	cfg      *config.Config
	alerts   *store.AlertStore
	resolver *policy.Resolver
	exec     *remediation.Executor
	log      *slog.Logger
	started  time.Time
}

// New creates a Gateway. Call Start() to begin serving.
func New(cfg *config.Config, alerts *store.AlertStore, resolver *policy.Resolver,
	exec *remediation.Executor, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		cfg:      cfg,
		alerts:   alerts,
		resolver: resolver,
		exec:     exec,
		log:      log,
		started:  time.Now(),
	}
}

// buildHandler wires all REST routes onto a new ServeMux.
// Uses Go 1.22+ method-prefixed patterns ("GET /path", "POST /path").
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", gw.handleHealth)

	mux.HandleFunc("GET /api/alerts", gw.handleListAlerts)
	mux.HandleFunc("GET /api/alerts/{id}", gw.handleGetAlert)
	mux.HandleFunc("POST /api/alerts/{id}/remediate", gw.handleRemediate)
	mux.HandleFunc("POST /api/alerts/{id}/retry", gw.handleRetry)

	mux.HandleFunc("GET /api/repos/{id}/policy", gw.handleGetPolicy)
	mux.HandleFunc("PATCH /api/repos/{id}/policy", gw.handleUpdatePolicy)
	mux.HandleFunc("POST /api/repos/{id}/policy/validate", gw.handleValidatePolicy)

	return mux
}

// Start binds the HTTP server and blocks until ctx is cancelled.
func (gw *Gateway) Start(ctx context.Context) error {
	port := gw.cfg.Gateway.Port
	if port == 0 {
		port = 6180
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: buildHandler(gw),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	gw.log.Info("gateway: listening", "addr", "http://"+addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     time.Since(gw.started).Round(time.Second).String(),
		"started_at": gw.started.UTC().Format(time.RFC3339),
	})
}
