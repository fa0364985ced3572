package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/internal/database"
	"github.com/kev765740/dependencywarden/internal/hosting"
	"github.com/kev765740/dependencywarden/internal/policy"
	"github.com/kev765740/dependencywarden/internal/remediation"
	"github.com/kev765740/dependencywarden/internal/resilience"
	"github.com/kev765740/dependencywarden/internal/store"
	"github.com/kev765740/dependencywarden/models"
)

type noProviders struct{}

func (noProviders) ProviderFor(string) (hosting.Provider, error) {
	return nil, errors.New("no providers configured")
}

func newTestGateway(t *testing.T) (*httptest.Server, *store.AlertStore) {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "gateway.db"),
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	alerts := store.NewAlertStore(db)
	resolver := policy.NewResolver(store.NewPolicyStore(db))
	calls := resilience.NewExecutor(resilience.RetryConfig{
		MaxAttempts: 1, BaseDelay: time.Millisecond, Timeout: time.Second,
	})
	log := slog.New(slog.NewTextHandler(new(bytes.Buffer), nil))
	exec := remediation.NewExecutor(alerts, resolver, noProviders{}, calls, nil, log)

	gw := New(&config.Config{}, alerts, resolver, exec, log)
	srv := httptest.NewServer(buildHandler(gw))
	t.Cleanup(srv.Close)
	return srv, alerts
}

func getJSON(t *testing.T, url string, wantStatus int, into any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
}

func doJSON(t *testing.T, method, url string, body any, wantStatus int, into any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d", method, url, resp.StatusCode, wantStatus)
	}
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestGateway(t)
	var payload map[string]any
	getJSON(t, srv.URL+"/health", http.StatusOK, &payload)
	if payload["status"] != "ok" {
		t.Fatalf("health payload: %v", payload)
	}
}

func TestAlertEndpoints(t *testing.T) {
	srv, alerts := newTestGateway(t)
	ctx := context.Background()

	id, err := alerts.Insert(ctx, &models.Alert{
		RepoID: 7, RepoURL: "https://github.com/acme/web",
		Dependency: "leftpad", AlertType: models.AlertTypeSecurity,
		Severity: models.SeverityHigh, FixedVersion: "1.2.3",
	})
	if err != nil {
		t.Fatal(err)
	}

	var list struct {
		Count int `json:"count"`
	}
	getJSON(t, srv.URL+"/api/alerts", http.StatusOK, &list)
	if list.Count != 1 {
		t.Fatalf("alert count: %d", list.Count)
	}
	getJSON(t, srv.URL+"/api/alerts?status=pending", http.StatusOK, &list)
	if list.Count != 1 {
		t.Fatalf("pending count: %d", list.Count)
	}

	var alert models.Alert
	getJSON(t, fmt.Sprintf("%s/api/alerts/%d", srv.URL, id), http.StatusOK, &alert)
	if alert.Dependency != "leftpad" {
		t.Fatalf("alert: %+v", alert)
	}

	getJSON(t, srv.URL+"/api/alerts/9999", http.StatusNotFound, nil)
	getJSON(t, srv.URL+"/api/alerts/nan", http.StatusBadRequest, nil)
}

func TestRemediateEndpointReturnsSkipOutcome(t *testing.T) {
	srv, alerts := newTestGateway(t)

	// Low severity is outside the default allowed set, so the attempt is
	// declined before any provider is needed.
	id, err := alerts.Insert(context.Background(), &models.Alert{
		RepoID: 7, RepoURL: "https://github.com/acme/web",
		Dependency: "leftpad", AlertType: models.AlertTypeSecurity,
		Severity: models.SeverityLow,
	})
	if err != nil {
		t.Fatal(err)
	}

	var out models.RemediationOutcome
	doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/alerts/%d/remediate", srv.URL, id), nil, http.StatusOK, &out)
	if !out.Skipped || out.SkipReason == "" {
		t.Fatalf("outcome: %+v", out)
	}

	// Retrying a pending alert is a conflict.
	doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/alerts/%d/retry", srv.URL, id), nil, http.StatusConflict, nil)
}

func TestPolicyEndpoints(t *testing.T) {
	srv, _ := newTestGateway(t)

	var p models.AutoFixPolicy
	getJSON(t, srv.URL+"/api/repos/7/policy", http.StatusOK, &p)
	if p.MaxDailyPRs != 5 || !p.Enabled {
		t.Fatalf("default policy: %+v", p)
	}

	// Invalid patch: rejected, nothing persisted.
	doJSON(t, http.MethodPatch, srv.URL+"/api/repos/7/policy",
		map[string]any{"max_daily_prs": 75}, http.StatusUnprocessableEntity, nil)
	getJSON(t, srv.URL+"/api/repos/7/policy", http.StatusOK, &p)
	if p.MaxDailyPRs != 5 {
		t.Fatalf("rejected patch mutated the policy: %+v", p)
	}

	// Valid patch persists.
	var updated struct {
		Policy models.AutoFixPolicy `json:"policy"`
	}
	doJSON(t, http.MethodPatch, srv.URL+"/api/repos/7/policy",
		map[string]any{"max_daily_prs": 10}, http.StatusOK, &updated)
	if updated.Policy.MaxDailyPRs != 10 {
		t.Fatalf("updated policy: %+v", updated.Policy)
	}

	// Dry-run validation reports errors without persisting.
	var report policy.Report
	doJSON(t, http.MethodPost, srv.URL+"/api/repos/7/policy/validate",
		map[string]any{"max_daily_prs": 0}, http.StatusOK, &report)
	if !report.HasErrors() {
		t.Fatalf("expected validation errors, got %+v", report)
	}
	getJSON(t, srv.URL+"/api/repos/7/policy", http.StatusOK, &p)
	if p.MaxDailyPRs != 10 {
		t.Fatalf("dry run mutated the policy: %+v", p)
	}
}
