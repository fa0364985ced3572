package remediation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/internal/database"
	"github.com/kev765740/dependencywarden/internal/hosting"
	"github.com/kev765740/dependencywarden/internal/notify"
	"github.com/kev765740/dependencywarden/internal/policy"
	"github.com/kev765740/dependencywarden/internal/resilience"
	"github.com/kev765740/dependencywarden/internal/store"
	"github.com/kev765740/dependencywarden/models"
)

const testManifest = `{
  "name": "web",
  "dependencies": {
    "leftpad": "^1.0.0"
  }
}
`

// fakeProvider is an in-memory hosting platform. Mutations are recorded so
// tests can assert call counts and payloads.
type fakeProvider struct {
	mu    sync.Mutex
	files map[string][]byte

	getFileErr      error
	createBranchErr error
	branchDelay     time.Duration

	branchCalls atomic.Int32
	puts        []hosting.PutFileOptions
	prs         []hosting.CreatePROptions
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		files: map[string][]byte{"package.json": []byte(testManifest)},
	}
}

func (f *fakeProvider) Name() string { return "github" }
func (f *fakeProvider) Host() string { return "github.com" }

func (f *fakeProvider) GetRepo(_ context.Context, owner, name string) (*models.Repo, error) {
	return &models.Repo{
		Provider: "github", Host: "github.com",
		Owner: owner, Name: name, FullName: owner + "/" + name,
		DefaultBranch: "main",
	}, nil
}

func (f *fakeProvider) GetBranchHead(_ context.Context, _ *models.Repo, _ string) (string, error) {
	return "abc123", nil
}

func (f *fakeProvider) CreateBranch(_ context.Context, _ *models.Repo, _, _ string) error {
	f.branchCalls.Add(1)
	if f.branchDelay > 0 {
		time.Sleep(f.branchDelay)
	}
	return f.createBranchErr
}

func (f *fakeProvider) GetFile(_ context.Context, _ *models.Repo, _, path string) ([]byte, string, error) {
	if f.getFileErr != nil {
		return nil, "", f.getFileErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	if !ok {
		return nil, "", &resilience.StatusError{Code: 404, Msg: path + " not found"}
	}
	return content, "sha-" + path, nil
}

func (f *fakeProvider) PutFile(_ context.Context, _ *models.Repo, opts hosting.PutFileOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, opts)
	return nil
}

func (f *fakeProvider) CreatePR(_ context.Context, repo *models.Repo, opts hosting.CreatePROptions) (*models.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs = append(f.prs, opts)
	return &models.PullRequest{
		ID: 99, Number: len(f.prs),
		URL:        fmt.Sprintf("https://github.com/%s/pull/%d", repo.FullName, len(f.prs)),
		HeadBranch: opts.HeadBranch, BaseBranch: opts.BaseBranch,
	}, nil
}

type fakeProviders struct{ p hosting.Provider }

func (f fakeProviders) ProviderFor(repoURL string) (hosting.Provider, error) {
	if _, err := hosting.DetectProvider(repoURL); err != nil {
		return nil, fmt.Errorf("%w: %v", hosting.ErrMalformedRepoURL, err)
	}
	return f.p, nil
}

type testEnv struct {
	exec     *Executor
	alerts   *store.AlertStore
	policies *store.PolicyStore
	resolver *policy.Resolver
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "remediation.db"),
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	alerts := store.NewAlertStore(db)
	policies := store.NewPolicyStore(db)
	resolver := policy.NewResolver(policies)
	provider := newFakeProvider()
	calls := resilience.NewExecutor(resilience.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Timeout:     time.Second,
	})
	log := slog.New(slog.NewTextHandler(new(bytes.Buffer), nil))

	return &testEnv{
		exec:     NewExecutor(alerts, resolver, fakeProviders{p: provider}, calls, nil, log),
		alerts:   alerts,
		policies: policies,
		resolver: resolver,
		provider: provider,
	}
}

func (env *testEnv) seedAlert(t *testing.T, mutate func(*models.Alert)) int64 {
	t.Helper()
	a := &models.Alert{
		RepoID:       7,
		RepoURL:      "https://github.com/acme/web",
		Dependency:   "leftpad",
		AlertType:    models.AlertTypeSecurity,
		Severity:     models.SeverityHigh,
		Description:  "prototype pollution, fixed in >= 1.2.3",
		FixedVersion: "1.2.3",
	}
	if mutate != nil {
		mutate(a)
	}
	id, err := env.alerts.Insert(context.Background(), a)
	if err != nil {
		t.Fatalf("seeding alert: %v", err)
	}
	return id
}

func TestExecuteOpensFixPR(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedAlert(t, nil)

	out := env.exec.Execute(context.Background(), id)
	if !out.Success || out.Error != "" {
		t.Fatalf("expected success, got %+v", out)
	}
	if !strings.HasPrefix(out.Branch, policy.DefaultBranchPrefix+"/leftpad-") {
		t.Fatalf("branch name: %s", out.Branch)
	}

	if got := env.provider.branchCalls.Load(); got != 1 {
		t.Fatalf("expected one branch creation, got %d", got)
	}
	if len(env.provider.puts) != 1 {
		t.Fatalf("expected one manifest write, got %+v", env.provider.puts)
	}
	put := env.provider.puts[0]
	if put.Path != "package.json" || put.BaseSHA != "sha-package.json" {
		t.Fatalf("manifest write: %+v", put)
	}
	if !strings.Contains(string(put.Content), `"leftpad": "^1.2.3"`) {
		t.Fatalf("manifest content:\n%s", put.Content)
	}
	if len(env.provider.prs) != 1 || env.provider.prs[0].BaseBranch != "main" {
		t.Fatalf("pull request: %+v", env.provider.prs)
	}

	alert, _ := env.alerts.GetByID(context.Background(), id)
	if alert.Status != models.StatusPRCreated || alert.PRURL == "" || alert.PRNumber != 1 {
		t.Fatalf("alert not persisted as pr_created: %+v", alert)
	}

	// The event row backs the daily quota.
	count, err := env.alerts.CountPRsSince(context.Background(), 7, time.Now().UTC().Add(-time.Hour))
	if err != nil || count != 1 {
		t.Fatalf("remediation event not recorded: %d, %v", count, err)
	}
}

func TestExecuteFailurePersistsFailedState(t *testing.T) {
	env := newTestEnv(t)
	env.provider.createBranchErr = &resilience.StatusError{Code: 403, Msg: "branch protection"}
	id := env.seedAlert(t, nil)

	out := env.exec.Execute(context.Background(), id)
	if out.Success || out.Error == "" {
		t.Fatalf("expected failure outcome, got %+v", out)
	}

	alert, _ := env.alerts.GetByID(context.Background(), id)
	if alert.Status != models.StatusFailed {
		t.Fatalf("status: %s", alert.Status)
	}
	if !strings.Contains(alert.RemediationError, "branch protection") {
		t.Fatalf("failure cause not persisted: %q", alert.RemediationError)
	}
	// 403 is permanent; the retry budget must not have burned extra calls.
	if got := env.provider.branchCalls.Load(); got != 1 {
		t.Fatalf("expected a single upstream call for a permanent error, got %d", got)
	}
}

func TestExecuteConcurrentDuplicatesCollapse(t *testing.T) {
	env := newTestEnv(t)
	env.provider.branchDelay = 100 * time.Millisecond
	id := env.seedAlert(t, nil)

	const callers = 4
	outcomes := make([]*models.RemediationOutcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = env.exec.Execute(context.Background(), id)
		}(i)
	}
	wg.Wait()

	if got := env.provider.branchCalls.Load(); got != 1 {
		t.Fatalf("duplicate executions reached the provider: %d branch creations", got)
	}
	if len(env.provider.prs) != 1 {
		t.Fatalf("expected exactly one PR, got %d", len(env.provider.prs))
	}
	for i, out := range outcomes {
		if !out.Success {
			t.Fatalf("caller %d outcome: %+v", i, out)
		}
	}
}

func TestExecuteDegradesToAdvisoryPR(t *testing.T) {
	env := newTestEnv(t)
	env.provider.getFileErr = &resilience.StatusError{Code: 502, Msg: "contents API down"}
	id := env.seedAlert(t, nil)

	out := env.exec.Execute(context.Background(), id)
	if !out.Success || !out.Degraded {
		t.Fatalf("expected degraded success, got %+v", out)
	}
	if len(env.provider.puts) != 1 {
		t.Fatalf("expected exactly one advisory write, got %+v", env.provider.puts)
	}
	put := env.provider.puts[0]
	if put.Path != "SECURITY-UPDATE-leftpad.md" || put.BaseSHA != "" {
		t.Fatalf("advisory write: %+v", put)
	}

	alert, _ := env.alerts.GetByID(context.Background(), id)
	if alert.Status != models.StatusPRCreated {
		t.Fatalf("degraded remediation should still open a PR: %s", alert.Status)
	}
}

func TestExecuteSkipLeavesAlertPending(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedAlert(t, func(a *models.Alert) { a.Severity = models.SeverityLow })

	out := env.exec.Execute(context.Background(), id)
	if !out.Skipped || out.SkipReason == "" {
		t.Fatalf("expected skip, got %+v", out)
	}
	if got := env.provider.branchCalls.Load(); got != 0 {
		t.Fatalf("skipped attempt must not touch the provider: %d calls", got)
	}

	alert, _ := env.alerts.GetByID(context.Background(), id)
	if alert.Status != models.StatusPending {
		t.Fatalf("skipped alert must stay pending: %s", alert.Status)
	}
}

func TestExecuteVersionBoundGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	patch := models.VersionChangePatch
	if err := env.policies.SaveRule(ctx, &models.PackageRule{
		RepoID:           7,
		Package:          "leftpad",
		MaxVersionChange: &patch,
	}); err != nil {
		t.Fatalf("saving rule: %v", err)
	}
	id := env.seedAlert(t, func(a *models.Alert) {
		a.Description = "remote code execution, fixed in >= 2.0.0"
		a.FixedVersion = "2.0.0"
	})

	out := env.exec.Execute(ctx, id)
	if !out.Skipped || !strings.Contains(out.SkipReason, "major") {
		t.Fatalf("expected version bound skip, got %+v", out)
	}
	if got := env.provider.branchCalls.Load(); got != 0 {
		t.Fatalf("declined bump must not create a branch: %d calls", got)
	}
	alert, _ := env.alerts.GetByID(ctx, id)
	if alert.Status != models.StatusPending {
		t.Fatalf("declined bump must leave the alert pending: %s", alert.Status)
	}
}

func TestExecuteQuotaGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Exhaust the default quota of 5 PRs for the repo.
	for i := 0; i < 5; i++ {
		if err := env.alerts.RecordPREvent(ctx, int64(100+i), 7, "b", "u", i+1); err != nil {
			t.Fatalf("seeding events: %v", err)
		}
	}
	id := env.seedAlert(t, nil)

	out := env.exec.Execute(ctx, id)
	if !out.Skipped || !strings.Contains(out.SkipReason, "quota") {
		t.Fatalf("expected quota skip, got %+v", out)
	}
	alert, _ := env.alerts.GetByID(ctx, id)
	if alert.Status != models.StatusPending {
		t.Fatalf("quota skip must leave the alert pending: %s", alert.Status)
	}
}

func TestExecuteMalformedURLFailsFast(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedAlert(t, func(a *models.Alert) { a.RepoURL = "https://github.com/" })

	out := env.exec.Execute(context.Background(), id)
	if out.Success || out.Error == "" {
		t.Fatalf("expected data failure, got %+v", out)
	}
	alert, _ := env.alerts.GetByID(context.Background(), id)
	if alert.Status != models.StatusFailed {
		t.Fatalf("status: %s", alert.Status)
	}
	if got := env.provider.branchCalls.Load(); got != 0 {
		t.Fatalf("malformed URL must fail before any provider call: %d", got)
	}
}

func TestExecuteHonorsNotifyPreferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()
	env.exec.notifier = notify.NewDispatcher(config.NotifyConfig{
		Webhook: config.WebhookNotifyConfig{URL: srv.URL},
	})

	off := false
	if _, report, err := env.resolver.Update(ctx, 7, &models.PolicyPatch{NotifyOnFailure: &off}); err != nil || report.HasErrors() {
		t.Fatalf("updating policy: %v, %+v", err, report)
	}

	env.provider.createBranchErr = &resilience.StatusError{Code: 403, Msg: "nope"}
	id := env.seedAlert(t, nil)
	if out := env.exec.Execute(ctx, id); out.Error == "" {
		t.Fatalf("expected failure, got %+v", out)
	}
	if got := hits.Load(); got != 0 {
		t.Fatalf("notify_on_failure is off but the webhook received %d event(s)", got)
	}

	// notify_on_success is still on, so an opened PR notifies.
	env.provider.createBranchErr = nil
	id2 := env.seedAlert(t, nil)
	if out := env.exec.Execute(ctx, id2); !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected one pr_created event, got %d", got)
	}
}

func TestRetryRequeuesOnlyFailedAlerts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provider.createBranchErr = &resilience.StatusError{Code: 403, Msg: "nope"}
	id := env.seedAlert(t, nil)

	env.exec.Execute(ctx, id)
	if err := env.exec.Retry(ctx, id); err != nil {
		t.Fatalf("retrying a failed alert: %v", err)
	}
	alert, _ := env.alerts.GetByID(ctx, id)
	if alert.Status != models.StatusPending || alert.RemediationError != "" {
		t.Fatalf("retry should re-enter pending and clear the error: %+v", alert)
	}

	if err := env.exec.Retry(ctx, id); err == nil {
		t.Fatal("retrying a pending alert should be rejected")
	}
}
