// Package remediation turns pending vulnerability alerts into fix pull
// requests. The executor owns the alert state machine: pending alerts either
// become pr_created, become failed with a recorded cause, or stay pending
// when a policy gate declines the attempt.
package remediation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kev765740/dependencywarden/internal/hosting"
	"github.com/kev765740/dependencywarden/internal/notify"
	"github.com/kev765740/dependencywarden/internal/planner"
	"github.com/kev765740/dependencywarden/internal/policy"
	"github.com/kev765740/dependencywarden/internal/resilience"
	"github.com/kev765740/dependencywarden/internal/store"
	"github.com/kev765740/dependencywarden/models"
)

// ProviderSource resolves the hosting provider for a repository URL.
type ProviderSource interface {
	ProviderFor(repoURL string) (hosting.Provider, error)
}

// Executor drives one remediation attempt per alert. Concurrent attempts for
// the same alert id collapse into a single execution.
type Executor struct {
	alerts    *store.AlertStore
	resolver  *policy.Resolver
	providers ProviderSource
	calls     *resilience.Executor
	notifier  *notify.Dispatcher
	log       *slog.Logger
	now       func() time.Time
}

// NewExecutor wires the remediation executor. notifier may be nil when no
// notification channel is configured.
func NewExecutor(alerts *store.AlertStore, resolver *policy.Resolver, providers ProviderSource,
	calls *resilience.Executor, notifier *notify.Dispatcher, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		alerts:    alerts,
		resolver:  resolver,
		providers: providers,
		calls:     calls,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// Execute runs one remediation attempt for alertID. Concurrent calls for the
// same alert share a single execution and receive the same outcome. Errors
// are persisted on the alert and reported through the outcome, never
// returned.
func (e *Executor) Execute(ctx context.Context, alertID int64) *models.RemediationOutcome {
	v, shared, _ := e.calls.Dedup(fmt.Sprintf("alert:%d", alertID), func() (interface{}, error) {
		return e.run(ctx, alertID), nil
	})
	out := v.(*models.RemediationOutcome)
	if shared {
		e.log.Debug("joined in-flight remediation", "alert", alertID)
	}
	return out
}

// Retry re-enters a failed alert into pending so the next drain (or an
// explicit Execute) attempts it again.
func (e *Executor) Retry(ctx context.Context, alertID int64) error {
	alert, err := e.alerts.GetByID(ctx, alertID)
	if err != nil {
		return err
	}
	if alert.Status != models.StatusFailed {
		return fmt.Errorf("alert %d is %s, only failed alerts can be retried", alertID, alert.Status)
	}
	return e.alerts.Requeue(ctx, alertID)
}

func (e *Executor) run(ctx context.Context, alertID int64) *models.RemediationOutcome {
	out := &models.RemediationOutcome{AlertID: alertID}

	alert, err := e.alerts.GetByID(ctx, alertID)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if !alert.Actionable() {
		out.Skipped = true
		out.SkipReason = fmt.Sprintf("alert is %s", alert.Status)
		return out
	}

	host, owner, name, err := hosting.ParseRepoURL(alert.RepoURL)
	if err != nil {
		return e.fail(ctx, alert, nil, out, err)
	}

	eff, err := e.resolver.ResolveFor(ctx, alert.RepoID, alert.Dependency)
	if err != nil {
		return e.fail(ctx, alert, nil, out, err)
	}
	if reason, ok := e.gate(ctx, alert, eff); !ok {
		out.Skipped = true
		out.SkipReason = reason
		e.log.Info("remediation skipped", "alert", alert.ID, "repo", alert.RepoURL, "reason", reason)
		e.emit(ctx, alert, notify.Event{
			Type:  notify.EventSkipped,
			Title: fmt.Sprintf("Remediation skipped for %s", alert.Dependency),
			Body:  reason,
		})
		return out
	}

	provider, err := e.providers.ProviderFor(alert.RepoURL)
	if err != nil {
		return e.fail(ctx, alert, eff, out, err)
	}

	repo, err := e.getRepo(ctx, provider, host, owner, name)
	if err != nil {
		return e.fail(ctx, alert, eff, out, err)
	}

	headSHA, err := e.getBranchHead(ctx, provider, host, repo)
	if err != nil {
		return e.fail(ctx, alert, eff, out, err)
	}

	// Planning runs against the default branch head before anything is
	// written, so a declined version bound leaves no branch behind. The
	// recorded base SHAs stay valid on the fix branch because it starts at
	// the same head.
	plan, err := planner.New(&guardedFiles{exec: e, provider: provider, host: host}, e.log).
		Plan(ctx, alert, repo, repo.DefaultBranch)
	if err != nil {
		return e.fail(ctx, alert, eff, out, err)
	}
	out.Degraded = plan.Degraded

	if reason, ok := versionBound(eff, plan); !ok {
		out.Skipped = true
		out.SkipReason = reason
		e.log.Info("remediation skipped", "alert", alert.ID, "repo", alert.RepoURL, "reason", reason)
		e.emit(ctx, alert, notify.Event{
			Type:  notify.EventSkipped,
			Title: fmt.Sprintf("Remediation skipped for %s", alert.Dependency),
			Body:  reason,
		})
		return out
	}

	branch := branchName(eff.BranchPrefix, alert.Dependency, e.now())
	if err := e.createBranch(ctx, provider, host, repo, branch, headSHA); err != nil {
		return e.fail(ctx, alert, eff, out, err)
	}
	out.Branch = branch

	// Branches created before a later step fails are left in place; cleaning
	// them up would need delete permissions the token may not have.
	for _, edit := range plan.Edits {
		if err := e.putFile(ctx, provider, host, repo, branch, plan, edit); err != nil {
			return e.fail(ctx, alert, eff, out, err)
		}
	}

	pr, err := e.createPR(ctx, provider, host, repo, branch, plan)
	if err != nil {
		return e.fail(ctx, alert, eff, out, err)
	}

	if err := e.alerts.MarkPRCreated(ctx, alert.ID, pr.URL, pr.Number); err != nil {
		out.Error = err.Error()
		return out
	}
	if err := e.alerts.RecordPREvent(ctx, alert.ID, alert.RepoID, branch, pr.URL, pr.Number); err != nil {
		e.log.Warn("recording remediation event failed", "alert", alert.ID, "error", err)
	}

	out.Success = true
	out.PRURL = pr.URL
	out.PRNumber = pr.Number
	e.log.Info("remediation PR opened",
		"alert", alert.ID, "repo", repo.FullName, "pr", pr.URL, "degraded", plan.Degraded)
	if eff.NotifyOnSuccess {
		e.emit(ctx, alert, notify.Event{
			Type:  notify.EventPRCreated,
			Title: fmt.Sprintf("Fix PR opened for %s", alert.Dependency),
			Body:  plan.PRTitle,
			URL:   pr.URL,
		})
	}
	return out
}

// gate applies the policy checks that decline an attempt without failing the
// alert: enablement, severity and package filters, schedule window, and the
// per-repo daily PR quota.
func (e *Executor) gate(ctx context.Context, alert *models.Alert, eff *policy.Effective) (string, bool) {
	if d := eff.Allows(alert); !d.Allowed {
		return d.Reason, false
	}
	now := e.now().UTC()
	if !policy.InWindow(&eff.AutoFixPolicy, now) {
		return "outside the configured remediation window", false
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := e.alerts.CountPRsSince(ctx, alert.RepoID, dayStart)
	if err != nil {
		e.log.Warn("quota check failed, allowing attempt", "alert", alert.ID, "error", err)
		return "", true
	}
	if count >= eff.MaxDailyPRs {
		return fmt.Sprintf("daily PR quota reached (%d/%d)", count, eff.MaxDailyPRs), false
	}
	return "", true
}

var changeRank = map[models.VersionChange]int{
	models.VersionChangePatch: 1,
	models.VersionChangeMinor: 2,
	models.VersionChangeMajor: 3,
}

// versionBound enforces a package rule's max version change against the
// planned bump. Degraded plans carry no version move to bound.
func versionBound(eff *policy.Effective, plan *models.FixPlan) (string, bool) {
	if eff.MaxVersionChange == nil || plan.Degraded {
		return "", true
	}
	kind := planner.ChangeKind(plan.FromVersion, plan.ToVersion)
	if changeRank[kind] > changeRank[*eff.MaxVersionChange] {
		return fmt.Sprintf("%s to %s is a %s change, rule allows at most %s",
			plan.FromVersion, plan.ToVersion, kind, *eff.MaxVersionChange), false
	}
	return "", true
}

// fail persists the terminal failure on the alert and reports it. eff is nil
// when the failure happened before the policy could be resolved; those
// failures always notify.
func (e *Executor) fail(ctx context.Context, alert *models.Alert, eff *policy.Effective, out *models.RemediationOutcome, cause error) *models.RemediationOutcome {
	out.Error = cause.Error()
	e.log.Error("remediation failed", "alert", alert.ID, "repo", alert.RepoURL, "error", cause)
	if err := e.alerts.MarkFailed(ctx, alert.ID, cause.Error()); err != nil {
		e.log.Error("persisting failure state failed", "alert", alert.ID, "error", err)
	}
	if eff == nil || eff.NotifyOnFailure {
		e.emit(ctx, alert, notify.Event{
			Type:  notify.EventFailed,
			Title: fmt.Sprintf("Remediation failed for %s", alert.Dependency),
			Body:  cause.Error(),
		})
	}
	return out
}

func (e *Executor) emit(ctx context.Context, alert *models.Alert, evt notify.Event) {
	if e.notifier == nil {
		return
	}
	evt.Severity = string(alert.Severity)
	evt.RepoKey = alert.RepoURL
	if evt.Metadata == nil {
		evt.Metadata = map[string]any{}
	}
	evt.Metadata["alert_id"] = alert.ID
	evt.Metadata["dependency"] = alert.Dependency
	e.notifier.Notify(ctx, evt)
}

func (e *Executor) getRepo(ctx context.Context, p hosting.Provider, host, owner, name string) (*models.Repo, error) {
	var repo *models.Repo
	err := e.calls.Do(ctx, host+":get_repo", func(ctx context.Context) error {
		var err error
		repo, err = p.GetRepo(ctx, owner, name)
		return err
	})
	return repo, err
}

func (e *Executor) getBranchHead(ctx context.Context, p hosting.Provider, host string, repo *models.Repo) (string, error) {
	var sha string
	err := e.calls.Do(ctx, host+":get_branch_head", func(ctx context.Context) error {
		var err error
		sha, err = p.GetBranchHead(ctx, repo, repo.DefaultBranch)
		return err
	})
	return sha, err
}

func (e *Executor) createBranch(ctx context.Context, p hosting.Provider, host string, repo *models.Repo, branch, sha string) error {
	return e.calls.Do(ctx, host+":create_branch", func(ctx context.Context) error {
		return p.CreateBranch(ctx, repo, branch, sha)
	})
}

func (e *Executor) putFile(ctx context.Context, p hosting.Provider, host string, repo *models.Repo, branch string, plan *models.FixPlan, edit models.FixEdit) error {
	message := plan.PRTitle
	if edit.Kind == models.EditAdvisory {
		message = fmt.Sprintf("docs: security update note for %s", plan.Dependency)
	}
	return e.calls.Do(ctx, host+":put_file", func(ctx context.Context) error {
		return p.PutFile(ctx, repo, hosting.PutFileOptions{
			Path:    edit.Path,
			Content: edit.Content,
			Message: message,
			Branch:  branch,
			BaseSHA: edit.BaseSHA,
		})
	})
}

func (e *Executor) createPR(ctx context.Context, p hosting.Provider, host string, repo *models.Repo, branch string, plan *models.FixPlan) (*models.PullRequest, error) {
	var pr *models.PullRequest
	err := e.calls.Do(ctx, host+":create_pr", func(ctx context.Context) error {
		var err error
		pr, err = p.CreatePR(ctx, repo, hosting.CreatePROptions{
			Title:      plan.PRTitle,
			Body:       plan.PRBody,
			HeadBranch: branch,
			BaseBranch: repo.DefaultBranch,
		})
		return err
	})
	return pr, err
}

// guardedFiles routes the planner's manifest reads through the resilience
// stack like every other hosting call.
type guardedFiles struct {
	exec     *Executor
	provider hosting.Provider
	host     string
}

func (g *guardedFiles) GetFile(ctx context.Context, repo *models.Repo, ref, path string) ([]byte, string, error) {
	var content []byte
	var sha string
	err := g.exec.calls.Do(ctx, g.host+":get_file", func(ctx context.Context) error {
		var err error
		content, sha, err = g.provider.GetFile(ctx, repo, ref, path)
		return err
	})
	return content, sha, err
}

func branchName(prefix, dependency string, at time.Time) string {
	if prefix == "" {
		prefix = policy.DefaultBranchPrefix
	}
	dep := strings.ReplaceAll(dependency, "/", "-")
	dep = strings.ReplaceAll(dep, "@", "")
	return fmt.Sprintf("%s/%s-%d", prefix, dep, at.UnixNano())
}

// IsDataError reports whether err is a permanent data problem that retrying
// the alert cannot fix.
func IsDataError(err error) bool {
	return errors.Is(err, hosting.ErrMalformedRepoURL) || errors.Is(err, store.ErrAlertNotFound)
}
