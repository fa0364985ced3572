package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kev765740/dependencywarden/internal/store"
	"github.com/kev765740/dependencywarden/models"
)

// DefaultBranchPrefix names fix branches when a repository has not chosen
// its own prefix.
const DefaultBranchPrefix = "depwarden/fix"

// defaultExcludedPackages is the conservative out-of-the-box deny list:
// core build tooling where an unsupervised version bump tends to break the
// build rather than fix anything.
var defaultExcludedPackages = []string{
	"typescript",
	"webpack",
	"react",
	"react-dom",
	"eslint",
	"babel-core",
	"@babel/core",
	"node-sass",
}

// Resolver loads, merges and validates per-repository auto-fix policies.
// Construct one at process start and share it; it has no mutable state of
// its own.
type Resolver struct {
	policies *store.PolicyStore
}

// NewResolver creates a Resolver over the given policy store.
func NewResolver(policies *store.PolicyStore) *Resolver {
	return &Resolver{policies: policies}
}

// Defaults returns the built-in policy for a repository that has never been
// configured.
func Defaults(repoID int64) *models.AutoFixPolicy {
	return &models.AutoFixPolicy{
		RepoID:            repoID,
		Enabled:           true,
		AllowedSeverities: []models.Severity{models.SeverityCritical, models.SeverityHigh},
		AutoMerge:         false,
		RequiresReview:    true,
		MaxDailyPRs:       5,
		TestRequired:      true,
		ExcludedPackages:  append([]string(nil), defaultExcludedPackages...),
		BranchPrefix:      DefaultBranchPrefix,
		NotifyOnSuccess:   true,
		NotifyOnFailure:   true,
	}
}

// Resolve returns the effective repository-level policy, creating the row
// lazily with defaults on first access.
func (r *Resolver) Resolve(ctx context.Context, repoID int64) (*models.AutoFixPolicy, error) {
	p, err := r.policies.Get(ctx, repoID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrPolicyNotFound) {
		return nil, err
	}

	p = Defaults(repoID)
	if saveErr := r.policies.Save(ctx, p); saveErr != nil {
		return nil, fmt.Errorf("creating default policy for repo %d: %w", repoID, saveErr)
	}
	slog.Debug("Created default auto-fix policy", "repo_id", repoID)
	return p, nil
}

// Effective is a repository policy with any package-scoped override already
// merged in.
type Effective struct {
	models.AutoFixPolicy
	// MaxVersionChange bounds the bump for the matched package; nil = no
	// bound.
	MaxVersionChange *models.VersionChange
	// RuleMatched reports that a package-specific rule contributed fields.
	RuleMatched bool
}

// ResolveFor merges the package-scoped rule for pkg (if any) over the
// repository policy. Most-specific wins per field.
func (r *Resolver) ResolveFor(ctx context.Context, repoID int64, pkg string) (*Effective, error) {
	base, err := r.Resolve(ctx, repoID)
	if err != nil {
		return nil, err
	}
	eff := &Effective{AutoFixPolicy: *base}

	rule, err := r.policies.Rule(ctx, repoID, pkg)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return eff, nil
	}

	eff.RuleMatched = true
	if rule.Enabled != nil {
		eff.Enabled = *rule.Enabled
	}
	if rule.AutoMerge != nil {
		eff.AutoMerge = *rule.AutoMerge
	}
	if rule.RequiresReview != nil {
		eff.RequiresReview = *rule.RequiresReview
	}
	if rule.MaxVersionChange != nil {
		eff.MaxVersionChange = rule.MaxVersionChange
	}
	return eff, nil
}

// Update applies a partial config to repoID's policy, validating the merged
// result before persisting. Validation errors block persistence entirely.
func (r *Resolver) Update(ctx context.Context, repoID int64, patch *models.PolicyPatch) (*models.AutoFixPolicy, *Report, error) {
	current, err := r.Resolve(ctx, repoID)
	if err != nil {
		return nil, nil, err
	}

	merged := Apply(current, patch)

	report := Validate(merged)
	if report.HasErrors() {
		return nil, report, nil
	}

	if err := r.policies.Save(ctx, merged); err != nil {
		return nil, nil, err
	}
	return merged, report, nil
}

// Apply returns a copy of p with patch merged in. The original is untouched.
func Apply(p *models.AutoFixPolicy, patch *models.PolicyPatch) *models.AutoFixPolicy {
	merged := *p
	applyPatch(&merged, patch)
	return &merged
}

// BulkResult summarises one repository's outcome within a bulk update.
type BulkResult struct {
	RepoID int64  `json:"repo_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// BulkUpdate applies independent per-repository updates. A failure on one
// repository never blocks the others.
func (r *Resolver) BulkUpdate(ctx context.Context, updates map[int64]*models.PolicyPatch) (succeeded, failed int, results []BulkResult) {
	for repoID, patch := range updates {
		res := BulkResult{RepoID: repoID}
		_, report, err := r.Update(ctx, repoID, patch)
		switch {
		case err != nil:
			res.Error = err.Error()
		case report.HasErrors():
			msgs := make([]string, 0, len(report.Errors))
			for _, e := range report.Errors {
				msgs = append(msgs, e.Error())
			}
			res.Error = strings.Join(msgs, "; ")
		default:
			res.OK = true
		}
		if res.OK {
			succeeded++
		} else {
			failed++
		}
		results = append(results, res)
	}
	return succeeded, failed, results
}

// Decision is the policy gate's answer for one alert.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allows evaluates whether the effective policy permits auto-fixing alert.
// It covers the enabled flag, severity allow list and package allow/deny
// lists; quota and schedule are separate, time-dependent gates.
func (e *Effective) Allows(alert *models.Alert) Decision {
	if !e.Enabled {
		return Decision{Reason: "auto-fix disabled for repository"}
	}
	if !e.SeverityAllowed(alert.Severity) {
		return Decision{Reason: fmt.Sprintf("severity %s not in allowed set", alert.Severity)}
	}
	for _, pkg := range e.ExcludedPackages {
		if strings.EqualFold(pkg, alert.Dependency) {
			return Decision{Reason: fmt.Sprintf("package %s is excluded", alert.Dependency)}
		}
	}
	if len(e.AllowedPackages) > 0 {
		found := false
		for _, pkg := range e.AllowedPackages {
			if strings.EqualFold(pkg, alert.Dependency) {
				found = true
				break
			}
		}
		if !found {
			return Decision{Reason: fmt.Sprintf("package %s not in allowed set", alert.Dependency)}
		}
	}
	return Decision{Allowed: true}
}

// InWindow reports whether t falls inside the policy's schedule window.
// Empty hour/day sets mean no restriction.
func InWindow(p *models.AutoFixPolicy, t time.Time) bool {
	if len(p.ScheduleHours) > 0 {
		ok := false
		for _, h := range p.ScheduleHours {
			if t.Hour() == h {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(p.ScheduleDays) > 0 {
		day := strings.ToLower(t.Weekday().String())
		ok := false
		for _, d := range p.ScheduleDays {
			if strings.ToLower(d) == day {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func applyPatch(p *models.AutoFixPolicy, patch *models.PolicyPatch) {
	if patch == nil {
		return
	}
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
	if patch.AllowedSeverities != nil {
		p.AllowedSeverities = patch.AllowedSeverities
	}
	if patch.AutoMerge != nil {
		p.AutoMerge = *patch.AutoMerge
	}
	if patch.RequiresReview != nil {
		p.RequiresReview = *patch.RequiresReview
	}
	if patch.MaxDailyPRs != nil {
		p.MaxDailyPRs = *patch.MaxDailyPRs
	}
	if patch.TestRequired != nil {
		p.TestRequired = *patch.TestRequired
	}
	if patch.AllowedPackages != nil {
		p.AllowedPackages = patch.AllowedPackages
	}
	if patch.ExcludedPackages != nil {
		p.ExcludedPackages = patch.ExcludedPackages
	}
	if patch.BranchPrefix != nil {
		p.BranchPrefix = *patch.BranchPrefix
	}
	if patch.NotifyOnSuccess != nil {
		p.NotifyOnSuccess = *patch.NotifyOnSuccess
	}
	if patch.NotifyOnFailure != nil {
		p.NotifyOnFailure = *patch.NotifyOnFailure
	}
	if patch.ScheduleHours != nil {
		p.ScheduleHours = patch.ScheduleHours
	}
	if patch.ScheduleDays != nil {
		p.ScheduleDays = patch.ScheduleDays
	}
}
