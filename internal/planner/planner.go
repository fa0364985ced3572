// Package planner turns an actionable alert into a concrete fix plan: a
// target version, one or more file edits on the fix branch, and the pull
// request copy describing them.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kev765740/dependencywarden/models"
)

const (
	manifestPath = "package.json"
	lockfilePath = "package-lock.json"
)

// FileSource reads one file at a ref. The returned revision marker is what
// the executor hands back on writes so they act as a compare-and-swap.
type FileSource interface {
	GetFile(ctx context.Context, repo *models.Repo, ref, path string) ([]byte, string, error)
}

type Planner struct {
	files FileSource
	log   *slog.Logger
}

func New(files FileSource, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{files: files, log: log}
}

// Plan computes the fix for an alert against the given ref. Planning never
// fails on manifest trouble: when the manifest cannot be read or edited the
// plan degrades to a single advisory note carrying the manual fix command.
// Identical inputs always produce identical plans.
func (p *Planner) Plan(ctx context.Context, alert *models.Alert, repo *models.Repo, ref string) (*models.FixPlan, error) {
	target := TargetVersion(alert)
	plan := &models.FixPlan{
		Dependency: alert.Dependency,
		ToVersion:  target,
	}

	content, sha, err := p.files.GetFile(ctx, repo, ref, manifestPath)
	if err != nil {
		p.log.Warn("manifest unavailable, planning advisory fallback",
			"repo", repo.FullName, "dependency", alert.Dependency, "error", err)
		p.degrade(plan, alert)
		return plan, nil
	}

	updated, from, err := bumpDependency(content, alert.Dependency, target)
	if err != nil {
		p.log.Warn("manifest edit failed, planning advisory fallback",
			"repo", repo.FullName, "dependency", alert.Dependency, "error", err)
		p.degrade(plan, alert)
		return plan, nil
	}

	plan.FromVersion = from
	plan.Breaking = breaking(from, target)
	plan.Edits = []models.FixEdit{{
		Kind:    models.EditManifest,
		Path:    manifestPath,
		Content: updated,
		BaseSHA: sha,
	}}

	lockfile := false
	if _, _, lerr := p.files.GetFile(ctx, repo, ref, lockfilePath); lerr == nil {
		lockfile = true
		plan.Edits = append(plan.Edits, models.FixEdit{
			Kind:    models.EditAdvisory,
			Path:    advisoryPath(alert.Dependency),
			Content: lockfileNote(alert.Dependency, target),
		})
	}

	plan.PRTitle = prTitle(alert, target)
	plan.PRBody = prBody(alert, plan, lockfile)
	return plan, nil
}

// degrade replaces whatever was planned with the single advisory edit.
func (p *Planner) degrade(plan *models.FixPlan, alert *models.Alert) {
	plan.Degraded = true
	plan.Edits = []models.FixEdit{{
		Kind:    models.EditAdvisory,
		Path:    advisoryPath(alert.Dependency),
		Content: advisoryNote(alert, plan.ToVersion),
	}}
	plan.PRTitle = prTitle(alert, plan.ToVersion)
	plan.PRBody = prBody(alert, plan, false)
}

func advisoryPath(dep string) string {
	return "SECURITY-UPDATE-" + strings.ReplaceAll(dep, "/", "-") + ".md"
}

func advisoryNote(alert *models.Alert, target string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Security update required: %s\n\n", alert.Dependency)
	fmt.Fprintf(&b, "A %s severity %s alert is open for `%s`, but the dependency\n",
		alert.Severity, alert.AlertType, alert.Dependency)
	b.WriteString("manifest could not be updated automatically. Apply the fix manually:\n\n")
	fmt.Fprintf(&b, "```\nnpm install %s@%s\n```\n", alert.Dependency, target)
	if alert.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", alert.Description)
	}
	return []byte(b.String())
}

func lockfileNote(dep, target string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Lockfile update required: %s\n\n", dep)
	fmt.Fprintf(&b, "`%s` was bumped to %s in package.json. The lockfile is not\n", dep, target)
	b.WriteString("rewritten automatically; regenerate it before merging:\n\n")
	b.WriteString("```\nnpm install\n```\n")
	return []byte(b.String())
}

func prTitle(alert *models.Alert, target string) string {
	return fmt.Sprintf("fix(deps): bump %s to %s", alert.Dependency, target)
}

func prBody(alert *models.Alert, plan *models.FixPlan, lockfile bool) string {
	var b strings.Builder
	if plan.Degraded {
		fmt.Fprintf(&b, "Automated remediation for a %s severity %s alert on `%s`.\n\n",
			alert.Severity, alert.AlertType, alert.Dependency)
		b.WriteString("The dependency manifest could not be updated automatically, so this\n")
		b.WriteString("pull request adds an advisory note with the manual fix command.\n\n")
	} else {
		fmt.Fprintf(&b, "Automated remediation for a %s severity %s alert on `%s`.\n\n",
			alert.Severity, alert.AlertType, alert.Dependency)
		fmt.Fprintf(&b, "Bumps `%s` from %s to %s.\n\n", alert.Dependency, plan.FromVersion, plan.ToVersion)
	}
	if alert.Description != "" {
		fmt.Fprintf(&b, "**Advisory**\n\n%s\n\n", alert.Description)
	}
	if plan.Breaking {
		b.WriteString("**This bump crosses a major version.** Review the changelog for\n")
		b.WriteString("breaking changes before merging.\n\n")
	}
	b.WriteString("**Reviewer checklist**\n\n")
	b.WriteString("- [ ] CI passes on this branch\n")
	b.WriteString("- [ ] Changelog reviewed for behavior changes\n")
	if lockfile {
		b.WriteString("- [ ] Lockfile regenerated with `npm install`\n")
	}
	if plan.ToVersion == LatestVersion {
		b.WriteString("- [ ] Confirm the latest release actually contains the fix\n")
	}
	if plan.Degraded {
		b.WriteString("- [ ] Manual fix command from the advisory note applied\n")
	}
	return b.String()
}
