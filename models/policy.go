package models

import "time"

// VersionChange bounds how far a package-scoped rule allows an automatic
// version bump to go.
type VersionChange string

const (
	VersionChangePatch VersionChange = "patch"
	VersionChangeMinor VersionChange = "minor"
	VersionChangeMajor VersionChange = "major"
)

// AutoFixPolicy is the per-repository configuration governing whether and
// how automatic remediation may act. One policy exists per repository;
// package-scoped overrides are PackageRule rows merged on lookup.
type AutoFixPolicy struct {
	RepoID            int64      `json:"repo_id"`
	Enabled           bool       `json:"enabled"`
	AllowedSeverities []Severity `json:"allowed_severities"`
	AutoMerge         bool       `json:"auto_merge"`
	RequiresReview    bool       `json:"requires_review"`
	MaxDailyPRs       int        `json:"max_daily_prs"`
	TestRequired      bool       `json:"test_required"`
	AllowedPackages   []string   `json:"allowed_packages"`
	ExcludedPackages  []string   `json:"excluded_packages"`
	BranchPrefix      string     `json:"branch_prefix"`
	NotifyOnSuccess   bool       `json:"notify_on_success"`
	NotifyOnFailure   bool       `json:"notify_on_failure"`
	ScheduleHours     []int      `json:"schedule_hours"` // 0-23, empty = any hour
	ScheduleDays      []string   `json:"schedule_days"`  // lowercase weekday names, empty = any day
	UpdatedAt         time.Time  `json:"updated_at"`
}

// SeverityAllowed reports whether the policy permits auto-fixing alerts of
// the given severity.
func (p *AutoFixPolicy) SeverityAllowed(s Severity) bool {
	for _, allowed := range p.AllowedSeverities {
		if allowed == s {
			return true
		}
	}
	return false
}

// PackageRule is a package-scoped policy override. When an alert's
// dependency matches Package, the rule's non-nil fields win over the
// repository-level policy.
type PackageRule struct {
	ID               int64          `json:"id"                 db:"id"`
	RepoID           int64          `json:"repo_id"            db:"repo_id"`
	Package          string         `json:"package"            db:"package"`
	Enabled          *bool          `json:"enabled"            db:"-"`
	AutoMerge        *bool          `json:"auto_merge"         db:"-"`
	RequiresReview   *bool          `json:"requires_review"    db:"-"`
	MaxVersionChange *VersionChange `json:"max_version_change" db:"-"`
}

// PolicyPatch is a partial policy update: only non-nil fields are applied.
type PolicyPatch struct {
	Enabled           *bool      `json:"enabled,omitempty"            yaml:"enabled,omitempty"`
	AllowedSeverities []Severity `json:"allowed_severities,omitempty" yaml:"allowed_severities,omitempty"`
	AutoMerge         *bool      `json:"auto_merge,omitempty"         yaml:"auto_merge,omitempty"`
	RequiresReview    *bool      `json:"requires_review,omitempty"    yaml:"requires_review,omitempty"`
	MaxDailyPRs       *int       `json:"max_daily_prs,omitempty"      yaml:"max_daily_prs,omitempty"`
	TestRequired      *bool      `json:"test_required,omitempty"      yaml:"test_required,omitempty"`
	AllowedPackages   []string   `json:"allowed_packages,omitempty"   yaml:"allowed_packages,omitempty"`
	ExcludedPackages  []string   `json:"excluded_packages,omitempty"  yaml:"excluded_packages,omitempty"`
	BranchPrefix      *string    `json:"branch_prefix,omitempty"      yaml:"branch_prefix,omitempty"`
	NotifyOnSuccess   *bool      `json:"notify_on_success,omitempty"  yaml:"notify_on_success,omitempty"`
	NotifyOnFailure   *bool      `json:"notify_on_failure,omitempty"  yaml:"notify_on_failure,omitempty"`
	ScheduleHours     []int      `json:"schedule_hours,omitempty"     yaml:"schedule_hours,omitempty"`
	ScheduleDays      []string   `json:"schedule_days,omitempty"      yaml:"schedule_days,omitempty"`
}
