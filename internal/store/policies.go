package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kev765740/dependencywarden/internal/database"
	"github.com/kev765740/dependencywarden/models"
)

// ErrPolicyNotFound is returned when no policy row exists for a repository.
// The policy resolver translates this into built-in defaults.
var ErrPolicyNotFound = errors.New("autofix policy not found")

// PolicyStore persists per-repository auto-fix policies and their
// package-scoped override rules.
type PolicyStore struct {
	db database.DB
}

// NewPolicyStore creates a PolicyStore over db.
func NewPolicyStore(db database.DB) *PolicyStore {
	return &PolicyStore{db: db}
}

type policyRow struct {
	RepoID            int64  `db:"repo_id"`
	Enabled           bool   `db:"enabled"`
	AllowedSeverities string `db:"allowed_severities"` // JSON array
	AutoMerge         bool   `db:"auto_merge"`
	RequiresReview    bool   `db:"requires_review"`
	MaxDailyPRs       int    `db:"max_daily_prs"`
	TestRequired      bool   `db:"test_required"`
	AllowedPackages   string `db:"allowed_packages"`  // JSON array
	ExcludedPackages  string `db:"excluded_packages"` // JSON array
	BranchPrefix      string `db:"branch_prefix"`
	NotifyOnSuccess   bool   `db:"notify_on_success"`
	NotifyOnFailure   bool   `db:"notify_on_failure"`
	ScheduleHours     string `db:"schedule_hours"` // JSON array
	ScheduleDays      string `db:"schedule_days"`  // JSON array
	UpdatedAt         string `db:"updated_at"`
}

const policyColumns = `repo_id, enabled, allowed_severities, auto_merge, requires_review,
	max_daily_prs, test_required, allowed_packages, excluded_packages, branch_prefix,
	notify_on_success, notify_on_failure, schedule_hours, schedule_days, updated_at`

// Get loads the policy row for repoID. Absence is ErrPolicyNotFound.
func (s *PolicyStore) Get(ctx context.Context, repoID int64) (*models.AutoFixPolicy, error) {
	var row policyRow
	err := s.db.Get(ctx, &row,
		`SELECT `+policyColumns+` FROM autofix_policies WHERE repo_id = ?`, repoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("loading policy for repo %d: %w", repoID, err)
	}
	return rowToPolicy(row)
}

// Save upserts the policy row for p.RepoID.
func (s *PolicyStore) Save(ctx context.Context, p *models.AutoFixPolicy) error {
	row, err := policyToRow(p)
	if err != nil {
		return err
	}
	row.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := s.db.Upsert(ctx, "autofix_policies", row, []string{"repo_id"}); err != nil {
		return fmt.Errorf("saving policy for repo %d: %w", p.RepoID, err)
	}
	return nil
}

type ruleRow struct {
	ID               int64          `db:"id"`
	RepoID           int64          `db:"repo_id"`
	Package          string         `db:"package"`
	Enabled          sql.NullBool   `db:"enabled"`
	AutoMerge        sql.NullBool   `db:"auto_merge"`
	RequiresReview   sql.NullBool   `db:"requires_review"`
	MaxVersionChange sql.NullString `db:"max_version_change"`
}

// Rules returns all package-scoped override rules for repoID.
func (s *PolicyStore) Rules(ctx context.Context, repoID int64) ([]models.PackageRule, error) {
	var rows []ruleRow
	err := s.db.Select(ctx, &rows,
		`SELECT id, repo_id, package, enabled, auto_merge, requires_review, max_version_change
		   FROM package_rules WHERE repo_id = ? ORDER BY package ASC`, repoID)
	if err != nil {
		return nil, fmt.Errorf("loading package rules for repo %d: %w", repoID, err)
	}
	rules := make([]models.PackageRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, rowToRule(row))
	}
	return rules, nil
}

// Rule returns the override rule for (repoID, pkg), or nil when none exists.
func (s *PolicyStore) Rule(ctx context.Context, repoID int64, pkg string) (*models.PackageRule, error) {
	var row ruleRow
	err := s.db.Get(ctx, &row,
		`SELECT id, repo_id, package, enabled, auto_merge, requires_review, max_version_change
		   FROM package_rules WHERE repo_id = ? AND package = ?`, repoID, pkg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading package rule %s for repo %d: %w", pkg, repoID, err)
	}
	rule := rowToRule(row)
	return &rule, nil
}

// SaveRule upserts a package-scoped rule.
func (s *PolicyStore) SaveRule(ctx context.Context, r *models.PackageRule) error {
	rec := struct {
		RepoID           int64          `db:"repo_id"`
		Package          string         `db:"package"`
		Enabled          sql.NullBool   `db:"enabled"`
		AutoMerge        sql.NullBool   `db:"auto_merge"`
		RequiresReview   sql.NullBool   `db:"requires_review"`
		MaxVersionChange sql.NullString `db:"max_version_change"`
	}{
		RepoID:           r.RepoID,
		Package:          r.Package,
		Enabled:          toNullBool(r.Enabled),
		AutoMerge:        toNullBool(r.AutoMerge),
		RequiresReview:   toNullBool(r.RequiresReview),
		MaxVersionChange: toNullVersion(r.MaxVersionChange),
	}
	if err := s.db.Upsert(ctx, "package_rules", rec, []string{"repo_id", "package"}); err != nil {
		return fmt.Errorf("saving package rule %s for repo %d: %w", r.Package, r.RepoID, err)
	}
	return nil
}

// --- conversions ---

func rowToPolicy(row policyRow) (*models.AutoFixPolicy, error) {
	p := &models.AutoFixPolicy{
		RepoID:          row.RepoID,
		Enabled:         row.Enabled,
		AutoMerge:       row.AutoMerge,
		RequiresReview:  row.RequiresReview,
		MaxDailyPRs:     row.MaxDailyPRs,
		TestRequired:    row.TestRequired,
		BranchPrefix:    row.BranchPrefix,
		NotifyOnSuccess: row.NotifyOnSuccess,
		NotifyOnFailure: row.NotifyOnFailure,
		UpdatedAt:       parseTime(row.UpdatedAt),
	}
	cols := []struct {
		raw  string
		dest interface{}
	}{
		{row.AllowedSeverities, &p.AllowedSeverities},
		{row.AllowedPackages, &p.AllowedPackages},
		{row.ExcludedPackages, &p.ExcludedPackages},
		{row.ScheduleHours, &p.ScheduleHours},
		{row.ScheduleDays, &p.ScheduleDays},
	}
	for _, c := range cols {
		if c.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c.raw), c.dest); err != nil {
			return nil, fmt.Errorf("decoding policy column for repo %d: %w", row.RepoID, err)
		}
	}
	return p, nil
}

func policyToRow(p *models.AutoFixPolicy) (*policyRow, error) {
	row := &policyRow{
		RepoID:          p.RepoID,
		Enabled:         p.Enabled,
		AutoMerge:       p.AutoMerge,
		RequiresReview:  p.RequiresReview,
		MaxDailyPRs:     p.MaxDailyPRs,
		TestRequired:    p.TestRequired,
		BranchPrefix:    p.BranchPrefix,
		NotifyOnSuccess: p.NotifyOnSuccess,
		NotifyOnFailure: p.NotifyOnFailure,
	}
	cols := []struct {
		dest *string
		src  interface{}
	}{
		{&row.AllowedSeverities, emptySlice(p.AllowedSeverities)},
		{&row.AllowedPackages, emptySlice(p.AllowedPackages)},
		{&row.ExcludedPackages, emptySlice(p.ExcludedPackages)},
		{&row.ScheduleHours, emptySlice(p.ScheduleHours)},
		{&row.ScheduleDays, emptySlice(p.ScheduleDays)},
	}
	for _, c := range cols {
		b, err := json.Marshal(c.src)
		if err != nil {
			return nil, fmt.Errorf("encoding policy column: %w", err)
		}
		*c.dest = string(b)
	}
	return row, nil
}

// emptySlice normalises nil slices so columns always hold a JSON array.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func rowToRule(row ruleRow) models.PackageRule {
	r := models.PackageRule{
		ID:      row.ID,
		RepoID:  row.RepoID,
		Package: row.Package,
	}
	if row.Enabled.Valid {
		v := row.Enabled.Bool
		r.Enabled = &v
	}
	if row.AutoMerge.Valid {
		v := row.AutoMerge.Bool
		r.AutoMerge = &v
	}
	if row.RequiresReview.Valid {
		v := row.RequiresReview.Bool
		r.RequiresReview = &v
	}
	if row.MaxVersionChange.Valid && row.MaxVersionChange.String != "" {
		v := models.VersionChange(row.MaxVersionChange.String)
		r.MaxVersionChange = &v
	}
	return r
}

func toNullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func toNullVersion(v *models.VersionChange) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}
