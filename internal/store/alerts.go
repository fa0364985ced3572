package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kev765740/dependencywarden/internal/database"
	"github.com/kev765740/dependencywarden/models"
)

// ErrAlertNotFound is returned when an alert id does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// AlertStore provides typed access to vulnerability alerts. The scanner
// (external) creates alerts; the remediation executor is the only writer of
// their status fields.
type AlertStore struct {
	db database.DB
}

// NewAlertStore creates an AlertStore over db.
func NewAlertStore(db database.DB) *AlertStore {
	return &AlertStore{db: db}
}

type alertRow struct {
	ID               int64  `db:"id"`
	RepoID           int64  `db:"repo_id"`
	RepoURL          string `db:"repo_url"`
	Dependency       string `db:"dependency"`
	AlertType        string `db:"alert_type"`
	Severity         string `db:"severity"`
	Description      string `db:"description"`
	FixedVersion     string `db:"fixed_version"`
	Status           string `db:"status"`
	RemediationError string `db:"remediation_error"`
	PRURL            string `db:"pr_url"`
	PRNumber         int    `db:"pr_number"`
	PRCreatedAt      *string `db:"pr_created_at"`
	CreatedAt        string `db:"created_at"`
	UpdatedAt        string `db:"updated_at"`
}

const alertColumns = `id, repo_id, repo_url, dependency, alert_type, severity, description,
	fixed_version, status, remediation_error, pr_url, pr_number, pr_created_at, created_at, updated_at`

// GetByID fetches one alert. Absence is ErrAlertNotFound.
func (s *AlertStore) GetByID(ctx context.Context, id int64) (*models.Alert, error) {
	var row alertRow
	err := s.db.Get(ctx, &row, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("loading alert %d: %w", id, err)
	}
	return rowToAlert(row), nil
}

// ListByStatus returns up to limit alerts in the given status, oldest first.
func (s *AlertStore) ListByStatus(ctx context.Context, status string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []alertRow
	err := s.db.Select(ctx, &rows,
		`SELECT `+alertColumns+` FROM alerts WHERE status = ? ORDER BY id ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("listing %s alerts: %w", status, err)
	}
	alerts := make([]models.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, *rowToAlert(row))
	}
	return alerts, nil
}

// List returns recent alerts across all states, newest first.
func (s *AlertStore) List(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []alertRow
	err := s.db.Select(ctx, &rows,
		`SELECT `+alertColumns+` FROM alerts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	alerts := make([]models.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, *rowToAlert(row))
	}
	return alerts, nil
}

// Insert stores a new alert (normally done by the scanner ingest path) and
// returns its id.
func (s *AlertStore) Insert(ctx context.Context, a *models.Alert) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	status := a.Status
	if status == "" {
		status = models.StatusPending
	}
	rec := struct {
		RepoID       int64  `db:"repo_id"`
		RepoURL      string `db:"repo_url"`
		Dependency   string `db:"dependency"`
		AlertType    string `db:"alert_type"`
		Severity     string `db:"severity"`
		Description  string `db:"description"`
		FixedVersion string `db:"fixed_version"`
		Status       string `db:"status"`
		CreatedAt    string `db:"created_at"`
		UpdatedAt    string `db:"updated_at"`
	}{
		RepoID: a.RepoID, RepoURL: a.RepoURL, Dependency: a.Dependency,
		AlertType: string(a.AlertType), Severity: string(a.Severity),
		Description: a.Description, FixedVersion: a.FixedVersion,
		Status: status, CreatedAt: now, UpdatedAt: now,
	}
	id, err := s.db.Insert(ctx, "alerts", rec)
	if err != nil {
		return 0, fmt.Errorf("inserting alert: %w", err)
	}
	return id, nil
}

// MarkPRCreated records a successful remediation: status pr_created plus the
// PR reference.
func (s *AlertStore) MarkPRCreated(ctx context.Context, id int64, prURL string, prNumber int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	err := s.db.Exec(ctx, `UPDATE alerts
		SET status = ?, pr_url = ?, pr_number = ?, pr_created_at = ?, remediation_error = '', updated_at = ?
		WHERE id = ?`,
		models.StatusPRCreated, prURL, prNumber, now, now, id)
	if err != nil {
		return fmt.Errorf("marking alert %d pr_created: %w", id, err)
	}
	return nil
}

// MarkFailed records a terminal remediation failure with its human-readable
// cause.
func (s *AlertStore) MarkFailed(ctx context.Context, id int64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	err := s.db.Exec(ctx, `UPDATE alerts
		SET status = ?, remediation_error = ?, updated_at = ?
		WHERE id = ?`,
		models.StatusFailed, message, now, id)
	if err != nil {
		return fmt.Errorf("marking alert %d failed: %w", id, err)
	}
	return nil
}

// Requeue re-enters a failed alert into pending so a new remediation attempt
// can run.
func (s *AlertStore) Requeue(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	err := s.db.Exec(ctx, `UPDATE alerts
		SET status = ?, remediation_error = '', updated_at = ?
		WHERE id = ? AND status = ?`,
		models.StatusPending, now, id, models.StatusFailed)
	if err != nil {
		return fmt.Errorf("requeueing alert %d: %w", id, err)
	}
	return nil
}

// RecordPREvent appends a remediation event row; these back the per-repo
// daily PR quota.
func (s *AlertStore) RecordPREvent(ctx context.Context, alertID, repoID int64, branch, prURL string, prNumber int) error {
	rec := struct {
		AlertID   int64  `db:"alert_id"`
		RepoID    int64  `db:"repo_id"`
		Branch    string `db:"branch"`
		PRURL     string `db:"pr_url"`
		PRNumber  int    `db:"pr_number"`
		CreatedAt string `db:"created_at"`
	}{
		AlertID: alertID, RepoID: repoID, Branch: branch,
		PRURL: prURL, PRNumber: prNumber,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.db.Insert(ctx, "remediation_events", rec); err != nil {
		return fmt.Errorf("recording remediation event: %w", err)
	}
	return nil
}

// CountPRsSince counts PRs opened for repoID at or after since.
func (s *AlertStore) CountPRsSince(ctx context.Context, repoID int64, since time.Time) (int, error) {
	var row struct {
		N int `db:"n"`
	}
	err := s.db.Get(ctx, &row,
		`SELECT COUNT(*) AS n FROM remediation_events WHERE repo_id = ? AND created_at >= ?`,
		repoID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("counting remediation events: %w", err)
	}
	return row.N, nil
}

func rowToAlert(row alertRow) *models.Alert {
	a := &models.Alert{
		ID:               row.ID,
		RepoID:           row.RepoID,
		RepoURL:          row.RepoURL,
		Dependency:       row.Dependency,
		AlertType:        models.AlertType(row.AlertType),
		Severity:         models.Severity(row.Severity),
		Description:      row.Description,
		FixedVersion:     row.FixedVersion,
		Status:           row.Status,
		RemediationError: row.RemediationError,
		PRURL:            row.PRURL,
		PRNumber:         row.PRNumber,
		CreatedAt:        parseTime(row.CreatedAt),
		UpdatedAt:        parseTime(row.UpdatedAt),
	}
	if row.PRCreatedAt != nil && *row.PRCreatedAt != "" {
		t := parseTime(*row.PRCreatedAt)
		a.PRCreatedAt = &t
	}
	return a
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
