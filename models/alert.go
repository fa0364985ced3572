package models

import "time"

// AlertType distinguishes what kind of dependency problem was detected.
type AlertType string

const (
	AlertTypeSecurity AlertType = "security"
	AlertTypeLicense  AlertType = "license"
)

// Remediation lifecycle states for an alert.
//
// pending:    produced by the scanner, no remediation attempted yet (or
//             explicitly re-queued after a failure)
// pr_created: a fix branch and pull request exist for this alert
// failed:     the last remediation attempt hit a terminal error
// dismissed:  a human decided no action is needed
const (
	StatusPending   = "pending"
	StatusPRCreated = "pr_created"
	StatusFailed    = "failed"
	StatusDismissed = "dismissed"
)

// Alert is a detected vulnerability or license-change record for one
// dependency in one repository. Alerts are created by the scanner; only the
// remediation executor mutates their status fields.
type Alert struct {
	ID               int64      `json:"id"                db:"id"`
	RepoID           int64      `json:"repo_id"           db:"repo_id"`
	RepoURL          string     `json:"repo_url"          db:"repo_url"`
	Dependency       string     `json:"dependency"        db:"dependency"`
	AlertType        AlertType  `json:"alert_type"        db:"alert_type"`
	Severity         Severity   `json:"severity"          db:"severity"`
	Description      string     `json:"description"       db:"description"`
	FixedVersion     string     `json:"fixed_version"     db:"fixed_version"`
	Status           string     `json:"status"            db:"status"`
	RemediationError string     `json:"remediation_error" db:"remediation_error"`
	PRURL            string     `json:"pr_url"            db:"pr_url"`
	PRNumber         int        `json:"pr_number"         db:"pr_number"`
	PRCreatedAt      *time.Time `json:"pr_created_at"     db:"pr_created_at"`
	CreatedAt        time.Time  `json:"created_at"        db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"        db:"updated_at"`
}

// Actionable reports whether the alert is in a state a remediation attempt
// may start from.
func (a *Alert) Actionable() bool {
	return a.Status == StatusPending
}
