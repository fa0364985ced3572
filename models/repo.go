package models

import "time"

// Repo describes a hosted repository as returned by a hosting provider.
type Repo struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"` // github | gitlab
	Host          string `json:"host"`     // github.com | gitlab.com | enterprise host
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"` // owner/name
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// PullRequest represents a pull/merge request opened by the remediation
// executor.
type PullRequest struct {
	ID         int64     `json:"id"`
	Number     int       `json:"number"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	URL        string    `json:"url"`
	State      string    `json:"state"` // open | closed | merged
	HeadBranch string    `json:"head_branch"`
	BaseBranch string    `json:"base_branch"`
	CreatedAt  time.Time `json:"created_at"`
}
