package notify

import "context"

// Event types emitted by the remediation executor.
const (
	EventPRCreated = "pr_created"
	EventFailed    = "remediation_failed"
	EventSkipped   = "remediation_skipped"
)

// Event represents a notification event from dependencywarden.
type Event struct {
	Type     string // pr_created | remediation_failed | remediation_skipped
	Title    string
	Body     string
	URL      string         // optional deep link (e.g. PR URL)
	Severity string         // "critical" | "high" | "medium" | "low" | ""
	RepoKey  string         // "github.com/owner/repo"
	Metadata map[string]any // extra structured data
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
