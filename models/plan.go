package models

// EditKind distinguishes the two fix artifact shapes the planner produces.
type EditKind string

const (
	// EditManifest is a structured dependency-manifest rewrite. The write
	// carries the prior revision marker so it acts as a compare-and-swap.
	EditManifest EditKind = "manifest"
	// EditAdvisory is a fallback text note created unconditionally when a
	// structured edit cannot be computed safely.
	EditAdvisory EditKind = "advisory"
)

// FixEdit is one file write in a fix plan, applied in order on the fix branch.
type FixEdit struct {
	Kind    EditKind `json:"kind"`
	Path    string   `json:"path"`
	Content []byte   `json:"-"`
	// BaseSHA is the revision of the file the edit was computed against.
	// Empty for advisory edits, which are plain creates.
	BaseSHA string `json:"base_sha,omitempty"`
}

// FixPlan is the planner's output for one remediation attempt. Plans are
// transient: they are consumed by the executor and never persisted.
type FixPlan struct {
	Dependency  string    `json:"dependency"`
	FromVersion string    `json:"from_version"`
	ToVersion   string    `json:"to_version"`
	Breaking    bool      `json:"breaking"`
	Degraded    bool      `json:"degraded"` // fell back to an advisory note
	Edits       []FixEdit `json:"edits"`
	PRTitle     string    `json:"pr_title"`
	PRBody      string    `json:"pr_body"`
}

// RemediationOutcome is the structured result of one remediation attempt.
// The executor never lets an error escape past its boundary; callers always
// receive one of these.
type RemediationOutcome struct {
	AlertID    int64  `json:"alert_id"`
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped"` // policy gate declined the attempt
	SkipReason string `json:"skip_reason,omitempty"`
	Degraded   bool   `json:"degraded"`
	Branch     string `json:"branch,omitempty"`
	PRURL      string `json:"pr_url,omitempty"`
	PRNumber   int    `json:"pr_number,omitempty"`
	Error      string `json:"error,omitempty"`
}
