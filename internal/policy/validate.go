package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kev765740/dependencywarden/models"
)

// MaxDailyPRsFloor and MaxDailyPRsCeil bound the per-repository daily PR
// quota. Both boundary values are themselves valid.
const (
	MaxDailyPRsFloor = 1
	MaxDailyPRsCeil  = 50
)

// ValidationError describes one policy invariant violation. Errors block
// persistence; they are surfaced to the caller and never stored.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Report is the outcome of validating a policy: blocking errors plus
// non-blocking warnings surfaced to the caller.
type Report struct {
	Errors   []*ValidationError `json:"errors"`
	Warnings []string           `json:"warnings"`
}

// HasErrors reports whether the policy may not be persisted.
func (r *Report) HasErrors() bool { return len(r.Errors) > 0 }

// Validate checks p against the policy invariants.
//
// Errors: MaxDailyPRs outside [1,50]; empty allowed-severity set while
// enabled; overlap between allowed and excluded package sets (each
// offending package is named). Warnings: auto-merge without required tests;
// critical severity permitted without mandatory review.
func Validate(p *models.AutoFixPolicy) *Report {
	r := &Report{}

	if p.MaxDailyPRs < MaxDailyPRsFloor || p.MaxDailyPRs > MaxDailyPRsCeil {
		r.Errors = append(r.Errors, &ValidationError{
			Field: "max_daily_prs",
			Message: fmt.Sprintf("must be between %d and %d, got %d",
				MaxDailyPRsFloor, MaxDailyPRsCeil, p.MaxDailyPRs),
		})
	}

	if p.Enabled && len(p.AllowedSeverities) == 0 {
		r.Errors = append(r.Errors, &ValidationError{
			Field:   "allowed_severities",
			Message: "must not be empty while auto-fix is enabled",
		})
	}
	for _, s := range p.AllowedSeverities {
		if !s.Valid() {
			r.Errors = append(r.Errors, &ValidationError{
				Field:   "allowed_severities",
				Message: fmt.Sprintf("unknown severity %q", s),
			})
		}
	}

	if overlap := packageOverlap(p.AllowedPackages, p.ExcludedPackages); len(overlap) > 0 {
		r.Errors = append(r.Errors, &ValidationError{
			Field: "allowed_packages",
			Message: fmt.Sprintf("packages cannot be both allowed and excluded: %s",
				strings.Join(overlap, ", ")),
		})
	}

	if p.AutoMerge && !p.TestRequired {
		r.Warnings = append(r.Warnings,
			"auto-merge is enabled without requiring tests; broken fixes may land unreviewed")
	}
	if p.SeverityAllowed(models.SeverityCritical) && !p.RequiresReview {
		r.Warnings = append(r.Warnings,
			"critical severity fixes are permitted without mandatory review")
	}

	for _, h := range p.ScheduleHours {
		if h < 0 || h > 23 {
			r.Errors = append(r.Errors, &ValidationError{
				Field:   "schedule_hours",
				Message: fmt.Sprintf("hour %d out of range 0-23", h),
			})
		}
	}
	for _, d := range p.ScheduleDays {
		if !validWeekday(d) {
			r.Errors = append(r.Errors, &ValidationError{
				Field:   "schedule_days",
				Message: fmt.Sprintf("unknown weekday %q", d),
			})
		}
	}

	return r
}

func packageOverlap(allowed, excluded []string) []string {
	if len(allowed) == 0 || len(excluded) == 0 {
		return nil
	}
	ex := make(map[string]struct{}, len(excluded))
	for _, p := range excluded {
		ex[strings.ToLower(p)] = struct{}{}
	}
	var overlap []string
	seen := make(map[string]struct{})
	for _, p := range allowed {
		key := strings.ToLower(p)
		if _, ok := ex[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		overlap = append(overlap, p)
	}
	sort.Strings(overlap)
	return overlap
}

func validWeekday(d string) bool {
	switch strings.ToLower(d) {
	case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		return true
	}
	return false
}
