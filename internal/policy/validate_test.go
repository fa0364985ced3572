package policy

import (
	"strings"
	"testing"

	"github.com/kev765740/dependencywarden/models"
)

func validPolicy() *models.AutoFixPolicy {
	p := Defaults(1)
	return p
}

func TestValidateDefaultsAreValid(t *testing.T) {
	r := Validate(validPolicy())
	if r.HasErrors() {
		t.Fatalf("defaults must validate cleanly, got %+v", r.Errors)
	}
}

func TestValidateMaxDailyPRsBounds(t *testing.T) {
	cases := []struct {
		value int
		ok    bool
	}{
		{0, false},
		{1, true},
		{25, true},
		{50, true},
		{51, false},
		{75, false},
		{-3, false},
	}
	for _, tc := range cases {
		p := validPolicy()
		p.MaxDailyPRs = tc.value
		r := Validate(p)
		if tc.ok && r.HasErrors() {
			t.Fatalf("max_daily_prs=%d should be accepted: %+v", tc.value, r.Errors)
		}
		if !tc.ok && !r.HasErrors() {
			t.Fatalf("max_daily_prs=%d should be rejected", tc.value)
		}
	}
}

func TestValidateEmptySeveritiesWhileEnabled(t *testing.T) {
	p := validPolicy()
	p.AllowedSeverities = nil
	r := Validate(p)
	if !r.HasErrors() {
		t.Fatal("enabled policy with no severities must be rejected")
	}

	// A disabled policy may have an empty set.
	p.Enabled = false
	if r := Validate(p); r.HasErrors() {
		t.Fatalf("disabled policy should accept empty severities: %+v", r.Errors)
	}
}

func TestValidatePackageOverlapNamesOffenders(t *testing.T) {
	p := validPolicy()
	p.AllowedPackages = []string{"lodash", "express", "react"}
	p.ExcludedPackages = []string{"react", "lodash"}
	r := Validate(p)
	if !r.HasErrors() {
		t.Fatal("overlapping package sets must be rejected")
	}
	var overlapMsg string
	for _, e := range r.Errors {
		if e.Field == "allowed_packages" {
			overlapMsg = e.Message
		}
	}
	if !strings.Contains(overlapMsg, "lodash") || !strings.Contains(overlapMsg, "react") {
		t.Fatalf("error should name every offending package, got %q", overlapMsg)
	}
	if strings.Contains(overlapMsg, "express") {
		t.Fatalf("error should not name non-overlapping packages, got %q", overlapMsg)
	}
}

func TestValidateWarnings(t *testing.T) {
	p := validPolicy()
	p.AutoMerge = true
	p.TestRequired = false
	r := Validate(p)
	if r.HasErrors() {
		t.Fatalf("warnings must not block: %+v", r.Errors)
	}
	if len(r.Warnings) == 0 {
		t.Fatal("auto-merge without tests should warn")
	}

	p = validPolicy()
	p.RequiresReview = false
	r = Validate(p)
	if len(r.Warnings) == 0 {
		t.Fatal("critical without review should warn")
	}
}

func TestValidateScheduleFields(t *testing.T) {
	p := validPolicy()
	p.ScheduleHours = []int{9, 24}
	p.ScheduleDays = []string{"monday", "crunchday"}
	r := Validate(p)
	if len(r.Errors) != 2 {
		t.Fatalf("expected 2 schedule errors, got %+v", r.Errors)
	}
}
