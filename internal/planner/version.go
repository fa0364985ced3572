package planner

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/kev765740/dependencywarden/models"
)

// LatestVersion is the target used when no concrete fixed version can be
// determined from the alert. npm accepts it as a version spec verbatim.
const LatestVersion = "latest"

var fixedRangeRe = regexp.MustCompile(`>=\s*v?(\d+\.\d+\.\d+)`)

// TargetVersion resolves the version an alert should be fixed to. The
// advisory's explicit fixed version wins; otherwise the description is
// scanned for ">= X.Y.Z" ranges and the highest one is used; otherwise
// the latest sentinel.
func TargetVersion(alert *models.Alert) string {
	if v := strings.TrimPrefix(strings.TrimSpace(alert.FixedVersion), "v"); v != "" {
		return v
	}
	best := ""
	for _, m := range fixedRangeRe.FindAllStringSubmatch(alert.Description, -1) {
		if best == "" || semver.Compare("v"+m[1], "v"+best) > 0 {
			best = m[1]
		}
	}
	if best != "" {
		return best
	}
	return LatestVersion
}

// breaking reports whether moving from one version to another crosses a
// major boundary. Unknown versions never count as breaking; the reviewer
// checklist covers that case instead.
func breaking(from, to string) bool {
	if from == "" || to == "" || to == LatestVersion {
		return false
	}
	fv, tv := "v"+from, "v"+to
	if !semver.IsValid(fv) || !semver.IsValid(tv) {
		return false
	}
	return semver.Major(fv) != semver.Major(tv)
}

// ChangeKind classifies a version move as a patch, minor or major change.
// Unknown or unparsable versions classify as major so version-change bounds
// stay conservative.
func ChangeKind(from, to string) models.VersionChange {
	if from == "" || to == "" || to == LatestVersion {
		return models.VersionChangeMajor
	}
	fv, tv := "v"+from, "v"+to
	if !semver.IsValid(fv) || !semver.IsValid(tv) {
		return models.VersionChangeMajor
	}
	switch {
	case semver.Major(fv) != semver.Major(tv):
		return models.VersionChangeMajor
	case semver.MajorMinor(fv) != semver.MajorMinor(tv):
		return models.VersionChangeMinor
	default:
		return models.VersionChangePatch
	}
}

// rangePrefix returns the npm range operator prefix of a version spec so a
// rewrite can preserve it, e.g. "^1.0.0" yields "^".
func rangePrefix(spec string) string {
	for i, r := range spec {
		if r >= '0' && r <= '9' {
			return spec[:i]
		}
	}
	return ""
}
