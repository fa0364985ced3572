package models

// Severity classifies how urgent a vulnerability alert is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityUnknown  Severity = "unknown"
)

// Weight returns a numeric weight for sorting (higher = more severe).
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// Valid reports whether s is one of the four recognised levels.
func (s Severity) Valid() bool {
	return s.Weight() > 0
}

// ParseSeverity normalises advisory-feed severity strings.
func ParseSeverity(raw string) Severity {
	switch raw {
	case "critical", "CRITICAL":
		return SeverityCritical
	case "high", "HIGH", "important", "IMPORTANT":
		return SeverityHigh
	case "medium", "MEDIUM", "moderate", "MODERATE":
		return SeverityMedium
	case "low", "LOW":
		return SeverityLow
	default:
		return SeverityUnknown
	}
}
