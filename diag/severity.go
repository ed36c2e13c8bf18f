package diag

import "fmt"

// Severity represents how serious a diagnostic is.
type Severity string

const (
	// SeverityError marks a diagnostic whose entity was rejected, or a fatal
	// run condition.
	SeverityError Severity = "error"

	// SeverityWarning marks an advisory diagnostic; the entity was kept.
	SeverityWarning Severity = "warning"

	// SeverityInfo marks a purely informational diagnostic.
	SeverityInfo Severity = "info"
)

var severityRanks = map[Severity]int{
	SeverityError:   3,
	SeverityWarning: 2,
	SeverityInfo:    1,
}

// IsValid returns true if the severity level is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// Rank returns a numeric rank, higher is more severe. Invalid levels rank 0.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a string into a Severity value.
func ParseSeverity(s string) (Severity, error) {
	severity := Severity(s)
	if !severity.IsValid() {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return severity, nil
}

// AllSeverities returns every severity, most severe first.
func AllSeverities() []Severity {
	return []Severity{SeverityError, SeverityWarning, SeverityInfo}
}
