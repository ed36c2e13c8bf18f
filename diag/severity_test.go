package diag

import "testing"

func TestSeverity_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		severity Severity
		want     bool
	}{
		{"error is valid", SeverityError, true},
		{"warning is valid", SeverityWarning, true},
		{"info is valid", SeverityInfo, true},
		{"empty is invalid", Severity(""), false},
		{"critical is invalid", Severity("critical"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.severity.IsValid(); got != tt.want {
				t.Errorf("Severity.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeverity_Rank(t *testing.T) {
	if !(SeverityError.Rank() > SeverityWarning.Rank() && SeverityWarning.Rank() > SeverityInfo.Rank()) {
		t.Error("expected error > warning > info")
	}
	if Severity("bogus").Rank() != 0 {
		t.Error("expected invalid severity to rank 0")
	}
}

func TestParseSeverity(t *testing.T) {
	got, err := ParseSeverity("warning")
	if err != nil {
		t.Fatalf("ParseSeverity() unexpected error: %v", err)
	}
	if got != SeverityWarning {
		t.Errorf("ParseSeverity() = %v, want %v", got, SeverityWarning)
	}

	if _, err := ParseSeverity("fatal"); err == nil {
		t.Error("ParseSeverity(\"fatal\") expected error")
	}
}
