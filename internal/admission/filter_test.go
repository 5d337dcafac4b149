package admission

import (
	"math"
	"testing"

	"github.com/tinytelemetry/logbridge/internal/model"
)

func TestShouldForward_MatchesThreshold(t *testing.T) {
	t.Parallel()

	for _, threshold := range []model.Severity{-5, 0, 2, 4, 100} {
		f := NewFilter(AdmissionConfig{MinSeverity: threshold})
		for s := model.Severity(-10); s <= 110; s++ {
			if got, want := f.ShouldForward(s), s >= threshold; got != want {
				t.Fatalf("threshold=%d ShouldForward(%d) = %v, want %v", threshold, s, got, want)
			}
		}
	}
}

func TestShouldForward_Monotonic(t *testing.T) {
	t.Parallel()

	f := NewFilter(AdmissionConfig{MinSeverity: model.SeverityWarn})
	for s1 := model.Severity(-3); s1 < 8; s1++ {
		for s2 := s1 + 1; s2 < 9; s2++ {
			if f.ShouldForward(s1) && !f.ShouldForward(s2) {
				t.Fatalf("forwarding %d but not %d", s1, s2)
			}
		}
	}
}

func TestShouldForward_OutOfRangeComparedNumerically(t *testing.T) {
	t.Parallel()

	f := NewFilter(AdmissionConfig{MinSeverity: model.SeverityFatal})
	if !f.ShouldForward(model.Severity(42)) {
		t.Fatal("expected unrecognized value above threshold to be forwarded")
	}
	if !f.ShouldForward(model.Severity(math.MaxInt)) {
		t.Fatal("expected max severity to be forwarded")
	}
	if f.ShouldForward(model.Severity(math.MinInt)) {
		t.Fatal("expected min severity to be dropped")
	}
}

func TestIsIgnored_ExactMatch(t *testing.T) {
	t.Parallel()

	f := NewFilter(AdmissionConfig{IgnoredSources: []string{"noisy_node", "chatty", "noisy_node"}})

	tests := []struct {
		name string
		want bool
	}{
		{"noisy_node", true},
		{"chatty", true},
		{"noisy", false},
		{"Noisy_node", false},
		{"noisy_node ", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := f.IsIgnored(tt.name); got != tt.want {
			t.Errorf("IsIgnored(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
	if got := f.IgnoredCount(); got != 2 {
		t.Errorf("IgnoredCount() = %d, want 2", got)
	}
}
