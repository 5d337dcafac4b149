// Package admission decides which inbound records are eligible for forwarding.
package admission

import "github.com/tinytelemetry/logbridge/internal/model"

// AdmissionConfig is the threshold and source exclusion set applied before
// formatting.
type AdmissionConfig struct {
	MinSeverity    model.Severity
	IgnoredSources []string
}

// Filter is an immutable severity threshold plus an exact-match set of
// ignored source names. It is safe for concurrent use.
type Filter struct {
	minSeverity model.Severity
	ignored     map[string]struct{}
}

// NewFilter builds a Filter from cfg. Duplicate ignored names collapse.
func NewFilter(cfg AdmissionConfig) *Filter {
	ignored := make(map[string]struct{}, len(cfg.IgnoredSources))
	for _, name := range cfg.IgnoredSources {
		ignored[name] = struct{}{}
	}
	return &Filter{
		minSeverity: cfg.MinSeverity,
		ignored:     ignored,
	}
}

// ShouldForward reports whether severity is at or above the threshold.
// Values outside the named levels are compared numerically.
func (f *Filter) ShouldForward(severity model.Severity) bool {
	return severity >= f.minSeverity
}

// IsIgnored reports whether records from name are excluded.
func (f *Filter) IsIgnored(name string) bool {
	_, ok := f.ignored[name]
	return ok
}

// MinSeverity returns the configured threshold.
func (f *Filter) MinSeverity() model.Severity { return f.minSeverity }

// IgnoredCount returns the number of distinct ignored names.
func (f *Filter) IgnoredCount() int { return len(f.ignored) }
