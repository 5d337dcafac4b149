package logparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// SeverityRegex matches common severity levels in log text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\b`)

// lookupSeverity maps the known spellings of a level name onto the bus scale.
// TRACE has no level of its own and folds into DEBUG.
func lookupSeverity(name string) (model.Severity, bool) {
	switch name {
	case "TRACE", "TRAC", "TRC", "DEBUG", "DEBU", "DBG", "DEB":
		return model.SeverityDebug, true
	case "INFO", "INFORMATION", "INF":
		return model.SeverityInfo, true
	case "WARN", "WARNING", "WRNG", "WRN":
		return model.SeverityWarn, true
	case "ERROR", "ERR", "ERRO":
		return model.SeverityError, true
	case "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT", "PANIC", "PNC":
		return model.SeverityFatal, true
	}
	if len(name) >= 4 {
		switch name[:4] {
		case "INFO":
			return model.SeverityInfo, true
		case "WARN":
			return model.SeverityWarn, true
		case "ERRO":
			return model.SeverityError, true
		case "DEBU", "TRAC":
			return model.SeverityDebug, true
		case "FATA", "CRIT":
			return model.SeverityFatal, true
		}
	}
	return 0, false
}

// NormalizeSeverity converts a level name in any common spelling to a
// Severity. Unknown names default to INFO.
func NormalizeSeverity(severity string) model.Severity {
	if s, ok := lookupSeverity(strings.ToUpper(strings.TrimSpace(severity))); ok {
		return s
	}
	return model.SeverityInfo
}

// ParseSeverity parses a configured threshold. It accepts a level name or a
// raw integer; unlike NormalizeSeverity it rejects unknown names.
func ParseSeverity(value string) (model.Severity, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("logparse: empty severity")
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return model.Severity(n), nil
	}
	if s, ok := lookupSeverity(strings.ToUpper(trimmed)); ok {
		return s, nil
	}
	return 0, fmt.Errorf("logparse: unknown severity %q", value)
}

// ExtractSeverityFromText extracts the severity level from log message text.
func ExtractSeverityFromText(message string) model.Severity {
	matches := SeverityRegex.FindStringSubmatch(message)
	if len(matches) > 1 {
		return NormalizeSeverity(matches[1])
	}
	return model.SeverityInfo
}
