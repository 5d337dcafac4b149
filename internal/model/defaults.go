package model

import "time"

// Shared defaults used by both the daemon and the control CLI.
const (
	DefaultPublishFrequency = 5 * time.Second
	DefaultLogGroup         = "logbridge"
	DefaultMinSeverity      = SeverityInfo
)
