package model

import (
	"strconv"
	"time"
)

// Severity is an integer-ordered log level. Higher values are more severe.
// Values outside the named levels are legal and compare numerically.
type Severity int

const (
	SeverityDebug Severity = 0
	SeverityInfo  Severity = 1
	SeverityWarn  Severity = 2
	SeverityError Severity = 3
	SeverityFatal Severity = 4
)

// Label returns the level name for the five named levels and false otherwise.
func (s Severity) Label() (string, bool) {
	switch s {
	case SeverityFatal:
		return "FATAL", true
	case SeverityError:
		return "ERROR", true
	case SeverityWarn:
		return "WARN", true
	case SeverityInfo:
		return "INFO", true
	case SeverityDebug:
		return "DEBUG", true
	default:
		return "", false
	}
}

func (s Severity) String() string {
	if label, ok := s.Label(); ok {
		return label
	}
	return strconv.Itoa(int(s))
}

// Stamp is a record timestamp split into whole seconds and nanoseconds.
type Stamp struct {
	Sec     int64  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// StampFromTime converts t into a Stamp.
func StampFromTime(t time.Time) Stamp {
	return Stamp{Sec: t.Unix(), Nanosec: uint32(t.Nanosecond())}
}

// Seconds returns the stamp as fractional epoch seconds.
func (s Stamp) Seconds() float64 {
	return float64(s.Sec) + float64(s.Nanosec)/1e9
}

// Time returns the stamp as a time.Time.
func (s Stamp) Time() time.Time {
	return time.Unix(s.Sec, int64(s.Nanosec))
}

// LogRecord is one inbound log event as published on the bus.
// It is treated as an immutable value.
type LogRecord struct {
	Name  string   `json:"name"`
	Level Severity `json:"level"`
	Stamp Stamp    `json:"stamp"`
	Msg   string   `json:"msg"`
}

// LogEvent is one formatted line queued for transmission.
type LogEvent struct {
	Timestamp time.Time
	Message   string
}

// LogBatch is the unit handed to a backend publisher.
type LogBatch struct {
	Group  string
	Stream string
	Events []LogEvent
}

// Bytes returns the summed message size of the batch.
func (b LogBatch) Bytes() int {
	n := 0
	for _, e := range b.Events {
		n += len(e.Message)
	}
	return n
}
