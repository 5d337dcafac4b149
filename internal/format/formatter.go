// Package format renders inbound records into the canonical forwarded line.
package format

import (
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/tinytelemetry/logbridge/internal/model"
)

// Formatter turns a LogRecord into
//
//	"<epoch seconds> <LEVEL> [node name: <name>] <msg>\n"
//
// and echoes the raw message to a console writer for local visibility.
type Formatter struct {
	mu      sync.Mutex
	console io.Writer
}

// New returns a Formatter echoing messages to console. A nil console
// disables the side channel.
func New(console io.Writer) *Formatter {
	return &Formatter{console: console}
}

// Format renders record. The returned line depends only on record.
func (f *Formatter) Format(record model.LogRecord) string {
	line := Line(record)
	f.echo(record.Msg)
	return line
}

// Line renders record without touching the console side channel.
func Line(record model.LogRecord) string {
	var b strings.Builder
	b.Grow(len(record.Name) + len(record.Msg) + 48)

	b.WriteString(strconv.FormatFloat(record.Stamp.Seconds(), 'f', 6, 64))
	b.WriteByte(' ')

	if label, ok := record.Level.Label(); ok {
		b.WriteString(label)
	} else {
		b.WriteString(strconv.Itoa(int(record.Level)))
	}
	b.WriteByte(' ')

	b.WriteString("[node name: ")
	b.WriteString(record.Name)
	b.WriteString("] ")

	b.WriteString(record.Msg)
	b.WriteByte('\n')
	return b.String()
}

func (f *Formatter) echo(msg string) {
	if f == nil || f.console == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.WriteString(f.console, msg+"\n")
}
