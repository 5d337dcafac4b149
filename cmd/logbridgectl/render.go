package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/logbridge/internal/node"
)

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	greenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	redStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boldStyle  = lipgloss.NewStyle().Bold(true)
)

func renderStatus(online bool, message string) string {
	mark, state := redStyle.Render("●"), redStyle.Render("offline")
	if online {
		mark, state = greenStyle.Render("●"), greenStyle.Render("online")
	}
	return fmt.Sprintf("%s  %s  %s", mark, state, dimStyle.Render(message))
}

func renderStats(s node.Stats) string {
	rows := []struct {
		label string
		value int64
	}{
		{"Received", s.Received},
		{"Forwarded", s.Forwarded},
		{"Ignored", s.Ignored},
		{"Below threshold", s.BelowThreshold},
		{"Uninitialized", s.DroppedUninitialized},
		{"Rejected", s.Rejected},
		{"Flushes", s.Flushes},
	}

	lines := []string{boldStyle.Render("Node") + "  " + s.State, ""}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %-16s %s", r.label, dimStyle.Render(fmt.Sprint(r.value))))
	}
	return strings.Join(lines, "\n")
}
