package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tinytelemetry/logbridge/internal/logsource"
	"github.com/tinytelemetry/logbridge/internal/tcpserver"
)

// NamedLogSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedLogSource = logsource.LogSource

// InputSourcePlugin is a small plugin primitive for wiring record inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedLogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	TCPEnabled bool
	TCPAddr    string
	Logger     *slog.Logger
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return []InputSourcePlugin{
		tcpInputPlugin{addr: cfg.TCPAddr, enabled: cfg.TCPEnabled, logger: logger},
		stdinInputPlugin{logger: logger},
	}
}

type tcpInputPlugin struct {
	addr    string
	enabled bool
	logger  *slog.Logger
}

func (p tcpInputPlugin) Name() string { return tcpserver.SourceName }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	server := tcpserver.NewServer(p.addr, tcpserver.ServerConfig{Logger: p.logger})
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return logsource.NewTCPSource(server), nil
}

type stdinInputPlugin struct {
	logger *slog.Logger
}

func (p stdinInputPlugin) Name() string { return "stdin" }

// Enabled reports whether stdin is a pipe or file rather than a terminal.
func (p stdinInputPlugin) Enabled() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return logsource.NewStdinSource(ctx, logsource.StdinConfig{Logger: p.logger}), nil
}
