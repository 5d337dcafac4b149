package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/logbridge/internal/admission"
	"github.com/tinytelemetry/logbridge/internal/flushtimer"
	"github.com/tinytelemetry/logbridge/internal/format"
	"github.com/tinytelemetry/logbridge/internal/httpserver"
	"github.com/tinytelemetry/logbridge/internal/ingest"
	"github.com/tinytelemetry/logbridge/internal/logservice"
	"github.com/tinytelemetry/logbridge/internal/node"
	"github.com/tinytelemetry/logbridge/internal/socketrpc"
)

// runServer wires the forwarding node to its inputs, the flush trigger and
// the health surfaces, and blocks until a signal arrives or every input closes.
func runServer(cfg appConfig) error {
	logger, cleanupLogger := configureRuntimeLogger(cfg.logLevel)
	defer cleanupLogger()
	slog.SetDefault(logger)

	var console io.Writer
	if cfg.Console {
		console = os.Stdout
	}

	n := node.New(admission.AdmissionConfig{
		MinSeverity:    cfg.severity,
		IgnoredSources: cfg.IgnoreNodes,
	}, node.WithLogger(logger), node.WithFormatter(format.New(console)))

	if err := n.Initialize(cfg.LogGroup, cfg.LogStream, cfg.backendConfig(), cfg.serviceOptions(), logservice.NewFactory(logger)); err != nil {
		return fmt.Errorf("failed to initialize log service: %w", err)
	}
	if !n.Start() {
		logger.Warn("node started with errors; forwarding may be degraded")
	}
	defer func() {
		if !n.Shutdown() {
			logger.Warn("node shutdown reported errors")
		}
	}()

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, n, logger)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for logbridgectl
	sockServer := socketrpc.NewServer(cfg.SocketPath, n, logger)
	if err := sockServer.Start(); err != nil {
		logger.Warn("failed to start socket server", "path", cfg.SocketPath, "error", err)
	} else {
		defer sockServer.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: cfg.TCPEnabled,
		TCPAddr:    cfg.TCPAddr,
		Logger:     logger,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			logger.Error("input plugin failed", "plugin", plugin.Name(), "error", err)
			continue
		}
		sources = append(sources, src)
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize, logger)
	mux.Start()
	defer mux.Stop()

	processor, err := ingest.NewEnvelopeProcessor(cfg.Processor, n, "")
	if err != nil {
		return err
	}

	trigger := flushtimer.New(cfg.PublishFrequency, n, logger)

	printStartupBanner(cfg, mux.SourceNames(), processor.Name())

	g, gctx := errgroup.WithContext(ctx)

	// Ingestion loop. When every input has closed there is nothing left to
	// forward, so the daemon winds down. Without inputs it serves the health
	// surfaces until signalled.
	if mux.HasSources() {
		g.Go(func() error {
			for env := range mux.Lines() {
				processor.ProcessEnvelope(env)
			}
			logger.Info("ingestion stopped", "envelopes", mux.Forwarded())
			cancel()
			return nil
		})
	}

	g.Go(func() error {
		return trigger.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("errgroup exited with error", "error", err)
	}

	cancel()
	mux.Stop()
	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

// configureRuntimeLogger returns a text logger writing to the state
// directory log file, or to stderr when the file cannot be opened.
func configureRuntimeLogger(level slog.Level) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: level}
	stderr := func() (*slog.Logger, func()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return stderr()
	}

	logDir := filepath.Join(home, ".local", "state", "logbridge")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return stderr()
	}

	logPath := filepath.Join(logDir, "logbridge.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return stderr()
	}

	return slog.New(slog.NewTextHandler(f, opts)), func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, sourceNames []string, processorName string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	row := func(on bool, label, value string, style lipgloss.Style) string {
		mark := dot
		if on {
			mark = check
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, label, style.Render(value))
	}

	logo := cyan.Bold(true).Render(`
    ╦  ╔═╗╔═╗╔╗ ╦═╗╦╔╦╗╔═╗╔═╗
    ║  ║ ║║ ╦╠╩╗╠╦╝║ ║║║ ╦║╣
    ╩═╝╚═╝╚═╝╚═╝╩╚═╩═╩╝╚═╝╚═╝`)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Inputs"), "")
	if cfg.TCPEnabled {
		lines = append(lines, row(true, "TCP Ingest", cfg.TCPAddr, cyan))
	} else {
		lines = append(lines, row(false, "TCP Ingest", "disabled", dim))
	}
	if len(sourceNames) > 0 {
		lines = append(lines, row(true, "Active", strings.Join(sourceNames, ", "), dim))
	} else {
		lines = append(lines, row(false, "Active", "none", dim))
	}
	lines = append(lines, row(true, "Processor", processorName, dim), "")

	lines = append(lines, bold.Render("    Forwarding"), "")
	lines = append(lines, row(true, "Backend", backendSummary(cfg), cyan))
	lines = append(lines, row(true, "Group/Stream", cfg.LogGroup+" / "+cfg.LogStream, dim))
	lines = append(lines, row(true, "Min Severity", cfg.severity.String(), dim))
	lines = append(lines, row(true, "Flush Every", cfg.PublishFrequency.String(), dim))
	if len(cfg.IgnoreNodes) > 0 {
		lines = append(lines, row(true, "Ignored", strings.Join(cfg.IgnoreNodes, ", "), dim))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Health"), "")
	if cfg.APIEnabled {
		lines = append(lines, row(true, "HTTP API", cfg.APIAddr, cyan))
	} else {
		lines = append(lines, row(false, "HTTP API", "disabled", dim))
	}
	lines = append(lines, row(true, "Unix Socket", shortenPath(cfg.SocketPath), cyan), "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(true, "Config File", shortenPath(cfg.ConfigPath), dim))
	} else {
		lines = append(lines, row(false, "Config File", "default (no file)", dim))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func backendSummary(cfg appConfig) string {
	switch cfg.Backend {
	case logservice.BackendDuckDB:
		return "duckdb " + shortenPath(cfg.BackendDBPath)
	case logservice.BackendHTTP:
		return "http " + cfg.BackendEndpoint
	default:
		endpoint := cfg.BackendEndpoint
		if endpoint == "" {
			endpoint = "default endpoint"
		}
		return cfg.Backend + " " + endpoint
	}
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
