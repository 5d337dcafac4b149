package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/logbridge/internal/ingest"
	"github.com/tinytelemetry/logbridge/internal/logparse"
	"github.com/tinytelemetry/logbridge/internal/logservice"
	"github.com/tinytelemetry/logbridge/internal/socketrpc"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	flags := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if showVersion, _ := flags.GetBool("version"); showVersion {
		fmt.Printf("logbridge - Log Forwarding Bridge\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	configPath, _ := flags.GetString("config")
	cfg, err := loadConfig(configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet declares the command-line flags. Every flag except config and
// version shares its name with a config key and overrides it when set.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("logbridge", pflag.ContinueOnError)
	fs.String("config", "", "config file (default is $HOME/.config/logbridge/config.yml)")
	fs.Bool("version", false, "print version information")

	fs.String("min-severity", defaultMinSeverity, "lowest severity forwarded (DEBUG, INFO, WARN, ERROR, FATAL or an integer)")
	fs.StringSlice("ignore-nodes", nil, "source names whose records are never forwarded")
	fs.String("log-group", defaultLogGroup, "backend log group")
	fs.String("log-stream", "", "backend log stream (default is the hostname)")
	fs.Duration("publish-frequency", defaultPublishFrequency, "interval between flush triggers")
	fs.String("backend", defaultBackend, "backend kind: otlp, http or duckdb")
	fs.String("backend-endpoint", "", "backend endpoint address or URL")
	fs.String("processor", ingest.ProcessorModeParse, "ingest processor: parse or passthrough")
	fs.Bool("console", true, "echo forwarded messages to stdout")
	fs.String("log-level", defaultLogLevel, "runtime log level")
	return fs
}

func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDBPath := filepath.Join(home, ".local", "share", "logbridge", "logbridge.duckdb")
	defaultStream, err := os.Hostname()
	if err != nil || defaultStream == "" {
		defaultStream = "logbridge"
	}

	v := viper.New()
	v.SetEnvPrefix("LOGBRIDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("min-severity", defaultMinSeverity)
	v.SetDefault("ignore-nodes", []string{})
	v.SetDefault("log-group", defaultLogGroup)
	v.SetDefault("log-stream", defaultStream)
	v.SetDefault("publish-frequency", defaultPublishFrequency)
	v.SetDefault("backend", defaultBackend)
	v.SetDefault("backend-endpoint", "")
	v.SetDefault("backend-region", "")
	v.SetDefault("backend-timeout", defaultBackendTimeout)
	v.SetDefault("backend-insecure", false)
	v.SetDefault("backend-compression", defaultBackendCompression)
	v.SetDefault("backend-encoding", defaultBackendEncoding)
	v.SetDefault("backend-db-path", defaultDBPath)
	v.SetDefault("archive-retention-days", defaultArchiveRetentionDays)
	v.SetDefault("batch-max-entries", defaultBatchMaxEntries)
	v.SetDefault("batch-max-bytes", defaultBatchMaxBytes)
	v.SetDefault("batch-queue-size", defaultBatchQueueSize)
	v.SetDefault("flush-queue-size", defaultFlushQueueSize)
	v.SetDefault("processor", ingest.ProcessorModeParse)
	v.SetDefault("tcp-enabled", true)
	v.SetDefault("host", defaultBindHost)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("console", true)
	v.SetDefault("log-level", defaultLogLevel)

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" || f.Name == "version" || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(f.Name, f)
		})
		if bindErr != nil {
			return cfg, fmt.Errorf("binding flags: %w", bindErr)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "logbridge", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}

	cfg.BackendDBPath = expandHome(home, cfg.BackendDBPath)
	cfg.SocketPath = expandHome(home, cfg.SocketPath)

	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

func validateConfig(cfg *appConfig) error {
	severity, err := logparse.ParseSeverity(cfg.MinSeverity)
	if err != nil {
		return fmt.Errorf("invalid min-severity: %w", err)
	}
	cfg.severity = severity

	if err := cfg.logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid log-level %q", cfg.LogLevel)
	}

	if strings.TrimSpace(cfg.LogGroup) == "" {
		return errors.New("log-group must not be empty")
	}
	if strings.TrimSpace(cfg.LogStream) == "" {
		return errors.New("log-stream must not be empty")
	}
	if cfg.PublishFrequency <= 0 {
		return fmt.Errorf("invalid publish-frequency: %s", cfg.PublishFrequency)
	}
	if cfg.BackendTimeout <= 0 {
		return fmt.Errorf("invalid backend-timeout: %s", cfg.BackendTimeout)
	}
	if cfg.ArchiveRetentionDays < 0 {
		return fmt.Errorf("invalid archive-retention-days: %d", cfg.ArchiveRetentionDays)
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch cfg.Backend {
	case logservice.BackendOTLP, logservice.BackendDuckDB:
	case logservice.BackendHTTP:
		if strings.TrimSpace(cfg.BackendEndpoint) == "" {
			return errors.New("backend-endpoint is required for the http backend")
		}
	default:
		return fmt.Errorf("invalid backend: %q", cfg.Backend)
	}

	cfg.BackendCompression = strings.ToLower(strings.TrimSpace(cfg.BackendCompression))
	switch cfg.BackendCompression {
	case logservice.CompressionNone, logservice.CompressionZstd, logservice.CompressionLZ4:
	default:
		return fmt.Errorf("invalid backend-compression: %q", cfg.BackendCompression)
	}
	cfg.BackendEncoding = strings.ToLower(strings.TrimSpace(cfg.BackendEncoding))
	switch cfg.BackendEncoding {
	case logservice.EncodingJSON, logservice.EncodingCBOR:
	default:
		return fmt.Errorf("invalid backend-encoding: %q", cfg.BackendEncoding)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Processor)) {
	case ingest.ProcessorModeParse, ingest.ProcessorModePassthrough:
	default:
		return fmt.Errorf("invalid processor: %q", cfg.Processor)
	}

	if cfg.TCPPort <= 0 || cfg.TCPPort > 65535 {
		return fmt.Errorf("invalid tcp-port: %d", cfg.TCPPort)
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	return nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

