package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/logbridge/internal/logservice"
	"github.com/tinytelemetry/logbridge/internal/model"
)

func TestBuildInputPlugins_RegistersPrimitives(t *testing.T) {
	t.Parallel()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: true,
		TCPAddr:    "127.0.0.1:4000",
	})

	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Name() != "tcp" {
		t.Fatalf("plugins[0] name = %q, want %q", plugins[0].Name(), "tcp")
	}
	if plugins[1].Name() != "stdin" {
		t.Fatalf("plugins[1] name = %q, want %q", plugins[1].Name(), "stdin")
	}
	if !plugins[0].Enabled() {
		t.Fatal("expected tcp plugin to be enabled when TCPEnabled=true")
	}
}

func TestBuildInputPlugins_TCPDisabled(t *testing.T) {
	t.Parallel()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: false,
		TCPAddr:    "127.0.0.1:4000",
	})

	if plugins[0].Enabled() {
		t.Fatal("expected tcp plugin to be disabled when TCPEnabled=false")
	}
}

func TestTCPInputPlugin_BuildStartsListener(t *testing.T) {
	t.Parallel()

	plugin := buildInputPlugins(InputPluginConfig{TCPEnabled: true, TCPAddr: "127.0.0.1:0"})[0]
	src, err := plugin.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer src.Stop()

	if src.Name() != "tcp" {
		t.Fatalf("source name = %q, want tcp", src.Name())
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetLogbridgeEnv(t)

	cfg, err := loadConfig(writeTempConfig(t, "console: false"), nil)
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}

	if cfg.severity != model.SeverityInfo {
		t.Fatalf("severity = %v, want INFO", cfg.severity)
	}
	if cfg.LogGroup != model.DefaultLogGroup {
		t.Fatalf("LogGroup = %q", cfg.LogGroup)
	}
	if cfg.LogStream == "" {
		t.Fatal("LogStream should default to the hostname")
	}
	if cfg.PublishFrequency != model.DefaultPublishFrequency {
		t.Fatalf("PublishFrequency = %s", cfg.PublishFrequency)
	}
	if cfg.Backend != logservice.BackendOTLP {
		t.Fatalf("Backend = %q, want otlp", cfg.Backend)
	}
	if cfg.Console {
		t.Fatal("Console should follow the config file")
	}
	if cfg.ConfigPath == "" {
		t.Fatal("ConfigPath should record the file used")
	}
	if !strings.HasSuffix(cfg.BackendDBPath, filepath.Join("logbridge", "logbridge.duckdb")) {
		t.Fatalf("BackendDBPath = %q", cfg.BackendDBPath)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	resetLogbridgeEnv(t)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yml"), nil)
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.ConfigPath != "" {
		t.Fatalf("ConfigPath = %q, want empty for a missing file", cfg.ConfigPath)
	}
	if cfg.TCPAddr != "127.0.0.1:4000" || cfg.APIAddr != "127.0.0.1:3000" {
		t.Fatalf("addrs = %q / %q", cfg.TCPAddr, cfg.APIAddr)
	}
}

func TestLoadConfig_AddressResolution(t *testing.T) {
	resetLogbridgeEnv(t)

	tests := []struct {
		name        string
		configYAML  string
		wantHost    string
		wantTCPAddr string
		wantAPIAddr string
	}{
		{
			name: "defaults to localhost host",
			configYAML: `
tcp-port: 4100
api-port: 3100
`,
			wantHost:    "127.0.0.1",
			wantTCPAddr: "127.0.0.1:4100",
			wantAPIAddr: "127.0.0.1:3100",
		},
		{
			name: "host applies to derived tcp and api addresses",
			configYAML: `
host: 0.0.0.0
tcp-port: 4200
api-port: 3200
`,
			wantHost:    "0.0.0.0",
			wantTCPAddr: "0.0.0.0:4200",
			wantAPIAddr: "0.0.0.0:3200",
		},
		{
			name: "explicit addresses override host and ports",
			configYAML: `
host: 0.0.0.0
tcp-port: 4300
api-port: 3300
tcp-addr: 10.0.0.5:9999
api-addr: 10.0.0.5:8888
`,
			wantHost:    "0.0.0.0",
			wantTCPAddr: "10.0.0.5:9999",
			wantAPIAddr: "10.0.0.5:8888",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeTempConfig(t, tt.configYAML), nil)
			if err != nil {
				t.Fatalf("loadConfig returned error: %v", err)
			}
			if cfg.Host != tt.wantHost {
				t.Fatalf("Host = %q, want %q", cfg.Host, tt.wantHost)
			}
			if cfg.TCPAddr != tt.wantTCPAddr {
				t.Fatalf("TCPAddr = %q, want %q", cfg.TCPAddr, tt.wantTCPAddr)
			}
			if cfg.APIAddr != tt.wantAPIAddr {
				t.Fatalf("APIAddr = %q, want %q", cfg.APIAddr, tt.wantAPIAddr)
			}
		})
	}
}

func TestLoadConfig_ForwardingSettings(t *testing.T) {
	resetLogbridgeEnv(t)

	tests := []struct {
		name         string
		configYAML   string
		wantErr      bool
		errSubstring string
		assert       func(t *testing.T, cfg appConfig)
	}{
		{
			name: "http backend with headers and compression",
			configYAML: `
min-severity: warn
ignore-nodes: [rosout, camera]
log-group: fleet
log-stream: robot-7
publish-frequency: 2s
backend: http
backend-endpoint: http://collector.local/logs
backend-region: eu-west-1
backend-headers:
  x-api-key: secret
backend-compression: zstd
backend-encoding: cbor
batch-max-entries: 500
`,
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				if cfg.severity != model.SeverityWarn {
					t.Fatalf("severity = %v, want WARN", cfg.severity)
				}
				if len(cfg.IgnoreNodes) != 2 || cfg.IgnoreNodes[1] != "camera" {
					t.Fatalf("IgnoreNodes = %v", cfg.IgnoreNodes)
				}
				if cfg.PublishFrequency != 2*time.Second {
					t.Fatalf("PublishFrequency = %s", cfg.PublishFrequency)
				}
				backend := cfg.backendConfig()
				if backend.Kind != logservice.BackendHTTP || backend.Region != "eu-west-1" {
					t.Fatalf("backend = %+v", backend)
				}
				if backend.Headers["x-api-key"] != "secret" {
					t.Fatalf("headers = %v", backend.Headers)
				}
				if backend.Compression != logservice.CompressionZstd || backend.Encoding != logservice.EncodingCBOR {
					t.Fatalf("codec = %s/%s", backend.Compression, backend.Encoding)
				}
				if opts := cfg.serviceOptions(); opts.BatchMaxEntries != 500 {
					t.Fatalf("BatchMaxEntries = %d", opts.BatchMaxEntries)
				}
			},
		},
		{
			name:       "numeric severity accepted",
			configYAML: `min-severity: 42`,
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				if cfg.severity != 42 {
					t.Fatalf("severity = %d, want 42", cfg.severity)
				}
			},
		},
		{
			name:         "unknown severity rejected",
			configYAML:   `min-severity: loud`,
			wantErr:      true,
			errSubstring: "invalid min-severity",
		},
		{
			name:         "http backend requires endpoint",
			configYAML:   `backend: http`,
			wantErr:      true,
			errSubstring: "backend-endpoint is required",
		},
		{
			name:         "unknown backend rejected",
			configYAML:   `backend: kinesis`,
			wantErr:      true,
			errSubstring: "invalid backend",
		},
		{
			name:         "zero publish frequency rejected",
			configYAML:   `publish-frequency: 0s`,
			wantErr:      true,
			errSubstring: "invalid publish-frequency",
		},
		{
			name: "codec names are case-insensitive",
			configYAML: `
backend-compression: " ZSTD "
backend-encoding: CBOR
`,
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				backend := cfg.backendConfig()
				if backend.Compression != logservice.CompressionZstd || backend.Encoding != logservice.EncodingCBOR {
					t.Fatalf("codec = %s/%s, want zstd/cbor", backend.Compression, backend.Encoding)
				}
			},
		},
		{
			name:         "unknown compression rejected",
			configYAML:   `backend-compression: gzip`,
			wantErr:      true,
			errSubstring: "invalid backend-compression",
		},
		{
			name:         "unknown processor rejected",
			configYAML:   `processor: xml`,
			wantErr:      true,
			errSubstring: "invalid processor",
		},
		{
			name:         "invalid port rejected",
			configYAML:   `tcp-port: 70000`,
			wantErr:      true,
			errSubstring: "invalid tcp-port",
		},
		{
			name:         "invalid log level rejected",
			configYAML:   `log-level: chatty`,
			wantErr:      true,
			errSubstring: "invalid log-level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeTempConfig(t, tt.configYAML), nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errSubstring != "" && !strings.Contains(err.Error(), tt.errSubstring) {
					t.Fatalf("error = %q, want substring %q", err.Error(), tt.errSubstring)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadConfig returned error: %v", err)
			}
			if tt.assert != nil {
				tt.assert(t, cfg)
			}
		})
	}
}

func TestLoadConfig_EnvAndFlagsOverrideFile(t *testing.T) {
	resetLogbridgeEnv(t)
	t.Setenv("LOGBRIDGE_LOG_GROUP", "from-env")
	t.Setenv("LOGBRIDGE_BACKEND", "duckdb")

	path := writeTempConfig(t, `
log-group: from-file
min-severity: debug
backend: otlp
`)

	flags := newFlagSet()
	if err := flags.Parse([]string{"--min-severity=ERROR"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig(path, flags)
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.LogGroup != "from-env" {
		t.Fatalf("LogGroup = %q, want env value", cfg.LogGroup)
	}
	if cfg.Backend != logservice.BackendDuckDB {
		t.Fatalf("Backend = %q, want env value", cfg.Backend)
	}
	if cfg.severity != model.SeverityError {
		t.Fatalf("severity = %v, want flag value ERROR", cfg.severity)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func resetLogbridgeEnv(t *testing.T) {
	t.Helper()

	original := make(map[string]string)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "LOGBRIDGE_") {
			continue
		}
		original[key] = value
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}

	t.Cleanup(func() {
		for key, value := range original {
			if err := os.Setenv(key, value); err != nil {
				t.Fatalf("cleanup restore %s: %v", key, err)
			}
		}
	})
}
