package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/logbridge/internal/socketrpc"
)

// ctlConfig holds the daemon settings logbridgectl needs.
type ctlConfig struct {
	SocketPath string `mapstructure:"socket-path"`
}

// loadCtlConfig reads socket-path from the daemon's config file and
// environment so both sides agree without extra flags.
func loadCtlConfig(configPath string) (ctlConfig, error) {
	var cfg ctlConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LOGBRIDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())

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
	if strings.HasPrefix(cfg.SocketPath, "~/") {
		cfg.SocketPath = filepath.Join(home, cfg.SocketPath[2:])
	}
	return cfg, nil
}
