package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/logbridge/internal/socketrpc"
)

// errOffline makes `status` exit non-zero when the backend is unreachable.
var errOffline = errors.New("log service is offline")

type rootOptions struct {
	configPath string
	socketPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "logbridgectl",
		Short: "logbridgectl controls a running logbridge daemon",
		Long: "logbridgectl connects to the logbridge daemon over its Unix socket to\n" +
			"check backend health, trigger an immediate flush and show forwarding counters.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.SetVersionTemplate(fmt.Sprintf("logbridgectl version {{.Version}}\ncommit: %s\nbuilt: %s\n", commit, buildTime))

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $HOME/.config/logbridge/config.yml)")
	root.PersistentFlags().StringVar(&opts.socketPath, "socket", "", "daemon socket path (overrides config)")

	root.AddCommand(newStatusCmd(opts), newFlushCmd(opts), newStatsCmd(opts))
	return root
}

// dial resolves the socket path and connects to the daemon.
func (o *rootOptions) dial() (*socketrpc.Client, error) {
	path := o.socketPath
	if path == "" {
		cfg, err := loadCtlConfig(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		path = cfg.SocketPath
	}
	client, err := socketrpc.Dial(path)
	if err != nil {
		return nil, fmt.Errorf("daemon not running or socket unavailable at %s: %w", path, err)
	}
	return client, nil
}
