package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/ingress/pkg/cli"
	"mercator-hq/ingress/pkg/config"
	"mercator-hq/ingress/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway",
		Long: `Start the gateway with the specified configuration.

The gateway binds one listener and serves until SIGINT or SIGTERM, then
drains in-flight requests for up to server.shutdown_timeout. Missing
credentials or upstream settings stop the process before it binds.

Examples:
  # Start with default config
  gateway run

  # Start with custom config
  gateway run --config /etc/gateway/config.yaml

  # Override listen address
  gateway run --listen 0.0.0.0:8080

  # Validate config without starting server
  gateway run --dry-run`,
		Args: cobra.NoArgs,
		RunE: runGateway,
	}

	cmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address (host:port)")
	cmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	return cmd
}

func runGateway(cmd *cobra.Command, _ []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	creds, err := resolveCredentials(cmd.Context(), cfg)
	if err != nil {
		return cli.WrapConfigError(err)
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, creds.Secrets()...))
	if err != nil {
		return cli.WrapConfigError(err)
	}

	gw, err := newGateway(cfg, creds, logger)
	if err != nil {
		return cli.WrapConfigError(err)
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	if err := gw.run(ctx); err != nil {
		logger.Error("gateway failed", "error", err)
		return cli.NewCommandError("run", err)
	}
	return nil
}

// loadRunConfig loads the configuration and applies the run flags on top.
func loadRunConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.WrapConfigError(err)
	}

	if runFlags.listenAddress != "" {
		host, portStr, err := net.SplitHostPort(runFlags.listenAddress)
		if err != nil {
			return nil, cli.NewConfigError("--listen", err.Error())
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, cli.NewConfigError("--listen", fmt.Sprintf("invalid port %q", portStr))
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, cli.WrapConfigError(err)
	}
	return cfg, nil
}
