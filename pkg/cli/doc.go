/*
Package cli provides command-line helpers used by the gateway command.

Errors:

Configuration problems are reported as [ConfigError] and map to exit code 2
through [ExitCode]; anything else a command returns maps to exit code 1.

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return cli.WrapConfigError(err)
	}

Output Formatting:

Commands that print tables accept text or JSON output:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, routes); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
