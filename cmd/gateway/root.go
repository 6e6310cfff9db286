package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/ingress/pkg/cli"
)

// Global flags
var cfgFile string

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Single-ingress gateway for a backend-as-a-service platform",
		Long: `Gateway fronts a backend-as-a-service platform behind one origin.

It routes the data, auth, realtime, functions and storage sub-APIs by path
prefix, injects the service credentials into every upstream request and
applies a cross-origin policy to every response. Realtime connections are
relayed as WebSocket tunnels.

Configuration is read from an optional YAML file and from the environment
(SUPABASE_URL, SUPABASE_ANON_KEY, GATEWAY_*).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (optional)")

	cmd.AddCommand(newRunCmd(), newRoutesCmd(), newVersionCmd())
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}
