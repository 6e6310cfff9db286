package main

import (
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/ingress/pkg/cli"
	"mercator-hq/ingress/pkg/config"
	"mercator-hq/ingress/pkg/routing"
)

var routesFlags struct {
	output string
}

func newRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Long: `Print the route table built from the configuration: each inbound prefix,
the upstream path it is rewritten to and whether it accepts WebSocket
upgrades. Routes are listed in configuration order; lookups use the longest
matching prefix.

Examples:
  gateway routes
  gateway routes --config config.yaml --output json`,
		Args: cobra.NoArgs,
		RunE: runRoutes,
	}
	cmd.Flags().StringVarP(&routesFlags.output, "output", "o", "text", "output format (text, json)")
	return cmd
}

func runRoutes(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(routesFlags.output)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.WrapConfigError(err)
	}
	table, err := routing.NewTable(config.RouteEntries(cfg.Routes))
	if err != nil {
		return cli.WrapConfigError(err)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), newRouteList(cfg.Upstream.URL, table))
}

type routeRow struct {
	Prefix   string `json:"prefix"`
	Upstream string `json:"upstream"`
	Upgrade  bool   `json:"upgrade"`
}

type routeList struct {
	Routes []routeRow `json:"routes"`
}

func newRouteList(upstream string, table *routing.Table) routeList {
	list := routeList{Routes: make([]routeRow, 0, table.Len())}
	for _, e := range table.Entries() {
		list.Routes = append(list.Routes, routeRow{
			Prefix:   e.Prefix,
			Upstream: strings.TrimRight(upstream, "/") + e.RewritePrefix,
			Upgrade:  e.Upgrade,
		})
	}
	return list
}

func (l routeList) Header() []string {
	return []string{"PREFIX", "UPSTREAM", "UPGRADE"}
}

func (l routeList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Routes))
	for _, r := range l.Routes {
		upgrade := "no"
		if r.Upgrade {
			upgrade = "yes"
		}
		rows = append(rows, []string{r.Prefix, r.Upstream, upgrade})
	}
	return rows
}
