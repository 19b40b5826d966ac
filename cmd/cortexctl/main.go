// Package main provides cortexctl, a CLI for standing up a MetaCortex
// from a meta.yaml shard manifest and querying it.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cortexfed/cortex/internal/eventbus"
	"github.com/cortexfed/cortex/internal/meta"
)

var (
	jsonOutput bool
	configPath string

	bus *eventbus.Bus
	mc  *meta.MetaCortex
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"})
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"})
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"})
)

var rootCmd = &cobra.Command{
	Use:   "cortexctl",
	Short: "cortexctl drives a federated row-oriented property store",
	Long: `cortexctl bootstraps a MetaCortex from a meta.yaml shard manifest
and lets you run tag-routed queries against it from the command line.

Examples:
  cortexctl serve --config meta.yaml
  cortexctl query 'org.east:hits#10'
  cortexctl shards --config meta.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		bus = eventbus.New()
		mc = meta.New(bus)
		return bootstrap(configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "meta.yaml", "path to the shard manifest")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(shardsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
