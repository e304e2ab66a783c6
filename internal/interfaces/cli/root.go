// Package cli implements the compval command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build metadata, injected at link time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions carries the persistent flags every subcommand inherits.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Output     string
}

// NewRootCommand assembles the compval command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "compval",
		Short: "Comparable-sales property valuation engine",
		Long: "compval estimates residential property values from a corpus of closed\n" +
			"sales: comparable selection, similarity weighting, time and market\n" +
			"adjustment, and a confidence-scored estimate with an uncertainty range.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: configs/config.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVarP(&opts.Output, "output", "o", "text", "output format (text, json)")

	cmd.AddCommand(newValueCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	return cmd
}
