// Package commands implements the signalforge CLI's subcommands via
// spf13/cobra, with status output rendered by pterm.
package commands

import (
	"github.com/spf13/cobra"
)

// Version is set by the release build process; "dev" otherwise.
var Version = "dev"

// Root builds the top-level cobra command tree.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "signalforge",
		Short: "Real-time telemetry ingestion, transformation, and visualization engine",
	}
	root.PersistentFlags().String("config", "", "path to signalforge.toml (default: search cwd, ~/.config/signalforge, /etc/signalforge)")
	root.PersistentFlags().Bool("json-log", false, "emit structured JSON logs instead of console output")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newVersionCmd())
	return root
}
