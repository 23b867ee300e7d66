// Command signalforge is the SignalForge engine's entry point: it loads
// configuration, initializes logging, and dispatches to the run/status/
// version subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/signalforge/engine/cmd/signalforge/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
