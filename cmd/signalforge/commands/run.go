package commands

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalforge/engine/app"
	"github.com/signalforge/engine/internal/config"
	"github.com/signalforge/engine/internal/telemetrylog"
)

func newRunCmd() *cobra.Command {
	var frameHz int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the engine: load scripts, spawn workers, run the frame loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonLog, _ := cmd.Flags().GetBool("json-log")
			if err := telemetrylog.Initialize(jsonLog); err != nil {
				return err
			}
			defer telemetrylog.Sync()

			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			engine := app.New(cfg)
			frameInterval := time.Second / time.Duration(frameHz)
			return engine.Run(ctx, frameInterval)
		},
	}
	cmd.Flags().IntVar(&frameHz, "frame-hz", 60, "UI frame rate driving the drain/apply/publish loop")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
