package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/signalforge/engine/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the resolved configuration (worker/queue/script settings) as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return printConfigTable(cfg)
		},
	}
}

func printConfigTable(cfg *config.Config) error {
	rows := pterm.TableData{
		{"setting", "value"},
		{"workers.join_timeout", cfg.Workers.JoinTimeout.String()},
		{"workers.scheduler_idle_sleep", cfg.Workers.SchedulerIdleSleep.String()},
		{"signals.live_capacity", itoa(cfg.Signals.LiveCapacity)},
		{"signals.default_mode", cfg.Signals.DefaultMode},
		{"signals.offline_memory_budget_bytes", itoa64(cfg.Signals.OfflineMemoryBudgetBytes)},
		{"queues.signal_queue_capacity", itoa(cfg.Queues.SignalQueueCapacity)},
		{"queues.event_queue_capacity", itoa(cfg.Queues.EventQueueCapacity)},
		{"queues.push_retry_budget", itoa(cfg.Queues.PushRetryBudget)},
		{"script.shared_buffer_bytes", itoa(cfg.Script.SharedBufferBytes)},
		{"script.ui_bootstrap_path", cfg.Script.UIBootstrapPath},
		{"alert.default_cooldown_seconds", ftoa(cfg.Alert.DefaultCooldownSeconds)},
		{"log.json", btoa(cfg.Log.JSON)},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
