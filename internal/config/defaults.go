package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults installs the engine's default configuration values into v.
// Called before Unmarshal so that a config file only needs to override
// what differs from the defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workers.join_timeout", 5*time.Second)
	v.SetDefault("workers.scheduler_idle_sleep", time.Millisecond)

	v.SetDefault("signals.live_capacity", 2000)
	v.SetDefault("signals.default_mode", "live")
	v.SetDefault("signals.offline_memory_budget_bytes", int64(256<<20))

	v.SetDefault("queues.signal_queue_capacity", 65536)
	v.SetDefault("queues.event_queue_capacity", 1024)
	v.SetDefault("queues.push_retry_budget", 3)

	v.SetDefault("script.shared_buffer_bytes", 64<<10)
	v.SetDefault("script.bootstrap_paths", []string{})
	v.SetDefault("script.ui_bootstrap_path", "")

	v.SetDefault("alert.default_cooldown_seconds", 5.0)

	v.SetDefault("log.json", false)
}

// Default returns a Config populated entirely from defaults, useful for
// tests and for `signalforge status` when no config file is present.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
