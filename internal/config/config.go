// Package config holds the engine's process-level configuration: worker
// counts, queue/ring capacities, the offline-signal memory budget, join
// timeouts, and script bootstrap paths. It is loaded via Viper/TOML,
// mirroring the shape (not the content) of a typical Viper-backed config
// package: a plain struct with `mapstructure` tags, a package-level
// SetDefaults, and Load/LoadFromFile/Persist helpers.
package config

import "time"

// Config is the root configuration object.
type Config struct {
	Workers WorkersConfig `mapstructure:"workers"`
	Signals SignalsConfig `mapstructure:"signals"`
	Queues  QueuesConfig  `mapstructure:"queues"`
	Script  ScriptConfig  `mapstructure:"script"`
	Alert   AlertConfig   `mapstructure:"alert"`
	Log     LogConfig     `mapstructure:"log"`
}

// WorkersConfig controls worker lifecycle.
type WorkersConfig struct {
	JoinTimeout        time.Duration `mapstructure:"join_timeout"`         // bounded join on shutdown
	SchedulerIdleSleep time.Duration `mapstructure:"scheduler_idle_sleep"` // spin-avoidance sleep when no task ran
}

// SignalsConfig controls SignalRegistry storage.
type SignalsConfig struct {
	LiveCapacity              int   `mapstructure:"live_capacity"`                // default ring buffer length for Live signals
	DefaultMode               string `mapstructure:"default_mode"`                // "live" or "offline"
	OfflineMemoryBudgetBytes  int64 `mapstructure:"offline_memory_budget_bytes"`  // soft aggregate budget across Offline signals
}

// QueuesConfig controls the SPSC queue capacities.
type QueuesConfig struct {
	SignalQueueCapacity int `mapstructure:"signal_queue_capacity"`
	EventQueueCapacity  int `mapstructure:"event_queue_capacity"`
	// PushRetryBudget bounds how many times a producer waits on a rate
	// limiter and retries
	// a full push before counting it as dropped (§5 backpressure).
	PushRetryBudget int `mapstructure:"push_retry_budget"`
}

// ScriptConfig controls the embedded scripting runtime.
type ScriptConfig struct {
	SharedBufferBytes int      `mapstructure:"shared_buffer_bytes"` // per-worker zero-copy receive buffer
	BootstrapPaths    []string `mapstructure:"bootstrap_paths"`     // compiled .wasm modules to load, one worker each
	UIBootstrapPath   string   `mapstructure:"ui_bootstrap_path"`   // compiled .wasm module for the UI-thread runtime
}

// AlertConfig controls default alert behavior.
type AlertConfig struct {
	DefaultCooldownSeconds float64 `mapstructure:"default_cooldown_seconds"`
}

// LogConfig controls the logger.
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}
