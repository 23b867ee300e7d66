// Package telemetrylog provides the engine's structured logger.
//
// A single package-level logger is initialized once at process start and
// shared by every package; workers only ever call the *w helpers (never
// reconfigure the logger), keeping logging setup itself out of the
// worker hot path.
package telemetrylog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Symbols tag log lines by subsystem so they stay greppable/queryable
// once JSON output is enabled, without polluting the human-readable
// message text.
const (
	SymSignal = "◉" // signal registry operations
	SymWorker = "◈" // worker lifecycle
	SymScript = "λ" // script engine / host calls
	SymAlert  = "!" // alert firings
	FieldSym  = "sym"
)

var (
	// Logger is the shared logger. Safe to use before Initialize: it
	// starts as a no-op sink so early package init code never panics.
	Logger *zap.SugaredLogger
	// JSONOutput records which mode Initialize ran in, for components
	// that adapt their own formatting (e.g. the status CLI table).
	JSONOutput bool
)

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger. jsonOutput selects structured
// JSON (machine consumption, e.g. under a log shipper) vs. a plain
// console encoder (local development).
func Initialize(jsonOutput bool) error {
	JSONOutput = jsonOutput

	var zl *zap.Logger
	var err error
	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zl, err = cfg.Build()
	} else {
		zl = zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			zap.InfoLevel,
		))
	}
	if err != nil {
		return err
	}
	Logger = zl.Sugar()
	return nil
}

// Sync flushes any buffered log entries. Call once, at process exit,
// after the last frame has rendered and every worker has joined.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Named returns a child logger scoped to subsystem (e.g. "worker.3").
func Named(subsystem string) *zap.SugaredLogger {
	return Logger.Named(subsystem)
}

func withSym(sym string, kv []interface{}) []interface{} {
	return append([]interface{}{FieldSym, sym}, kv...)
}

// WorkerInfow logs a worker-lifecycle info line tagged with SymWorker.
func WorkerInfow(msg string, kv ...interface{}) { Logger.Infow(msg, withSym(SymWorker, kv)...) }

// WorkerWarnw logs a worker-lifecycle warning tagged with SymWorker.
func WorkerWarnw(msg string, kv ...interface{}) { Logger.Warnw(msg, withSym(SymWorker, kv)...) }

// ScriptErrorw logs a script-originated error tagged with SymScript. Per
// spec §7, script errors are always caught locally and logged here —
// they never escape into the host call stack.
func ScriptErrorw(msg string, kv ...interface{}) { Logger.Errorw(msg, withSym(SymScript, kv)...) }

// SignalWarnw logs a signal-registry warning (e.g. UnknownId) tagged
// with SymSignal. It does not deduplicate: every call logs one line.
func SignalWarnw(msg string, kv ...interface{}) { Logger.Warnw(msg, withSym(SymSignal, kv)...) }

// AlertInfow logs an alert firing tagged with SymAlert.
func AlertInfow(msg string, kv ...interface{}) { Logger.Infow(msg, withSym(SymAlert, kv)...) }
