package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the logging interface used throughout the controller.
// It provides standard logging levels and a mechanism to add structured context.
type Logger interface {
	// Debug logs a message at the debug level.
	Debug(msg string, args ...any)
	// Info logs a message at the info level.
	Info(msg string, args ...any)
	// Warn logs a message at the warning level.
	Warn(msg string, args ...any)
	// Error logs a message at the error level.
	Error(msg string, args ...any)
	// With returns a new Logger with the given structured context added.
	With(args ...any) Logger
}

// Log is the global logger instance. It starts with a stdout-only JSON handler
// so that code running before InitLogger still logs somewhere sensible.
var Log Logger = &wrapper{l: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))}

// bootLog is the per-boot log file, kept open for the life of the process.
var bootLog *os.File

// InitLogger initializes the global Log at the given level ("debug", "info",
// "warn", "error"). When bootLogPath is non-empty the log is additionally
// written to that file, which is truncated first so every boot starts a fresh
// record of its own.
func InitLogger(level, bootLogPath string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if bootLogPath != "" {
		f, err := os.OpenFile(bootLogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			slog.Warn("boot log unavailable, logging to stdout only", "path", bootLogPath, "err", err)
		} else {
			if bootLog != nil {
				_ = bootLog.Close()
			}
			bootLog = f
			w = io.MultiWriter(os.Stdout, f)
		}
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	Log = &wrapper{l: slog.New(slog.NewJSONHandler(w, opts))}
}

type wrapper struct {
	l *slog.Logger
}

func (w *wrapper) Debug(msg string, args ...any) { w.l.Debug(msg, args...) }
func (w *wrapper) Info(msg string, args ...any)  { w.l.Info(msg, args...) }
func (w *wrapper) Warn(msg string, args ...any)  { w.l.Warn(msg, args...) }
func (w *wrapper) Error(msg string, args ...any) { w.l.Error(msg, args...) }
func (w *wrapper) With(args ...any) Logger       { return &wrapper{l: w.l.With(args...)} }
