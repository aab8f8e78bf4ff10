package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/velemoonkon/tunnelhunt/pkg/config"
)

// LogFileName is the diagnostic log written in file mode
const LogFileName = "out.log"

// LogFlags represents the CLI flags that affect logging
type LogFlags struct {
	Verbose bool
	Quiet   bool
}

// ResolveLogLevel resolves the effective log level.
// --verbose wins over --quiet, both win over the configured level.
func ResolveLogLevel(flags LogFlags, configured string) (slog.Level, error) {
	switch {
	case flags.Verbose:
		return slog.LevelDebug, nil
	case flags.Quiet:
		return slog.LevelError, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(configured))); err != nil {
		return 0, fmt.Errorf("%w: invalid log level %q", config.ErrConfiguration, configured)
	}
	return level, nil
}

// NewLogHandler builds the handler for a log mode. File mode logs JSON, the
// terminal modes log text.
func NewLogHandler(mode string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if mode == config.LogModeFile {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// openLogWriter returns the destination for a log mode and its closer
func openLogWriter(mode, outputDir string) (io.Writer, func() error, error) {
	switch mode {
	case config.LogModeStdout:
		return os.Stdout, func() error { return nil }, nil
	case config.LogModeFile:
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create output dir: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(outputDir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return file, file.Close, nil
	default:
		return os.Stderr, func() error { return nil }, nil
	}
}

// initLogger installs the default slog logger and returns its closer
func initLogger(cfg config.LogConfig, outputDir string) (func() error, error) {
	level, err := ResolveLogLevel(LogFlags{Verbose: verbose, Quiet: quiet}, cfg.Level)
	if err != nil {
		return nil, err
	}

	w, closer, err := openLogWriter(cfg.Mode, outputDir)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(NewLogHandler(cfg.Mode, w, level)))
	return closer, nil
}
