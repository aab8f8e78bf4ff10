package scanner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/velemoonkon/tunnelhunt/pkg/config"
	"github.com/velemoonkon/tunnelhunt/pkg/output"
)

// ErrNoInputFiles is returned by Run when there is nothing to analyze
var ErrNoInputFiles = fmt.Errorf("%w: no traffic files found", config.ErrConfiguration)

// ErrDuplicateCapture is returned by Run when two captures share a base name.
// Sinks and per-file stats are keyed by base name.
var ErrDuplicateCapture = fmt.Errorf("%w: duplicate capture name", config.ErrConfiguration)

// Config contains orchestrator configuration
type Config struct {
	Workers          int    // Max files analyzed in parallel (0 or negative = GOMAXPROCS)
	OutputDir        string // Temp sinks and the merged artifact are written here
	Format           string // Merged artifact format, see config.Format*
	MergeDest        string // Merged artifact path (empty = <OutputDir>/out.<Format>)
	WhitelistEnabled bool
	WhitelistPath    string
	MarkProcessed    bool // Rename successfully analyzed captures to name_parsed.ext
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		OutputDir:     ".",
		Format:        config.FormatCSV,
		WhitelistPath: "whitelist.txt",
		MarkProcessed: true,
	}
}

// FromConfig maps the resolved run configuration onto orchestrator settings
func FromConfig(cfg *config.Config) Config {
	return Config{
		Workers:          cfg.Scanner.Workers,
		OutputDir:        cfg.Files.OutputDir,
		Format:           cfg.Output.Format,
		WhitelistEnabled: cfg.Whitelist.Enabled,
		WhitelistPath:    cfg.Whitelist.Path,
		MarkProcessed:    cfg.Files.MarkProcessed,
	}
}

func (c Config) mergeDest() string {
	if c.MergeDest != "" {
		return c.MergeDest
	}
	return filepath.Join(c.OutputDir, output.DefaultFilename(c.Format))
}

// TaskFailure is the error a single capture file ended with
type TaskFailure struct {
	File string
	Err  error
}

func (f TaskFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.File, f.Err)
}

func (f TaskFailure) Unwrap() error {
	return f.Err
}

// TaskFailures collects the per-file failures of a run, sorted by file name
type TaskFailures struct {
	Failures []TaskFailure
}

func (e *TaskFailures) Error() string {
	return fmt.Sprintf("%d file failures: %s", len(e.Failures), strings.Join(e.Files(), ", "))
}

// Unwrap exposes every task error to errors.Is and errors.As
func (e *TaskFailures) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Files returns the names of the failed files
func (e *TaskFailures) Files() []string {
	files := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		files[i] = f.File
	}
	return files
}
