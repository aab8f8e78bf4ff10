package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/velemoonkon/tunnelhunt/pkg/analyzer"
	"github.com/velemoonkon/tunnelhunt/pkg/config"
	"github.com/velemoonkon/tunnelhunt/pkg/input"
	"github.com/velemoonkon/tunnelhunt/pkg/output"
	"github.com/velemoonkon/tunnelhunt/pkg/stats"
	"github.com/velemoonkon/tunnelhunt/pkg/whitelist"
)

type processFunc func(ctx context.Context, path string, wl analyzer.Matcher, sink analyzer.Sink) (analyzer.FileResult, error)

// Scanner orchestrates concurrent analysis of capture files
type Scanner struct {
	config  Config
	process processFunc
}

// NewScanner creates a new scanner with configuration
func NewScanner(cfg Config) *Scanner {
	// Workers=0 means "auto": analysis is CPU-bound, one file per core
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Format == "" {
		cfg.Format = config.FormatCSV
	}

	return &Scanner{
		config:  cfg,
		process: analyzer.ProcessFile,
	}
}

// Workers returns the resolved worker limit
func (s *Scanner) Workers() int {
	return s.config.Workers
}

// Run analyzes every file and merges the per-file verdicts into a single
// artifact in the output directory.
//
// Goroutine fan-out is bounded by min(len(files), Workers). Each task owns its
// whitelist and its temp sink; a failing task never stops its siblings. The
// merge runs on every exit path once tasks have been started, including
// cancellation.
//
// The returned session is non-nil whenever tasks ran. When any file failed the
// error is a *TaskFailures.
func (s *Scanner) Run(ctx context.Context, files []string) (_ *stats.Session, err error) {
	if len(files) == 0 {
		return nil, ErrNoInputFiles
	}
	if err := checkNames(files); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	defer func() {
		if mergeErr := s.merge(); mergeErr != nil {
			err = errors.Join(err, mergeErr)
		}
	}()

	start := time.Now()
	results := make([]analyzer.FileResult, len(files))

	// Plain group: a task error must not cancel the others
	var g errgroup.Group
	g.SetLimit(min(len(files), s.config.Workers))
	for i, path := range files {
		g.Go(func() error {
			results[i] = s.processFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	session := stats.Fold(results)
	session.Finalize(time.Since(start))

	slog.Info("scan complete",
		"files", len(files),
		"packets", session.TotalPackets,
		"malicious", session.TotalMaliciousPackets,
		"duration", time.Since(start).Round(time.Millisecond))

	if failures := collectFailures(results); failures != nil {
		return session, failures
	}
	return session, nil
}

// checkNames rejects captures whose base names collide, e.g. cap.pcap found
// in two target directories
func checkNames(files []string) error {
	seen := make(map[string]string, len(files))
	for _, path := range files {
		name := filepath.Base(path)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w %s: %s and %s", ErrDuplicateCapture, name, prev, path)
		}
		seen[name] = path
	}
	return nil
}

// validate checks settings that would fail every task alike
func (s *Scanner) validate() error {
	switch s.config.Format {
	case config.FormatCSV, config.FormatJSONL, config.FormatParquet, config.FormatSQLite:
	default:
		return fmt.Errorf("%w: unknown output format %q", config.ErrConfiguration, s.config.Format)
	}
	if err := os.MkdirAll(s.config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create output dir: %w", config.ErrConfiguration, err)
	}
	if s.config.WhitelistEnabled {
		// Loaded again per task, this only rejects a bad source up front
		if _, err := whitelist.Load(s.config.WhitelistPath); err != nil {
			if errors.Is(err, config.ErrConfiguration) {
				return err
			}
			return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
	}
	return nil
}

// processFile runs one task. It never returns an error: failures are recorded
// in the result.
func (s *Scanner) processFile(ctx context.Context, path string) analyzer.FileResult {
	name := filepath.Base(path)
	res := analyzer.FileResult{Filename: name}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	var wl analyzer.Matcher
	if s.config.WhitelistEnabled {
		trie, err := whitelist.Load(s.config.WhitelistPath)
		if err != nil {
			res.Err = err
			return res
		}
		wl = trie
	}

	sink, err := output.NewSink(s.config.OutputDir, name)
	if err != nil {
		res.Err = err
		return res
	}

	res, err = s.process(ctx, path, wl, sink)
	if err != nil && res.Err == nil {
		res.Err = err
	}
	if err := sink.Close(); err != nil && res.Err == nil {
		res.Err = fmt.Errorf("failed to close sink: %w", err)
	}

	if res.Err != nil {
		slog.Error("file failed", "file", name, "packets", res.TotalPackets, "error", res.Err)
		return res
	}

	if s.config.MarkProcessed {
		if _, err := input.MarkParsed(path); err != nil {
			slog.Warn("failed to mark file as processed", "file", name, "error", err)
		}
	}
	return res
}

// merge folds every temp sink in the output dir into the merged artifact
func (s *Scanner) merge() error {
	sinks, err := output.SinkPaths(s.config.OutputDir)
	if err != nil {
		return err
	}

	dest := s.config.mergeDest()
	n, err := output.Merge(s.config.Format, dest, sinks)
	if err != nil {
		return fmt.Errorf("failed to merge verdicts: %w", err)
	}
	slog.Debug("verdicts merged", "sinks", len(sinks), "records", n, "dest", dest)
	return nil
}

func collectFailures(results []analyzer.FileResult) *TaskFailures {
	var failures []TaskFailure
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, TaskFailure{File: r.Filename, Err: r.Err})
		}
	}
	if len(failures) == 0 {
		return nil
	}
	slices.SortFunc(failures, func(a, b TaskFailure) int { return cmp.Compare(a.File, b.File) })
	return &TaskFailures{Failures: failures}
}
