package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/velemoonkon/tunnelhunt/pkg/config"
	"github.com/velemoonkon/tunnelhunt/pkg/input"
	"github.com/velemoonkon/tunnelhunt/pkg/scanner"
	"github.com/velemoonkon/tunnelhunt/pkg/stats"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errPartialFailure ends a run where some captures failed. The failed files
// are already listed by the summary line.
var errPartialFailure = errors.New("partial failure")

// CLI flags that are not part of the resolved configuration
var (
	configFile string
	inputFile  string
	quiet      bool
	verbose    bool
	noSummary  bool
)

var rootCmd = &cobra.Command{
	Use:   "tunnelhunt [flags] [capture|dir]...",
	Short: "Offline DNS tunneling detector",
	Long: `Tunnelhunt - batch detection of DNS tunneling in packet captures

Reads pcap/pcapng files and flags packets whose DNS query names look like
tunneled data:
  • labels longer than 40 characters
  • rare symbol sequences
  • high character entropy
  • long hexadecimal runs
  • query names that are not valid text

Every capture is analyzed in parallel. Verdicts of all files are merged into
a single artifact in the output directory, next to stats.json.

Output formats:
  • CSV (default) - '|' delimited, appended across runs
  • JSONL - one verdict per line, pipe to jq
  • Parquet - columnar, query with DuckDB
  • SQLite - "verdicts" table`,

	Example: `  # Analyze every capture in the current directory
  tunnelhunt

  # Analyze a capture directory, write results elsewhere
  tunnelhunt --pcap-dir /data/pcaps --output-dir /data/results

  # Analyze specific files, including already parsed ones
  tunnelhunt day1.pcap day2_parsed.pcapng

  # Skip known-good domains
  tunnelhunt --whitelist --whitelist-file whitelist.txt

  # Parquet output for analytics
  tunnelhunt --format parquet
  # Then query: duckdb -c "SELECT severity, count(*) FROM 'out.parquet' GROUP BY 1"

  # Settings from a file, overridden by TUNNELHUNT_* env and flags
  TUNNELHUNT_SCANNER_WORKERS=4 tunnelhunt --config config.ini`,

	RunE:          runAnalysis,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("tunnelhunt %s (commit: %s, built: %s)\n", version, commit, date))

	f := rootCmd.Flags()

	// Input
	f.StringVarP(&inputFile, "file", "f", "", "Read capture paths from file (one per line)")
	f.String("pcap-dir", ".", "Directory scanned for *.pcap* files")
	f.Bool("ignore-parsed", true, "Skip captures already marked as parsed")
	f.Bool("mark-processed", true, "Rename analyzed captures to name_parsed.ext")

	// Whitelist
	f.Bool("whitelist", false, "Skip query names matching the whitelist")
	f.String("whitelist-file", "whitelist.txt", "Whitelist file (one domain or *.suffix per line)")

	// Output
	f.String("output-dir", ".", "Directory for verdicts, stats.json and logs")
	f.String("format", config.FormatCSV, "Output format: csv, jsonl, parquet, sqlite")
	f.BoolVar(&noSummary, "no-summary", false, "Do not print the per-file summary table")

	// Performance
	f.IntP("workers", "w", 0, "Captures analyzed in parallel (0 = all cores)")

	// Config & logging
	f.StringVarP(&configFile, "config", "c", "", "Config file (ini, yaml, toml, json)")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.String("log-mode", config.LogModeStderr, "Log destination: stderr, stdout, file (<output-dir>/out.log)")
	f.BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
	f.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.SetUsageTemplate(usageTemplate)
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	closeLog, err := initLogger(cfg.Log, cfg.Files.OutputDir)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			slog.Info("stopping scan...")
			cancel()
		case <-ctx.Done():
		}
	}()

	files, err := resolveCaptures(args, cfg.Files)
	if err != nil {
		return err
	}

	s := scanner.NewScanner(scanner.FromConfig(cfg))
	slog.Info("starting analysis", "files", len(files), "workers", min(len(files), s.Workers()))

	session, runErr := s.Run(ctx, files)
	if session == nil {
		return runErr
	}

	statsPath := filepath.Join(cfg.Files.OutputDir, stats.DefaultFilename)
	if err := session.WriteFile(statsPath); err != nil {
		return errors.Join(runErr, err)
	}

	if !noSummary && !quiet {
		renderSummary(os.Stdout, session)
	}

	var failures *scanner.TaskFailures
	if errors.As(runErr, &failures) {
		fmt.Fprintln(os.Stderr, summaryLine(failures))
		// A merge error joined to the task failures is reported as is
		if runErr != error(failures) {
			return runErr
		}
		return errPartialFailure
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(os.Stderr, summaryLine(nil))
	return nil
}

// resolveCaptures picks capture files from explicit arguments, a list file
// or the configured capture directory, in that order
func resolveCaptures(args []string, files config.FilesConfig) ([]string, error) {
	switch {
	case len(args) > 0:
		return input.ParseTargets(args, files.IgnoreParsed)
	case inputFile != "":
		slog.Debug("reading captures", "file", inputFile)
		return input.ParseFile(inputFile, files.IgnoreParsed)
	default:
		return input.Discover(files.PcapDir, files.IgnoreParsed)
	}
}

func main() {
	config.Init()

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errPartialFailure) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, scanner.ErrNoInputFiles) {
			fmt.Fprintln(os.Stderr, "hint: set ignore_parsed to false (--ignore-parsed=false) to analyze already parsed captures")
		}
		os.Exit(1)
	}
}

const usageTemplate = `Usage:
  {{.UseLine}}

Examples:
{{.Example}}

Input:
  -f, --file string             Read capture paths from file
      --pcap-dir string         Directory scanned for *.pcap* files (default ".")
      --ignore-parsed           Skip captures marked as parsed (default true)
      --mark-processed          Rename analyzed captures to name_parsed.ext (default true)

Whitelist:
      --whitelist               Skip query names matching the whitelist
      --whitelist-file string   Whitelist file (default "whitelist.txt")

Output:
      --output-dir string       Directory for verdicts, stats.json and logs (default ".")
      --format string           Format: csv, jsonl, parquet, sqlite (default "csv")
      --no-summary              Do not print the per-file summary table

Performance:
  -w, --workers int             Captures analyzed in parallel, 0=all cores (default 0)

Config & Logging:
  -c, --config string           Config file (ini, yaml, toml, json)
      --log-level string        debug, info, warn, error (default "info")
      --log-mode string         stderr, stdout, file (default "stderr")
  -q, --quiet                   Only log errors
  -v, --verbose                 Verbose logging

Other:
  -h, --help                    Show help
      --version                 Show version
`
