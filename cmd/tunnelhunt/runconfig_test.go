package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/velemoonkon/tunnelhunt/pkg/config"
	"github.com/velemoonkon/tunnelhunt/pkg/scanner"
	"github.com/velemoonkon/tunnelhunt/pkg/stats"
)

func TestResolveLogLevel_Defaults(t *testing.T) {
	// Default run: configured level is used
	level, err := ResolveLogLevel(LogFlags{}, "info")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != slog.LevelInfo {
		t.Errorf("Expected info, got %v", level)
	}

	level, err = ResolveLogLevel(LogFlags{}, " WARN ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != slog.LevelWarn {
		t.Errorf("Expected warn, got %v", level)
	}
}

func TestResolveLogLevel_Flags(t *testing.T) {
	tests := []struct {
		name  string
		flags LogFlags
		want  slog.Level
	}{
		{"Verbose", LogFlags{Verbose: true}, slog.LevelDebug},
		{"Quiet", LogFlags{Quiet: true}, slog.LevelError},
		{"Verbose wins over quiet", LogFlags{Verbose: true, Quiet: true}, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Flags override even an invalid configured level
			level, err := ResolveLogLevel(tt.flags, "bogus")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if level != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, level)
			}
		})
	}
}

func TestResolveLogLevel_Invalid(t *testing.T) {
	_, err := ResolveLogLevel(LogFlags{}, "loud")
	if !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer

	slog.New(NewLogHandler(config.LogModeFile, &buf, slog.LevelInfo)).Info("file analyzed", "file", "a.pcap", "packets", 3)
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("file mode should log JSON: %v", err)
	}
	if entry["file"] != "a.pcap" {
		t.Errorf("Expected file attr, got %v", entry)
	}

	buf.Reset()
	logger := slog.New(NewLogHandler(config.LogModeStderr, &buf, slog.LevelWarn))
	logger.Info("hidden")
	logger.Warn("shown", "file", "b.pcap")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("Info should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "file=b.pcap") {
		t.Errorf("Expected text output, got %q", buf.String())
	}
}

func TestOpenLogWriter_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	w, closer, err := openLogWriter(config.LogModeFile, dir)
	if err != nil {
		t.Fatalf("openLogWriter failed: %v", err)
	}
	if _, err := w.Write([]byte("line\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := closer(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if string(data) != "line\n" {
		t.Errorf("Unexpected log content %q", data)
	}
}

func TestOpenLogWriter_Terminal(t *testing.T) {
	for _, mode := range []string{config.LogModeStderr, config.LogModeStdout} {
		w, closer, err := openLogWriter(mode, t.TempDir())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", mode, err)
		}
		if w == nil {
			t.Errorf("%s: nil writer", mode)
		}
		if err := closer(); err != nil {
			t.Errorf("%s: closer should be a no-op, got %v", mode, err)
		}
	}
}

func TestSummaryLine(t *testing.T) {
	color.NoColor = true

	if got := summaryLine(nil); got != "run completed" {
		t.Errorf("Expected plain completion, got %q", got)
	}

	failures := &scanner.TaskFailures{Failures: []scanner.TaskFailure{
		{File: "a.pcap", Err: context.Canceled},
		{File: "b.pcap", Err: errors.New("truncated")},
	}}
	want := "run completed with 2 file failures: a.pcap, b.pcap"
	if got := summaryLine(failures); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestRenderSummary(t *testing.T) {
	session := &stats.Session{
		Files: map[string]stats.FileStats{
			"b.pcap": {PacketsCount: 5, MaliciousPacketsCount: 1},
			"a.pcap": {PacketsCount: 10},
		},
		TotalPackets:          15,
		TotalMaliciousPackets: 1,
		Failed:                []string{"b.pcap"},
	}

	var buf bytes.Buffer
	renderSummary(&buf, session)
	out := buf.String()

	ia, ib := strings.Index(out, "a.pcap"), strings.Index(out, "b.pcap")
	if ia < 0 || ib < 0 || ia > ib {
		t.Errorf("Expected rows sorted by file name:\n%s", out)
	}
	if !strings.Contains(out, "failed") {
		t.Errorf("Expected failed status for b.pcap:\n%s", out)
	}
	if !strings.Contains(out, "15") {
		t.Errorf("Expected packet total in footer:\n%s", out)
	}
}

func TestResolveCaptures(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pcap", "b_parsed.pcap"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := resolveCaptures(nil, config.FilesConfig{PcapDir: dir, IgnoreParsed: true})
	if err != nil {
		t.Fatalf("resolveCaptures failed: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "a.pcap" {
		t.Errorf("Expected only a.pcap, got %v", files)
	}

	// Explicit arguments bypass the capture dir
	explicit := filepath.Join(dir, "b_parsed.pcap")
	files, err = resolveCaptures([]string{explicit}, config.FilesConfig{PcapDir: "/nonexistent", IgnoreParsed: true})
	if err != nil {
		t.Fatalf("resolveCaptures failed: %v", err)
	}
	if len(files) != 1 || files[0] != explicit {
		t.Errorf("Expected explicit file, got %v", files)
	}
}
