// Package stats aggregates per-file analysis results into session totals and
// serializes them as stats.json.
package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"os"
	"slices"
	"time"

	"github.com/velemoonkon/tunnelhunt/pkg/analyzer"
)

// DefaultFilename is the stats artifact name inside the output directory
const DefaultFilename = "stats.json"

// FileStats holds the counters of one capture file.
// Fields are declared in JSON key order.
type FileStats struct {
	MaliciousPacketsCount int `json:"malicious_packets_count"`
	PacketsCount          int `json:"packets_count"`
}

// Session is the aggregate of a run
type Session struct {
	Files                 map[string]FileStats
	TotalPackets          int
	TotalMaliciousPackets int
	TotalTime             float64 // seconds, 3 decimals
	PacketsPerSecond      int

	// Failed lists files whose task ended with an error, sorted. Diagnostic
	// only, not part of stats.json.
	Failed []string
}

// Fold sums results into a session. The result does not depend on the order
// of results. Partial counts of failed files are included.
func Fold(results []analyzer.FileResult) *Session {
	s := &Session{Files: make(map[string]FileStats, len(results))}
	for _, r := range results {
		s.Add(r)
	}
	return s
}

// Add folds a single result into the session
func (s *Session) Add(r analyzer.FileResult) {
	if s.Files == nil {
		s.Files = make(map[string]FileStats)
	}

	fs := s.Files[r.Filename]
	fs.PacketsCount += r.TotalPackets
	fs.MaliciousPacketsCount += r.MaliciousPackets
	s.Files[r.Filename] = fs

	s.TotalPackets += r.TotalPackets
	s.TotalMaliciousPackets += r.MaliciousPackets

	if r.Err != nil {
		i, found := slices.BinarySearch(s.Failed, r.Filename)
		if !found {
			s.Failed = slices.Insert(s.Failed, i, r.Filename)
		}
	}
}

// Finalize records the session wall-clock time and derives the packet rate
func (s *Session) Finalize(elapsed time.Duration) {
	s.TotalTime = math.Round(elapsed.Seconds()*1000) / 1000
	s.PacketsPerSecond = 0
	if s.TotalTime > 0 {
		s.PacketsPerSecond = int(math.Floor(float64(s.TotalPackets) / s.TotalTime))
	}
}

// Filenames returns the per-file keys in sorted order
func (s *Session) Filenames() []string {
	return slices.Sorted(maps.Keys(s.Files))
}

// MarshalJSON flattens per-file entries next to the totals. Keys are sorted.
func (s *Session) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Files)+4)
	for name, fs := range s.Files {
		m[name] = fs
	}
	// Totals win over a capture file that happens to share a key
	m["total_packets"] = s.TotalPackets
	m["total_malicious_packets"] = s.TotalMaliciousPackets
	m["total_time"] = json.Number(fmt.Sprintf("%.3f", s.TotalTime))
	m["packets_per_second"] = s.PacketsPerSecond
	return json.Marshal(m)
}

// WriteFile writes the session as indented JSON
func (s *Session) WriteFile(path string) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return fmt.Errorf("failed to indent stats: %w", err)
	}
	buf.WriteByte('\n')

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}
