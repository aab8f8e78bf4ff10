package input

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/velemoonkon/tunnelhunt/pkg/output"
)

// Pattern matches capture files: .pcap, .pcapng and compressed variants
const Pattern = "*.pcap*"

// ParsedMarker is appended to the name of a capture once it has been analyzed
const ParsedMarker = "_parsed"

// Discover lists the capture files directly inside dir, sorted by path.
// When ignoreParsed is set, files already marked as parsed are skipped.
// Leftover temp sinks (temp_x.pcap.csv) also match the pattern and are
// skipped. An empty result is not an error.
func Discover(dir string, ignoreParsed bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("capture dir %s is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, Pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}

	files := make([]string, 0, len(matches))
	for _, path := range matches {
		if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if output.IsSink(path) {
			continue
		}
		if ignoreParsed && IsParsed(path) {
			continue
		}
		files = append(files, path)
	}

	slices.Sort(files)
	return files, nil
}

// ParseTargets resolves command-line targets (files, directories,
// comma-separated) to a sorted, de-duplicated list of capture files.
// Directories are expanded with Discover.
func ParseTargets(targets []string, ignoreParsed bool) ([]string, error) {
	var files []string

	for _, target := range targets {
		// Handle comma-separated values
		for part := range strings.SplitSeq(target, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			info, err := os.Stat(part)
			if err != nil {
				return nil, fmt.Errorf("invalid capture target %s: %w", part, err)
			}

			if info.IsDir() {
				found, err := Discover(part, ignoreParsed)
				if err != nil {
					return nil, err
				}
				files = append(files, found...)
			} else {
				files = append(files, part)
			}
		}
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

// ParseFile reads capture targets from a file (one per line)
func ParseFile(filename string, ignoreParsed bool) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var targets []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return ParseTargets(targets, ignoreParsed)
}

// IsParsed reports whether a capture file name carries the parsed marker
func IsParsed(path string) bool {
	base := filepath.Base(path)
	return strings.Contains(strings.TrimSuffix(base, filepath.Ext(base)), ParsedMarker)
}

// MarkParsed renames name.ext to name_parsed.ext and returns the new path
func MarkParsed(path string) (string, error) {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	renamed := filepath.Join(dir, strings.TrimSuffix(base, ext)+ParsedMarker+ext)

	if err := os.Rename(path, renamed); err != nil {
		return "", fmt.Errorf("failed to mark %s as parsed: %w", base, err)
	}
	return renamed, nil
}
