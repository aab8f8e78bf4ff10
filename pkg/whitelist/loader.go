package whitelist

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/miekg/dns"
)

// Load reads whitelist entries from a file (one domain per line) and builds a trie.
// Blank lines and lines starting with '#' are skipped.
func Load(filename string) (*Trie, error) {
	entries, err := ReadEntries(filename)
	if err != nil {
		return nil, err
	}
	return Build(entries)
}

// ReadEntries returns the whitelist entries of a file in file order
func ReadEntries(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open whitelist: %w", err)
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Malformed entries still go in; they simply never match real traffic
		if _, ok := dns.IsDomainName(line); !ok {
			slog.Warn("whitelist entry is not a valid domain name", "file", filename, "line", lineNum, "entry", line)
		}
		entries = append(entries, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading whitelist: %w", err)
	}

	return entries, nil
}
