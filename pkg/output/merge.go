package output

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// SinkPaths returns the temporary sinks present in outputDir, sorted by
// capture name
func SinkPaths(outputDir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(outputDir, tempPrefix+"*"+sinkExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list sinks: %w", err)
	}
	sortSinks(paths)
	return paths, nil
}

// sortSinks orders sinks by the capture they belong to. Sorting the raw paths
// is not enough: the extension breaks ties between prefix names such as
// x.pcap and x.pcap-1.
func sortSinks(paths []string) {
	slices.SortFunc(paths, func(a, b string) int {
		return cmp.Or(cmp.Compare(SinkCapture(a), SinkCapture(b)), cmp.Compare(a, b))
	})
}

// Merge concatenates the given sinks in capture name order into dest and removes
// each sink once its records are written. It returns the number of records
// merged. A sink that fails to read is kept on disk and reported; the
// remaining sinks are still merged.
func Merge(format, dest string, sinks []string) (int, error) {
	sinks = slices.Clone(sinks)
	sortSinks(sinks)

	w, err := Create(format, dest)
	if err != nil {
		return 0, err
	}

	var (
		total int
		errs  []error
	)
	for _, path := range sinks {
		n, err := copySink(w, path)
		total += n
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove sink: %w", err))
		}
	}

	if err := w.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close %s: %w", dest, err))
	}
	return total, errors.Join(errs...)
}

func copySink(w RecordWriter, path string) (int, error) {
	n := 0
	for r, err := range ReadCSV(path) {
		if err != nil {
			return n, err
		}
		if err := w.Write(r); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
