package output

import (
	"fmt"

	"github.com/velemoonkon/tunnelhunt/pkg/config"
	"github.com/velemoonkon/tunnelhunt/pkg/tunnel"
)

// Record is a verdict tagged with the capture file it came from
type Record struct {
	File string `json:"source_filename"`
	tunnel.Verdict
}

// RecordWriter is implemented by every merged output format
type RecordWriter interface {
	Write(r Record) error
	Close() error
}

// DefaultFilename returns the merged artifact name for a format
func DefaultFilename(format string) string {
	return "out." + format
}

// Create opens a record writer for the given format.
// CSV and JSONL outputs are appended to, Parquet is rewritten, SQLite rows
// are inserted into the existing table.
func Create(format, filename string) (RecordWriter, error) {
	var (
		w   RecordWriter
		err error
	)
	switch format {
	case config.FormatCSV:
		w, err = NewCSVWriter(filename)
	case config.FormatJSONL:
		w, err = NewJSONLWriter(filename)
	case config.FormatParquet:
		w, err = NewParquetWriter(filename)
	case config.FormatSQLite:
		w, err = NewSQLiteWriter(filename)
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", config.ErrConfiguration, format)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}
