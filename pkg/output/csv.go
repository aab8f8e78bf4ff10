package output

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/velemoonkon/tunnelhunt/pkg/config"
	"github.com/velemoonkon/tunnelhunt/pkg/tunnel"
)

// Delimiter separates verdict fields. Fields containing it are quoted.
const Delimiter = '|'

const (
	tempPrefix = "temp_"
	sinkExt    = ".csv"
)

// SinkPath returns the temporary sink path for a capture file
func SinkPath(outputDir, captureName string) string {
	return filepath.Join(outputDir, tempPrefix+captureName+sinkExt)
}

// SinkCapture returns the capture name a sink path was created for
func SinkCapture(path string) string {
	return strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), tempPrefix), sinkExt)
}

// IsSink reports whether path names a temporary sink
func IsSink(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, tempPrefix) && strings.HasSuffix(base, sinkExt)
}

// CSVWriter writes verdict records as '|' delimited rows
type CSVWriter struct {
	file   *os.File
	buf    *bufio.Writer
	writer *csv.Writer
	count  int
}

// NewCSVWriter opens filename for appending, creating it if needed
func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv output: %w", err)
	}

	w := newCSVWriter(file)
	w.file = file
	return w, nil
}

// NewCSVWriterFromWriter creates a CSV writer from an existing io.Writer
func NewCSVWriterFromWriter(w io.Writer) *CSVWriter {
	return newCSVWriter(w)
}

func newCSVWriter(w io.Writer) *CSVWriter {
	buf := bufio.NewWriterSize(w, config.Tuning.SinkBufferSize)
	cw := csv.NewWriter(buf)
	cw.Comma = Delimiter
	return &CSVWriter{buf: buf, writer: cw}
}

// Write writes a single record
func (w *CSVWriter) Write(r Record) error {
	row := []string{r.File, strconv.Itoa(r.PacketIndex), string(r.Severity), r.Reason}
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}

	w.count++

	// Flush periodically so partial results survive an abrupt stop
	if w.count%config.Tuning.SinkFlushEvery == 0 {
		return w.Flush()
	}
	return nil
}

// Flush forces buffered rows to the underlying file
func (w *CSVWriter) Flush() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes and closes the writer
func (w *CSVWriter) Close() error {
	if err := w.Flush(); err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return err
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Count returns the number of records written
func (w *CSVWriter) Count() int {
	return w.count
}

// Sink is the per-capture verdict writer. Every verdict it receives is tagged
// with the capture file name.
type Sink struct {
	*CSVWriter
	path    string
	capture string
}

// NewSink opens the temporary sink for one capture file
func NewSink(outputDir, captureName string) (*Sink, error) {
	path := SinkPath(outputDir, captureName)
	w, err := NewCSVWriter(path)
	if err != nil {
		return nil, err
	}
	return &Sink{CSVWriter: w, path: path, capture: captureName}, nil
}

// WriteVerdict appends a verdict for this sink's capture file
func (s *Sink) WriteVerdict(v tunnel.Verdict) error {
	return s.CSVWriter.Write(Record{File: s.capture, Verdict: v})
}

// Path returns the sink file path
func (s *Sink) Path() string {
	return s.path
}

// ReadCSV iterates over the records of a '|' delimited verdict file
func ReadCSV(filename string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		file, err := os.Open(filename)
		if err != nil {
			yield(Record{}, fmt.Errorf("failed to open %s: %w", filename, err))
			return
		}
		defer file.Close()

		reader := csv.NewReader(bufio.NewReader(file))
		reader.Comma = Delimiter
		reader.FieldsPerRecord = 4

		for {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Record{}, fmt.Errorf("failed to read %s: %w", filename, err))
				return
			}

			r, err := parseRow(row)
			if err != nil {
				err = fmt.Errorf("%s: %w", filename, err)
			}
			if !yield(r, err) || err != nil {
				return
			}
		}
	}
}

func parseRow(row []string) (Record, error) {
	index, err := strconv.Atoi(row[1])
	if err != nil {
		return Record{}, fmt.Errorf("invalid packet index %q: %w", row[1], err)
	}
	return Record{
		File: row[0],
		Verdict: tunnel.Verdict{
			PacketIndex: index,
			Severity:    tunnel.Severity(row[2]),
			Reason:      row[3],
		},
	}, nil
}
