package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/velemoonkon/tunnelhunt/pkg/config"
)

// JSONLWriter writes one verdict record per line, ready for jq
type JSONLWriter struct {
	closer io.Closer // nil for stdout and caller-owned writers
	buf    *bufio.Writer
	enc    *json.Encoder
	count  int
}

// NewJSONLWriter opens filename for appending. "-" or "" writes to stdout.
func NewJSONLWriter(filename string) (*JSONLWriter, error) {
	if filename == "-" || filename == "" {
		return newJSONLWriter(os.Stdout), nil
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open jsonl output: %w", err)
	}
	w := newJSONLWriter(file)
	w.closer = file
	return w, nil
}

// NewJSONLWriterFromWriter wraps an existing io.Writer, which stays open on Close
func NewJSONLWriterFromWriter(w io.Writer) *JSONLWriter {
	return newJSONLWriter(w)
}

func newJSONLWriter(w io.Writer) *JSONLWriter {
	buf := bufio.NewWriterSize(w, config.Tuning.SinkBufferSize)
	enc := json.NewEncoder(buf)
	// Reasons and file names are written verbatim
	enc.SetEscapeHTML(false)
	return &JSONLWriter{buf: buf, enc: enc}
}

// Write encodes r followed by a newline
func (w *JSONLWriter) Write(r Record) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	w.count++
	if w.count%config.Tuning.SinkFlushEvery == 0 {
		return w.buf.Flush()
	}
	return nil
}

func (w *JSONLWriter) Flush() error {
	return w.buf.Flush()
}

// Close flushes buffered records and closes the file it opened
func (w *JSONLWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Count returns the number of records written
func (w *JSONLWriter) Count() int {
	return w.count
}
