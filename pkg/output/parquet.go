package output

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// ParquetRow is the columnar layout of a verdict record
type ParquetRow struct {
	SourceFilename string `parquet:"source_filename,zstd,dict"`
	PacketIndex    int64  `parquet:"packet_index"`
	Severity       string `parquet:"severity,zstd,dict"`
	Reason         string `parquet:"reason,zstd,dict"`
}

// ParquetWriter writes verdict records to a Parquet file
type ParquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[ParquetRow]
	count  int
}

// NewParquetWriter creates a Parquet writer. An existing file is replaced.
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[ParquetRow](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("tunnelhunt", "1.0.0", "go"),
	)

	return &ParquetWriter{
		file:   file,
		writer: writer,
	}, nil
}

// Write converts a Record to a ParquetRow and writes it
func (w *ParquetWriter) Write(r Record) error {
	if _, err := w.writer.Write([]ParquetRow{recordToParquetRow(r)}); err != nil {
		return fmt.Errorf("failed to write parquet row: %w", err)
	}

	w.count++
	return nil
}

// Close finalizes and closes the Parquet file
func (w *ParquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the number of rows written
func (w *ParquetWriter) Count() int {
	return w.count
}

func recordToParquetRow(r Record) ParquetRow {
	return ParquetRow{
		SourceFilename: r.File,
		PacketIndex:    int64(r.PacketIndex),
		Severity:       string(r.Severity),
		Reason:         r.Reason,
	}
}
