package output

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/velemoonkon/tunnelhunt/pkg/tunnel"

	_ "modernc.org/sqlite"
)

// SQLiteWriter inserts verdict records into a "verdicts" table
type SQLiteWriter struct {
	db    *sql.DB
	tx    *sql.Tx
	ins   *sql.Stmt
	count int
}

// NewSQLiteWriter opens (or creates) a SQLite database. All records of one
// merge are inserted in a single transaction committed on Close.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	w := &SQLiteWriter{db: db}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) init() error {
	ddl := `
CREATE TABLE IF NOT EXISTS verdicts (
	source_filename TEXT    NOT NULL,
	packet_index    INTEGER NOT NULL,
	severity        TEXT    NOT NULL,
	reason          TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verdicts_file ON verdicts(source_filename, packet_index);
`
	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create verdicts table: %w", err)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`
INSERT INTO verdicts (source_filename, packet_index, severity, reason)
VALUES (?, ?, ?, ?);
`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	w.tx = tx
	w.ins = stmt
	return nil
}

// Write inserts a single record
func (w *SQLiteWriter) Write(r Record) error {
	if _, err := w.ins.Exec(r.File, r.PacketIndex, string(r.Severity), r.Reason); err != nil {
		return fmt.Errorf("failed to insert verdict: %w", err)
	}
	w.count++
	return nil
}

// Close commits pending inserts and closes the database
func (w *SQLiteWriter) Close() error {
	var firstErr error
	if w.ins != nil {
		if err := w.ins.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.tx != nil {
		if err := w.tx.Commit(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to commit verdicts: %w", err)
		}
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Count returns the number of rows inserted
func (w *SQLiteWriter) Count() int {
	return w.count
}

// QueryFile returns the records stored for one capture file in packet order
func QueryFile(ctx context.Context, path, filename string) ([]Record, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
SELECT source_filename, packet_index, severity, reason
FROM verdicts
WHERE source_filename = ?
ORDER BY packet_index;
`, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 64)
	for rows.Next() {
		var r Record
		var severity string
		if err := rows.Scan(&r.File, &r.PacketIndex, &severity, &r.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		r.Severity = tunnel.Severity(severity)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate verdicts: %w", err)
	}
	return out, nil
}
