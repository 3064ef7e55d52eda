// Reads and writes the CSV file format: a header line followed by records.

package csvdb

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
)

// Load reads the table file at path and returns its header and rows.
//
// A missing file returns an error wrapping [fs.ErrNotExist]. An empty file
// returns nil columns and no rows. Short records are padded with empty values.
// A bare quote inside an unquoted field is read as a literal quote.
func Load(path string) ([]string, []*Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open table file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	columns, rows, err := decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read table file %s: %w", path, err)
	}
	slog.Debug("Loaded table", "path", path, "columns", len(columns), "rows", len(rows))
	return columns, rows, nil
}

// loadExisting is Load for operations that require the file to exist.
func loadExisting(path string) ([]string, []*Row, error) {
	columns, rows, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}
	return columns, rows, err
}

// Save overwrites the file at path with the header and rows.
func Save(path string, columns []string, rows []*Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	writer := bufio.NewWriter(f)
	if err := encode(writer, columns, rows); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close table file: %w", err)
	}
	slog.Debug("Saved table", "path", path, "columns", len(columns), "rows", len(rows))
	return nil
}

// appendRecord appends one row to the file at path, writing the header first
// when the file is missing or empty.
func appendRecord(path string, columns []string, row *Row) error {
	header := false
	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		header = true
	case err != nil:
		return fmt.Errorf("failed to stat table file: %w", err)
	default:
		header = fi.Size() == 0
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	rw := newRecordWriter(f)
	if header {
		if err := rw.write(columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := rw.write(row.Values(columns)); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	if err := rw.flush(); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return f.Close()
}

func decode(r io.Reader) ([]string, []*Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, []*Row{}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if err := checkColumns(header); err != nil {
		return nil, nil, err
	}

	rows := []*Row{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(record) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, nil, fmt.Errorf("line %d has %d fields, header has %d: %w", line, len(record), len(header), ErrMalformedRecord)
		}
		rows = append(rows, NewRow(header, record))
	}
	return header, rows, nil
}

func encode(w io.Writer, columns []string, rows []*Row) error {
	rw := newRecordWriter(w)
	if err := rw.write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := rw.write(row.Values(columns)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := rw.flush(); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// recordWriter wraps csv.Writer so that a record made of one empty field is
// written as `""` instead of a blank line, which readers skip.
type recordWriter struct {
	w  io.Writer
	cw *csv.Writer
}

func newRecordWriter(w io.Writer) *recordWriter {
	return &recordWriter{w: w, cw: csv.NewWriter(w)}
}

func (rw *recordWriter) write(record []string) error {
	if len(record) == 1 && record[0] == "" {
		if err := rw.flush(); err != nil {
			return err
		}
		_, err := io.WriteString(rw.w, "\"\"\n")
		return err
	}
	return rw.cw.Write(record)
}

func (rw *recordWriter) flush() error {
	rw.cw.Flush()
	return rw.cw.Error()
}

// checkColumns rejects duplicate column names.
func checkColumns(columns []string) error {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, ok := seen[c]; ok {
			return fmt.Errorf("column %q: %w", c, ErrDuplicateColumn)
		}
		seen[c] = struct{}{}
	}
	return nil
}
