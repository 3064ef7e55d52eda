package csvdb

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Table handles storage and in-memory caching for a single CSV file.
type Table struct {
	path string
	mu   sync.RWMutex

	columns []string
	rows    []*Row
}

// Open creates a Table bound to path and loads all data from the file.
//
// columns is used when the file does not exist or is empty; otherwise the
// file's header wins.
func Open(path string, columns []string) (*Table, error) {
	if err := checkColumns(columns); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	table := &Table{
		path:    path,
		columns: slices.Clone(columns),
	}

	if err := table.Reload(); err != nil {
		return nil, err
	}

	return table, nil
}

// Reload replaces the in-memory state with the file content.
//
// A missing or empty file yields no rows and keeps the current columns.
func (t *Table) Reload() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	columns, rows, err := Load(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.rows = []*Row{}
			return nil
		}
		return err
	}
	if columns != nil {
		t.columns = columns
	}
	t.rows = rows
	return nil
}

// Path returns the table file path.
func (t *Table) Path() string {
	return t.path
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.columns)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// All returns an iterator over copies of all rows, keyed in column order.
func (t *Table) All() iter.Seq[*Row] {
	return func(yield func(*Row) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(NewRow(t.columns, row.Values(t.columns))) {
				return
			}
		}
	}
}

// Rows returns copies of all rows, keyed in column order.
func (t *Table) Rows() []*Row {
	return slices.Collect(t.All())
}

// Save writes the current columns and rows to the file.
func (t *Table) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Save(t.path, t.columns, t.rows)
}

// Append adds a new row to the table and appends it to the file.
//
// The row must have exactly the table's columns.
func (t *Table) Append(row *Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !row.hasColumns(t.columns) {
		return fmt.Errorf("%w: got %q, want %q", ErrColumnMismatch, row.Names(), t.columns)
	}
	if err := appendRecord(t.path, t.columns, row); err != nil {
		return err
	}
	t.rows = append(t.rows, row.Clone())
	return nil
}

// Search returns a copy of the first row whose column equals value.
//
// It returns ErrUnknownColumn if column is not part of the table and
// ErrNotFound if no row matches.
func (t *Table) Search(column, value string) (*Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !slices.Contains(t.columns, column) {
		return nil, fmt.Errorf("column %q: %w", column, ErrUnknownColumn)
	}
	for _, row := range t.rows {
		if row.Value(column) == value {
			return NewRow(t.columns, row.Values(t.columns)), nil
		}
	}
	return nil, ErrNotFound
}

// SortBy reads the file again and returns its rows sorted by key.
//
// The in-memory rows are not modified. See [SortFile].
func (t *Table) SortBy(key string, descending bool) ([]*Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return SortFile(t.path, key, descending)
}

// Delete reads the file again, removes every row whose column equals value
// and saves the result. It returns the number of rows removed.
func (t *Table) Delete(column, value string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	columns, rows, err := t.loadExisting()
	if err != nil {
		return 0, err
	}
	if !slices.Contains(columns, column) {
		return 0, fmt.Errorf("column %q: %w", column, ErrUnknownColumn)
	}
	n := len(rows)
	rows = slices.DeleteFunc(rows, func(r *Row) bool {
		return r.Value(column) == value
	})
	if err := t.commit(columns, rows); err != nil {
		return 0, err
	}
	return n - len(rows), nil
}

// Update reads the file again, replaces oldValue with newValue in column on
// every row and saves the result, even when nothing matched.
func (t *Table) Update(column, oldValue, newValue string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	columns, rows, err := t.loadExisting()
	if err != nil {
		return err
	}
	if !slices.Contains(columns, column) {
		return fmt.Errorf("column %q: %w", column, ErrUnknownColumn)
	}
	for _, row := range rows {
		if row.Value(column) == oldValue {
			row.Set(column, newValue)
		}
	}
	return t.commit(columns, rows)
}

// loadExisting reads the bound file, which must exist. A file without header
// keeps the current columns.
func (t *Table) loadExisting() ([]string, []*Row, error) {
	columns, rows, err := loadExisting(t.path)
	if err != nil {
		return nil, nil, err
	}
	if columns == nil {
		columns = slices.Clone(t.columns)
	}
	return columns, rows, nil
}

// commit saves columns and rows, then makes them the in-memory state.
//
// The caller must hold the write lock and must not share columns or rows with
// the current state.
func (t *Table) commit(columns []string, rows []*Row) error {
	if err := Save(t.path, columns, rows); err != nil {
		return err
	}
	t.columns = columns
	t.rows = rows
	return nil
}

func cloneRows(rows []*Row) []*Row {
	out := make([]*Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
