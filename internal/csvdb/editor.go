// Implements structural operations that change a table's columns.

package csvdb

import (
	"fmt"
	"slices"
)

// Editor changes the column layout of a Table and updates values addressed by
// an identifier column. Every successful change is saved before returning.
type Editor struct {
	t *Table
}

// NewEditor returns an Editor operating on t.
func NewEditor(t *Table) *Editor {
	return &Editor{t: t}
}

// Table returns the edited table.
func (e *Editor) Table() *Table {
	return e.t
}

// AddColumn appends name to the columns if absent and sets value on every
// row. Adding an existing column resets all its values.
func (e *Editor) AddColumn(name, value string) error {
	t := e.t
	t.mu.Lock()
	defer t.mu.Unlock()

	columns := slices.Clone(t.columns)
	if !slices.Contains(columns, name) {
		columns = append(columns, name)
	}
	rows := cloneRows(t.rows)
	for _, row := range rows {
		row.Set(name, value)
	}
	return t.commit(columns, rows)
}

// AddColumnAt inserts name at the zero-based position.
//
// A new column gets value on every row. An existing column is moved and keeps
// its values; moving it to len(columns) places it last. position must be
// within [0, len(columns)].
func (e *Editor) AddColumnAt(name string, position int, value string) error {
	t := e.t
	t.mu.Lock()
	defer t.mu.Unlock()

	if position < 0 || position > len(t.columns) {
		return fmt.Errorf("position %d for column %q with %d columns: %w", position, name, len(t.columns), ErrPositionOutOfRange)
	}
	columns := slices.Clone(t.columns)
	rows := t.rows
	if i := slices.Index(columns, name); i >= 0 {
		columns = slices.Delete(columns, i, i+1)
		position = min(position, len(columns))
	} else {
		rows = cloneRows(t.rows)
		for _, row := range rows {
			row.Set(name, value)
		}
	}
	columns = slices.Insert(columns, position, name)
	return t.commit(columns, rows)
}

// RemoveColumn removes name from the columns and every row.
//
// It returns false without touching the table or file if name is unknown.
func (e *Editor) RemoveColumn(name string) (bool, error) {
	t := e.t
	t.mu.Lock()
	defer t.mu.Unlock()

	i := slices.Index(t.columns, name)
	if i < 0 {
		return false, nil
	}
	columns := slices.Delete(slices.Clone(t.columns), i, i+1)
	rows := cloneRows(t.rows)
	for _, row := range rows {
		row.Delete(name)
	}
	if err := t.commit(columns, rows); err != nil {
		return false, err
	}
	return true, nil
}

// RenameColumn renames oldName to newName, keeping its position and values.
//
// It returns false if oldName is unknown and ErrDuplicateColumn if newName is
// already another column.
func (e *Editor) RenameColumn(oldName, newName string) (bool, error) {
	t := e.t
	t.mu.Lock()
	defer t.mu.Unlock()

	i := slices.Index(t.columns, oldName)
	if i < 0 {
		return false, nil
	}
	if oldName != newName && slices.Contains(t.columns, newName) {
		return false, fmt.Errorf("column %q: %w", newName, ErrDuplicateColumn)
	}
	columns := slices.Clone(t.columns)
	columns[i] = newName
	rows := cloneRows(t.rows)
	for _, row := range rows {
		row.Rename(oldName, newName)
	}
	if err := t.commit(columns, rows); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateWhere sets target to value on every row whose idColumn equals match.
//
// It returns false if target or idColumn is unknown, or if no row matched; the
// file is saved only when at least one row changed.
func (e *Editor) UpdateWhere(match, target, value, idColumn string) (bool, error) {
	t := e.t
	t.mu.Lock()
	defer t.mu.Unlock()

	if !slices.Contains(t.columns, target) || !slices.Contains(t.columns, idColumn) {
		return false, nil
	}
	rows := cloneRows(t.rows)
	updated := false
	for _, row := range rows {
		if row.Value(idColumn) == match {
			row.Set(target, value)
			updated = true
		}
	}
	if !updated {
		return false, nil
	}
	if err := t.commit(slices.Clone(t.columns), rows); err != nil {
		return false, err
	}
	return true, nil
}
