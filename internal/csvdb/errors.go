package csvdb

import "errors"

var (
	// ErrFileNotFound is returned by operations that require the table file to exist.
	ErrFileNotFound = errors.New("table file not found")
	// ErrUnknownColumn is returned when a column name is not part of the table.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrNotFound is returned when no row matches a lookup.
	ErrNotFound = errors.New("row not found")
	// ErrColumnMismatch is returned when a row's columns differ from the table's.
	ErrColumnMismatch = errors.New("row columns do not match table columns")
	// ErrDuplicateColumn is returned when a column name would appear twice.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrPositionOutOfRange is returned when a column position is outside the table.
	ErrPositionOutOfRange = errors.New("column position out of range")
	// ErrMalformedRecord is returned when a record has more fields than the header.
	ErrMalformedRecord = errors.New("malformed record")
)
