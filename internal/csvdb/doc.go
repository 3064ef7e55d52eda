// Package csvdb provides a CSV-backed table with full in-memory caching.
//
// # Overview
//
// [Table] binds one comma-separated file and an ordered column list. [Open]
// loads the file immediately; a missing file is an empty table. Every mutation
// rewrites the whole file before returning, except [Table.Append] which adds a
// single line.
//
// [Editor] wraps a [Table] and changes its shape: add, move, remove and rename
// columns, and update values addressed by an identifier column.
//
// # File Format
//
// Line 1 is the header, subsequent lines are records, one per line. All values
// are text. Files written by [Save] round-trip byte for byte.
//
// # Errors
//
// Operations that need an existing file ([Table.SortBy], [Table.Delete],
// [Table.Update]) fail with [ErrFileNotFound]. Lookups distinguish
// [ErrUnknownColumn] from [ErrNotFound]. Structural operations on an unknown
// column report false instead of an error.
package csvdb
