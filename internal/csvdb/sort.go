// Provides sorting of table rows by a single column.

package csvdb

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// SortFile reads the table file at path and returns its rows sorted by key.
//
// Values are compared as numbers when every value of key parses as a float,
// otherwise every value is compared as text. The sort is stable in both
// directions. It returns ErrFileNotFound if the file is missing and
// ErrUnknownColumn if key is not in the header.
func SortFile(path, key string, descending bool) ([]*Row, error) {
	columns, rows, err := loadExisting(path)
	if err != nil {
		return nil, err
	}
	if columns == nil {
		return []*Row{}, nil
	}
	if !slices.Contains(columns, key) {
		return nil, fmt.Errorf("column %q not in %s: %w", key, path, ErrUnknownColumn)
	}
	sortRows(rows, key, descending)
	return rows, nil
}

type sortKey struct {
	row  *Row
	text string
	num  float64
}

func sortRows(rows []*Row, key string, descending bool) {
	keys := make([]sortKey, len(rows))
	numeric := true
	for i, r := range rows {
		keys[i] = sortKey{row: r, text: r.Value(key)}
		if !numeric {
			continue
		}
		f, ok := parseNumber(keys[i].text)
		if !ok {
			numeric = false
			continue
		}
		keys[i].num = f
	}

	compare := func(a, b sortKey) int {
		if numeric {
			return cmp.Compare(a.num, b.num)
		}
		return strings.Compare(a.text, b.text)
	}
	slices.SortStableFunc(keys, func(a, b sortKey) int {
		if descending {
			return compare(b, a)
		}
		return compare(a, b)
	})
	for i := range keys {
		rows[i] = keys[i].row
	}
}

// parseNumber parses s as a float, ignoring surrounding spaces. Values out of
// range parse as ±Inf.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}
