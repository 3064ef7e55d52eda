// Defines Row, an ordered mapping from column name to text value.

package csvdb

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	json "github.com/goccy/go-json"
)

// Row is one record of a table.
//
// Values are text. Names keep their insertion order, which is also the order
// used when the row is marshaled to JSON. The zero value is an empty row.
type Row struct {
	names  []string
	values map[string]string
}

// NewRow builds a row from parallel column and value slices.
//
// Missing values are empty strings; extra values are ignored.
func NewRow(columns, values []string) *Row {
	r := &Row{
		names:  make([]string, 0, len(columns)),
		values: make(map[string]string, len(columns)),
	}
	for i, c := range columns {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		r.Set(c, v)
	}
	return r
}

// RowOf builds a row from alternating name and value arguments.
//
// It panics if given an odd number of arguments.
func RowOf(pairs ...string) *Row {
	if len(pairs)%2 == 1 {
		panic("csvdb.RowOf: odd argument count")
	}
	r := &Row{values: make(map[string]string, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

// Len returns the number of columns set on the row.
func (r *Row) Len() int {
	return len(r.names)
}

// Names returns the row's column names in order.
func (r *Row) Names() []string {
	return slices.Clone(r.names)
}

// Get returns the value for name and whether it is set.
func (r *Row) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Value returns the value for name, or "" when unset.
func (r *Row) Value(name string) string {
	return r.values[name]
}

// Set sets the value for name, appending name when it is new.
func (r *Row) Set(name, value string) {
	if r.values == nil {
		r.values = map[string]string{}
	}
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// Delete removes name from the row. It returns false if name was not set.
func (r *Row) Delete(name string) bool {
	if _, ok := r.values[name]; !ok {
		return false
	}
	delete(r.values, name)
	r.names = slices.DeleteFunc(r.names, func(n string) bool { return n == name })
	return true
}

// Rename moves the value under oldName to newName, in place.
//
// A value already stored under newName is overwritten. It returns false if
// oldName was not set.
func (r *Row) Rename(oldName, newName string) bool {
	v, ok := r.values[oldName]
	if !ok {
		return false
	}
	if oldName == newName {
		return true
	}
	if _, ok := r.values[newName]; ok {
		r.Delete(newName)
	}
	i := slices.Index(r.names, oldName)
	r.names[i] = newName
	delete(r.values, oldName)
	r.values[newName] = v
	return true
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	c := &Row{
		names:  slices.Clone(r.names),
		values: make(map[string]string, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Values returns the row's values in the order of columns.
func (r *Row) Values(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = r.values[c]
	}
	return out
}

// hasColumns reports whether the row's names are exactly columns, in any order.
func (r *Row) hasColumns(columns []string) bool {
	if len(r.names) != len(columns) {
		return false
	}
	for _, c := range columns {
		if _, ok := r.values[c]; !ok {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the row as a JSON object with keys in row order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[n])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var errRowNotObject = errors.New("row must be a JSON object of strings")

// UnmarshalJSON decodes a JSON object of strings, keeping key order.
func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errRowNotObject
	}
	*r = Row{values: map[string]string{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errRowNotObject
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		r.Set(name, value)
	}
	_, err = dec.Token()
	return err
}
