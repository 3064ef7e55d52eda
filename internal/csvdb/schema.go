// Derives column lists from Go struct types.

package csvdb

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// ColumnsFor returns the column names of struct type T, in field order.
//
// Names come from `json` tags through JSON Schema reflection; fields tagged
// `json:"-"` are skipped. T may be a struct or a pointer to a struct.
func ColumnsFor[T any]() ([]string, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
	}

	// Inline properties (no $ref) so nested types don't hide the top level.
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := r.ReflectFromType(t)

	var columns []string
	if schema.Properties != nil {
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			columns = append(columns, pair.Key)
		}
	}
	if err := checkColumns(columns); err != nil {
		return nil, err
	}
	return columns, nil
}
