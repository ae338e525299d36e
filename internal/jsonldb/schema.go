// Describes the on-disk format of a table as a JSON Schema.

package jsonldb

import (
	stdjson "encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Schema returns the indented JSON Schema of a file holding rows of type T.
//
// Field descriptions come from `jsonschema:"description=..."` struct tags.
func Schema[T any]() ([]byte, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
	}

	// Inline properties (no $ref) so the schema reads top to bottom.
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	s := r.ReflectFromType(reflect.SliceOf(t))
	// jsoniter writes MarshalJSON output verbatim, without indentation.
	data, err := stdjson.MarshalIndent(s, "", indent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
