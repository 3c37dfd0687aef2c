// Package sanitize strips or nullifies semantically empty values from
// nested map/list structures before they are handed to a storage backend.
// Backend field names may not contain dots, so dotted map keys are
// rewritten with underscores and non-string keys are stringified.
package sanitize

import (
	"fmt"
	"strings"
)

// IsEmpty reports whether a value carries no information: a blank or
// whitespace-only string, or a map/list whose members include no boolean,
// no number, and nothing truthy. A collection holding 0 or false is NOT
// empty. Nil and scalars other than strings are never empty.
func IsEmpty(obj interface{}) bool {
	switch v := obj.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case map[string]interface{}:
		for _, member := range v {
			if protects(member) {
				return false
			}
		}
		return true
	case map[interface{}]interface{}:
		for _, member := range v {
			if protects(member) {
				return false
			}
		}
		return true
	case []interface{}:
		for _, member := range v {
			if protects(member) {
				return false
			}
		}
		return true
	}
	return false
}

// protects reports whether a collection member keeps its parent from
// being classified empty: any boolean or number does, as does any
// otherwise truthy value.
func protects(v interface{}) bool {
	switch m := v.(type) {
	case bool:
		return true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case string:
		return m != ""
	case map[string]interface{}:
		return len(m) > 0
	case map[interface{}]interface{}:
		return len(m) > 0
	case []interface{}:
		return len(m) > 0
	case nil:
		return false
	}
	return true
}

// Fields sanitizes one map level: empty values become nil (or are removed
// when dropEmpty is set), non-empty maps and lists are recursed into, and
// keys are rewritten to be backend-safe.
func Fields(d map[string]interface{}, dropEmpty bool) map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		sanitized := sanitizeValue(v, dropEmpty)
		if dropEmpty && sanitized == nil {
			continue
		}
		out[cleanKey(k)] = sanitized
	}
	return out
}

// Elements sanitizes one list level with the same rules as Fields.
func Elements(l []interface{}, dropEmpty bool) []interface{} {
	out := make([]interface{}, 0, len(l))
	for _, v := range l {
		sanitized := sanitizeValue(v, dropEmpty)
		if dropEmpty && sanitized == nil {
			continue
		}
		out = append(out, sanitized)
	}
	return out
}

// Objects sanitizes an arbitrary nested structure rooted at a map or a
// list. Any other root is a contract violation by the caller. There is no
// cycle detection: a self-referential structure is a programming error and
// will exhaust the stack.
func Objects(o interface{}, dropEmpty bool) (interface{}, error) {
	switch v := o.(type) {
	case map[string]interface{}:
		return Fields(v, dropEmpty), nil
	case map[interface{}]interface{}:
		return Fields(stringKeyed(v), dropEmpty), nil
	case []interface{}:
		return Elements(v, dropEmpty), nil
	default:
		return nil, fmt.Errorf("object must be a map or a list, got %T: %v", o, o)
	}
}

func sanitizeValue(v interface{}, dropEmpty bool) interface{} {
	if IsEmpty(v) {
		return nil
	}
	switch m := v.(type) {
	case map[string]interface{}:
		return Fields(m, dropEmpty)
	case map[interface{}]interface{}:
		return Fields(stringKeyed(m), dropEmpty)
	case []interface{}:
		return Elements(m, dropEmpty)
	default:
		return v
	}
}

// stringKeyed converts the loosely keyed maps some parsers produce into
// string-keyed ones. Key cleaning itself happens in Fields.
func stringKeyed(d map[interface{}]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		out[fmt.Sprintf("%v", k)] = v
	}
	return out
}

func cleanKey(k string) string {
	return strings.ReplaceAll(k, ".", "_")
}
