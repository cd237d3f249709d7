package engine

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Event is one decoded JSON record from a log source. Events are read-only
// once loaded; the engine never mutates them.
type Event map[string]interface{}

// FieldValue resolves a dot-separated path through nested objects and returns
// the value's comparable text form. Arrays are not indexable by path. The
// second return is false when the path does not resolve, or when it resolves
// to an object, array, or null.
//
// Every operator goes through this one function, so numbers and booleans are
// formatted the same way on every comparison path.
func (e Event) FieldValue(path string) (string, bool) {
	var current interface{} = map[string]interface{}(e)

	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current, ok = obj[part]
		if !ok {
			return "", false
		}
	}

	switch v := current.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}
