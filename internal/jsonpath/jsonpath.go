// Package jsonpath resolves dotted paths (e.g. "data.value") into decoded JSON documents.
package jsonpath

import (
	"fmt"
	"strings"
)

// NotFoundError reports a path segment that could not be resolved.
type NotFoundError struct {
	Path    string
	Segment string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("json path %q: segment %q not found", e.Path, e.Segment)
}

// Get walks a dotted path through nested JSON objects.
// Each segment must resolve to a key of a map[string]any; anything else is a miss.
func Get(doc any, path string) (any, error) {
	if path == "" {
		return nil, &NotFoundError{Path: path, Segment: ""}
	}

	cur := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, &NotFoundError{Path: path, Segment: part}
		}

		next, ok := obj[part]
		if !ok {
			return nil, &NotFoundError{Path: path, Segment: part}
		}

		cur = next
	}

	return cur, nil
}

// Lookup is like Get but collapses a miss into (nil, false) for callers that
// only care about presence.
func Lookup(doc any, path string) (any, bool) {
	v, err := Get(doc, path)
	if err != nil {
		return nil, false
	}
	return v, true
}
