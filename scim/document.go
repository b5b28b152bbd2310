package scim

import (
	"encoding/json"
	"strings"
)

// Document is the canonical in-memory representation of a SCIM resource:
// a tree of null|bool|number|string|array|object values, identical in
// shape to whatever decoded the wire JSON. Every engine in this package
// (filter, path, patch, projector) reads and writes Documents; typed
// resources such as User and Group are a convenience at the HTTP boundary,
// not the working representation.
type Document = map[string]any

// ToDocument converts any JSON-serializable value (typically a typed
// resource like *User) into its Document form.
func ToDocument(v any) (Document, error) {
	if d, ok := v.(Document); ok {
		return CloneDocument(d), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDocument decodes a Document back into a typed value.
func FromDocument(doc Document, out any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// CloneDocument performs a deep copy via JSON round-trip. The engines in
// this package never mutate a caller's Document in place across calls
// that are documented as non-destructive (e.g. the projector); this is
// the cheap, correct way to guarantee that given the Document shape is
// already a JSON tree.
func CloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var clone Document
	if err := json.Unmarshal(data, &clone); err != nil {
		return doc
	}
	return clone
}

// lookupKey finds a map key case-insensitively, as SCIM attribute names
// are case-insensitive on the wire even though the canonical schema casing
// (e.g. "userName") is preserved in storage.
func lookupKey(m map[string]any, name string) (string, bool) {
	if _, ok := m[name]; ok {
		return name, true
	}
	for k := range m {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// getPathValue resolves a dotted/indexed attribute path against a
// Document, honoring value-path filters on array segments by taking the
// first inner-matching element. It is the read-side counterpart to the
// PATCH applicator's path resolution, used by the sort key extractor,
// where a path is expected to resolve to a single value.
func getPathValue(doc any, segments []PathSegment) any {
	candidates := getPathCandidates(doc, segments)
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

// getPathCandidates resolves segments against doc the same way
// getPathValue does, except a non-final indexed segment fans out into one
// candidate per inner-matching array element instead of only the first.
// RFC 7644's existential semantics require trying the remainder of the
// path against every element the inner filter selects, not just the
// first one found, so the filter evaluator can match an outer predicate
// that only a later element satisfies.
func getPathCandidates(doc any, segments []PathSegment) []any {
	current := []any{doc}
	for _, seg := range segments {
		var next []any
		for _, c := range current {
			if c == nil {
				continue
			}
			m, ok := asObject(c)
			if !ok {
				continue
			}
			key, found := lookupKey(m, seg.Attribute)
			if !found {
				continue
			}
			val := m[key]

			if seg.Filter != nil {
				arr, ok := val.([]any)
				if !ok {
					continue
				}
				for _, elem := range arr {
					if evaluateFilter(seg.Filter, elem) {
						next = append(next, elem)
					}
				}
				continue
			}
			next = append(next, val)
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// isEmptyValue reports whether v counts as "absent" for the `pr` operator:
// nil, the empty string, or an empty array/object. false and 0 are
// present values.
func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
