package scim

import (
	"fmt"
	"log/slog"
	"strings"
)

// PatchApplicator executes RFC 7644 §3.5.2 PATCH operations against a
// Document, classifying each operation's target as root, plain path, or
// indexed path, and working over map[string]any/[]any instead of struct
// fields so it applies to any resource type the Document model can
// represent.
type PatchApplicator struct {
	logger *slog.Logger
	// ReplaceCreatesOnMissingPath controls "replace on missing path":
	// creates the attribute when true (the lenient default here), or
	// raises NoTarget when false.
	ReplaceCreatesOnMissingPath bool
}

// NewPatchApplicator creates an applicator. A nil logger discards
// diagnostics, matching the package's discardLogger() default elsewhere.
func NewPatchApplicator(logger *slog.Logger) *PatchApplicator {
	if logger == nil {
		logger = discardLogger()
	}
	return &PatchApplicator{logger: logger, ReplaceCreatesOnMissingPath: true}
}

// Apply runs every operation in order against doc, returning the mutated
// document. Each operation sees the result of the previous one. The
// empty operation list is the identity.
func (pa *PatchApplicator) Apply(doc Document, ops []PatchOperation) (Document, error) {
	for i, op := range ops {
		if err := pa.applyOne(doc, op); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return doc, nil
}

func (pa *PatchApplicator) applyOne(doc Document, op PatchOperation) error {
	switch strings.ToLower(op.Op) {
	case "add":
		return pa.applyAdd(doc, op)
	case "remove":
		return pa.applyRemove(doc, op)
	case "replace":
		return pa.applyReplace(doc, op)
	default:
		return ErrInvalidValue(fmt.Sprintf("invalid op: %s", op.Op))
	}
}

// applyAdd: path absent merges an object Value into root (arrays
// concatenate, scalars overwrite); plain path appends to an array target
// or sets a scalar; indexed path merges an object Value into every
// matching object element (a non-object match is overwritten by Value),
// and appends Value to the array when no element matches.
func (pa *PatchApplicator) applyAdd(doc Document, op PatchOperation) error {
	if op.Path == "" {
		obj, ok := op.Value.(map[string]any)
		if !ok {
			return ErrInvalidValue("add without a path requires an object value")
		}
		mergeInto(doc, obj, true)
		return nil
	}
	path, err := ParsePath(op.Path)
	if err != nil {
		return err
	}
	if op.Value == nil {
		return ErrInvalidValue("add requires a value")
	}
	return pa.setAtPath(doc, path, op.Value, true)
}

// applyReplace: path absent merges an object Value into root overwriting
// keys; plain/indexed path overwrite the target(s), with fields of a
// matched sub-object merged (new wins).
func (pa *PatchApplicator) applyReplace(doc Document, op PatchOperation) error {
	if op.Path == "" {
		obj, ok := op.Value.(map[string]any)
		if !ok {
			return ErrInvalidValue("replace without a path requires an object value")
		}
		mergeInto(doc, obj, true)
		return nil
	}
	path, err := ParsePath(op.Path)
	if err != nil {
		return err
	}
	if op.Value == nil {
		return ErrInvalidValue("replace requires a value")
	}
	return pa.setAtPath(doc, path, op.Value, false)
}

// applyRemove: path absent is NoTarget; plain path deletes the attribute;
// indexed path deletes matching elements (no match is a logged no-op).
func (pa *PatchApplicator) applyRemove(doc Document, op PatchOperation) error {
	if op.Path == "" {
		return ErrNoTarget("remove requires a path")
	}
	path, err := ParsePath(op.Path)
	if err != nil {
		return err
	}
	return pa.removeAtPath(doc, path)
}

// setAtPath navigates to the parent of the final segment, then adds or
// replaces the value there. isAdd distinguishes append-to-array (add)
// from overwrite-array (replace) when the final segment is a bare array
// attribute.
func (pa *PatchApplicator) setAtPath(doc Document, path *Path, value any, isAdd bool) error {
	if len(path.Segments) == 0 {
		return ErrInvalidPath("path must name at least one attribute")
	}

	container, last, err := pa.resolveParent(doc, path, true)
	if err != nil {
		return err
	}

	if last.Filter != nil {
		return pa.setIndexed(container, last, value, isAdd)
	}

	key, found := lookupKey(container, last.Attribute)
	if !found {
		key = last.Attribute
	}
	existing, hasExisting := container[key]

	if isAdd {
		if arr, ok := existing.([]any); ok {
			container[key] = appendValue(arr, value)
			return nil
		}
		if !hasExisting {
			if arr, ok := value.([]any); ok {
				container[key] = arr
				return nil
			}
		}
	}

	if hasExisting {
		if existingObj, ok := existing.(map[string]any); ok {
			if valueObj, ok := value.(map[string]any); ok {
				mergeInto(existingObj, valueObj, true)
				return nil
			}
		}
	} else if !pa.ReplaceCreatesOnMissingPath && !isAdd {
		return ErrNoTarget(fmt.Sprintf("path %s does not resolve to an existing attribute", path.String()))
	}

	container[key] = value
	return nil
}

// setIndexed applies add/replace to every element of the array named by
// last.Attribute that matches last.Filter.
func (pa *PatchApplicator) setIndexed(container map[string]any, last PathSegment, value any, isAdd bool) error {
	key, found := lookupKey(container, last.Attribute)
	if !found {
		return ErrNoTarget(fmt.Sprintf("attribute %s not found", last.Attribute))
	}
	arr, ok := container[key].([]any)
	if !ok {
		return ErrNoTarget(fmt.Sprintf("attribute %s is not an array", last.Attribute))
	}

	matched := false
	for i, elem := range arr {
		if !evaluateFilter(last.Filter, elem) {
			continue
		}
		matched = true
		if isAdd {
			if elemObj, ok := elem.(map[string]any); ok {
				if valObj, ok := value.(map[string]any); ok {
					mergeInto(elemObj, valObj, true)
					continue
				}
			}
			arr[i] = value
		} else {
			if elemObj, ok := elem.(map[string]any); ok {
				if valObj, ok := value.(map[string]any); ok {
					mergeInto(elemObj, valObj, true)
					continue
				}
			}
			arr[i] = value
		}
	}

	if !matched {
		if isAdd {
			container[key] = append(arr, value)
			return nil
		}
		// replace with no match falls through to creating a new element
		// with the merged fields.
		container[key] = append(arr, value)
	}
	return nil
}

// removeAtPath deletes the attribute or the matching indexed elements.
func (pa *PatchApplicator) removeAtPath(doc Document, path *Path) error {
	if len(path.Segments) == 0 {
		return ErrNoTarget("remove requires a path")
	}
	container, last, err := pa.resolveParent(doc, path, false)
	if err != nil {
		if err == errNoSuchParent {
			return nil
		}
		return err
	}
	if container == nil {
		return nil
	}

	key, found := lookupKey(container, last.Attribute)
	if !found {
		return nil
	}

	if last.Filter == nil {
		delete(container, key)
		return nil
	}

	arr, ok := container[key].([]any)
	if !ok {
		return nil
	}
	kept := make([]any, 0, len(arr))
	removedAny := false
	for _, elem := range arr {
		if evaluateFilter(last.Filter, elem) {
			removedAny = true
			continue
		}
		kept = append(kept, elem)
	}
	if !removedAny {
		pa.logger.Debug("indexed remove matched no elements", "path", path.String())
	}
	container[key] = kept
	return nil
}

var errNoSuchParent = fmt.Errorf("path does not resolve")

// resolveParent walks all but the last segment of path, returning the
// object that directly contains the final segment's attribute.
// forWrite controls whether intermediate containers are created when
// missing (true for add/replace) or treated as "nothing to do" (false,
// for remove).
func (pa *PatchApplicator) resolveParent(doc Document, path *Path, forWrite bool) (map[string]any, PathSegment, error) {
	current := doc
	for i := 0; i < len(path.Segments)-1; i++ {
		seg := path.Segments[i]
		key, found := lookupKey(current, seg.Attribute)
		if !found {
			if !forWrite {
				return nil, PathSegment{}, errNoSuchParent
			}
			key = seg.Attribute
			current[key] = map[string]any{}
		}

		next := current[key]
		if seg.Filter != nil {
			arr, ok := next.([]any)
			if !ok {
				return nil, PathSegment{}, ErrNoTarget(fmt.Sprintf("attribute %s is not an array", seg.Attribute))
			}
			var match map[string]any
			for _, elem := range arr {
				if evaluateFilter(seg.Filter, elem) {
					if m, ok := elem.(map[string]any); ok {
						match = m
					}
					break
				}
			}
			if match == nil {
				if !forWrite {
					return nil, PathSegment{}, errNoSuchParent
				}
				return nil, PathSegment{}, ErrNoTarget(fmt.Sprintf("no matching element for filter in attribute %s", seg.Attribute))
			}
			current = match
			continue
		}

		obj, ok := next.(map[string]any)
		if !ok {
			if !forWrite {
				return nil, PathSegment{}, errNoSuchParent
			}
			obj = map[string]any{}
			current[key] = obj
		}
		current = obj
	}

	return current, path.Segments[len(path.Segments)-1], nil
}

func appendValue(arr []any, value any) []any {
	if items, ok := value.([]any); ok {
		return append(arr, items...)
	}
	return append(arr, value)
}

// mergeInto merges src into dst. When overwrite is true, conflicting
// scalar/object keys in src win; arrays concatenate, scalars overwrite.
func mergeInto(dst, src map[string]any, overwrite bool) {
	for k, v := range src {
		key, found := lookupKey(dst, k)
		if !found {
			dst[k] = v
			continue
		}
		existing := dst[key]
		if existingArr, ok := existing.([]any); ok {
			if srcArr, ok := v.([]any); ok {
				dst[key] = append(existingArr, srcArr...)
				continue
			}
		}
		if existingObj, ok := existing.(map[string]any); ok {
			if srcObj, ok := v.(map[string]any); ok {
				mergeInto(existingObj, srcObj, overwrite)
				continue
			}
		}
		if overwrite {
			dst[key] = v
		}
	}
}
