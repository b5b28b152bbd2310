package scim

import (
	"sort"
	"strings"
)

// alwaysReturned are the core attributes required in every projection
// regardless of include/exclude lists: schemas, id, and meta at minimum.
var alwaysReturned = map[string]bool{"schemas": true, "id": true, "meta": true}

// Project applies attributes/excludedAttributes selection to doc.
// Include takes precedence when both are supplied: an include list, when
// present, wins outright rather than narrowing an exclude pass.
func Project(doc Document, attributes, excludedAttributes []string) Document {
	if len(attributes) > 0 {
		return projectInclude(doc, attributes)
	}
	if len(excludedAttributes) > 0 {
		return projectExclude(doc, excludedAttributes)
	}
	return CloneDocument(doc)
}

func projectInclude(doc Document, attributes []string) Document {
	children := groupByParent(attributes)
	out := make(Document)
	for key, value := range doc {
		lower := strings.ToLower(key)
		if alwaysReturned[lower] {
			out[key] = value
			continue
		}
		if kids, ok := children[lower]; ok {
			if len(kids) == 0 {
				out[key] = value
			} else if projected := projectSub(value, kids); projected != nil {
				out[key] = projected
			}
		}
	}
	return out
}

func projectExclude(doc Document, excluded []string) Document {
	children := groupByParent(excluded)
	out := make(Document)
	for key, value := range doc {
		lower := strings.ToLower(key)
		if alwaysReturned[lower] {
			out[key] = value
			continue
		}
		if kids, ok := children[lower]; ok {
			if len(kids) == 0 {
				continue // whole attribute excluded
			}
			if excludedVal := excludeSub(value, kids); excludedVal != nil {
				out[key] = excludedVal
			}
			continue
		}
		out[key] = value
	}
	return out
}

// groupByParent splits a dotted attribute list into immediate-parent ->
// remaining-sub-path groups, e.g. ["userName", "name.familyName"] ->
// {"username": [], "name": ["familyName"]}.
func groupByParent(attrs []string) map[string][]string {
	groups := make(map[string][]string)
	for _, attr := range attrs {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			continue
		}
		parent, rest, hasDot := strings.Cut(attr, ".")
		parent = strings.ToLower(parent)
		if hasDot {
			groups[parent] = append(groups[parent], rest)
		} else if _, exists := groups[parent]; !exists {
			groups[parent] = nil
		}
	}
	return groups
}

func projectSub(value any, subs []string) any {
	children := groupByParent(subs)
	switch v := value.(type) {
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				filtered := projectMap(obj, children)
				if len(filtered) > 0 {
					out = append(out, filtered)
				}
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case map[string]any:
		filtered := projectMap(v, children)
		if len(filtered) == 0 {
			return nil
		}
		return filtered
	default:
		return value
	}
}

func projectMap(obj map[string]any, children map[string][]string) map[string]any {
	out := make(map[string]any)
	for k, v := range obj {
		kids, ok := children[strings.ToLower(k)]
		if !ok {
			continue
		}
		if len(kids) == 0 {
			out[k] = v
			continue
		}
		if sub := projectSub(v, kids); sub != nil {
			out[k] = sub
		}
	}
	return out
}

func excludeSub(value any, subs []string) any {
	children := groupByParent(subs)
	switch v := value.(type) {
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, excludeMap(obj, children))
			} else {
				out = append(out, item)
			}
		}
		return out
	case map[string]any:
		return excludeMap(v, children)
	default:
		return value
	}
}

func excludeMap(obj map[string]any, children map[string][]string) map[string]any {
	out := make(map[string]any)
	for k, v := range obj {
		kids, excluded := children[strings.ToLower(k)]
		if !excluded {
			out[k] = v
			continue
		}
		if len(kids) == 0 {
			continue
		}
		if sub := excludeSub(v, kids); sub != nil {
			out[k] = sub
		}
	}
	return out
}

// SortDocuments returns a copy of docs sorted by the value at sortBy,
// leaving docs itself untouched; case-sensitive string/numeric/boolean
// comparison (true before false), stable.
func SortDocuments(docs []Document, sortBy, sortOrder string) []Document {
	if sortBy == "" || len(docs) == 0 {
		return docs
	}
	path, err := ParsePath(sortBy)
	if err != nil {
		return docs
	}
	ascending := strings.ToLower(sortOrder) != "descending"

	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		cmp := compareForSort(getPathValue(sorted[i], path.Segments), getPathValue(sorted[j], path.Segments))
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})
	return sorted
}

func compareForSort(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if aStr, ok := a.(string); ok {
		if bStr, ok := b.(string); ok {
			return strings.Compare(aStr, bStr)
		}
	}
	if aNum, ok := toFloat64(a); ok {
		if bNum, ok := toFloat64(b); ok {
			return cmpFloat(aNum, bNum)
		}
	}
	if aBool, ok := a.(bool); ok {
		if bBool, ok := b.(bool); ok {
			switch {
			case aBool == bBool:
				return 0
			case aBool:
				return -1
			default:
				return 1
			}
		}
	}
	return 0
}

// PaginateDocuments slices docs to the SCIM 1-based [startIndex, startIndex+count)
// window, returning the page, the effective startIndex, and itemsPerPage.
func PaginateDocuments(docs []Document, startIndex, count int) ([]Document, int, int) {
	total := len(docs)
	if startIndex < 1 {
		startIndex = 1
	}
	if count <= 0 {
		count = total
	}
	start := min(startIndex-1, total)
	end := min(start+count, total)
	page := docs[start:end]
	return page, startIndex, len(page)
}

// FilterDocuments applies a parsed filter to a document slice.
func FilterDocuments(docs []Document, node FilterNode) []Document {
	if node == nil {
		return docs
	}
	if _, ok := node.(EmptyFilter); ok {
		return docs
	}
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if evaluateFilter(node, d) {
			out = append(out, d)
		}
	}
	return out
}
