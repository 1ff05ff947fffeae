// Package document reads and writes values inside live documents using
// dotted paths. Paths here are live paths: numeric segments are concrete
// array indices, not the symbolic schema paths used to key instructions.
package document

import (
	"strconv"
	"strings"
)

// Apply assigns value at livePath inside doc, creating intermediate
// containers as needed. Whether an intermediate is an object or an array
// is inferred from the next segment: numeric means array. Existing sibling
// values are left untouched. The document is modified in place and
// returned; a nil document yields a fresh one.
//
// The pipeline never calls Apply on its own; write-back happens only when
// the caller explicitly asks for it, and the last write wins.
func Apply(doc map[string]any, livePath string, value any) map[string]any {
	if doc == nil {
		doc = map[string]any{}
	}
	if livePath == "" {
		return doc
	}
	assignInto(doc, strings.Split(livePath, "."), value)
	return doc
}

// assign places value into container (object or array) following segs,
// returning the container, which may have been newly created or regrown.
func assign(container any, segs []string, value any) any {
	if idx, numeric := parseIndex(segs[0]); numeric {
		arr, _ := container.([]any)
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		if len(segs) == 1 {
			arr[idx] = value
		} else {
			arr[idx] = assign(arr[idx], segs[1:], value)
		}
		return arr
	}

	obj, ok := container.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	assignInto(obj, segs, value)
	return obj
}

func assignInto(obj map[string]any, segs []string, value any) {
	key := segs[0]
	if len(segs) == 1 {
		obj[key] = value
		return
	}
	obj[key] = assign(obj[key], segs[1:], value)
}

// Get reads the value at livePath. The second result reports whether every
// segment resolved.
func Get(doc map[string]any, livePath string) (any, bool) {
	var cur any = doc
	for _, seg := range strings.Split(livePath, ".") {
		if idx, numeric := parseIndex(seg); numeric {
			arr, ok := cur.([]any)
			if !ok || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func parseIndex(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}
	return idx, true
}
