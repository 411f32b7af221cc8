package document

import "strings"

// Merge layers overrides on top of base and returns a new Map.
//
// Merge rules:
//   - a key present on one side only is carried over as is
//   - two mappings merge key by key, recursively
//   - two lists concatenate, base first, duplicates kept
//   - anything else: the override wins, type mismatches included
//
// ignore holds dotted key paths. A bare key is dropped from this level of
// the result; "a.b" drops b from whatever ends up under a. Neither input is
// modified and the result shares no containers with them.
func Merge(base, overrides *Map, ignore ...string) *Map {
	if base == nil {
		base = NewMap()
	}
	if overrides == nil {
		overrides = NewMap()
	}
	drop, nested := splitIgnore(ignore)

	out := NewMap()
	for p := base.Oldest(); p != nil; p = p.Next() {
		if drop[p.Key] {
			continue
		}
		if ov, ok := overrides.Get(p.Key); ok {
			out.Set(p.Key, mergeValue(p.Value, ov, nested[p.Key]))
			continue
		}
		out.Set(p.Key, prune(p.Value, nested[p.Key]))
	}
	for p := overrides.Oldest(); p != nil; p = p.Next() {
		if drop[p.Key] {
			continue
		}
		if _, seen := base.Get(p.Key); seen {
			continue
		}
		out.Set(p.Key, prune(p.Value, nested[p.Key]))
	}
	return out
}

func mergeValue(base, override any, ignore []string) any {
	switch bv := base.(type) {
	case *Map:
		if ov, ok := override.(*Map); ok {
			return Merge(bv, ov, ignore...)
		}
	case []any:
		if ov, ok := override.([]any); ok {
			out := make([]any, 0, len(bv)+len(ov))
			for _, item := range bv {
				out = append(out, cloneValue(item))
			}
			for _, item := range ov {
				out = append(out, cloneValue(item))
			}
			return out
		}
	}
	return prune(override, ignore)
}

// prune copies v, applying nested ignores when v is a mapping.
func prune(v any, ignore []string) any {
	m, ok := v.(*Map)
	if !ok || len(ignore) == 0 {
		return cloneValue(v)
	}
	return Merge(m, nil, ignore...)
}

func splitIgnore(ignore []string) (map[string]bool, map[string][]string) {
	drop := make(map[string]bool, len(ignore))
	var nested map[string][]string
	for _, key := range ignore {
		head, rest, dotted := strings.Cut(key, ".")
		if !dotted {
			drop[key] = true
			continue
		}
		if nested == nil {
			nested = make(map[string][]string)
		}
		nested[head] = append(nested[head], rest)
	}
	return drop, nested
}
