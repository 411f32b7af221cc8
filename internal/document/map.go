// Package document decodes deck definition files into ordered mappings,
// merges them layer over layer, and resolves "extends" chains.
package document

import (
	"bytes"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Map is an insertion-ordered mapping. Decoded documents use *Map for every
// mapping, []any for every sequence, and plain Go scalars otherwise.
type Map = orderedmap.OrderedMap[string, any]

// NewMap returns an empty Map.
func NewMap() *Map {
	return orderedmap.New[string, any]()
}

// Format selects how raw bytes are decoded.
type Format int

const (
	FormatYAML Format = iota
	// FormatJSONC is JSON with comments and trailing commas.
	FormatJSONC
)

// Decode parses data into a Map. The top level must be a mapping.
func Decode(data []byte, format Format) (*Map, error) {
	if format == FormatJSONC {
		data = jsoncToJSON(data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("document is empty")
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	dec := &decoder{expanding: make(map[*yaml.Node]bool)}
	v, err := dec.fromNode(&root)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Map)
	if !ok {
		return nil, fmt.Errorf("top level is %s, not a mapping", kindOf(v))
	}
	return m, nil
}

// MaxNodes bounds how many nodes one document may expand to once aliases
// are followed.
const MaxNodes = 1 << 20

// decoder walks a yaml.Node tree. Aliases are expanded in place, so it keeps
// the anchors currently being expanded and a running node count.
type decoder struct {
	expanding map[*yaml.Node]bool
	nodes     int
}

func (d *decoder) fromNode(n *yaml.Node) (any, error) {
	d.nodes++
	if d.nodes > MaxNodes {
		return nil, fmt.Errorf("line %d: document expands to more than %d nodes", n.Line, MaxNodes)
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return d.fromNode(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("line %d: unknown anchor %q", n.Line, n.Value)
		}
		if d.expanding[n.Alias] {
			return nil, fmt.Errorf("line %d: alias *%s refers to itself", n.Line, n.Value)
		}
		d.expanding[n.Alias] = true
		v, err := d.fromNode(n.Alias)
		delete(d.expanding, n.Alias)
		return v, err
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := d.fromNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		return d.mappingFromNode(n)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
}

func (d *decoder) mappingFromNode(n *yaml.Node) (*Map, error) {
	out := NewMap()
	var merges []*Map
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
		}
		val, err := d.fromNode(v)
		if err != nil {
			return nil, err
		}
		if k.Tag == "!!merge" {
			switch mv := val.(type) {
			case *Map:
				merges = append(merges, mv)
			case []any:
				for _, item := range mv {
					if m, ok := item.(*Map); ok {
						merges = append(merges, m)
					}
				}
			default:
				return nil, fmt.Errorf("line %d: merge key needs a mapping", k.Line)
			}
			continue
		}
		out.Set(k.Value, val)
	}
	// YAML merge keys never override explicit keys; earlier merges win.
	for _, m := range merges {
		for p := m.Oldest(); p != nil; p = p.Next() {
			if _, ok := out.Get(p.Key); !ok {
				out.Set(p.Key, cloneValue(p.Value))
			}
		}
	}
	return out, nil
}

// Clone returns a deep copy of m. A nil Map clones to nil.
func Clone(m *Map) *Map {
	if m == nil {
		return nil
	}
	out := NewMap()
	for p := m.Oldest(); p != nil; p = p.Next() {
		out.Set(p.Key, cloneValue(p.Value))
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case *Map:
		return Clone(tv)
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}

// Overlay is a shallow merge: every key of top replaces the same key of
// bottom. Neither input is modified.
func Overlay(bottom, top *Map) *Map {
	out := Clone(bottom)
	if out == nil {
		out = NewMap()
	}
	if top == nil {
		return out
	}
	for p := top.Oldest(); p != nil; p = p.Next() {
		out.Set(p.Key, cloneValue(p.Value))
	}
	return out
}

// First returns the value of the first key present in m.
func First(m *Map, keys ...string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, k := range keys {
		if v, ok := m.Get(k); ok {
			return v, true
		}
	}
	return nil, false
}

// Keys returns the keys of m in order.
func Keys(m *Map) []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, m.Len())
	for p := m.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *Map:
		return "a mapping"
	case []any:
		return "a list"
	}
	return fmt.Sprintf("a scalar (%T)", v)
}
