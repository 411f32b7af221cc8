package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge_ListsConcatenateAndKeysUnion(t *testing.T) {
	base := mustDecode(t, "a: 1\nb: [1, 2]\n")
	over := mustDecode(t, "b: [3]\nc: 2\n")

	out := Merge(base, over)

	assert.Equal(t, []string{"a", "b", "c"}, Keys(out))
	assert.Equal(t, 1, out.Value("a"))
	assert.Equal(t, []any{1, 2, 3}, out.Value("b"))
	assert.Equal(t, 2, out.Value("c"))
}

func TestMerge_ListDuplicatesKept(t *testing.T) {
	out := Merge(mustDecode(t, "l: [x, y]\n"), mustDecode(t, "l: [y, x]\n"))
	assert.Equal(t, []any{"x", "y", "y", "x"}, out.Value("l"))
}

func TestMerge_NestedMappingsRecurse(t *testing.T) {
	base := mustDecode(t, "general:\n  css: a.css\n  spacing: 2pt\n")
	over := mustDecode(t, "general:\n  spacing: 4pt\n  header: h.html\n")

	g := Merge(base, over).Value("general").(*Map)
	assert.Equal(t, []string{"css", "spacing", "header"}, Keys(g))
	assert.Equal(t, "a.css", g.Value("css"))
	assert.Equal(t, "4pt", g.Value("spacing"))
}

func TestMerge_TypeMismatchOverrideWins(t *testing.T) {
	base := mustDecode(t, "x: [1, 2]\ny: {a: 1}\nz: 5\n")
	over := mustDecode(t, "x: scalar\ny: [1]\nz: {k: v}\n")
	out := Merge(base, over)

	assert.Equal(t, "scalar", out.Value("x"))
	assert.Equal(t, []any{1}, out.Value("y"))
	assert.Equal(t, []string{"k"}, Keys(out.Value("z").(*Map)))
}

func TestMerge_IgnoreBareKey(t *testing.T) {
	base := mustDecode(t, "x: 1\nkeep: a\n")
	over := mustDecode(t, "x: 2\nonly: b\n")
	out := Merge(base, over, "x")

	_, present := out.Get("x")
	assert.False(t, present)
	assert.Equal(t, []string{"keep", "only"}, Keys(out))

	out = Merge(NewMap(), mustDecode(t, "x: 3\n"), "x")
	_, present = out.Get("x")
	assert.False(t, present, "ignored key present on one side only must be dropped too")
}

func TestMerge_IgnoreDottedKey(t *testing.T) {
	base := mustDecode(t, "markdown:\n  extensions: [smarty]\n  default_mode: auto\n")
	over := mustDecode(t, "markdown:\n  extensions: [tables]\n")
	md := Merge(base, over, "markdown.extensions").Value("markdown").(*Map)

	_, present := md.Get("extensions")
	assert.False(t, present)
	assert.Equal(t, "auto", md.Value("default_mode"))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	base := mustDecode(t, "l: [1]\nm: {a: 1}\n")
	over := mustDecode(t, "l: [2]\nm: {b: 2}\n")

	out := Merge(base, over)
	out.Value("m").(*Map).Set("c", 3)
	out.Set("l", "replaced")

	assert.Equal(t, []any{1}, base.Value("l"))
	assert.Equal(t, []string{"a"}, Keys(base.Value("m").(*Map)))
	assert.Equal(t, []any{2}, over.Value("l"))
	assert.Equal(t, []string{"b"}, Keys(over.Value("m").(*Map)))
}

func TestMerge_NilInputs(t *testing.T) {
	out := Merge(nil, mustDecode(t, "a: 1\n"))
	assert.Equal(t, 1, out.Value("a"))
	assert.Equal(t, 0, Merge(nil, nil).Len())
}
