package deck

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/deckhand/internal/apperr"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// touch moves a file's mtime forward so the change is visible regardless of
// filesystem timestamp granularity.
func touch(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	mt := info.ModTime().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, mt, mt))
}

const basicDeck = `title: Spells
general:
  css: deck.css
default:
  copies: 2
cards:
  fireball: {cost: 3}
  shield: {copies: 0}
`

func basicFixture(t *testing.T) (dir, root string) {
	t.Helper()
	dir = t.TempDir()
	root = write(t, dir, "deck.yaml", basicDeck)
	write(t, dir, "deck.css", "body {}")
	write(t, dir, "deck.html.jinja2", "{{ card.name }}")
	return dir, root
}

func TestOpen_ResolvesState(t *testing.T) {
	dir, root := basicFixture(t)

	d, err := Open(root)
	require.NoError(t, err)
	st := d.State()
	require.NotNil(t, st)

	assert.Equal(t, 1, st.Revision)
	assert.Equal(t, "Spells", st.Title)
	assert.Equal(t, "deck", st.General.Name)
	assert.Equal(t, filepath.Join(dir, "deck.html"), st.Output)
	assert.Equal(t, filepath.Join(dir, "deck.css"), st.AuxPath(AuxStylesheet))
	assert.Equal(t, filepath.Join(dir, "deck.html.jinja2"), st.AuxPath(AuxTemplate))
	assert.Empty(t, st.AuxPath(AuxHeader))
	assert.Equal(t, []string{filepath.Join(dir, "deck.html.header")}, st.Absent)
	assert.Empty(t, st.Hierarchy)

	assert.Equal(t, []string{"fireball", "shield"}, ids(st.Entries))
	assert.Equal(t, 2, st.Index["fireball"].Copies)
	assert.Equal(t, []string{"fireball"}, ids(st.Renderable()))
	e, ok := st.Entry("shield")
	require.True(t, ok)
	assert.True(t, e.Skip())
}

func TestOpen_GeneralOptions(t *testing.T) {
	dir := t.TempDir()
	root := write(t, dir, "deck.yaml", `general:
  name: tarot
  styles: look.css
  dest: out/tarot.html
  icon_dir: icons
  spacing: 3
  embed_css: "true"
  md:
    extensions: [tables]
    default_mode: inline
cards: [{}]
`)
	write(t, dir, "look.css", "")
	write(t, dir, "tarot.tmpl", "")

	d, err := Open(root)
	require.NoError(t, err)
	g := d.State().General

	assert.Equal(t, "tarot", g.Name)
	assert.Equal(t, "look.css", g.Stylesheet)
	assert.Equal(t, "icons", g.IconPath)
	assert.Equal(t, "3", g.CardSpacing)
	assert.True(t, g.EmbedStyles)
	assert.Equal(t, []string{"tables"}, g.Markdown.Extensions)
	assert.Equal(t, MarkdownInline, g.Markdown.DefaultMode)
	assert.Equal(t, filepath.Join(dir, "out", "tarot.html"), d.State().Output)
	assert.Equal(t, filepath.Join(dir, "tarot.tmpl"), d.State().AuxPath(AuxTemplate))
}

func TestOpen_Errors(t *testing.T) {
	t.Run("missing template", func(t *testing.T) {
		dir := t.TempDir()
		root := write(t, dir, "deck.yaml", "cards: {a: {}}\n")
		_, err := Open(root)
		require.ErrorIs(t, err, apperr.ErrMissingDependency)
	})
	t.Run("declared stylesheet missing", func(t *testing.T) {
		dir := t.TempDir()
		root := write(t, dir, "deck.yaml", "general: {css: nope.css}\ncards: {a: {}}\n")
		write(t, dir, "deck.html", "")
		_, err := Open(root)
		require.ErrorIs(t, err, apperr.ErrMissingDependency)
	})
	t.Run("no cards", func(t *testing.T) {
		dir := t.TempDir()
		root := write(t, dir, "deck.yaml", "title: empty\n")
		write(t, dir, "deck.html", "")
		_, err := Open(root)
		require.ErrorIs(t, err, apperr.ErrInvalidDefinition)
	})
	t.Run("bad markdown mode", func(t *testing.T) {
		dir := t.TempDir()
		root := write(t, dir, "deck.yaml", "general: {markdown: {default_mode: loud}}\ncards: {a: {}}\n")
		write(t, dir, "deck.html", "")
		_, err := Open(root)
		require.ErrorIs(t, err, apperr.ErrInvalidDefinition)
	})
	t.Run("cyclic", func(t *testing.T) {
		dir := t.TempDir()
		root := write(t, dir, "deck.yaml", "extends: deck.yaml\ncards: {}\n")
		_, err := Open(root)
		require.ErrorIs(t, err, apperr.ErrCyclicDependency)
	})
	t.Run("missing root", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "deck.yaml"))
		require.ErrorIs(t, err, apperr.ErrMissingDependency)
	})
}

func TestOpen_HierarchyTracked(t *testing.T) {
	dir := t.TempDir()
	base := write(t, dir, "shared/base.yaml", "default: {copies: 4}\ncards: {common: {}}\n")
	root := write(t, dir, "deck.yaml", "extends: shared/base.yaml\ncards: {special: {copies: 1}}\n")
	write(t, dir, "deck.html", "")

	d, err := Open(root)
	require.NoError(t, err)
	st := d.State()
	require.Len(t, st.Hierarchy, 1)
	assert.Equal(t, base, st.Hierarchy[0].Path())
	assert.Equal(t, []string{"common", "special"}, ids(st.Entries))
	assert.Equal(t, 4, st.Index["common"].Copies)
	assert.Equal(t, 1, st.Index["special"].Copies)

	assert.True(t, d.IsDependency(base))
	assert.True(t, d.IsDependency(root))
	assert.True(t, d.IsDependency(filepath.Join(dir, "deck.css")), "absent default stylesheet is watched")
	assert.False(t, d.IsDependency(filepath.Join(dir, "deck.html.out")))
}

func TestSync_RootChangeReresolvesOnce(t *testing.T) {
	_, root := basicFixture(t)
	d, err := Open(root)
	require.NoError(t, err)

	write(t, filepath.Dir(root), "deck.yaml", basicDeck+"  extra: {}\n")
	touch(t, root)

	out, err := d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, out)
	assert.Equal(t, 2, d.State().Revision)
	assert.Contains(t, d.State().Index, "extra")

	out, err = d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, out)
	assert.Equal(t, 2, d.State().Revision)
}

func TestSync_AncestorChangeReresolves(t *testing.T) {
	dir := t.TempDir()
	base := write(t, dir, "base.yaml", "cards: {a: {}}\n")
	root := write(t, dir, "deck.yaml", "extends: base.yaml\n")
	write(t, dir, "deck.html", "")
	d, err := Open(root)
	require.NoError(t, err)

	write(t, dir, "base.yaml", "cards: {a: {}, b: {}}\n")
	touch(t, base)

	out, err := d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, out)
	assert.Equal(t, []string{"a", "b"}, ids(d.State().Entries))
}

func TestSync_StylesheetChangeRerendersOnly(t *testing.T) {
	dir, root := basicFixture(t)
	d, err := Open(root)
	require.NoError(t, err)
	before := d.State()

	touch(t, filepath.Join(dir, "deck.css"))

	out, err := d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeRerender, out)
	assert.True(t, out.NeedsRender())
	assert.Same(t, before, d.State())

	out, err = d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, out)
	assert.False(t, out.NeedsRender())
}

func TestSync_NoChange(t *testing.T) {
	_, root := basicFixture(t)
	d, err := Open(root)
	require.NoError(t, err)
	before := d.State()

	out, err := d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, out)
	assert.Same(t, before, d.State())
}

func TestSync_AbsentDefaultCreated(t *testing.T) {
	dir, root := basicFixture(t)
	d, err := Open(root)
	require.NoError(t, err)
	require.Empty(t, d.State().AuxPath(AuxHeader))

	write(t, dir, "deck.html.header", "<meta>")

	out, err := d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, out)
	assert.Equal(t, filepath.Join(dir, "deck.html.header"), d.State().AuxPath(AuxHeader))
	assert.Empty(t, d.State().Absent)
}

func TestSync_FailedPassKeepsState(t *testing.T) {
	dir, root := basicFixture(t)
	d, err := Open(root)
	require.NoError(t, err)
	before := d.State()
	entries := append([]*Entry(nil), before.Entries...)
	deps := d.Dependencies()

	require.NoError(t, os.Remove(filepath.Join(dir, "deck.html.jinja2")))
	write(t, dir, "deck.yaml", basicDeck+"  extra: {}\n")
	touch(t, root)

	out, err := d.Sync()
	require.ErrorIs(t, err, apperr.ErrMissingDependency)
	assert.Equal(t, OutcomeFailed, out)

	after := d.State()
	assert.Same(t, before, after)
	assert.Equal(t, entries, after.Entries)
	assert.Subset(t, d.Dependencies(), deps)
	assert.Equal(t, 1, after.Revision)
	assert.NotContains(t, after.Index, "extra")
	assert.ErrorIs(t, d.Err(), apperr.ErrMissingDependency)

	// Recreating the template is enough; the root is not touched again.
	write(t, dir, "deck.html.jinja2", "")
	assert.True(t, d.IsDependency(filepath.Join(dir, "deck.html.jinja2")))
	out, err = d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, out)
	assert.Equal(t, 2, d.State().Revision)
	assert.Contains(t, d.State().Index, "extra")
	assert.NoError(t, d.Err())
}

func TestSync_RecoversWhenDeclaredTemplateCreated(t *testing.T) {
	dir, root := basicFixture(t)
	d, err := Open(root)
	require.NoError(t, err)

	write(t, dir, "deck.yaml", "general:\n  template: other.tmpl\ncards: {a: {}}\n")
	touch(t, root)
	out, err := d.Sync()
	require.ErrorIs(t, err, apperr.ErrMissingDependency)
	assert.Equal(t, OutcomeFailed, out)

	other := filepath.Join(dir, "other.tmpl")
	assert.True(t, d.IsDependency(other))
	assert.Contains(t, d.Dependencies(), other)

	// Still broken: the pass is retried and fails again.
	out, err = d.Sync()
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, out)
	assert.Equal(t, 1, d.State().Revision)

	write(t, dir, "other.tmpl", "{{ card }}")
	out, err = d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, out)
	assert.Equal(t, 2, d.State().Revision)
	assert.Equal(t, other, d.State().AuxPath(AuxTemplate))

	out, err = d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, out)
	assert.NoError(t, d.Err())
}

func TestSync_RecoversWhenParentCreated(t *testing.T) {
	dir, root := basicFixture(t)
	d, err := Open(root)
	require.NoError(t, err)

	write(t, dir, "deck.yaml", "extends: parent.yaml\ncards: {a: {}}\n")
	touch(t, root)
	out, err := d.Sync()
	require.ErrorIs(t, err, apperr.ErrMissingDependency)
	assert.Equal(t, OutcomeFailed, out)

	parent := filepath.Join(dir, "parent.yaml")
	assert.True(t, d.IsDependency(parent))

	write(t, dir, "parent.yaml", "title: Parent\ncards: {b: {}}\n")
	out, err = d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, out)

	st := d.State()
	assert.Equal(t, "Parent", st.Title)
	require.Len(t, st.Hierarchy, 1)
	assert.Equal(t, parent, st.Hierarchy[0].Path())
	assert.Contains(t, st.Index, "b")
	assert.Contains(t, st.Index, "a")
}

func TestSync_BeforeFirstResolution(t *testing.T) {
	dir := t.TempDir()
	root := write(t, dir, "deck.yaml", "cards: {a: {}}\n")
	d, err := New(root)
	require.NoError(t, err)
	assert.Nil(t, d.State())
	assert.True(t, d.IsDependency(filepath.Join(dir, "deck.html")))

	out, err := d.Sync()
	require.ErrorIs(t, err, apperr.ErrMissingDependency)
	assert.Equal(t, OutcomeFailed, out)

	write(t, dir, "deck.html", "")
	out, err = d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, out)
	assert.Equal(t, 1, d.State().Revision)
}

func TestSync_VanishedStylesheetEscalates(t *testing.T) {
	dir := t.TempDir()
	root := write(t, dir, "deck.yaml", "cards: {a: {}}\n")
	write(t, dir, "deck.css", "")
	write(t, dir, "deck.html", "")
	d, err := Open(root)
	require.NoError(t, err)
	require.NotEmpty(t, d.State().AuxPath(AuxStylesheet))

	require.NoError(t, os.Remove(filepath.Join(dir, "deck.css")))

	out, err := d.Sync()
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, out)
	assert.Empty(t, d.State().AuxPath(AuxStylesheet))
}
