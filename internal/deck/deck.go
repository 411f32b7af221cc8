// Package deck turns a resolved definition into a deck model and keeps it
// current as the files behind it change.
package deck

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cast"

	"github.com/starford/deckhand/internal/document"
	"github.com/starford/deckhand/internal/source"
)

// Aux names an auxiliary file reference.
type Aux string

const (
	AuxStylesheet Aux = "stylesheet"
	AuxHeader     Aux = "header"
	AuxTemplate   Aux = "template"
)

// Top-level keys of a definition document.
const (
	KeyTitle   = "title"
	KeyGeneral = "general"
	KeyDefault = "default"
	KeyCards   = "cards"
)

// State is one committed resolution of a deck. It is never modified after
// commit; a later successful pass replaces it as a whole.
type State struct {
	Revision   int
	ResolvedAt time.Time

	Root      *source.File
	Hierarchy []*source.File // ancestors, nearest first
	Aux       map[Aux]*source.File
	// Absent lists default auxiliary paths that did not exist. Creating one
	// makes the deck stale.
	Absent []string

	Title    string
	General  General
	Output   string
	Entries  []*Entry
	Index    map[string]*Entry
	Warnings []string
}

// Entry returns the entry with the given identifier.
func (s *State) Entry(id string) (*Entry, bool) {
	e, ok := s.Index[id]
	return e, ok
}

// Renderable returns the entries with at least one copy, in order.
func (s *State) Renderable() []*Entry {
	out := make([]*Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if !e.Skip() {
			out = append(out, e)
		}
	}
	return out
}

// AuxPath returns the resolved path of an auxiliary reference, or "".
func (s *State) AuxPath(kind Aux) string {
	if f, ok := s.Aux[kind]; ok {
		return f.Path()
	}
	return ""
}

// Option configures a Deck.
type Option func(*Deck)

// WithLogger sets the logger used for entry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deck) {
		d.logger = logger
	}
}

// WithLoader shares a document loader (and its cache) between decks.
func WithLoader(loader *document.Loader) Option {
	return func(d *Deck) {
		d.loader = loader
	}
}

// Deck is a resolved deck definition bound to its root file. Resolve and
// Sync are serialized per deck; State may be read concurrently.
type Deck struct {
	root     *source.File
	loader   *document.Loader
	resolver *document.Resolver
	logger   *slog.Logger

	mu    sync.Mutex
	state atomic.Pointer[State]
	// failed is set while the most recent pass failed.
	failed atomic.Pointer[failure]
}

// failure is the error of a failed pass plus the files it names. Creating or
// editing one of them may fix the deck.
type failure struct {
	err   error
	paths []string
}

func newFailure(err error) *failure {
	f := &failure{err: err}
	var dep *document.DependencyError
	if errors.As(err, &dep) {
		f.paths = append(f.paths, dep.Path)
		f.paths = append(f.paths, dep.Chain...)
	}
	var def *document.DefinitionError
	if errors.As(err, &def) && def.Path != "" {
		f.paths = append(f.paths, def.Path)
	}
	return f
}

// New binds a deck to the definition at path without resolving it.
func New(path string, opts ...Option) (*Deck, error) {
	root, err := source.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, document.Missing(path, err)
		}
		return nil, fmt.Errorf("deck: %w", err)
	}
	d := &Deck{root: root}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.loader == nil {
		if d.loader, err = document.NewLoader(0); err != nil {
			return nil, err
		}
	}
	d.resolver = document.NewResolver(d.loader)
	return d, nil
}

// Open is New followed by a first Resolve.
func Open(path string, opts ...Option) (*Deck, error) {
	d, err := New(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Resolve(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the absolute path of the root definition.
func (d *Deck) Path() string { return d.root.Path() }

// State returns the last committed state, or nil if no pass succeeded yet.
func (d *Deck) State() *State { return d.state.Load() }

// Resolve runs a full resolution pass. On error the committed state is
// left exactly as it was.
func (d *Deck) Resolve() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolveLocked()
}

func (d *Deck) resolveLocked() error {
	next, err := d.stage()
	if err != nil {
		d.failed.Store(newFailure(err))
		return err
	}
	next.Revision = 1
	if prev := d.state.Load(); prev != nil {
		next.Revision = prev.Revision + 1
	}
	d.state.Store(next)
	d.failed.Store(nil)
	return nil
}

// Err returns the error of the most recent pass, or nil if it succeeded.
func (d *Deck) Err() error {
	if f := d.failed.Load(); f != nil {
		return f.err
	}
	return nil
}

// stage builds a complete State without touching the committed one.
func (d *Deck) stage() (*State, error) {
	path := d.root.Path()
	merged, layers, err := d.resolver.ResolveLayers(path)
	if err != nil {
		return nil, err
	}

	st := &State{
		ResolvedAt: time.Now(),
		Root:       d.root,
		Aux:        make(map[Aux]*source.File, 3),
	}

	for _, l := range layers {
		f, err := source.Track(l.Path, l.ModTime)
		if err != nil {
			return nil, err
		}
		st.Hierarchy = append(st.Hierarchy, f)
	}

	cards, ok := merged.Get(KeyCards)
	if !ok {
		return nil, document.Invalid(path, "cards section is required")
	}

	if v, ok := merged.Get(KeyTitle); ok && v != nil {
		if st.Title, err = cast.ToStringE(v); err != nil {
			return nil, document.Invalid(path, "title must be a string")
		}
	}

	general, err := parseGeneral(merged.Value(KeyGeneral), d.root.Base())
	if err == nil {
		err = general.Validate()
	}
	if err != nil {
		return nil, &document.DefinitionError{Path: path, Err: err}
	}
	st.General = general

	var defaults *document.Map
	switch v := merged.Value(KeyDefault).(type) {
	case nil:
	case *document.Map:
		defaults = v
	default:
		return nil, document.Invalid(path, "default must be a mapping")
	}

	st.Entries, st.Index, st.Warnings, err = Normalize(cards, defaults, d.logger.With(slog.String("deck", path)))
	if err != nil {
		return nil, &document.DefinitionError{Path: path, Err: err}
	}

	if err := d.resolveAux(st); err != nil {
		return nil, err
	}
	st.Output = d.relative(general.Output)
	return st, nil
}

// resolveAux resolves stylesheet, header and template relative to the root
// directory. A declared reference that does not exist fails the pass; an
// omitted optional one is recorded as absent. The template is required.
func (d *Deck) resolveAux(st *State) error {
	stem := st.General.Name

	optional := func(kind Aux, declared, fallback string) error {
		if declared != "" {
			p := d.relative(declared)
			f, err := source.Open(p)
			if err != nil {
				return document.Missing(p, err)
			}
			st.Aux[kind] = f
			return nil
		}
		p := d.relative(fallback)
		f, err := source.Open(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				st.Absent = append(st.Absent, p)
				return nil
			}
			return fmt.Errorf("deck: %s: %w", kind, err)
		}
		st.Aux[kind] = f
		return nil
	}

	if err := optional(AuxStylesheet, st.General.Stylesheet, stem+".css"); err != nil {
		return err
	}
	if err := optional(AuxHeader, st.General.Header, stem+".html.header"); err != nil {
		return err
	}

	ref := st.General.Template
	if ref == "" {
		ref = stem
	}
	base := d.relative(ref)
	p, ok := source.Find(base, source.TemplateExtensions...)
	if !ok {
		return document.Missing(base, fmt.Errorf("no template found (tried %v)", source.TemplateExtensions))
	}
	f, err := source.Open(p)
	if err != nil {
		return document.Missing(p, err)
	}
	st.Aux[AuxTemplate] = f
	return nil
}

func (d *Deck) relative(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(d.root.Dir(), p)
}

// Dependencies returns every path whose change can affect the deck: the
// root, its ancestors, resolved auxiliary files and absent defaults. After a
// failed pass it also lists the files that pass named.
func (d *Deck) Dependencies() []string {
	out := []string{d.root.Path()}
	if st := d.state.Load(); st != nil {
		for _, f := range st.Hierarchy {
			out = append(out, f.Path())
		}
		for _, kind := range []Aux{AuxStylesheet, AuxHeader, AuxTemplate} {
			if f, ok := st.Aux[kind]; ok {
				out = append(out, f.Path())
			}
		}
		out = append(out, st.Absent...)
	}
	if f := d.failed.Load(); f != nil {
		for _, p := range f.paths {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// IsDependency reports whether a change to path concerns this deck. Until
// the deck resolves once, anything next to the root file counts. While the
// last pass is failed, anything next to a file that pass named counts too,
// since the fix may be a file that does not exist yet.
func (d *Deck) IsDependency(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if d.state.Load() == nil && filepath.Dir(abs) == d.root.Dir() {
		return true
	}
	if f := d.failed.Load(); f != nil {
		for _, p := range f.paths {
			if filepath.Dir(abs) == filepath.Dir(p) {
				return true
			}
		}
	}
	return slices.Contains(d.Dependencies(), abs)
}
