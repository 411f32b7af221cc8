package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/starford/deckhand/internal/apperr"
)

// KeyExtends names the parent document of a definition.
const KeyExtends = "extends"

// Resolver walks "extends" chains and flattens them into one document.
type Resolver struct {
	loader *Loader
}

// NewResolver returns a Resolver reading documents through loader.
func NewResolver(loader *Loader) *Resolver {
	return &Resolver{loader: loader}
}

// Layer is one ancestor document and the modification time observed when
// it was read.
type Layer struct {
	Path    string
	ModTime time.Time
}

// Resolve loads the document at path and merges it over its ancestors. The
// most distant ancestor is the bottom layer; each descendant overrides it.
// The returned ancestor paths are absolute and ordered nearest first.
func (r *Resolver) Resolve(path string) (*Map, []string, error) {
	m, layers, err := r.ResolveLayers(path)
	if err != nil {
		return nil, nil, err
	}
	paths := make([]string, len(layers))
	for i, l := range layers {
		paths[i] = l.Path
	}
	return m, paths, nil
}

// ResolveLayers is Resolve returning each ancestor with the mtime it was
// read at.
func (r *Resolver) ResolveLayers(path string) (*Map, []Layer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("document: resolve %s: %w", path, err)
	}
	m, layers, err := r.resolve(filepath.Clean(abs), nil)
	if err != nil {
		return nil, nil, err
	}
	return m, layers[1:], nil
}

type link struct {
	path string
	info fs.FileInfo
}

func chainPaths(chain []link, last string) []string {
	out := make([]string, 0, len(chain)+1)
	for _, l := range chain {
		out = append(out, l.path)
	}
	return append(out, last)
}

// resolve handles one link of the chain. children holds every file visited
// below this one in the current pass. The returned layers start with path.
func (r *Resolver) resolve(path string, children []link) (*Map, []Layer, error) {
	raw, info, err := r.loader.load(path)
	if err != nil {
		return nil, nil, err
	}
	self := Layer{Path: path, ModTime: info.ModTime()}

	ref, ok := raw.Get(KeyExtends)
	if !ok || ref == nil {
		return raw, []Layer{self}, nil
	}
	name, ok := ref.(string)
	if !ok || name == "" {
		return nil, nil, Invalid(path, "extends must be a non-empty string")
	}

	parent := name
	if !filepath.IsAbs(parent) {
		parent = filepath.Join(filepath.Dir(path), parent)
	}
	parent = filepath.Clean(parent)

	chain := append(slices.Clone(children), link{path: path, info: info})
	pinfo, err := os.Stat(parent)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, &DependencyError{Kind: apperr.ErrMissingDependency, Path: parent, Chain: chainPaths(chain, parent)}
		}
		return nil, nil, fmt.Errorf("document: stat %s: %w", parent, err)
	}
	// Symlinks and bind mounts give one file several paths.
	if slices.ContainsFunc(chain, func(l link) bool { return l.path == parent || os.SameFile(l.info, pinfo) }) {
		return nil, nil, &DependencyError{
			Kind:  apperr.ErrCyclicDependency,
			Path:  parent,
			Chain: chainPaths(chain, parent),
		}
	}

	base, ancestors, err := r.resolve(parent, chain)
	if err != nil {
		return nil, nil, err
	}
	return Merge(base, raw, KeyExtends), append([]Layer{self}, ancestors...), nil
}
