package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of parsed documents a Loader keeps.
const DefaultCacheSize = 256

type cacheKey struct {
	path  string
	mtime int64
	size  int64
}

// Loader reads and decodes definition files. Parsed documents are cached by
// path, mtime and size, so an unchanged ancestor shared by several decks is
// parsed once. Loader is safe for concurrent use.
type Loader struct {
	cache *lru.Cache[cacheKey, *Map]
}

// NewLoader creates a Loader caching up to size documents.
func NewLoader(size int) (*Loader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, *Map](size)
	if err != nil {
		return nil, fmt.Errorf("document: init cache: %w", err)
	}
	return &Loader{cache: cache}, nil
}

// Load returns the raw document at path. The caller owns the returned Map.
func (l *Loader) Load(path string) (*Map, error) {
	m, _, err := l.load(path)
	return m, err
}

// load also returns the file info taken before reading, so a write racing
// the read leaves the file newer than the returned info.
func (l *Loader) load(path string) (*Map, fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, Missing(path, nil)
		}
		return nil, nil, fmt.Errorf("document: stat %s: %w", path, err)
	}
	key := cacheKey{path: path, mtime: info.ModTime().UnixNano(), size: info.Size()}
	if m, ok := l.cache.Get(key); ok {
		return Clone(m), info, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, Missing(path, nil)
		}
		return nil, nil, fmt.Errorf("document: read %s: %w", path, err)
	}
	m, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, nil, &DefinitionError{Path: path, Err: err}
	}
	l.cache.Add(key, m)
	return Clone(m), info, nil
}

// Len returns the number of cached documents.
func (l *Loader) Len() int {
	return l.cache.Len()
}
