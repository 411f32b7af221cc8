// Package deckservice keeps a set of decks resolved and hands stale ones to
// the renderer.
package deckservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/checksum"
	"github.com/starford/deckhand/internal/deck"
	"github.com/starford/deckhand/internal/document"
	"github.com/starford/deckhand/internal/ledger"
	"github.com/starford/deckhand/internal/sse"
)

// Renderer turns a resolved deck into its output artifact.
type Renderer interface {
	Render(ctx context.Context, name string, st *deck.State) error
}

// Publisher receives deck change notifications. *sse.Broker implements it.
type Publisher interface {
	PublishDeckEvent(kind, deck string, data map[string]any)
}

// LogRenderer only logs the hand-off. It is the default when no renderer is
// configured.
type LogRenderer struct {
	Logger *slog.Logger
}

// Render implements Renderer.
func (r LogRenderer) Render(_ context.Context, name string, st *deck.State) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("render: deck ready",
		slog.String("deck", name),
		slog.Int("revision", st.Revision),
		slog.Int("entries", len(st.Entries)),
		slog.Int("renderable", len(st.Renderable())),
		slog.String("template", st.AuxPath(deck.AuxTemplate)),
		slog.String("output", st.Output))
	return nil
}

// Option configures a Service.
type Option func(*Service)

// WithLedger records every pass in store.
func WithLedger(store ledger.Store) Option {
	return func(s *Service) { s.ledger = store }
}

// WithPublisher sends deck events to pub.
func WithPublisher(pub Publisher) Option {
	return func(s *Service) { s.pub = pub }
}

// WithRenderer sets the render collaborator.
func WithRenderer(r Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCacheSize sets the size of the shared document cache.
func WithCacheSize(n int) Option {
	return func(s *Service) { s.cacheSize = n }
}

type entry struct {
	deck    *deck.Deck
	lastErr error
}

// Service holds decks by name. Passes on one deck are serialized by the deck
// itself; different decks never share mutable state apart from the document
// cache, which is safe for concurrent use.
type Service struct {
	ledger    ledger.Store
	pub       Publisher
	renderer  Renderer
	logger    *slog.Logger
	cacheSize int
	loader    *document.Loader

	mu    sync.RWMutex
	decks map[string]*entry
	order []string
}

// New creates a Service.
func New(opts ...Option) (*Service, error) {
	s := &Service{decks: make(map[string]*entry)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.renderer == nil {
		s.renderer = LogRenderer{Logger: s.logger}
	}
	loader, err := document.NewLoader(s.cacheSize)
	if err != nil {
		return nil, err
	}
	s.loader = loader
	return s, nil
}

// Add registers the deck at path and resolves it. A deck whose first pass
// fails stays registered so a later fix is picked up; the error is returned.
func (s *Service) Add(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("deckservice: resolve %s: %w", path, err)
	}
	d, err := deck.New(abs, deck.WithLoader(s.loader), deck.WithLogger(s.logger))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	for _, e := range s.decks {
		if e.deck.Path() == d.Path() {
			s.mu.Unlock()
			return "", fmt.Errorf("deckservice: %s: %w", abs, apperr.ErrAlreadyExists)
		}
	}
	name := s.uniqueName(nameFor(abs))
	s.decks[name] = &entry{deck: d}
	s.order = append(s.order, name)
	s.mu.Unlock()

	_, err = s.pass(ctx, name, d, func() (deck.Outcome, error) {
		if err := d.Resolve(); err != nil {
			return deck.OutcomeFailed, err
		}
		return deck.OutcomeResolved, nil
	})
	return name, err
}

// nameFor derives a deck name from its root file name.
func nameFor(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func (s *Service) uniqueName(name string) string {
	if _, taken := s.decks[name]; !taken {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if _, taken := s.decks[candidate]; !taken {
			return candidate
		}
	}
}

// Get returns the deck registered under name.
func (s *Service) Get(name string) (*deck.Deck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.decks[name]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return e.deck, nil
}

// Names returns deck names in registration order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Sync runs one sync pass on the named deck.
func (s *Service) Sync(ctx context.Context, name string) (deck.Outcome, error) {
	d, err := s.Get(name)
	if err != nil {
		return deck.OutcomeUnchanged, err
	}
	return s.pass(ctx, name, d, d.Sync)
}

// SyncAll syncs every deck. A failing deck is logged and does not stop the
// others; all failures are returned joined.
func (s *Service) SyncAll(ctx context.Context) error {
	var errs []error
	for _, name := range s.Names() {
		if _, err := s.Sync(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// SyncPath syncs every deck that depends on path.
func (s *Service) SyncPath(ctx context.Context, path string) error {
	var errs []error
	for _, name := range s.Names() {
		d, err := s.Get(name)
		if err != nil || !d.IsDependency(path) {
			continue
		}
		if _, err := s.Sync(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// IsDependency reports whether any deck depends on path.
func (s *Service) IsDependency(path string) bool {
	for _, name := range s.Names() {
		if d, err := s.Get(name); err == nil && d.IsDependency(path) {
			return true
		}
	}
	return false
}

// Dependencies returns the sorted union of every deck's dependencies.
func (s *Service) Dependencies() []string {
	seen := make(map[string]struct{})
	for _, name := range s.Names() {
		d, err := s.Get(name)
		if err != nil {
			continue
		}
		for _, p := range d.Dependencies() {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// LastError returns the error of the deck's most recent failed pass, or nil
// once a later pass succeeded.
func (s *Service) LastError(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.decks[name]; ok {
		return e.lastErr
	}
	return nil
}

// pass runs fn and performs the bookkeeping every pass shares: ledger,
// events, renderer hand-off.
func (s *Service) pass(ctx context.Context, name string, d *deck.Deck, fn func() (deck.Outcome, error)) (deck.Outcome, error) {
	logger := s.logger.With(slog.String("deck", name))
	outcome, err := fn()

	s.mu.Lock()
	if e, ok := s.decks[name]; ok {
		switch {
		case err != nil:
			e.lastErr = err
		case outcome != deck.OutcomeUnchanged:
			e.lastErr = nil
		}
	}
	s.mu.Unlock()

	if outcome == deck.OutcomeUnchanged && err == nil {
		return outcome, nil
	}

	st := d.State()
	s.record(logger, name, d, st, outcome, err)

	if err != nil {
		logger.Error("deck: pass failed", slog.String("error", err.Error()))
		s.publish(sse.KindFailed, name, map[string]any{"error": err.Error()})
		return outcome, err
	}

	logger.Info("deck: pass complete",
		slog.String("outcome", outcome.String()),
		slog.Int("revision", st.Revision))
	if outcome == deck.OutcomeResolved {
		s.publish(sse.KindResolved, name, map[string]any{"revision": st.Revision, "entries": len(st.Entries)})
	}
	if outcome.NeedsRender() {
		if rerr := s.renderer.Render(ctx, name, st); rerr != nil {
			logger.Error("deck: render failed", slog.String("error", rerr.Error()))
			s.publish(sse.KindFailed, name, map[string]any{"error": rerr.Error()})
			return outcome, fmt.Errorf("deckservice: render %s: %w", name, rerr)
		}
		s.publish(sse.KindRender, name, map[string]any{"revision": st.Revision, "output": st.Output})
	}
	return outcome, nil
}

func (s *Service) record(logger *slog.Logger, name string, d *deck.Deck, st *deck.State, outcome deck.Outcome, err error) {
	if s.ledger == nil {
		return
	}
	p := ledger.Pass{Deck: name, Path: d.Path(), Outcome: outcome.String()}
	if err != nil {
		p.Error = err.Error()
	}
	if st != nil {
		p.Revision = st.Revision
		p.Entries = len(st.Entries)
	}
	if sum, cerr := checksum.File(d.Path()); cerr == nil {
		p.Checksum = sum
	}
	if _, lerr := s.ledger.Record(p); lerr != nil {
		logger.Warn("deck: ledger record failed", slog.String("error", lerr.Error()))
	}
}

func (s *Service) publish(kind, name string, data map[string]any) {
	if s.pub != nil {
		s.pub.PublishDeckEvent(kind, name, data)
	}
}

// History returns recorded passes for name, newest first.
func (s *Service) History(name string, limit int) ([]ledger.Pass, error) {
	if _, err := s.Get(name); err != nil {
		return nil, err
	}
	if s.ledger == nil {
		return nil, nil
	}
	return s.ledger.History(name, limit)
}
