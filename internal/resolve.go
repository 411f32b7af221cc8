package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/deckhand/internal/deck"
	"github.com/starford/deckhand/internal/deckservice"
	"github.com/starford/deckhand/internal/document"
	"github.com/starford/deckhand/internal/ledger"
	"github.com/starford/deckhand/internal/mcpserver"
	"github.com/starford/deckhand/internal/watch"
)

// Resolve resolves every path once, in parallel, and returns the detail
// views in argument order. After the first failure, or once ctx is done,
// paths not yet started are skipped.
func Resolve(ctx context.Context, logger *slog.Logger, paths ...string) ([]*deckservice.DeckDetail, error) {
	loader, err := document.NewLoader(document.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	out := make([]*deckservice.DeckDetail, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := deck.Open(p, deck.WithLoader(loader), deck.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			st := d.State()
			base := filepath.Base(p)
			sum := deckservice.DeckSummary{
				Name:     strings.TrimSuffix(base, filepath.Ext(base)),
				Path:     d.Path(),
				Title:    st.Title,
				Revision: st.Revision,
				Entries:  len(st.Entries),
				Resolved: true,
			}
			out[i] = deckservice.Detail(sum, st)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RunMCP serves the deck tools over MCP on stdio. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := NewLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	db, err := ledger.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer db.Close()

	svc, err := deckservice.New(
		deckservice.WithLedger(db),
		deckservice.WithLogger(logger),
		deckservice.WithCacheSize(cfg.Decks.CacheSize),
	)
	if err != nil {
		return fmt.Errorf("init deck service: %w", err)
	}
	for _, p := range append(append([]string(nil), cfg.Decks.Paths...), app.decks...) {
		if _, err := svc.Add(ctx, p); err != nil {
			logger.Warn("initial resolve failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}

	if cfg.Watch.Enabled {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := watch.Watch(wctx, svc, cfg.Watch.Debounce, logger); err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc).ServeStdio()
}
