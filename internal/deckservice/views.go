package deckservice

import (
	"time"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/deck"
)

// DeckSummary is a lightweight item in a deck listing.
type DeckSummary struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Title     string `json:"title,omitempty"`
	Revision  int    `json:"revision"`
	Entries   int    `json:"entries"`
	Resolved  bool   `json:"resolved"`
	LastError string `json:"last_error,omitempty"`
}

// TrackedFile describes one dependency and its observed mtime.
type TrackedFile struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}

// DeckDetail is the full representation of a resolved deck.
type DeckDetail struct {
	DeckSummary
	ResolvedAt  time.Time              `json:"resolved_at"`
	General     deck.General           `json:"general"`
	Output      string                 `json:"output"`
	Hierarchy   []TrackedFile          `json:"hierarchy"`
	Auxiliaries map[string]TrackedFile `json:"auxiliaries"`
	Absent      []string               `json:"absent,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
	Cards       []*deck.Entry          `json:"cards"`
}

// List returns a summary of every deck in registration order.
func (s *Service) List() []DeckSummary {
	names := s.Names()
	out := make([]DeckSummary, 0, len(names))
	for _, name := range names {
		d, err := s.Get(name)
		if err != nil {
			continue
		}
		out = append(out, s.summary(name, d))
	}
	return out
}

// Describe returns the detail view of a deck. A deck that never resolved
// yields apperr.ErrNotFound.
func (s *Service) Describe(name string) (*DeckDetail, error) {
	d, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	st := d.State()
	if st == nil {
		return nil, apperr.ErrNotFound
	}
	return Detail(s.summary(name, d), st), nil
}

// Entry returns one card of a resolved deck.
func (s *Service) Entry(name, id string) (*deck.Entry, error) {
	d, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	st := d.State()
	if st == nil {
		return nil, apperr.ErrNotFound
	}
	e, ok := st.Entry(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return e, nil
}

func (s *Service) summary(name string, d *deck.Deck) DeckSummary {
	sum := DeckSummary{Name: name, Path: d.Path()}
	if st := d.State(); st != nil {
		sum.Title = st.Title
		sum.Revision = st.Revision
		sum.Entries = len(st.Entries)
		sum.Resolved = true
	}
	if err := s.LastError(name); err != nil {
		sum.LastError = err.Error()
	}
	return sum
}

// Detail builds the detail view of a committed state.
func Detail(sum DeckSummary, st *deck.State) *DeckDetail {
	det := &DeckDetail{
		DeckSummary: sum,
		ResolvedAt:  st.ResolvedAt,
		General:     st.General,
		Output:      st.Output,
		Hierarchy:   make([]TrackedFile, 0, len(st.Hierarchy)),
		Auxiliaries: make(map[string]TrackedFile, len(st.Aux)),
		Absent:      st.Absent,
		Warnings:    st.Warnings,
		Cards:       st.Entries,
	}
	for _, f := range st.Hierarchy {
		det.Hierarchy = append(det.Hierarchy, TrackedFile{Path: f.Path(), ModTime: f.ModTime()})
	}
	for kind, f := range st.Aux {
		det.Auxiliaries[string(kind)] = TrackedFile{Path: f.Path(), ModTime: f.ModTime()}
	}
	return det
}
