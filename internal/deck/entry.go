package deck

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cast"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/document"
)

// Field names the normalizer writes into every entry.
const (
	FieldCopies = "copies"
	FieldID     = "_id"
)

// DefaultCopies is used when neither the entry nor the "default" section
// sets copies.
const DefaultCopies = 1

// Entry is one card: its identifier, how many copies to render, and the
// template-visible fields.
type Entry struct {
	ID     string        `json:"id"`
	Copies int           `json:"copies"`
	Fields *document.Map `json:"fields"`
}

// Skip reports whether the entry renders zero copies. Skipped entries stay
// in the deck so ordering and identity survive re-resolution.
func (e *Entry) Skip() bool {
	return e.Copies == 0
}

// Normalize turns the "cards" section into ordered entries. cards is either
// a mapping (keys become identifiers) or a list (identifiers are card1,
// card2, ...). defaults is the "default" section and may be nil. Bad copies
// values are logged and replaced; structural problems are errors.
func Normalize(cards any, defaults *document.Map, logger *slog.Logger) ([]*Entry, map[string]*Entry, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var warnings []string
	warn := func(id string, v any, err error) {
		msg := fmt.Sprintf("%s: copies %v: %v", id, v, err)
		warnings = append(warnings, msg)
		logger.Warn("deck: invalid copies, using default",
			slog.String("entry", id),
			slog.Any("value", v),
			slog.String("error", err.Error()))
	}

	defaultCopies := DefaultCopies
	if defaults != nil {
		if v, ok := defaults.Get(FieldCopies); ok {
			n, err := sanitizeCopies(v)
			if err != nil {
				warn("default", v, err)
			} else {
				defaultCopies = n
			}
		}
	}

	type item struct {
		id    string
		value any
	}
	var items []item
	switch c := cards.(type) {
	case *document.Map:
		for p := c.Oldest(); p != nil; p = p.Next() {
			items = append(items, item{id: p.Key, value: p.Value})
		}
	case []any:
		for i, v := range c {
			items = append(items, item{id: fmt.Sprintf("card%d", i+1), value: v})
		}
	case nil:
		return nil, nil, nil, fmt.Errorf("cards section is required")
	default:
		return nil, nil, nil, fmt.Errorf("cards must be a mapping or a list")
	}

	entries := make([]*Entry, 0, len(items))
	index := make(map[string]*Entry, len(items))
	for _, it := range items {
		var fields *document.Map
		switch v := it.value.(type) {
		case *document.Map:
			fields = v
		case nil:
			fields = document.NewMap()
		default:
			return nil, nil, nil, fmt.Errorf("card %q must be a mapping", it.id)
		}
		if _, dup := index[it.id]; dup {
			return nil, nil, nil, fmt.Errorf("duplicate card identifier %q", it.id)
		}

		copies := defaultCopies
		if v, ok := fields.Get(FieldCopies); ok {
			n, err := sanitizeCopies(v)
			if err != nil {
				warn(it.id, v, err)
			} else {
				copies = n
			}
		}

		merged := document.Overlay(defaults, fields)
		merged.Set(FieldCopies, copies)
		merged.Set(FieldID, it.id)

		e := &Entry{ID: it.id, Copies: copies, Fields: merged}
		entries = append(entries, e)
		index[it.id] = e
	}
	return entries, index, warnings, nil
}

// sanitizeCopies converts v to a copy count. Negative counts clamp to zero.
func sanitizeCopies(v any) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: copies is null", apperr.ErrInvalidEntryValue)
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrInvalidEntryValue, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}
