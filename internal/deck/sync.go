package deck

import (
	"os"

	"github.com/starford/deckhand/internal/source"
)

// Outcome is the result of a Sync call.
type Outcome int

const (
	// OutcomeUnchanged: nothing the deck depends on changed.
	OutcomeUnchanged Outcome = iota
	// OutcomeRerender: only auxiliary files changed; the model is still
	// valid but rendered output is stale.
	OutcomeRerender
	// OutcomeResolved: the root or an ancestor changed and a new state was
	// committed.
	OutcomeResolved
	// OutcomeFailed: a re-resolution was needed and failed. The previous
	// state is still committed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeRerender:
		return "rerender"
	case OutcomeResolved:
		return "resolved"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// NeedsRender reports whether rendered output is stale after this outcome.
func (o Outcome) NeedsRender() bool {
	return o == OutcomeResolved || o == OutcomeRerender
}

// Sync checks every tracked file once and reacts to the most severe change:
// a changed root or ancestor re-resolves the deck, a changed auxiliary file
// only asks for a re-render. Every tracked baseline is rebased by the check,
// so a change is reported once. A deck whose last pass failed re-resolves on
// every call until a pass succeeds.
func (d *Deck) Sync() (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state.Load()

	resolve := st == nil || d.failed.Load() != nil
	if refreshAll(d.root) {
		resolve = true
	}
	if st != nil {
		if refreshAll(st.Hierarchy...) {
			resolve = true
		}
		for _, p := range st.Absent {
			if _, err := os.Stat(p); err == nil {
				resolve = true
			}
		}
	}

	rerender := false
	if !resolve {
		for _, f := range st.Aux {
			dirty, err := f.Refresh()
			if err != nil {
				// A vanished auxiliary file invalidates the resolved set.
				resolve = true
				continue
			}
			rerender = rerender || dirty
		}
	}

	switch {
	case resolve:
		if err := d.resolveLocked(); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeResolved, nil
	case rerender:
		return OutcomeRerender, nil
	}
	return OutcomeUnchanged, nil
}

// refreshAll refreshes every file and reports whether any changed or
// vanished. It never stops early so all baselines move together.
func refreshAll(files ...*source.File) bool {
	changed := false
	for _, f := range files {
		dirty, err := f.Refresh()
		if err != nil || dirty {
			changed = true
		}
	}
	return changed
}
