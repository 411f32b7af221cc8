package document

import (
	"fmt"
	"strings"

	"github.com/starford/deckhand/internal/apperr"
)

// DependencyError reports a file reference that cannot be followed. Kind is
// apperr.ErrCyclicDependency or apperr.ErrMissingDependency.
type DependencyError struct {
	Kind  error
	Path  string
	Chain []string // files visited up to and including Path, for cycles
	Err   error
}

func (e *DependencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %s", e.Kind, e.Path)
	if len(e.Chain) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Chain, " -> "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DependencyError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Missing returns a missing-dependency error for path.
func Missing(path string, err error) *DependencyError {
	return &DependencyError{Kind: apperr.ErrMissingDependency, Path: path, Err: err}
}

// DefinitionError reports a document whose structure cannot be resolved.
type DefinitionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DefinitionError) Error() string {
	msg := fmt.Sprintf("%v: %s", apperr.ErrInvalidDefinition, e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DefinitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperr.ErrInvalidDefinition}
	}
	return []error{apperr.ErrInvalidDefinition, e.Err}
}

// Invalid returns a definition error for path.
func Invalid(path, reason string) *DefinitionError {
	return &DefinitionError{Path: path, Reason: reason}
}
