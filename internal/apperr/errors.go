package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Resolution failures. Structural kinds abort a pass; ErrInvalidEntryValue
	// is only ever logged.
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrMissingDependency = errors.New("missing dependency")
	ErrInvalidDefinition = errors.New("invalid definition")
	ErrInvalidEntryValue = errors.New("invalid entry value")
)
