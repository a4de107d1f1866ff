package sentinel

import "errors"

// Error kinds shared by the store and the chore service. Callers classify
// with errors.Is; context is attached by wrapping, e.g.
//
//	fmt.Errorf("%w: household %d", sentinel.ErrNotFound, id)
//
// ErrValidation, ErrNotFound and ErrConflict describe bad input or state and
// are returned before any mutation. ErrIntegrity, ErrCorrupt and ErrIO come
// from the persistence layer.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrIntegrity  = errors.New("integrity check failed")
	ErrCorrupt    = errors.New("snapshot corrupt")
	ErrIO         = errors.New("storage i/o failed")
)
