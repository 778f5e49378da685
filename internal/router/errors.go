package router

import "errors"

// Error kinds from spec.md §7, scoped to the router.
var (
	ErrNoUsefulHomeEnv        = errors.New("router: neither XDG_DATA_HOME nor HOME is set")
	ErrNoDirectoryForTarget   = errors.New("router: no directory for target")
	ErrInvalidTrashNameFormat = errors.New("router: invalid trash name format")
)

// NoDirectoryForTargetError names the filename every layer of resolution
// failed for (spec.md §4.2 step 6).
type NoDirectoryForTargetError struct {
	Filename string
}

func (e *NoDirectoryForTargetError) Error() string {
	return "router: no directory for target " + e.Filename
}

func (e *NoDirectoryForTargetError) Unwrap() error { return ErrNoDirectoryForTarget }
