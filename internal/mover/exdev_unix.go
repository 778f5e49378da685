//go:build !windows

package mover

import "syscall"

// isEXDEV reports whether err is the platform's cross-device-link errno,
// the condition that must fall through to a copying strategy instead of
// being surfaced as a hard failure (spec.md §4.1).
func isEXDEV(err error) bool {
	errno, ok := err.(syscall.Errno)
	return ok && errno == syscall.EXDEV
}
