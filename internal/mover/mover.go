// Package mover implements the pluggable strategies (spec.md §4.1,
// "Movers") that transfer bytes from a file's original location into a
// repository's files/ directory. The rename-only strategy is the
// teacher's own osutil.Rename made cross-device-aware instead of silently
// racing it; copy+delete and try-anything build on it the way the
// teacher's internal/osutil.InWritableDir composes with Rename.
package mover

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/trashd/trashd/internal/logger"
)

var (
	l     = logger.DefaultLogger
	debug = logger.IsDebugFacility("mover")
)

// ErrNonRenamable is an internal signal meaning "try the next strategy or
// the next repository" (spec.md §7); it must never reach a caller.
var ErrNonRenamable = errors.New("mover: cross-device, rename not possible")

// ErrFileToTrashDoesNotExist is a user error: the source file vanished
// between resolution and the move attempt.
var ErrFileToTrashDoesNotExist = errors.New("mover: file to trash does not exist")

// ErrCanNotMoveToTrash wraps a non-cross-device rename failure.
type ErrCanNotMoveToTrash struct{ Err error }

func (e *ErrCanNotMoveToTrash) Error() string { return "mover: cannot move to trash: " + e.Err.Error() }
func (e *ErrCanNotMoveToTrash) Unwrap() error  { return e.Err }

// ErrCanNotMoveFile wraps a copy+delete failure.
type ErrCanNotMoveFile struct{ Err error }

func (e *ErrCanNotMoveFile) Error() string { return "mover: cannot move file: " + e.Err.Error() }
func (e *ErrCanNotMoveFile) Unwrap() error  { return e.Err }

// Mover transfers the regular file at src to dst, which does not yet
// exist. Implementations must leave neither a partial dst nor a missing
// src behind on failure, except where documented otherwise.
type Mover interface {
	Move(src, dst string) error
}

// RenameOnly performs a single rename(2); it fails fast (ErrNonRenamable)
// on cross-device moves so callers can fall through to the next layer,
// per spec.md §4.1/§4.2.
type RenameOnly struct{}

func (RenameOnly) Move(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrFileToTrashDoesNotExist
		}
		return &ErrCanNotMoveToTrash{Err: err}
	}

	if err := os.Rename(src, dst); err != nil {
		if isCrossDevice(err) {
			if debug {
				l.Debugf("mover: rename %s -> %s: cross-device", src, dst)
			}
			return ErrNonRenamable
		}
		return &ErrCanNotMoveToTrash{Err: err}
	}
	return nil
}

// CopyDelete streams bytes across devices, then deletes the source. If
// deletion of the source fails after a successful copy, the partial
// destination is removed and the error is surfaced rather than leaving a
// duplicate behind.
type CopyDelete struct{}

func (CopyDelete) Move(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFileToTrashDoesNotExist
		}
		return &ErrCanNotMoveFile{Err: err}
	}

	if err := widenMode(src); err != nil {
		return &ErrCanNotMoveFile{Err: err}
	}

	in, err := os.Open(src)
	if err != nil {
		return &ErrCanNotMoveFile{Err: err}
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
		return &ErrCanNotMoveFile{Err: err}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return &ErrCanNotMoveFile{Err: err}
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return &ErrCanNotMoveFile{Err: err}
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return &ErrCanNotMoveFile{Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return &ErrCanNotMoveFile{Err: err}
	}

	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return &ErrCanNotMoveFile{Err: err}
	}
	return nil
}

// TryAnything renames first, falling back to copy+delete on any rename
// failure (not only cross-device ones), matching spec.md's "rename, fall
// back to copy+delete on any failure".
type TryAnything struct{}

func (TryAnything) Move(src, dst string) error {
	err := RenameOnly{}.Move(src, dst)
	if err == nil {
		return nil
	}
	return CopyDelete{}.Move(src, dst)
}

func widenMode(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0600)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return isEXDEV(linkErr.Err)
	}
	return false
}
