// Package repository implements the Physical Repository (spec.md §4.1):
// one on-disk trash directory, laid out per the FreeDesktop trash
// specification, with add/items/unlink/shred/restore/cleanup. Its shape —
// a constructor that eagerly ensures on-disk state, small methods that
// each do one filesystem operation and return a typed error — follows
// the teacher's internal/versioner.Simple.Archive and
// internal/osutil.Rename.
package repository

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/trashd/trashd/internal/logger"
	"github.com/trashd/trashd/internal/mover"
)

var (
	l     = logger.DefaultLogger
	debug = logger.IsDebugFacility("repository")
)

// Attributes configures the on-disk shape of a Repository: its mode and
// whether its Trash directory is dotfile-hidden. Home repositories are
// 0700 and visible ("Trash"); non-home (volume) repositories are 0777
// and hidden (".Trash"), per spec.md §3.
type Attributes struct {
	Mode   os.FileMode
	Hidden bool
}

// Home returns the attributes of a per-user home repository.
func Home() Attributes { return Attributes{Mode: 0700, Hidden: false} }

// NonHome returns the attributes of a hidden, world-writable volume
// repository.
func NonHome() Attributes { return Attributes{Mode: 0777, Hidden: true} }

func (a Attributes) trashDirName() string {
	if a.Hidden {
		return ".Trash"
	}
	return "Trash"
}

// TrashItem is a read view of one trashed entry (spec.md §3).
type TrashItem struct {
	TrashName    string
	OriginalPath string
	DeletionTime time.Time
}

// BeforeRestoreFunc is invoked by Restore when the original path is
// occupied; the default implementation trashes the occupant again so
// restore never silently clobbers a file (spec.md §4.1).
type BeforeRestoreFunc func(r *Repository, occupiedPath string) error

// Repository owns one on-disk trash directory.
type Repository struct {
	Base  string
	Attrs Attributes

	// Mover is used by Add to transfer the source file into files/.
	Mover mover.Mover

	// BeforeRestore is invoked when Restore finds the original path
	// already occupied. Defaults to DefaultBeforeRestore.
	BeforeRestore BeforeRestoreFunc

	trashDir string
	filesDir string
	infoDir  string
}

// New constructs a Repository rooted at base, eagerly creating (or
// validating the mode of) files/ and info/ under base/[.]Trash.
func New(base string, attrs Attributes, mv mover.Mover) (*Repository, error) {
	r := &Repository{
		Base:          base,
		Attrs:         attrs,
		Mover:         mv,
		BeforeRestore: DefaultBeforeRestore,
	}
	r.trashDir = filepath.Join(base, attrs.trashDirName())
	r.filesDir = filepath.Join(r.trashDir, "files")
	r.infoDir = filepath.Join(r.trashDir, "info")

	if err := ensureDir(r.filesDir, attrs.Mode); err != nil {
		return nil, err
	}
	if err := ensureDir(r.infoDir, attrs.Mode); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultBeforeRestore trashes the file occupying the restore target
// again, so the incoming restore never overwrites it silently.
func DefaultBeforeRestore(r *Repository, occupiedPath string) error {
	_, err := r.Add(occupiedPath)
	return err
}

func ensureDir(path string, mode os.FileMode) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return ErrCantMakeDirectory
		}
		if info.Mode().Perm() != mode {
			return ErrTrashDirectoryMode
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return ErrCantMakeDirectory
	}
	if err := os.MkdirAll(path, mode); err != nil {
		return ErrCantMakeDirectory
	}
	// MkdirAll applies umask; force the exact mode spec.md requires.
	if err := os.Chmod(path, mode); err != nil {
		return ErrCantMakeDirectory
	}
	return nil
}

// Add moves the file at path into this repository, returning the
// trashname it was given. The collision loop (files/B, files/B.1, ...)
// uses stat presence rather than an atomic create — a documented,
// single-user-assumption race per spec.md §4.1.
func (r *Repository) Add(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	base := filepath.Base(abs)

	trashname, dst, err := r.nextFreeName(base)
	if err != nil {
		return "", err
	}

	if err := r.Mover.Move(abs, dst); err != nil {
		return "", err
	}

	infoPath := filepath.Join(r.infoDir, trashname+".trashinfo")
	if err := writeInfoFile(infoPath, abs, time.Now()); err != nil {
		// Roll back the move so add() is all-or-nothing.
		reverseErr := os.Rename(dst, abs)
		if reverseErr != nil && debug {
			l.Debugf("repository: rollback of %s failed: %v", dst, reverseErr)
		}
		return "", fmt.Errorf("%w: %v", ErrCanNotCreateTrashInfo, err)
	}

	if debug {
		l.Debugf("repository: added %s as %s", abs, trashname)
	}
	return trashname, nil
}

// nextFreeName finds the lowest n such that files/base (n=0) or
// files/base.n (n>=1) does not yet exist.
func (r *Repository) nextFreeName(base string) (trashname, dst string, err error) {
	for n := 0; ; n++ {
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s.%d", base, n)
		}
		candidate := filepath.Join(r.filesDir, name)
		if _, statErr := os.Lstat(candidate); os.IsNotExist(statErr) {
			return name, candidate, nil
		}
	}
}

// Items enumerates files/ and reports a TrashItem for every entry whose
// .trashinfo parses; entries that fail to parse are skipped silently —
// "lossy listing" is the documented source behavior (spec.md §4.1).
func (r *Repository) Items(fn func(TrashItem)) error {
	entries, err := os.ReadDir(r.filesDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if name == "." || name == ".." {
			continue
		}
		infoPath := filepath.Join(r.infoDir, name+".trashinfo")
		info, err := readInfoFile(infoPath)
		if err != nil {
			if debug {
				l.Debugf("repository: skipping %s: %v", name, err)
			}
			continue
		}
		fn(TrashItem{
			TrashName:    name,
			OriginalPath: info.OriginalPath,
			DeletionTime: info.DeletionDate,
		})
	}
	return nil
}

// Unlink recursively deletes files/<trashname> and its info sibling.
func (r *Repository) Unlink(trashname string) error {
	target := filepath.Join(r.filesDir, trashname)
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return ErrNoSuchTrashItem
	}
	os.Chmod(target, 0777)
	if err := removeRecursive(target); err != nil {
		return fmt.Errorf("%w: %v", ErrCantRemoveFile, err)
	}
	infoPath := filepath.Join(r.infoDir, trashname+".trashinfo")
	if err := os.Remove(infoPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrCanNotUnlinkFile, err)
	}
	return nil
}

func removeRecursive(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return os.Remove(path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := removeRecursive(filepath.Join(path, e.Name())); err != nil {
			return err
		}
	}
	return os.Remove(path)
}

// Shred overwrites every regular file under files/<trashname> with
// random bytes of equal length before unlinking it. The directory
// structure itself is removed, not overwritten — a documented
// limitation, not cryptographically secure erasure (spec.md §1 Non-goals,
// §4.1).
func (r *Repository) Shred(trashname string) error {
	target := filepath.Join(r.filesDir, trashname)
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return ErrNoSuchTrashItem
	}
	os.Chmod(target, 0777)
	if err := shredRecursive(target); err != nil {
		return fmt.Errorf("%w: %v", ErrCanNotShredFile, err)
	}
	if err := removeRecursive(target); err != nil {
		return fmt.Errorf("%w: %v", ErrCanNotShredFile, err)
	}
	infoPath := filepath.Join(r.infoDir, trashname+".trashinfo")
	if err := os.Remove(infoPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrCanNotShredFile, err)
	}
	return nil
}

func shredRecursive(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := shredRecursive(filepath.Join(path, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return overwriteWithRandom(path, info.Size())
}

func overwriteWithRandom(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.CopyN(f, rand.Reader, size); err != nil {
		return err
	}
	return f.Sync()
}

// Restore moves files/<trashname> back to its recorded original path,
// invoking BeforeRestore first if that path is already occupied.
func (r *Repository) Restore(trashname string) error {
	infoPath := filepath.Join(r.infoDir, trashname+".trashinfo")
	info, err := readInfoFile(infoPath)
	if err != nil {
		return &TrashInfoReadError{Name: trashname, Err: err}
	}

	if _, err := os.Lstat(info.OriginalPath); err == nil {
		if err := r.BeforeRestore(r, info.OriginalPath); err != nil {
			return err
		}
	}

	src := filepath.Join(r.filesDir, trashname)
	if err := os.MkdirAll(filepath.Dir(info.OriginalPath), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, info.OriginalPath); err != nil {
		return err
	}
	if err := os.Remove(infoPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Cleanup restores the files/<->info/ bijection (spec.md §3 invariant):
// twice, once from each side, deleting orphans.
func (r *Repository) Cleanup() error {
	for pass := 0; pass < 2; pass++ {
		infoEntries, err := os.ReadDir(r.infoDir)
		if err != nil {
			return err
		}
		for _, e := range infoEntries {
			name := e.Name()
			trashname := trimTrashinfoSuffix(name)
			if trashname == "" {
				continue
			}
			if _, err := os.Lstat(filepath.Join(r.filesDir, trashname)); os.IsNotExist(err) {
				if err := os.Remove(filepath.Join(r.infoDir, name)); err != nil && !os.IsNotExist(err) {
					return err
				}
			}
		}

		fileEntries, err := os.ReadDir(r.filesDir)
		if err != nil {
			return err
		}
		for _, e := range fileEntries {
			name := e.Name()
			infoPath := filepath.Join(r.infoDir, name+".trashinfo")
			if _, err := os.Lstat(infoPath); os.IsNotExist(err) {
				if err := removeRecursive(filepath.Join(r.filesDir, name)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

const trashinfoSuffix = ".trashinfo"

func trimTrashinfoSuffix(name string) string {
	if len(name) <= len(trashinfoSuffix) || name[len(name)-len(trashinfoSuffix):] != trashinfoSuffix {
		return ""
	}
	return name[:len(name)-len(trashinfoSuffix)]
}

// FilesDir and InfoDir expose the two on-disk directories for callers
// (the Router's device-top walk, tests) that need the raw paths.
func (r *Repository) FilesDir() string { return r.filesDir }
func (r *Repository) InfoDir() string  { return r.infoDir }
func (r *Repository) TrashDir() string { return r.trashDir }
