// Package dirlist implements the DirectoryList described in spec.md §3:
// an ordered list of known non-home trash bases, one absolute path per
// line, mutated by the Router's device-top fallback and rewritten on
// drop if it changed during the process lifetime.
package dirlist

import (
	"bufio"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"github.com/trashd/trashd/internal/osutil"
)

type List struct {
	path string

	mu       sync.Mutex
	dirs     []string
	modified bool
}

// Load reads path if it exists; a missing file yields an empty List.
func Load(path string) (*List, error) {
	l := &List{path: path}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		l.dirs = append(l.dirs, line)
	}
	return l, scanner.Err()
}

// Dirs returns a snapshot of the known bases, in file order.
func (l *List) Dirs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.dirs))
	copy(out, l.dirs)
	return out
}

// Add appends base if it isn't already present, marking the list dirty
// so Close rewrites the backing file.
func (l *List) Add(base string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range l.dirs {
		if d == base {
			return
		}
	}
	l.dirs = append(l.dirs, base)
	l.modified = true
}

// Close persists the list if it was modified since Load, guarded by an
// flock advisory lock shared with other trashd processes pointed at the
// same file (spec.md §5).
func (l *List) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.modified || l.path == "" {
		return nil
	}

	fl := flock.New(l.path + ".lock")
	if err := fl.Lock(); err != nil {
		return err
	}
	defer fl.Unlock()

	aw, err := osutil.CreateAtomic(l.path, 0644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(aw)
	for _, d := range l.dirs {
		if _, err := w.WriteString(d + "\n"); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := aw.Close(); err != nil {
		return err
	}
	l.modified = false
	return nil
}
