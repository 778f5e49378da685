// Package customlist implements the CustomMapping described in spec.md
// §3/§4.2: an ordered set of {target_prefix -> can_base} pairs read from
// a flat file, one "can-base:target-prefix" line per pair (can before
// target on disk — the inverse of how callers look them up). Persistence
// follows the teacher's config package in spirit (read whole file, keep
// in memory, rewrite on mutation) but the on-disk format is the spec's
// flat line format, not XML.
package customlist

import (
	"bufio"
	"os"
	"strings"

	"github.com/gofrs/flock"

	"github.com/trashd/trashd/internal/osutil"
)

// Mapping is one {target_prefix -> can_base} pair.
type Mapping struct {
	CanBase      string
	TargetPrefix string
}

// List is the in-memory, ordered form of the custom-mapping file.
type List struct {
	path     string
	mappings []Mapping
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
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		can := strings.TrimSuffix(line[:i], "/")
		target := strings.TrimSuffix(line[i+1:], "/")
		l.mappings = append(l.mappings, Mapping{CanBase: can, TargetPrefix: target})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

// Lookup finds the first mapping (in file order) whose TargetPrefix is a
// strict prefix of filename, per spec.md §3.
func (l *List) Lookup(filename string) (Mapping, bool) {
	for _, m := range l.mappings {
		if len(m.TargetPrefix) < len(filename) && strings.HasPrefix(filename, m.TargetPrefix) {
			return m, true
		}
	}
	return Mapping{}, false
}

// Save rewrites the backing file with the current mappings, one
// "can-base:target-prefix" line per pair, guarded by an flock advisory
// lock so two trashd processes sharing a custom-mapping file don't
// interleave writes (spec.md §5, "write-on-drop must be
// mutex-protected if shared" — flock extends that across processes, not
// just goroutines).
func (l *List) Save() error {
	if l.path == "" {
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
	for _, m := range l.mappings {
		if _, err := w.WriteString(m.CanBase + ":" + m.TargetPrefix + "\n"); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return aw.Close()
}

// Mappings returns a copy of the current mapping list.
func (l *List) Mappings() []Mapping {
	out := make([]Mapping, len(l.mappings))
	copy(out, l.mappings)
	return out
}
