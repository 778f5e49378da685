// Package router implements the Repository Router (spec.md §4.2): the
// layered resolution policy that maps a filename, for add, or a parsed
// TrashKey, for every other operation, to the right Physical Repository.
// Its shape — a small struct holding long-lived collaborators
// (CustomMapping, DirectoryList, the home repository) plus a cache of
// lazily-opened repositories for fallback bases — follows the teacher's
// internal/model.Model, which likewise resolves a short key (a folder
// ID) through a chain of maps before touching the filesystem.
package router

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/trashd/trashd/internal/customlist"
	"github.com/trashd/trashd/internal/dirlist"
	"github.com/trashd/trashd/internal/logger"
	"github.com/trashd/trashd/internal/mover"
	"github.com/trashd/trashd/internal/repository"
	"github.com/trashd/trashd/internal/trashkey"
)

var (
	l     = logger.DefaultLogger
	debug = logger.IsDebugFacility("router")
)

// UsageKind names which layer of the resolution order a router
// operation actually used, per spec.md §4.2's "usage callback".
type UsageKind int

const (
	UsageHome UsageKind = iota
	UsageTop
)

func (k UsageKind) String() string {
	if k == UsageHome {
		return "home"
	}
	return "top"
}

// UsageFunc is notified every time an operation settles on a
// repository, naming the base actually used. Peer Transport subscribes
// to this to learn which repositories are in use and publish rendezvous
// files for them.
type UsageFunc func(kind UsageKind, base string)

// RoutedItem is a TrashItem annotated with the TrashKey needed to
// operate on it again (spec.md §4.2, "Trashname translation").
type RoutedItem struct {
	repository.TrashItem
	Base string // empty for home-repository items
}

// Key returns the routable TrashKey string for this item: bare for home
// entries, "name:base" otherwise.
func (i RoutedItem) Key() string {
	return trashkey.Format(i.TrashName, i.Base)
}

const (
	repoCacheSize = 256
	repoCacheTTL  = 10 * time.Minute
)

type repoCacheKey struct {
	base        string
	tryAnything bool
}

// deviceTopFn is a package-level indirection over deviceTop so tests can
// force the device-top layer to fail without depending on the test
// process's filesystem permissions (root can write anywhere, making a
// permission-based failure unreliable across environments).
var deviceTopFn = deviceTop

// Router resolves trash requests to Repositories per spec.md §4.2.
type Router struct {
	homeBase string

	homeRename *repository.Repository
	homeTry    *repository.Repository

	custom *customlist.List
	dirs   *dirlist.List

	cache *expirable.LRU[repoCacheKey, *repository.Repository]

	onUsage UsageFunc
}

// New constructs a Router. custom and dirs may be nil (equivalent to
// empty lists). The home base is resolved once, per spec.md §9's "pure
// function of the current environment snapshot, computed once per
// Router construction".
func New(custom *customlist.List, dirs *dirlist.List, onUsage UsageFunc) (*Router, error) {
	homeBase, err := ResolveHomeBase()
	if err != nil {
		return nil, err
	}
	if custom == nil {
		custom, _ = customlist.Load("")
	}
	if dirs == nil {
		dirs, _ = dirlist.Load("")
	}
	if onUsage == nil {
		onUsage = func(UsageKind, string) {}
	}

	homeRename, err := repository.New(homeBase, repository.Home(), mover.RenameOnly{})
	if err != nil {
		return nil, err
	}
	homeTry, err := repository.New(homeBase, repository.Home(), mover.TryAnything{})
	if err != nil {
		return nil, err
	}

	return &Router{
		homeBase:   homeBase,
		homeRename: homeRename,
		homeTry:    homeTry,
		custom:     custom,
		dirs:       dirs,
		cache: expirable.NewLRU[repoCacheKey, *repository.Repository](
			repoCacheSize, nil, repoCacheTTL),
		onUsage: onUsage,
	}, nil
}

// ResolveHomeBase implements spec.md §4.2 step 2's environment lookup:
// XDG_DATA_HOME if set, else $HOME/.local/share, else ErrNoUsefulHomeEnv.
func ResolveHomeBase() (string, error) {
	if v, ok := os.LookupEnv("XDG_DATA_HOME"); ok && v != "" {
		return v, nil
	}
	if home, ok := os.LookupEnv("HOME"); ok && home != "" {
		return filepath.Join(home, ".local", "share"), nil
	}
	return "", ErrNoUsefulHomeEnv
}

func (rt *Router) repoFor(base string, tryAnything bool) (*repository.Repository, error) {
	key := repoCacheKey{base: base, tryAnything: tryAnything}
	if r, ok := rt.cache.Get(key); ok {
		return r, nil
	}
	mv := mover.Mover(mover.RenameOnly{})
	if tryAnything {
		mv = mover.TryAnything{}
	}
	r, err := repository.New(base, repository.NonHome(), mv)
	if err != nil {
		return nil, err
	}
	rt.cache.Add(key, r)
	return r, nil
}

// Add resolves filename through the layered order (spec.md §4.2): custom
// mapping, home, known-list, device-top fallback, home-try-anything. It
// returns the routable TrashKey for the new item.
func (rt *Router) Add(filename string) (string, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return "", err
	}

	if m, ok := rt.custom.Lookup(abs); ok {
		repo, err := rt.repoFor(m.CanBase, false)
		if err == nil {
			trashname, addErr := repo.Add(abs)
			if addErr == nil {
				rt.reportUsage(m.CanBase)
				return trashkey.Format(trashname, m.CanBase), nil
			}
			if addErr != mover.ErrNonRenamable {
				return "", addErr
			}
			if debug {
				l.Debugf("router: custom mapping for %s non-renamable, falling through", abs)
			}
		}
	}

	trashname, err := rt.homeRename.Add(abs)
	if err == nil {
		rt.onUsage(UsageHome, rt.homeBase)
		return trashkey.Format(trashname, ""), nil
	}
	if err != mover.ErrNonRenamable {
		return "", err
	}
	if debug {
		l.Debugf("router: home non-renamable for %s, falling through", abs)
	}

	for _, base := range rt.dirs.Dirs() {
		repo, err := rt.repoFor(base, false)
		if err != nil {
			continue
		}
		trashname, err := repo.Add(abs)
		if err != nil {
			continue
		}
		rt.onUsage(UsageTop, base)
		return trashkey.Format(trashname, base), nil
	}

	top, err := deviceTopFn(filepath.Dir(abs))
	if err == nil {
		rt.dirs.Add(top)
		repo, err := rt.repoFor(top, true)
		if err == nil {
			trashname, err := repo.Add(abs)
			if err == nil {
				rt.onUsage(UsageTop, top)
				return trashkey.Format(trashname, top), nil
			}
		}
	}

	trashname, err = rt.homeTry.Add(abs)
	if err == nil {
		rt.onUsage(UsageHome, rt.homeBase)
		return trashkey.Format(trashname, ""), nil
	}

	return "", &NoDirectoryForTargetError{Filename: filename}
}

func (rt *Router) reportUsage(base string) {
	if base == rt.homeBase {
		rt.onUsage(UsageHome, base)
	} else {
		rt.onUsage(UsageTop, base)
	}
}

func (rt *Router) repoForKey(k trashkey.Key) (*repository.Repository, error) {
	if k.Home {
		return rt.homeRename, nil
	}
	return rt.repoFor(k.Base, false)
}

// Unlink routes key to its repository and removes the item.
func (rt *Router) Unlink(key string) error {
	k := trashkey.Parse(key)
	repo, err := rt.repoForKey(k)
	if err != nil {
		return err
	}
	return repo.Unlink(k.Name)
}

// Shred routes key to its repository and securely (best-effort) erases
// the item.
func (rt *Router) Shred(key string) error {
	k := trashkey.Parse(key)
	repo, err := rt.repoForKey(k)
	if err != nil {
		return err
	}
	return repo.Shred(k.Name)
}

// Restore routes key to its repository and restores the item to its
// original path.
func (rt *Router) Restore(key string) error {
	k := trashkey.Parse(key)
	repo, err := rt.repoForKey(k)
	if err != nil {
		return err
	}
	return repo.Restore(k.Name)
}

// Items enumerates the home repository and every known non-home base,
// reporting each entry with the translated TrashKey the Trashname
// translation rule of spec.md §4.2 describes: bare for home, prefixed
// for non-home.
func (rt *Router) Items(fn func(RoutedItem)) error {
	if err := rt.homeRename.Items(func(it repository.TrashItem) {
		fn(RoutedItem{TrashItem: it})
	}); err != nil {
		return err
	}
	for _, base := range rt.dirs.Dirs() {
		repo, err := rt.repoFor(base, false)
		if err != nil {
			continue
		}
		repo.Items(func(it repository.TrashItem) {
			fn(RoutedItem{TrashItem: it, Base: base})
		})
	}
	return nil
}

// Cleanup broadcasts cleanup() to the home repository and every known
// base, isolating faults per repository (spec.md §4.2, §7 propagation
// principle): one failing repository never prevents the others from
// being cleaned.
func (rt *Router) Cleanup() []error {
	var errs []error
	if err := rt.homeRename.Cleanup(); err != nil {
		errs = append(errs, err)
	}
	for _, base := range rt.dirs.Dirs() {
		repo, err := rt.repoFor(base, false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := repo.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// TrashDirFor returns the on-disk Trash directory (the path a rendezvous
// file is published under) for the base a usage callback just reported.
// cmd/trashd calls this from its UsageFunc and its discovery loop to
// know where the Peer Transport should publish/scan (spec.md §4.4
// BindNotifier/ChangeNotifier).
func (rt *Router) TrashDirFor(kind UsageKind, base string) string {
	if kind == UsageHome {
		return rt.homeRename.TrashDir()
	}
	repo, err := rt.repoFor(base, false)
	if err != nil {
		return ""
	}
	return repo.TrashDir()
}

// HomeBase returns the resolved home repository base directory.
func (rt *Router) HomeBase() string { return rt.homeBase }

// KnownBases returns every non-home base the Router currently knows
// about (the persisted DirectoryList).
func (rt *Router) KnownBases() []string { return rt.dirs.Dirs() }

// Close persists the DirectoryList if it was modified during the
// Router's lifetime (spec.md §5, write-on-drop), then rewrites the
// CustomMapping file (when it was loaded from a path) from its in-memory
// mappings, whether or not they changed.
func (rt *Router) Close() error {
	if err := rt.dirs.Close(); err != nil {
		return err
	}
	return rt.custom.Save()
}
