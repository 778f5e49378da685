// Command trashd is the core's one concrete wiring into a runnable
// binary: the "long tool" CLI surface spec.md §6 describes (everything
// else — a real argument parser, a TUI, a color-theme reader — is out
// of scope per spec.md §1 and treated here as a thin stand-in). One-shot
// subcommands (put/list/unlink/shred/restore/cleanup) open a Router,
// perform one operation, and exit; "full" stays resident, wiring the Job
// Scheduler and Peer Transport under a suture.Supervisor so scheduled
// operations propagate to peers in near real time, the way the source's
// TUI-backed long tool does.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/trashd/trashd/internal/customlist"
	"github.com/trashd/trashd/internal/dirlist"
	"github.com/trashd/trashd/internal/logger"
	"github.com/trashd/trashd/internal/mover"
	"github.com/trashd/trashd/internal/osutil"
	"github.com/trashd/trashd/internal/repository"
	"github.com/trashd/trashd/internal/router"
)

var l = logger.DefaultLogger

// Exit codes per spec.md §6.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitInternal  = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUserError
	}

	sub := args[0]
	if sub == "help" || sub == "-h" || sub == "--help" {
		usage()
		return exitSuccess
	}

	fs := flag.NewFlagSet(sub, flag.ContinueOnError)
	forceHome := fs.Bool("o", false, "force the home repository with try-anything mover")
	customFile := fs.String("c", "", "custom-mapping file")
	listFile := fs.String("f", "", "directory-list file")
	_ = fs.String("C", "", "color-theme file (ignored: out of scope)")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUserError
	}
	rest := fs.Args()

	switch sub {
	case "put":
		return runPut(rest, *customFile, *listFile, *forceHome)
	case "list":
		return runList(*customFile, *listFile)
	case "unlink":
		return runSingleKey(rest, *customFile, *listFile, (*router.Router).Unlink)
	case "shred":
		return runSingleKey(rest, *customFile, *listFile, (*router.Router).Shred)
	case "restore":
		return runSingleKey(rest, *customFile, *listFile, (*router.Router).Restore)
	case "cleanup":
		return runCleanup(*customFile, *listFile)
	case "full":
		return runFull(*customFile, *listFile)
	default:
		fmt.Fprintf(os.Stderr, "trashd: unknown subcommand %q\n", sub)
		usage()
		return exitUserError
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: trashd <subcommand> [flags] [args]

subcommands:
  put <file>...        trash one or more files
  list                 list every known trash item
  unlink <key>         permanently remove a trashed item
  shred <key>          overwrite then remove a trashed item
  restore <key>        restore a trashed item to its original path
  cleanup              restore the files/info bijection in every repository
  full                 stay resident: propagate scheduled changes to peers
  help                 show this message

flags:
  -o            force the home repository, cross-device copy allowed
  -c <file>     custom-mapping file (see spec.md §6)
  -f <file>     directory-list file (see spec.md §6)
  -C <file>     color-theme file (accepted, ignored: out of scope)`)
}

func openRouter(customFile, listFile string) (*router.Router, int) {
	return openRouterWithUsage(customFile, listFile, nil)
}

// openRouterWithUsage is openRouter generalized with an explicit
// UsageFunc, for "full" (spec.md §2's usage callback drives rendezvous
// publishing, which only matters for the resident daemon).
func openRouterWithUsage(customFile, listFile string, onUsage router.UsageFunc) (*router.Router, int) {
	var custom *customlist.List
	var dirs *dirlist.List
	var err error

	if customFile != "" {
		customFile, err = osutil.ExpandTilde(customFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trashd: %v\n", err)
			return nil, exitInternal
		}
		custom, err = customlist.Load(customFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trashd: loading custom-mapping file: %v\n", err)
			return nil, exitInternal
		}
	}
	if listFile != "" {
		listFile, err = osutil.ExpandTilde(listFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trashd: %v\n", err)
			return nil, exitInternal
		}
		dirs, err = dirlist.Load(listFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trashd: loading directory-list file: %v\n", err)
			return nil, exitInternal
		}
	}

	rt, err := router.New(custom, dirs, onUsage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trashd: %v\n", err)
		return nil, exitInternal
	}
	return rt, exitSuccess
}

func runPut(files []string, customFile, listFile string, forceHome bool) int {
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "trashd: put requires at least one file")
		return exitUserError
	}
	rt, code := openRouter(customFile, listFile)
	if rt == nil {
		return code
	}
	defer rt.Close()

	add := rt.Add
	if forceHome {
		home, err := repository.New(rt.HomeBase(), repository.Home(), mover.TryAnything{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "trashd: %v\n", err)
			return exitInternal
		}
		add = home.Add
	}

	status := exitSuccess
	for _, f := range files {
		key, err := add(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trashd: %s: %v\n", f, err)
			status = exitUserError
			continue
		}
		if debugVerbose {
			l.Infoln("trashed", f, "as", key)
		}
	}
	return status
}

// debugVerbose is a placeholder for the out-of-scope "-v" UI flag; kept
// false so one-shot subcommands stay quiet by default, matching the
// source's TUI-driven tool rather than a chatty CLI.
const debugVerbose = false

func runList(customFile, listFile string) int {
	rt, code := openRouter(customFile, listFile)
	if rt == nil {
		return code
	}
	defer rt.Close()

	err := rt.Items(func(it router.RoutedItem) {
		fmt.Printf("%s\t%s\t%s\n", it.Key(), it.DeletionTime.Format("2006-01-02T15:04:05"), it.OriginalPath)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "trashd: list: %v\n", err)
		return exitInternal
	}
	return exitSuccess
}

func runSingleKey(keys []string, customFile, listFile string, op func(*router.Router, string) error) int {
	if len(keys) != 1 {
		fmt.Fprintln(os.Stderr, "trashd: expected exactly one trash key")
		return exitUserError
	}
	rt, code := openRouter(customFile, listFile)
	if rt == nil {
		return code
	}
	defer rt.Close()

	if err := op(rt, keys[0]); err != nil {
		fmt.Fprintf(os.Stderr, "trashd: %v\n", err)
		return exitUserError
	}
	return exitSuccess
}

func runCleanup(customFile, listFile string) int {
	rt, code := openRouter(customFile, listFile)
	if rt == nil {
		return code
	}
	defer rt.Close()

	if errs := rt.Cleanup(); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "trashd: cleanup: %v\n", err)
		}
		return exitInternal
	}
	return exitSuccess
}
