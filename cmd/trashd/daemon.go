package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thejerf/suture/v4"

	"github.com/trashd/trashd/internal/daemonconfig"
	"github.com/trashd/trashd/internal/events"
	"github.com/trashd/trashd/internal/metrics"
	"github.com/trashd/trashd/internal/peers"
	"github.com/trashd/trashd/internal/router"
	"github.com/trashd/trashd/internal/scheduler"
	"github.com/trashd/trashd/internal/trashkey"
	"github.com/trashd/trashd/internal/wire"
)

// runFull stays resident: it wires the Router, Job Scheduler, and Peer
// Transport together under one suture.Supervisor (spec.md §2's data flow
// for a TUI-driven delete, minus the TUI) so that jobs scheduled here are
// executed and broadcast to peers, and frames received from peers are
// decoded and handed to applyFrame, which only logs them. It runs until
// SIGINT/SIGTERM, then tears down in the order
// SPEC_FULL.md's "Graceful shutdown ordering" calls for.
func runFull(customFile, listFile string) int {
	cfg := daemonconfig.Default()
	cfg.CustomListPath = customFile
	cfg.DirectoryListPath = listFile
	if cfg.SelfHost == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.SelfHost = host
		} else {
			cfg.SelfHost = "localhost"
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ev := events.NewLogger()

	var rt *router.Router
	var tr *peers.Transport

	onUsage := func(kind router.UsageKind, base string) {
		if tr == nil || rt == nil {
			return
		}
		dir := rt.TrashDirFor(kind, base)
		if dir == "" {
			return
		}
		wireBase := base
		if kind == router.UsageHome {
			wireBase = ""
		}
		if err := tr.Publish(wireBase, dir); err != nil && debugFull {
			l.Debugf("trashd: publish rendezvous for %s: %v", dir, err)
		}
	}

	rt, code := openRouterWithUsage(cfg.CustomListPath, cfg.DirectoryListPath, onUsage)
	if rt == nil {
		return code
	}
	defer rt.Close()

	actionFn := func(j scheduler.Job) error {
		return applyJob(rt, tr, j)
	}
	sched := scheduler.New(actionFn, cfg.SchedulerWorkers, ev, m)

	frameHandler := func(_ *peers.PeerConnection, f wire.Frame) error {
		return applyFrame(rt, sched, f)
	}

	var err error
	tr, err = peers.New(cfg.SelfHost, cfg.ListenPortLow, cfg.ListenPortHigh, ev, m, frameHandler, sched)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trashd: %v\n", err)
		return exitInternal
	}
	l.Infof("trashd: listening on port %d", tr.Port())

	disc := &discoveryService{rt: rt, tr: tr, interval: cfg.SelectTimeout}
	bcast := &scheduleBroadcastService{tr: tr, ev: ev}

	sup := suture.New("trashd", suture.Spec{
		EventHook: func(ev suture.Event) {
			if debugFull {
				l.Debugln("trashd:", ev.String())
			}
		},
	})
	sup.Add(tr)
	sup.Add(sched)
	sup.Add(disc)
	sup.Add(bcast)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.Serve(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "trashd: %v\n", err)
		return exitInternal
	}
	return exitSuccess
}

// debugFull gates daemon-lifecycle trace lines, independent of any
// per-package facility (spec.md's TRASHDTRACE is per-package; the
// supervisor itself isn't a package under internal/).
var debugFull = os.Getenv("TRASHDTRACE") == "all"

// applyJob runs one scheduler.Job against the Router and, on success,
// broadcasts the corresponding wire frame to every peer connection
// scoped to the job's base (spec.md §2, "on completion ... Peer
// Transport broadcasts").
func applyJob(rt *router.Router, tr *peers.Transport, j scheduler.Job) error {
	var (
		err  error
		cmd  wire.Command
		base string
		name string
	)
	switch j.Action {
	case "add":
		key, addErr := rt.Add(j.Target)
		err = addErr
		if err == nil {
			k := parseRoutedKey(key)
			base, name, cmd = k.base, k.name, wire.CmdAdd
		}
	case "unlink":
		err = rt.Unlink(j.Target)
		k := parseRoutedKey(j.Target)
		base, name, cmd = k.base, k.name, wire.CmdRemove
	case "shred":
		err = rt.Shred(j.Target)
		k := parseRoutedKey(j.Target)
		base, name, cmd = k.base, k.name, wire.CmdRemove
	case "restore":
		err = rt.Restore(j.Target)
		k := parseRoutedKey(j.Target)
		// The wire protocol has no dedicated "restored" command (spec.md
		// §4.3's four command bytes are add/schedule/unschedule/remove);
		// a restored item has left the trash the same as an unlinked or
		// shredded one, so peers are told "remove".
		base, name, cmd = k.base, k.name, wire.CmdRemove
	case "cleanup":
		if errs := rt.Cleanup(); len(errs) > 0 {
			err = errs[0]
		}
	default:
		return fmt.Errorf("trashd: unknown job action %q", j.Action)
	}
	if err != nil {
		return err
	}
	if tr != nil && j.Action != "cleanup" {
		tr.Broadcast(base, cmd, name)
	}
	return nil
}

type routedKey struct{ base, name string }

// parseRoutedKey mirrors trashkey.Parse but returns the wire base
// convention used throughout this command: "" for home, the absolute
// base path otherwise.
func parseRoutedKey(key string) routedKey {
	k := trashkey.Parse(key)
	if k.Home {
		return routedKey{base: "", name: k.Name}
	}
	return routedKey{base: k.Base, name: k.Name}
}

// applyFrame handles one decoded peer frame. Inbound connections carry no
// base (the wire protocol has no base field, only a command and a bare
// trashname); a received frame is taken to name an item of the home
// repository, the case every one of spec.md §8's peer-propagation
// scenarios exercises. For all four commands the frame is only logged
// (when TRASHDTRACE=all): neither the Router nor the local Scheduler is
// touched, and applyFrame always returns nil.
func applyFrame(rt *router.Router, sched *scheduler.Scheduler, f wire.Frame) error {
	switch f.Command {
	case wire.CmdAdd:
		if debugFull {
			l.Debugf("trashd: peer reports add %s", f.Name)
		}
		return nil
	case wire.CmdRemove:
		if debugFull {
			l.Debugf("trashd: peer reports remove %s", f.Name)
		}
		return nil
	case wire.CmdSchedule:
		if debugFull {
			l.Debugf("trashd: peer reports scheduled %s", f.Name)
		}
		return nil
	case wire.CmdUnschedule:
		if debugFull {
			l.Debugf("trashd: peer reports unscheduled %s", f.Name)
		}
		return nil
	default:
		return nil
	}
}

// discoveryService is the ChangeNotifier (spec.md §4.4): it periodically
// rescans every base currently in use (home plus every known top), which
// internally throttles to at most one real scan per base every
// discoveryThrottle seconds. Polling on a short interval and relying on
// internal/peers' own rate limiter mirrors the source's select-with-
// timeout loop (spec.md §5, default 100ms).
type discoveryService struct {
	rt       *router.Router
	tr       *peers.Transport
	interval time.Duration
}

func (d *discoveryService) String() string { return "discovery" }

func (d *discoveryService) Serve(ctx context.Context) error {
	if d.interval <= 0 {
		d.interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.scanOnce()
		}
	}
}

func (d *discoveryService) scanOnce() {
	if dir := d.rt.TrashDirFor(router.UsageHome, ""); dir != "" {
		d.tr.Discover("", dir)
	}
	for _, base := range d.rt.KnownBases() {
		if dir := d.rt.TrashDirFor(router.UsageTop, base); dir != "" {
			d.tr.Discover(base, dir)
		}
	}
}

// scheduleBroadcastService bridges the Job Scheduler's listener contract
// (spec.md §4.5: onEnterWait/onCancel) to the wire protocol's schedule/
// unschedule commands, for jobs whose Target is already a trash key
// (unlink/shred/restore) — an "add" job's Target is the source filename,
// which has no trashname to report until the move actually succeeds, so
// add jobs only broadcast on completion (applyJob's "a" frame) and
// cleanup jobs broadcast nothing; neither ever sends "s"/"u".
type scheduleBroadcastService struct {
	tr *peers.Transport
	ev *events.Logger
}

func (b *scheduleBroadcastService) String() string { return "schedule-broadcast" }

func (b *scheduleBroadcastService) Serve(ctx context.Context) error {
	sub := b.ev.Subscribe(events.JobEnterWait | events.JobCancel)
	defer b.ev.Unsubscribe(sub)
	for {
		e, err := sub.Poll(100 * time.Millisecond)
		switch err {
		case nil:
			job, ok := e.Data.(scheduler.Job)
			if !ok || job.Action == "add" || job.Action == "cleanup" {
				continue
			}
			k := parseRoutedKey(job.Target)
			cmd := wire.CmdSchedule
			if e.Type == events.JobCancel {
				cmd = wire.CmdUnschedule
			}
			b.tr.Broadcast(k.base, cmd, k.name)
		case events.ErrTimeout:
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		default: // events.ErrClosed
			return err
		}
	}
}
