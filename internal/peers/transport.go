// Package peers implements the Peer Transport (spec.md §4.4): a TCP
// listener plus outbound connections, rendezvous-file publishing and
// discovery, and dispatch of decoded wire events to a caller-supplied
// handler. Its shape — a long-lived struct owning a listener and a map
// of live connections, background goroutines reachable through a single
// Serve(ctx) entry point — follows the teacher's internal/discover and
// internal/beacon: small, composable network services with explicit
// shutdown via a context/stop-channel rather than an implicit global.
package peers

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/trashd/trashd/internal/events"
	"github.com/trashd/trashd/internal/logger"
	"github.com/trashd/trashd/internal/metrics"
	"github.com/trashd/trashd/internal/wire"
)

var (
	l     = logger.DefaultLogger
	debug = logger.IsDebugFacility("peers")
)

const (
	// discoveryThrottle is spec.md §4.4/§8 property 9's 2-second
	// per-base rescan throttle.
	discoveryThrottle = 2 * time.Second
	// maxConcurrentDials bounds how many outbound connection attempts
	// run at once during one discovery scan (spec.md domain stack:
	// golang.org/x/sync/semaphore).
	maxConcurrentDials = 8
	// dispatchRetries and dispatchBackoff implement the dispatch
	// thread's parse-retry policy (spec.md §4.4, §5 timeouts).
	dispatchRetries = 3
	dispatchBackoff = time.Second
	// failedDialCacheTTL keeps a recently-unreachable peer out of the
	// next few scans instead of redialing it every 2 seconds.
	failedDialCacheTTL = 10 * time.Second
)

// SnapshotProvider supplies the set of still-scheduled trashnames so a
// newly discovered peer can be brought up to date (spec.md §4.4's
// reconnect replay, corrected per §9 from the source's inverted
// condition).
type SnapshotProvider interface {
	Snapshot() []string
}

// FrameHandler processes one decoded frame received from a peer. A
// non-nil error triggers the dispatch thread's retry policy.
type FrameHandler func(conn *PeerConnection, frame wire.Frame) error

// Transport is the Peer Transport (C4).
type Transport struct {
	selfHost string
	selfPort int
	ln       net.Listener

	onFrame  FrameHandler
	snapshot SnapshotProvider
	ev       *events.Logger
	m        *metrics.Metrics

	bufPool *bufferPool

	mu        sync.Mutex
	conns     map[PeerKey]*PeerConnection
	limiters  map[string]*rate.Limiter
	published map[string]string // base -> rendezvous file path

	failedDial *expirable.LRU[PeerKey, time.Time]
	dialSem    *semaphore.Weighted

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// New binds a TCP listener to the first free port in [portLow, portHigh]
// and returns a Transport ready to Serve. selfHost identifies this
// process's own rendezvous entries so Discover can exclude them
// (spec.md §8 property 10). m may be nil if the caller doesn't want
// scrapeable metrics.
func New(selfHost string, portLow, portHigh int, ev *events.Logger, m *metrics.Metrics, onFrame FrameHandler, snapshot SnapshotProvider) (*Transport, error) {
	if ev == nil {
		ev = events.Default
	}
	ln, port, err := bindRange(portLow, portHigh)
	if err != nil {
		return nil, err
	}
	return &Transport{
		selfHost:   selfHost,
		selfPort:   port,
		ln:         ln,
		onFrame:    onFrame,
		snapshot:   snapshot,
		ev:         ev,
		m:          m,
		bufPool:    newBufferPool(),
		conns:      make(map[PeerKey]*PeerConnection),
		limiters:   make(map[string]*rate.Limiter),
		published:  make(map[string]string),
		failedDial: expirable.NewLRU[PeerKey, time.Time](1024, nil, failedDialCacheTTL),
		dialSem:    semaphore.NewWeighted(maxConcurrentDials),
		closed:     make(chan struct{}),
	}, nil
}

func bindRange(low, high int) (net.Listener, int, error) {
	for port := low; port <= high; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, ErrBindFailed
}

// Port returns the bound listen port.
func (t *Transport) Port() int { return t.selfPort }

// Serve implements suture.Service: it runs the accept loop until ctx is
// cancelled, then tears down every connection and unpublishes every
// rendezvous file this Transport published.
func (t *Transport) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.ln.Close()
	}()

	for {
		conn, err := t.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				t.shutdown()
				return ctx.Err()
			default:
				if debug {
					l.Debugf("peers: accept: %v", err)
				}
				continue
			}
		}
		t.wg.Add(1)
		go t.serveInbound(conn)
	}
}

func (t *Transport) shutdown() {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		conns := make([]*PeerConnection, 0, len(t.conns))
		for _, c := range t.conns {
			conns = append(conns, c)
		}
		paths := make([]string, 0, len(t.published))
		for _, p := range t.published {
			paths = append(paths, p)
		}
		t.mu.Unlock()

		for _, c := range conns {
			c.Close()
		}
		for _, p := range paths {
			removeRendezvousFile(p)
		}
		t.wg.Wait()
	})
}

// serveInbound reads frames from an accepted connection until EOF or
// error, then tears it down. Accepted connections are read-only from
// this process's point of view: this side's own outbound events travel
// over the connections it dialed (see Discover/dial), never back over
// an accepted one, so no PeerKey/base tag or write loop is needed here.
func (t *Transport) serveInbound(conn net.Conn) {
	defer t.wg.Done()
	reader := wire.NewReader()
	reader.OnUndefined = func(byte, string) { t.m.IncCodecParseErrors() }
	pc := &PeerConnection{conn: conn, reader: reader, done: make(chan struct{})}
	t.m.IncPeerConnections()
	defer t.m.DecPeerConnections()
	go func() {
		select {
		case <-t.closed:
			pc.Close()
		case <-pc.done:
		}
	}()
	t.readLoop(pc)
}

// dial opens an outbound connection to a discovered peer for base,
// starts its read and write loops, and replays the scheduler's
// still-waiting trashnames to it (spec.md §4.4 reconnect replay).
func (t *Transport) dial(key PeerKey) (*PeerConnection, error) {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", key.Host, key.Port), 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	pc := newPeerConnection(key, conn)
	pc.reader.OnUndefined = func(byte, string) { t.m.IncCodecParseErrors() }

	t.mu.Lock()
	t.conns[key] = pc
	t.mu.Unlock()
	t.m.IncPeerConnections()

	t.wg.Add(2)
	go func() { defer t.wg.Done(); t.readLoop(pc) }()
	go func() { defer t.wg.Done(); t.writeLoop(pc) }()

	t.ev.Log(events.PeerDiscovered, key)

	if t.snapshot != nil {
		for _, name := range t.snapshot.Snapshot() {
			pc.Send(wire.CmdSchedule, name)
		}
	}
	return pc, nil
}

func (t *Transport) dropConn(key PeerKey, pc *PeerConnection) {
	t.mu.Lock()
	cur, ok := t.conns[key]
	if ok && cur == pc {
		delete(t.conns, key)
	}
	t.mu.Unlock()
	if ok {
		t.m.DecPeerConnections()
	}
	pc.Close()
	t.ev.Log(events.PeerLost, key)
}

func (t *Transport) readLoop(pc *PeerConnection) {
	for {
		buf := t.bufPool.get()
		n, err := pc.conn.Read(buf)
		if n > 0 {
			frames := pc.reader.Feed(buf[:n])
			for _, f := range frames {
				t.dispatch(pc, f)
			}
		}
		t.bufPool.put(buf)
		if err != nil {
			if pc.Key != (PeerKey{}) {
				t.dropConn(pc.Key, pc)
			} else {
				pc.Close()
			}
			return
		}
		select {
		case <-pc.done:
			return
		default:
		}
	}
}

// dispatch hands a decoded frame to the caller's handler, retrying up
// to dispatchRetries times with dispatchBackoff between tries on error
// (spec.md §4.4's dispatch-thread retry policy).
func (t *Transport) dispatch(pc *PeerConnection, f wire.Frame) {
	if t.onFrame == nil {
		return
	}
	var err error
	for attempt := 0; attempt < dispatchRetries; attempt++ {
		if err = t.onFrame(pc, f); err == nil {
			return
		}
		time.Sleep(dispatchBackoff)
	}
	if debug {
		l.Debugf("peers: dropping frame %+v after %d failed attempts: %v", f, dispatchRetries, err)
	}
}

// writeLoop drains pc's output queue onto the socket. A short write is
// requeued at the head of the queue rather than advanced by a
// pointer-sized stride — the fix for the source bug spec.md §9 flags
// ("base += sizeof(char*) * sent" instead of "base += sent").
func (t *Transport) writeLoop(pc *PeerConnection) {
	for {
		select {
		case <-pc.done:
			return
		default:
		}
		if pc.writer.Available() == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		buf := pc.writer.Output(chunkSize)
		n, err := pc.conn.Write(buf)
		if n < len(buf) {
			pc.writer.Requeue(buf[n:])
		}
		if err != nil {
			t.dropConn(pc.Key, pc)
			return
		}
	}
}

// Publish writes this listener's rendezvous file under trashDir (spec.md
// §4.4 BindNotifier): called whenever the Router reports a repository in
// use.
func (t *Transport) Publish(base, trashDir string) error {
	path, err := publishRendezvous(trashDir, t.selfHost, t.selfPort, base)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.published[base] = path
	t.mu.Unlock()
	t.m.IncRendezvousPublished()
	return nil
}

// Unpublish removes this listener's rendezvous file for base, if one was
// published.
func (t *Transport) Unpublish(base string) {
	t.mu.Lock()
	path, ok := t.published[base]
	delete(t.published, base)
	t.mu.Unlock()
	if ok {
		removeRendezvousFile(path)
		t.m.DecRendezvousPublished()
	}
}

func removeRendezvousFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) && debug {
		l.Debugf("peers: removing rendezvous file %s: %v", path, err)
	}
}

func (t *Transport) limiterFor(base string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[base]
	if !ok {
		lim = rate.NewLimiter(rate.Every(discoveryThrottle), 1)
		t.limiters[base] = lim
	}
	return lim
}

// Discover scans trashDir's rendezvous directory for base (spec.md
// §4.4 ChangeNotifier): throttled to at most once per discoveryThrottle
// per base, dials newly seen peers (excluding this process's own
// listener, per §8 property 10), and drops connections whose rendezvous
// file has vanished.
func (t *Transport) Discover(base, trashDir string) error {
	lim := t.limiterFor(base)
	if !lim.Allow() {
		return nil
	}
	t.m.IncDiscoveryScans()

	entries, err := scanRendezvous(trashDir)
	if err != nil {
		return err
	}

	live := make(map[PeerKey]struct{}, len(entries))
	for _, rf := range entries {
		if rf.Hostname == t.selfHost && rf.Port == t.selfPort {
			continue // property 10: never connect to our own listener
		}
		key := PeerKey{Base: base, Host: rf.Hostname, Port: rf.Port}
		live[key] = struct{}{}

		t.mu.Lock()
		_, connected := t.conns[key]
		_, recentlyFailed := t.failedDial.Get(key)
		t.mu.Unlock()
		if connected || recentlyFailed {
			continue
		}

		if err := t.dialSem.Acquire(context.Background(), 1); err != nil {
			continue
		}
		go func(key PeerKey) {
			defer t.dialSem.Release(1)
			if _, err := t.dial(key); err != nil {
				if debug {
					l.Debugf("peers: dial %s:%d failed: %v", key.Host, key.Port, err)
				}
				t.failedDial.Add(key, time.Now())
			}
		}(key)
	}

	t.mu.Lock()
	var stale []PeerKey
	for key := range t.conns {
		if key.Base != base {
			continue
		}
		if _, ok := live[key]; !ok {
			stale = append(stale, key)
		}
	}
	t.mu.Unlock()
	for _, key := range stale {
		t.mu.Lock()
		pc := t.conns[key]
		t.mu.Unlock()
		if pc != nil {
			t.dropConn(key, pc)
		}
	}
	return nil
}

// Broadcast posts (cmd, name) to every connection this process dialed
// for base (spec.md §4.4 "Outbound routing").
func (t *Transport) Broadcast(base string, cmd wire.Command, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, pc := range t.conns {
		if key.Base == base {
			pc.Send(cmd, name)
		}
	}
}
