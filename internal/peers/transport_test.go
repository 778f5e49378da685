package peers

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/trashd/trashd/internal/wire"
)

func writeFileHelper(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0644)
}

type recordingHandler struct {
	mu     sync.Mutex
	frames []wire.Frame
}

func (h *recordingHandler) handle(_ *PeerConnection, f wire.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, f)
	return nil
}

func (h *recordingHandler) snapshot() []wire.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]wire.Frame, len(h.frames))
	copy(out, h.frames)
	return out
}

func newTestTransport(t *testing.T, handler FrameHandler) *Transport {
	t.Helper()
	tr, err := New("127.0.0.1", 24000, 24999, nil, nil, handler, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go tr.Serve(ctx)
	t.Cleanup(cancel)
	return tr
}

func TestDiscoveryConnectsAcrossTwoTransports(t *testing.T) {
	recvA := &recordingHandler{}
	recvB := &recordingHandler{}
	a := newTestTransport(t, recvA.handle)
	b := newTestTransport(t, recvB.handle)

	trashDir := t.TempDir()
	const base = "/home/shared"

	if err := a.Publish(base, trashDir); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(base, trashDir); err != nil {
		t.Fatal(err)
	}

	if err := a.Discover(base, trashDir); err != nil {
		t.Fatal(err)
	}
	if err := b.Discover(base, trashDir); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		n := len(a.conns)
		a.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	a.mu.Lock()
	gotA := len(a.conns)
	a.mu.Unlock()
	if gotA == 0 {
		t.Fatal("expected A to have dialed B")
	}

	a.Broadcast(base, wire.CmdSchedule, "x")

	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(recvB.snapshot()) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	frames := recvB.snapshot()
	if len(frames) != 1 || frames[0] != (wire.Frame{Command: wire.CmdSchedule, Name: "x"}) {
		t.Fatalf("expected B to observe (schedule, x), got %+v", frames)
	}
}

func TestDiscoveryExcludesSelf(t *testing.T) {
	recv := &recordingHandler{}
	a := newTestTransport(t, recv.handle)

	trashDir := t.TempDir()
	const base = "/home/solo"
	if err := a.Publish(base, trashDir); err != nil {
		t.Fatal(err)
	}
	if err := a.Discover(base, trashDir); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	a.mu.Lock()
	n := len(a.conns)
	a.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected no self-connection, got %d", n)
	}
}

func TestDiscoveryThrottledToOneScanPerWindow(t *testing.T) {
	a := newTestTransport(t, nil)
	trashDir := t.TempDir()
	const base = "/home/throttle"

	lim := a.limiterFor(base)
	if !lim.Allow() {
		t.Fatal("first Allow should succeed")
	}
	if lim.Allow() {
		t.Fatal("second immediate Allow should be throttled")
	}
}
