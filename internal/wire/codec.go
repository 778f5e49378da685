// Package wire implements the Wire Codec (spec.md §4.3): a stateful,
// byte-at-a-time parser/serializer for trash events with no length
// prefix, framed only by a trailing ETB (0x17). Its shape — a small
// explicit state machine fed incrementally from a read loop, paired with
// a mutex-guarded append-only output queue drained by a write loop —
// follows the teacher's internal/beacon.genericReader / internal/discover
// send-then-verify pattern, generalized from UDP datagrams to a
// continuous TCP byte stream.
package wire

import (
	"sync"

	"github.com/trashd/trashd/internal/logger"
)

var (
	l     = logger.DefaultLogger
	debug = logger.IsDebugFacility("wire")
)

// Command is the one-byte opcode that starts every frame.
type Command byte

const (
	CmdAdd        Command = 'a'
	CmdSchedule   Command = 's'
	CmdUnschedule Command = 'u'
	CmdRemove     Command = 'r'
)

// end is the frame terminator (ETB).
const end byte = 0x17

func (c Command) defined() bool {
	switch c {
	case CmdAdd, CmdSchedule, CmdUnschedule, CmdRemove:
		return true
	default:
		return false
	}
}

func (c Command) String() string {
	switch c {
	case CmdAdd:
		return "add"
	case CmdSchedule:
		return "schedule"
	case CmdUnschedule:
		return "unschedule"
	case CmdRemove:
		return "remove"
	default:
		return "undefined"
	}
}

// Frame is one decoded (command, trashname) pair.
type Frame struct {
	Command Command
	Name    string
}

type readerState int

const (
	stateIdle readerState = iota
	stateReading
)

// Reader is a byte-at-a-time decoder for one peer connection's inbound
// stream. It is not safe for concurrent use; each connection owns
// exactly one Reader (spec.md §4.4: "wrap the new socket in a fresh
// decoder").
type Reader struct {
	state readerState
	cmd   byte
	name  []byte

	// OnUndefined, if set, is invoked whenever Feed drops a frame with
	// an undefined command byte — internal/metrics' CodecParseErrors
	// counter hooks in here.
	OnUndefined func(cmd byte, name string)
}

func NewReader() *Reader {
	return &Reader{state: stateIdle}
}

// Feed consumes data and returns every complete, defined frame found in
// it. NUL bytes are discarded unconditionally wherever they occur — a
// deliberately kept source behavior, harmless because Unix paths cannot
// contain NUL (spec.md §9 open questions). Undefined command bytes are
// logged and dropped, per the source's drop policy.
func (r *Reader) Feed(data []byte) []Frame {
	var out []Frame
	for _, b := range data {
		if b == 0 {
			continue
		}
		switch r.state {
		case stateIdle:
			if b == end {
				// A stray terminator with no command; ignore.
				continue
			}
			r.cmd = b
			r.name = r.name[:0]
			r.state = stateReading
		case stateReading:
			if b == end {
				cmd := Command(r.cmd)
				if cmd.defined() {
					out = append(out, Frame{Command: cmd, Name: string(r.name)})
				} else {
					if debug {
						l.Debugf("wire: dropping undefined command %q name %q", r.cmd, r.name)
					}
					if r.OnUndefined != nil {
						r.OnUndefined(r.cmd, string(r.name))
					}
				}
				r.state = stateIdle
				r.name = nil
				continue
			}
			r.name = append(r.name, b)
		}
	}
	return out
}

// Writer serializes frames into an append-only byte queue drained by a
// write loop. Ordering within one Writer is FIFO; across Writers there
// is no ordering guarantee, per spec.md §4.3.
type Writer struct {
	mu  sync.Mutex
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

// Push encodes (cmd, name) and appends it to the output queue.
func (w *Writer) Push(cmd Command, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, byte(cmd))
	w.buf = append(w.buf, name...)
	w.buf = append(w.buf, end)
}

// Output drains up to max bytes from the front of the queue. The caller
// (the write loop) is responsible for re-queuing any bytes it could not
// fully hand to send(2) — see internal/peers for the partial-send
// handling spec.md §9 calls out as a likely source bug if done wrong.
func (w *Writer) Output(max int) []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if max > len(w.buf) {
		max = len(w.buf)
	}
	out := make([]byte, max)
	copy(out, w.buf[:max])
	w.buf = w.buf[max:]
	return out
}

// Available reports the number of queued, undelivered bytes.
func (w *Writer) Available() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

// Requeue puts bytes back at the head of the output queue: used by the
// write loop when send(2) accepts fewer bytes than Output handed it.
func (w *Writer) Requeue(bytes []byte) {
	if len(bytes) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(bytes, w.buf...)
}
