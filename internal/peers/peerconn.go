package peers

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/trashd/trashd/internal/wire"
)

// PeerKey identifies one PeerConnection the way spec.md §3 describes:
// the repository base it serves plus the remote listener's host and
// port.
type PeerKey struct {
	Base string
	Host string
	Port int
}

// PeerConnection wraps one TCP socket to a peer sharing a repository
// base. Each connection owns exactly one wire.Reader (spec.md §4.3,
// "wrap the new socket in a fresh decoder"); a connection this process
// dialed also owns one wire.Writer, while an accepted, read-only
// connection has none. The Session id exists only to make two reconnect
// attempts from the same host:port distinguishable in logs.
type PeerConnection struct {
	Key     PeerKey
	Session uuid.UUID

	conn   net.Conn
	reader *wire.Reader
	writer *wire.Writer

	closeOnce sync.Once
	done      chan struct{}
}

func newPeerConnection(key PeerKey, conn net.Conn) *PeerConnection {
	return &PeerConnection{
		Key:     key,
		Session: uuid.New(),
		conn:    conn,
		reader:  wire.NewReader(),
		writer:  wire.NewWriter(),
		done:    make(chan struct{}),
	}
}

// Send queues (cmd, name) for delivery to this peer. Actual bytes are
// drained by the connection's write loop.
func (c *PeerConnection) Send(cmd wire.Command, name string) {
	c.writer.Push(cmd, name)
}

// Closed reports whether Close has been called on this connection.
func (c *PeerConnection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close tears the connection down: closes the socket and unblocks its
// read/write loops. Idempotent. This is the explicit EOF teardown
// spec.md §9 calls out as TODO in the source: close the socket and let
// the caller remove the connection from its map.
func (c *PeerConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
