package peers

import "errors"

// Error kinds from spec.md §7, scoped to the peer transport.
var (
	// ErrBindFailed is raised after exhausting the configured listen
	// port range without a successful bind(2)/listen(2).
	ErrBindFailed = errors.New("peers: could not bind a listen port in range")
	// ErrConnectFailed means a dial to a discovered peer failed; the
	// would-be connection is dropped silently, no user-visible effect.
	ErrConnectFailed = errors.New("peers: could not connect to peer")
)
