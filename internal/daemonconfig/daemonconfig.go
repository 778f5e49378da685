// Package daemonconfig holds the small set of tunables trashd's core
// needs, as a flat struct with defaults — the Go-native reading of the
// teacher's config.Configuration (which carries the same sort of
// knobs as an OptionsConfiguration struct with tag-driven defaults),
// simplified because trashd's core is a library invoked by an external
// CLI/TUI (out of scope per spec.md §1), not a standalone XML-configured
// application.
package daemonconfig

import "time"

// Config is the flat tunable set consumed by cmd/trashd when wiring the
// Router, Scheduler, and Peer Transport. DiscoveryThrottle,
// DispatchRetryBackoff and DispatchRetries are not read anywhere:
// internal/peers uses its own constants with the same default values.
type Config struct {
	// SchedulerWorkers is max_threads, spec.md §4.5 (default 2).
	SchedulerWorkers int

	// DiscoveryThrottle is spec.md §4.4/§8 property 9 (2s).
	DiscoveryThrottle time.Duration

	// SelectTimeout mirrors the source's select(2) poll timeout
	// (spec.md §5, 100ms) used for connection accept/read polling
	// where applicable.
	SelectTimeout time.Duration

	// DispatchRetryBackoff is the dispatch thread's parse-retry sleep
	// (spec.md §5, 1s).
	DispatchRetryBackoff time.Duration
	// DispatchRetries is the dispatch thread's retry count (spec.md
	// §4.4, 3).
	DispatchRetries int

	// ListenPortLow/ListenPortHigh bound the Peer Transport's bind
	// range: ports are tried in ascending order from low to high and
	// the first that binds is kept.
	ListenPortLow  int
	ListenPortHigh int

	// SelfHost is the hostname stamped into rendezvous files this
	// process publishes.
	SelfHost string

	// CustomListPath and DirectoryListPath locate the on-disk
	// CustomMapping and DirectoryList files (spec.md §6).
	CustomListPath    string
	DirectoryListPath string
}

// Default returns the tunables the source ships with: 2 scheduler
// workers, a 100ms select timeout, a 2s discovery throttle, and a
// 1s x 3 dispatch retry policy.
func Default() Config {
	return Config{
		SchedulerWorkers:     2,
		DiscoveryThrottle:    2 * time.Second,
		SelectTimeout:        100 * time.Millisecond,
		DispatchRetryBackoff: time.Second,
		DispatchRetries:      3,
		ListenPortLow:        23000,
		ListenPortHigh:       23999,
	}
}
