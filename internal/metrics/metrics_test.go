package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestIncDec(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncJobsScheduled()
	m.IncJobsScheduled()
	m.IncJobsRun()
	m.IncJobsFailed()
	m.IncJobsCancelled()
	m.IncPeerConnections()
	m.IncPeerConnections()
	m.DecPeerConnections()
	m.IncRendezvousPublished()
	m.IncCodecParseErrors()
	m.IncDiscoveryScans()

	require.Equal(t, float64(2), testutil.ToFloat64(m.JobsScheduled))
	require.Equal(t, float64(1), testutil.ToFloat64(m.JobsRun))
	require.Equal(t, float64(1), testutil.ToFloat64(m.JobsFailed))
	require.Equal(t, float64(1), testutil.ToFloat64(m.JobsCancelled))
	require.Equal(t, float64(1), testutil.ToFloat64(m.PeerConnections))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RendezvousPublished))
	require.Equal(t, float64(1), testutil.ToFloat64(m.CodecParseErrors))
	require.Equal(t, float64(1), testutil.ToFloat64(m.DiscoveryScans))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.IncJobsScheduled()
	m.IncJobsCancelled()
	m.IncJobsRun()
	m.IncJobsFailed()
	m.IncPeerConnections()
	m.DecPeerConnections()
	m.IncRendezvousPublished()
	m.DecRendezvousPublished()
	m.IncCodecParseErrors()
	m.IncDiscoveryScans()
}
