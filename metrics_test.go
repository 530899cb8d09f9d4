package zk

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
	promreporter "github.com/uber-go/tally/v4/prometheus"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
)

func TestNewRootScopeOK(t *testing.T) {
	scopeFactory := func() (tally.Scope, promreporter.Reporter, io.Closer, error) {
		return tally.NoopScope, nil, io.NopCloser(nil), nil
	}
	scope, _, closer := newRootScope(scopeFactory)
	assert.NotNil(t, scope)
	assert.NotNil(t, closer)
}

func TestNewRootScopePanicsOnFactoryError(t *testing.T) {
	scopeFactory := func() (tally.Scope, promreporter.Reporter, io.Closer, error) {
		return nil, nil, nil, errors.New("reporter exploded")
	}
	assert.Panics(t, func() { newRootScope(scopeFactory) })
}

func TestSessionMetrics(t *testing.T) {
	scope := tally.NewTestScope("", nil)
	m := newSessionMetrics(scope)

	m.requestEnqueued(proto.OpCreate)
	m.requestEnqueued(proto.OpCreate)
	m.requestEnqueued(proto.OpGetData)
	m.replyObserved(proto.OpCreate, 5*time.Millisecond)
	m.watchEventDelivered()
	m.reconnect()

	snap := scope.Snapshot()
	counters := snap.Counters()
	require.Contains(t, counters, "requests_enqueued+operation=create")
	assert.Equal(t, int64(2), counters["requests_enqueued+operation=create"].Value())
	require.Contains(t, counters, "requests_enqueued+operation=getData")
	assert.Equal(t, int64(1), counters["requests_enqueued+operation=getData"].Value())
	require.Contains(t, counters, "watch_events+")
	assert.Equal(t, int64(1), counters["watch_events+"].Value())
	require.Contains(t, counters, "reconnects+")
	assert.Equal(t, int64(1), counters["reconnects+"].Value())

	require.Contains(t, snap.Histograms(), "reply_latency+operation=create")
}

func TestSessionMetricsNilScope(t *testing.T) {
	m := newSessionMetrics(nil)
	// must be safe to report into
	m.requestEnqueued(proto.OpSync)
	m.replyObserved(proto.OpSync, time.Millisecond)
	m.watchEventDelivered()
	m.reconnect()
}
