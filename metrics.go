package zk

import (
	"fmt"
	"io"
	"time"

	"github.com/uber-go/tally/v4"
	promreporter "github.com/uber-go/tally/v4/prometheus"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
)

type rootScopeFactory func() (tally.Scope, promreporter.Reporter, io.Closer, error)

// RootScope returns the metrics scope, the prometheus reporter backing it,
// and a closer that flushes it. The reporter registers on the default
// prometheus registry, so promhttp serves the scope's metrics.
func RootScope() (tally.Scope, promreporter.Reporter, io.Closer) {
	return newRootScope(getRootScope)
}

func newRootScope(scopeFactory rootScopeFactory) (tally.Scope, promreporter.Reporter, io.Closer) {
	scope, reporter, closer, err := scopeFactory()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize metrics reporter %v", err))
	}
	return scope, reporter, closer
}

func getRootScope() (tally.Scope, promreporter.Reporter, io.Closer, error) {
	reporter := promreporter.NewReporter(promreporter.Options{})
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         "zksession",
		CachedReporter: reporter,
		Separator:      promreporter.DefaultSeparator,
	}, 1*time.Second)
	return scope, reporter, closer, nil
}

var replyLatencyBuckets = tally.MustMakeExponentialDurationBuckets(time.Millisecond, 2, 14)

// sessionMetrics is the per-session instrument set. A nil scope reports
// nothing.
type sessionMetrics struct {
	scope tally.Scope
}

func newSessionMetrics(scope tally.Scope) *sessionMetrics {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &sessionMetrics{scope: scope}
}

func (m *sessionMetrics) requestEnqueued(op proto.OpType) {
	m.scope.Tagged(map[string]string{"operation": op.String()}).Counter("requests_enqueued").Inc(1)
}

func (m *sessionMetrics) replyObserved(op proto.OpType, d time.Duration) {
	m.scope.Tagged(map[string]string{"operation": op.String()}).
		Histogram("reply_latency", replyLatencyBuckets).RecordDuration(d)
}

func (m *sessionMetrics) watchEventDelivered() {
	m.scope.Counter("watch_events").Inc(1)
}

func (m *sessionMetrics) reconnect() {
	m.scope.Counter("reconnects").Inc(1)
}
