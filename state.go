package zk

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
)

type dialResult struct {
	transport Transport
	err       error
}

// packetizerState is the session's two-variant state: Connected wraps the
// live connection, Reconnecting wraps the dial in flight. Exactly one of
// conn and dialC is set. Only the session goroutine touches it.
type packetizerState struct {
	conn  *activeConn
	dialC <-chan dialResult

	// dialRes stashes a dial completion the run loop already received.
	dialRes *dialResult
	// adopted carries the previous connection's installed watchers across
	// the reconnect.
	adopted map[watchPathType][]chan<- proto.WatcherEvent

	dialer       Dialer
	metrics      *sessionMetrics
	pingInterval time.Duration
}

func (s *packetizerState) connected() bool {
	return s.conn != nil
}

// poll steps whichever variant is current. A completed dial collapses
// Reconnecting into Connected and re-polls within the same turn, so the
// transition costs no scheduling tick.
func (s *packetizerState) poll(exiting bool, lg *zap.Logger, defaultWatcher chan<- proto.WatcherEvent) (bool, error) {
	if s.conn != nil {
		done, err := s.conn.poll(exiting, lg, defaultWatcher)
		if err == errTransportLost && !exiting && s.dialer != nil {
			s.beginReconnect(lg, defaultWatcher)
			return false, nil
		}
		return done, err
	}

	res, ok := s.takeDial()
	if !ok {
		return false, nil
	}
	if res.err != nil {
		return false, errors.Wrap(res.err, "reconnect failed")
	}
	conn := newActiveConn(res.transport, s.metrics, s.pingInterval)
	conn.adoptWatchers(s.adopted)
	s.conn, s.dialC, s.adopted = conn, nil, nil
	lg.Info("session reconnected")
	sendEvent(defaultWatcher, proto.WatcherEvent{Type: proto.EventSession, State: proto.StateHasSession}, lg)
	return s.poll(exiting, lg, defaultWatcher)
}

// beginReconnect tears the dead connection down, failing its in-flight
// requests with the connection-loss code, and spawns the dial task.
func (s *packetizerState) beginReconnect(lg *zap.Logger, defaultWatcher chan<- proto.WatcherEvent) {
	s.metrics.reconnect()
	lg.Warn("connection lost, reconnecting")
	s.adopted = s.conn.watchers
	s.conn.teardown()
	s.conn = nil
	sendEvent(defaultWatcher, proto.WatcherEvent{Type: proto.EventSession, State: proto.StateDisconnected}, lg)

	ch := make(chan dialResult, 1)
	s.dialC = ch
	go func(d Dialer) {
		t, err := d.Dial()
		ch <- dialResult{transport: t, err: err}
	}(s.dialer)
}

func (s *packetizerState) takeDial() (dialResult, bool) {
	if s.dialRes != nil {
		res := *s.dialRes
		s.dialRes = nil
		return res, true
	}
	select {
	case res := <-s.dialC:
		return res, true
	default:
		return dialResult{}, false
	}
}

// stashDial records a dial completion the run loop received while waiting.
func (s *packetizerState) stashDial(res dialResult) {
	s.dialRes = &res
}
