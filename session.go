package zk

import (
	"time"

	"github.com/pkg/errors"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
)

type sessionOptions struct {
	logger       *zap.Logger
	scope        tally.Scope
	pingInterval time.Duration
	eventBuffer  int
}

// Option configures a session at construction.
type Option func(*sessionOptions)

// WithLogger sets the session logger. The default is a nop logger.
func WithLogger(lg *zap.Logger) Option {
	return func(o *sessionOptions) { o.logger = lg }
}

// WithMetricsScope reports session metrics into scope, typically a child of
// RootScope.
func WithMetricsScope(scope tally.Scope) Option {
	return func(o *sessionOptions) { o.scope = scope }
}

// WithPingInterval overrides the keepalive interval. Zero disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(o *sessionOptions) { o.pingInterval = d }
}

// WithEventBuffer sizes the default watch channel.
func WithEventBuffer(n int) Option {
	return func(o *sessionOptions) { o.eventBuffer = n }
}

// Session is one live coordination-service session. Requests flow in
// through the Enqueuer; watch notifications without a custom sink flow out
// on Events.
type Session struct {
	enq    *Enqueuer
	events chan proto.WatcherEvent
	done   chan struct{}
	err    error
}

// NewSession dials the first connection through dialer and spawns the
// session goroutine. The same dialer replaces lost connections; the session
// ends fatally on a loss it cannot redial.
func NewSession(addr string, dialer Dialer, opts ...Option) (*Session, error) {
	o := sessionOptions{
		logger:       zap.NewNop(),
		pingInterval: DefaultPingInterval,
		eventBuffer:  64,
	}
	for _, opt := range opts {
		opt(&o)
	}

	t, err := dialer.Dial()
	if err != nil {
		return nil, errors.Wrapf(err, "connect %v", addr)
	}

	metrics := newSessionMetrics(o.scope)
	events := make(chan proto.WatcherEvent, o.eventBuffer)
	q := newRequestQueue()
	p := &packetizer{
		addr: addr,
		state: &packetizerState{
			conn:         newActiveConn(t, metrics, o.pingInterval),
			dialer:       dialer,
			metrics:      metrics,
			pingInterval: o.pingInterval,
		},
		defaultWatcher: events,
		q:              q,
		lg:             o.logger.With(zap.String("addr", addr)),
	}

	s := &Session{
		enq:    newEnqueuer(q),
		events: events,
		done:   make(chan struct{}),
	}
	go s.run(p)
	return s, nil
}

func (s *Session) run(p *packetizer) {
	for {
		done, err := p.poll()
		if err != nil {
			p.lg.Error("packetizer exiting", zap.Error(err))
			s.fail(p, err)
			return
		}
		if done {
			p.lg.Debug("session closed cleanly")
			close(s.events)
			close(s.done)
			return
		}
		p.wait()
	}
}

// fail terminates the session on a fatal error: the queue stops accepting,
// and everything still waiting for a reply is abandoned.
func (s *Session) fail(p *packetizer, err error) {
	s.err = err
	p.q.close()
	for {
		item, st := p.q.pop()
		if st != popItem {
			break
		}
		close(item.reply)
	}
	if c := p.state.conn; c != nil {
		c.abort()
	}
	close(s.events)
	close(s.done)
}

// Enqueuer returns the session's submission handle. Closing the last clone
// shuts the session down cleanly.
func (s *Session) Enqueuer() *Enqueuer {
	return s.enq
}

// Events is the default watch channel: global watch notifications and the
// session-state events emitted around reconnects.
func (s *Session) Events() <-chan proto.WatcherEvent {
	return s.events
}

// Done closes when the session goroutine has terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err blocks until the session ends and reports why. It is nil after a
// clean shutdown.
func (s *Session) Err() error {
	<-s.done
	return s.err
}
