package zk

import (
	"time"

	"go.uber.org/zap"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
)

// packetizer owns one session end to end: the state variant, the inbound
// request queue, and the xid counter. Every field is touched only by the
// session goroutine, so none of it is synchronized.
type packetizer struct {
	addr           string
	state          *packetizerState
	defaultWatcher chan<- proto.WatcherEvent
	q              *requestQueue

	// xid is the next correlation id to issue: monotonically increasing
	// from 0, one per request, never reused. It wraps after ~2^31 requests,
	// an accepted limitation.
	xid     int32
	exiting bool

	lg *zap.Logger
}

// poll is one cooperative step: drain the queue onto the connection, then
// step the state. It reports done only once the state does, meaning the
// close packet flushed and the stream ended cleanly.
func (p *packetizer) poll() (bool, error) {
	if !p.exiting {
		p.drain()
	}
	return p.state.poll(p.exiting, p.lg, p.defaultWatcher)
}

// drain moves queued requests onto the live connection in FIFO order,
// assigning xids as it goes. A closed and empty queue flips the session into
// its shutdown sequence.
func (p *packetizer) drain() {
	for p.state.connected() {
		item, st := p.q.pop()
		switch st {
		case popEmpty:
			return
		case popClosed:
			conn := p.state.conn
			if conn == nil {
				// drain only runs while connected
				panic("zk: queue reported closed while not connected")
			}
			p.exiting = true
			p.lg.Debug("no more requests, sending close packet")
			conn.outbox = append(conn.outbox, closePacket...)
			conn.closeSent = true
			return
		}

		conn := p.state.conn
		p.lg.Debug("enqueueing request", zap.Int32("xid", p.xid), zap.Object("op", item.req.Opcode()))
		if reg := stripCustomWatch(item.req); reg != nil {
			// the registration is keyed by the xid this request is about to
			// be sent under
			p.lg.Debug("adding pending watcher",
				zap.Int32("xid", p.xid),
				zap.String("path", reg.path),
				zap.Object("wtype", reg.wType),
			)
			conn.pendingWatchers[p.xid] = *reg
		}
		conn.enqueue(p.xid, item.req, item.reply)
		p.xid++
	}
}

// wait blocks until another poll can make progress: a queued request, an
// inbound frame, a completed dial, or the ping deadline.
func (p *packetizer) wait() {
	var wake <-chan struct{}
	if !p.exiting {
		wake = p.q.ready()
	}

	var frames <-chan frameResult
	var dial <-chan dialResult
	var ping <-chan time.Time
	if c := p.state.conn; c != nil {
		frames = c.frames
		if !p.exiting && c.pingInterval > 0 {
			wait := c.pingInterval - time.Since(c.lastSend)
			if wait < 0 {
				wait = 0
			}
			t := time.NewTimer(wait)
			defer t.Stop()
			ping = t.C
		}
	} else {
		dial = p.state.dialC
	}

	select {
	case <-wake:
	case fr := <-frames:
		p.state.conn.stash(fr)
	case res := <-dial:
		p.state.stashDial(res)
	case <-ping:
	}
}
