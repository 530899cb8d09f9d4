package zk

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
	"github.com/kellymclaughlin/tokio-zookeeper/zkerrors"
)

// pendingRequest tracks one in-flight request until its reply header comes
// back.
type pendingRequest struct {
	op    proto.OpType
	reply chan<- Reply
	sent  time.Time
}

type frameResult struct {
	buf []byte
	err error
}

// activeConn drives one live transport. It owns the outbound byte buffer,
// the in-flight table, and both watch side tables. A reader goroutine
// deframes inbound packets onto frames; everything else is touched only by
// the session goroutine.
type activeConn struct {
	transport Transport

	// outbox holds fully framed bytes waiting for the transport. The
	// packetizer appends the close-session packet here directly.
	outbox []byte

	frames  chan frameResult
	stashed []frameResult
	done    chan struct{}

	// pending maps in-flight xids to their reply destinations.
	pending map[int32]*pendingRequest
	// pendingWatchers holds custom-watch registrations keyed by the xid of
	// the request that carried them, until the matching reply confirms or
	// rejects the watch.
	pendingWatchers map[int32]watchRegistration
	// watchers holds confirmed custom sinks by path and watch type.
	watchers map[watchPathType][]chan<- proto.WatcherEvent

	metrics      *sessionMetrics
	pingInterval time.Duration
	lastSend     time.Time

	closeSent bool
	stopped   bool
}

func newActiveConn(t Transport, metrics *sessionMetrics, pingInterval time.Duration) *activeConn {
	c := &activeConn{
		transport:       t,
		frames:          make(chan frameResult, 64),
		done:            make(chan struct{}),
		pending:         make(map[int32]*pendingRequest),
		pendingWatchers: make(map[int32]watchRegistration),
		watchers:        make(map[watchPathType][]chan<- proto.WatcherEvent),
		metrics:         metrics,
		pingInterval:    pingInterval,
		lastSend:        time.Now(),
	}
	go c.readLoop()
	return c
}

// adoptWatchers carries the installed watchers of a torn-down connection
// over to this one.
func (c *activeConn) adoptWatchers(watchers map[watchPathType][]chan<- proto.WatcherEvent) {
	if watchers != nil {
		c.watchers = watchers
	}
}

func (c *activeConn) readLoop() {
	for {
		buf, err := readFrame(c.transport)
		select {
		case c.frames <- frameResult{buf: buf, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// readFrame reads one length-prefixed frame: a big-endian int32 byte count
// and that many payload bytes.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := int(int32(binary.BigEndian.Uint32(lenBuf[:])))
	if n < 0 || n > bufferSize {
		return nil, errors.Errorf("frame length %d out of range", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// enqueue frames req under xid and records where its reply goes. It never
// blocks. An encode failure resolves that one request with the marshalling
// error code and leaves the connection healthy.
func (c *activeConn) enqueue(xid int32, req proto.Request, reply chan<- Reply) {
	frame, err := proto.EncodeFrame(&proto.RequestHeader{Xid: xid, Opcode: req.Opcode()}, req)
	if err != nil {
		delete(c.pendingWatchers, xid)
		resolve(reply, Reply{Err: zkerrors.ErrMarshallingError})
		return
	}
	c.pending[xid] = &pendingRequest{op: req.Opcode(), reply: reply, sent: time.Now()}
	c.outbox = append(c.outbox, frame...)
	c.metrics.requestEnqueued(req.Opcode())
}

// poll is the connection's cooperative step: flush the outbox, then process
// whatever the reader has decoded, without blocking. It reports done only
// when the stream ended cleanly after the close packet; a lost transport
// while not exiting is reported as errTransportLost for the state layer to
// convert.
func (c *activeConn) poll(exiting bool, lg *zap.Logger, defaultWatcher chan<- proto.WatcherEvent) (bool, error) {
	if !exiting && c.pingInterval > 0 && time.Since(c.lastSend) >= c.pingInterval {
		c.enqueuePing(lg)
	}
	if err := c.flush(); err != nil {
		if exiting {
			return false, errors.Wrap(err, "flush close packet")
		}
		lg.Warn("write failed", zap.Error(err))
		return false, errTransportLost
	}

	for {
		fr, ok := c.nextFrame()
		if !ok {
			return false, nil
		}
		if fr.err != nil {
			if exiting {
				if fr.err == io.EOF && c.closeSent {
					c.shutdown(lg)
					return true, nil
				}
				return false, errors.Wrap(fr.err, "read during shutdown")
			}
			lg.Warn("read failed", zap.Error(fr.err))
			return false, errTransportLost
		}
		c.handleFrame(fr.buf, lg, defaultWatcher)
	}
}

func (c *activeConn) flush() error {
	for len(c.outbox) > 0 {
		n, err := c.transport.Write(c.outbox)
		c.outbox = c.outbox[n:]
		if err != nil {
			return err
		}
		c.lastSend = time.Now()
	}
	return nil
}

func (c *activeConn) nextFrame() (frameResult, bool) {
	if len(c.stashed) > 0 {
		fr := c.stashed[0]
		c.stashed = c.stashed[1:]
		return fr, true
	}
	select {
	case fr := <-c.frames:
		return fr, true
	default:
		return frameResult{}, false
	}
}

// stash queues a frame the run loop already received from frames, so the
// next poll processes it.
func (c *activeConn) stash(fr frameResult) {
	c.stashed = append(c.stashed, fr)
}

func (c *activeConn) handleFrame(buf []byte, lg *zap.Logger, defaultWatcher chan<- proto.WatcherEvent) {
	header := &proto.ResponseHeader{}
	n, err := proto.DecodePacket(buf, header)
	if err != nil {
		lg.Error("failed to decode header", zap.Error(err), zap.Binary("frame", buf))
		return
	}
	switch header.Xid {
	case xidWatcherEvent:
		ev := &proto.WatcherEvent{}
		if _, err := proto.DecodePacket(buf[n:], ev); err != nil {
			lg.Error("failed to decode watcher event", zap.Error(err), zap.Object("header", header))
			return
		}
		lg.Debug("watcher event", zap.Object("event", ev))
		c.dispatchWatch(*ev, lg, defaultWatcher)
	case xidPing:
		lg.Debug("ping reply")
	default:
		// xid 0 is a real request id; it only means close-session ack
		// once the close packet has gone out
		if header.Xid == 0 && c.closeSent {
			lg.Debug("close acknowledged", zap.Object("header", header))
			return
		}
		c.handleReply(header, buf[n:], lg)
	}
}

func (c *activeConn) handleReply(header *proto.ResponseHeader, body []byte, lg *zap.Logger) {
	p, ok := c.pending[header.Xid]
	if !ok {
		lg.Warn("reply for unknown xid", zap.Object("header", header))
		return
	}
	delete(c.pending, header.Xid)
	c.metrics.replyObserved(p.op, time.Since(p.sent))

	if reg, ok := c.pendingWatchers[header.Xid]; ok {
		delete(c.pendingWatchers, header.Xid)
		// an exists on a missing node still leaves an exist watch behind
		if header.Err == zkerrors.CodeOk ||
			(header.Err == zkerrors.CodeNoNode && reg.wType == watchTypeExist) {
			wpt := watchPathType{path: reg.path, wType: reg.wType}
			c.watchers[wpt] = append(c.watchers[wpt], reg.sink)
			lg.Debug("installed watcher", zap.String("path", reg.path), zap.Object("wtype", reg.wType))
		}
	}

	if header.Err != zkerrors.CodeOk {
		resolve(p.reply, Reply{Zxid: header.Zxid, Err: zkerrors.Error(header.Err)})
		return
	}
	res := proto.ResponseStructForOp(p.op)
	if res == nil {
		resolve(p.reply, Reply{Zxid: header.Zxid})
		return
	}
	if _, err := proto.DecodePacket(body, res); err != nil {
		lg.Error("failed to decode response body", zap.Error(err), zap.Object("header", header))
		resolve(p.reply, Reply{Zxid: header.Zxid, Err: zkerrors.ErrMarshallingError})
		return
	}
	resolve(p.reply, Reply{Resp: res, Zxid: header.Zxid})
}

// dispatchWatch fires matching custom one-shots exactly once and always
// forwards the event to the default channel.
func (c *activeConn) dispatchWatch(ev proto.WatcherEvent, lg *zap.Logger, defaultWatcher chan<- proto.WatcherEvent) {
	c.metrics.watchEventDelivered()
	for _, wpt := range watchPathTypes(ev) {
		for _, sink := range c.watchers[wpt] {
			sendEvent(sink, ev, lg)
			close(sink)
		}
		delete(c.watchers, wpt)
	}
	sendEvent(defaultWatcher, ev, lg)
}

func (c *activeConn) enqueuePing(lg *zap.Logger) {
	frame, err := proto.EncodeFrame(&proto.RequestHeader{Xid: xidPing, Opcode: proto.OpPing}, &proto.PingRequest{})
	if err != nil {
		return
	}
	lg.Debug("pinging")
	c.outbox = append(c.outbox, frame...)
}

// shutdown finishes a clean exit: anything the server closed the stream on
// without answering resolves with the closing code.
func (c *activeConn) shutdown(lg *zap.Logger) {
	for xid, p := range c.pending {
		resolve(p.reply, Reply{Err: zkerrors.ErrClosing})
		delete(c.pending, xid)
	}
	c.stop()
	lg.Debug("connection closed cleanly")
}

// teardown fails every in-flight request with the connection-loss code and
// releases the transport. Pending watchers die with their requests;
// installed watchers stay for adoption by the replacement connection.
func (c *activeConn) teardown() {
	for xid, p := range c.pending {
		resolve(p.reply, Reply{Err: zkerrors.ErrConnectionLoss})
		delete(c.pending, xid)
	}
	for xid := range c.pendingWatchers {
		delete(c.pendingWatchers, xid)
	}
	c.stop()
}

// abort abandons every in-flight request without resolution; their futures
// observe ErrConnectionLost.
func (c *activeConn) abort() {
	for xid, p := range c.pending {
		close(p.reply)
		delete(c.pending, xid)
	}
	c.stop()
}

func (c *activeConn) stop() {
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.done)
	c.transport.Close()
}

// resolve writes the single reply and closes the channel, so Future.Wait can
// tell a written reply from abandonment.
func resolve(ch chan<- Reply, r Reply) {
	ch <- r
	close(ch)
}

// sendEvent delivers without blocking; a full sink drops the event rather
// than stalling the session.
func sendEvent(sink chan<- proto.WatcherEvent, ev proto.WatcherEvent, lg *zap.Logger) {
	if sink == nil {
		return
	}
	select {
	case sink <- ev:
	default:
		lg.Warn("dropping watch event", zap.Object("event", &ev))
	}
}
