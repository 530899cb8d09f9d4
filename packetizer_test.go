package zk

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
	"github.com/kellymclaughlin/tokio-zookeeper/zkerrors"
)

func newTestPacketizer(tt *testTransport, dialer Dialer) (*packetizer, *Enqueuer, chan proto.WatcherEvent) {
	metrics := newSessionMetrics(nil)
	events := make(chan proto.WatcherEvent, 16)
	q := newRequestQueue()
	p := &packetizer{
		addr: "test",
		state: &packetizerState{
			conn:    newActiveConn(tt, metrics, 0),
			dialer:  dialer,
			metrics: metrics,
		},
		defaultWatcher: events,
		q:              q,
		lg:             zap.NewNop(),
	}
	return p, newEnqueuer(q), events
}

// pollUntil drives the packetizer as a scheduler would, until cond holds.
func pollUntil(t *testing.T, p *packetizer, cond func() bool) {
	t.Helper()
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		if _, err := p.poll(); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func TestXidsAssignedInSubmissionOrder(t *testing.T) {
	tt := newTestTransport()
	p, enq, _ := newTestPacketizer(tt, nil)
	defer p.state.conn.stop()

	ops := []proto.Request{
		&proto.CreateRequest{Path: "/a"},
		&proto.GetDataRequest{Path: "/a"},
		&proto.SetDataRequest{Path: "/a", Version: -1},
		&proto.GetChildren2Request{Path: "/"},
		&proto.DeleteRequest{Path: "/a", Version: -1},
	}
	for _, req := range ops {
		enq.Enqueue(req)
	}

	_, err := p.poll()
	require.NoError(t, err)

	frames := parseSentFrames(t, tt.sentBytes())
	require.Len(t, frames, len(ops))
	for i, fr := range frames {
		assert.Equal(t, int32(i), fr.header.Xid, "no gaps or repeats")
		assert.Equal(t, ops[i].Opcode(), fr.header.Opcode)
	}
	assert.Equal(t, int32(len(ops)), p.xid)
}

func TestCustomWatchScenario(t *testing.T) {
	tt := newTestTransport()
	p, enq, _ := newTestPacketizer(tt, nil)
	defer p.state.conn.stop()

	sinkA := make(chan proto.WatcherEvent, 1)
	sinkC := make(chan proto.WatcherEvent, 1)
	enq.Enqueue(&proto.GetDataRequest{Path: "/a", Watch: proto.CustomWatch(sinkA)})
	enq.Enqueue(&proto.ExistsRequest{Path: "/b"})
	enq.Enqueue(&proto.GetChildren2Request{Path: "/c", Watch: proto.CustomWatch(sinkC)})

	_, err := p.poll()
	require.NoError(t, err)

	conn := p.state.conn
	require.Len(t, conn.pendingWatchers, 2)
	assert.Equal(t, watchTypeData, conn.pendingWatchers[0].wType)
	assert.Equal(t, "/a", conn.pendingWatchers[0].path)
	assert.Equal(t, watchTypeChild, conn.pendingWatchers[2].wType)
	assert.Equal(t, "/c", conn.pendingWatchers[2].path)

	frames := parseSentFrames(t, tt.sentBytes())
	require.Len(t, frames, 3)
	// the wire form carries only a boolean watch bit, last in each body
	assert.Equal(t, byte(1), frames[0].body[len(frames[0].body)-1], "custom rides the wire as set")
	assert.Equal(t, byte(0), frames[1].body[len(frames[1].body)-1], "no watch requested")
	assert.Equal(t, byte(1), frames[2].body[len(frames[2].body)-1])
}

func TestCloseWithEmptyQueueSendsClosePacket(t *testing.T) {
	tt := newTestTransport()
	p, enq, _ := newTestPacketizer(tt, nil)

	enq.Close()
	done, err := p.poll()
	require.NoError(t, err)
	assert.False(t, done, "still waiting for the server to hang up")
	assert.True(t, p.exiting)
	assert.Equal(t, closePacket, tt.sentBytes(), "exactly one 12-byte close packet")

	// a further poll does not emit a second close packet
	_, err = p.poll()
	require.NoError(t, err)
	assert.Equal(t, closePacket, tt.sentBytes())

	tt.endStream()
	pumpFrame(t, p.state.conn)
	done, err = p.poll()
	require.NoError(t, err)
	assert.True(t, done)

	f := enq.Enqueue(&proto.SyncRequest{Path: "/"})
	_, err = f.Wait(context.Background())
	assert.Equal(t, ErrSessionClosed, err)
}

func TestCloseDrainsQueuedRequestsFirst(t *testing.T) {
	tt := newTestTransport()
	p, enq, _ := newTestPacketizer(tt, nil)

	enq.Enqueue(&proto.CreateRequest{Path: "/a"})
	enq.Enqueue(&proto.CreateRequest{Path: "/b"})
	enq.Enqueue(&proto.CreateRequest{Path: "/c"})
	enq.Close()

	_, err := p.poll()
	require.NoError(t, err)
	require.True(t, p.exiting)

	sent := tt.sentBytes()
	require.True(t, bytes.HasSuffix(sent, closePacket), "close packet goes last")
	frames := parseSentFrames(t, sent[:len(sent)-len(closePacket)])
	require.Len(t, frames, 3)
	for i, fr := range frames {
		assert.Equal(t, int32(i), fr.header.Xid)
	}
}

func TestReconnectPreservesQueueAndXids(t *testing.T) {
	t1 := newTestTransport()
	t2 := newTestTransport()
	p, enq, events := newTestPacketizer(t1, DialerFunc(func() (Transport, error) { return t2, nil }))

	fa := enq.Enqueue(&proto.CreateRequest{Path: "/a"})
	_, err := p.poll()
	require.NoError(t, err)
	require.Len(t, parseSentFrames(t, t1.sentBytes()), 1)

	// the server goes away with A in flight and the queue empty
	t1.endStream()
	pumpFrame(t, p.state.conn)
	_, err = p.poll()
	require.NoError(t, err, "loss with a dialer is not fatal")
	assert.False(t, p.state.connected())
	assert.Equal(t, proto.StateDisconnected, (<-events).State)

	ra, err := fa.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, zkerrors.ErrConnectionLoss, ra.Err, "in-flight requests fail, never retried")

	// B lands in the queue while reconnecting and stays there
	fb := enq.Enqueue(&proto.CreateRequest{Path: "/b"})
	_, err = p.poll()
	require.NoError(t, err)

	pollUntil(t, p, p.state.connected)
	assert.Equal(t, proto.StateHasSession, (<-events).State)

	pollUntil(t, p, func() bool { return len(t2.sentBytes()) > 0 })
	frames := parseSentFrames(t, t2.sentBytes())
	require.Len(t, frames, 1)
	assert.Equal(t, int32(1), frames[0].header.Xid, "xids continue, never reassigned")
	assert.Equal(t, "/b", mustDecodeCreatePath(t, frames[0].body))

	p.state.conn.stop()
	_ = fb
}

func mustDecodeCreatePath(t *testing.T, body []byte) string {
	t.Helper()
	req := &proto.CreateRequest{}
	_, err := proto.DecodePacket(body, req)
	require.NoError(t, err)
	return req.Path
}

func TestWatcherAdoptionAcrossReconnect(t *testing.T) {
	t1 := newTestTransport()
	t2 := newTestTransport()
	p, enq, _ := newTestPacketizer(t1, DialerFunc(func() (Transport, error) { return t2, nil }))

	custom := make(chan proto.WatcherEvent, 1)
	f := enq.Enqueue(&proto.GetDataRequest{Path: "/w", Watch: proto.CustomWatch(custom)})
	_, err := p.poll()
	require.NoError(t, err)

	t1.deliver(replyFrame(t, &proto.ResponseHeader{Xid: 0}, &proto.GetDataResponse{}))
	pumpFrame(t, p.state.conn)
	_, err = p.poll()
	require.NoError(t, err)
	_, err = f.Wait(context.Background())
	require.NoError(t, err)

	t1.endStream()
	pumpFrame(t, p.state.conn)
	_, err = p.poll()
	require.NoError(t, err)
	pollUntil(t, p, p.state.connected)

	ev := &proto.WatcherEvent{Type: proto.EventNodeDataChanged, State: proto.StateSyncConnected, Path: "/w"}
	t2.deliver(eventFrame(t, ev))
	pumpFrame(t, p.state.conn)
	_, err = p.poll()
	require.NoError(t, err)

	got, ok := <-custom
	require.True(t, ok, "adopted watcher still fires on the new connection")
	assert.Equal(t, *ev, got)
	p.state.conn.stop()
}

func TestLossWithoutDialerIsFatal(t *testing.T) {
	tt := newTestTransport()
	p, _, _ := newTestPacketizer(tt, nil)

	tt.endStream()
	pumpFrame(t, p.state.conn)
	_, err := p.poll()
	assert.Equal(t, errTransportLost, err)
}

func TestReconnectDialFailureIsFatal(t *testing.T) {
	tt := newTestTransport()
	dialErr := errors.New("no servers left")
	p, _, _ := newTestPacketizer(tt, DialerFunc(func() (Transport, error) { return nil, dialErr }))

	tt.endStream()
	pumpFrame(t, p.state.conn)
	_, err := p.poll()
	require.NoError(t, err)

	var got error
	for i := 0; i < 500 && got == nil; i++ {
		_, got = p.poll()
		time.Sleep(2 * time.Millisecond)
	}
	require.Error(t, got)
	assert.ErrorIs(t, got, dialErr)
}
