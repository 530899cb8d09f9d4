package zk

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
)

// Reply is the application-level outcome of one round-tripped request.
type Reply struct {
	// Resp is the decoded response body, nil when Err is set. Its concrete
	// type follows the request: *proto.GetDataResponse for a
	// *proto.GetDataRequest, and so on.
	Resp interface{}
	Zxid int64
	// Err is the server-reported error for this request, mapped through
	// zkerrors.Error. Nil on success.
	Err error
}

// Future resolves with the reply to one enqueued request. Dropping a Future
// does not retract the request; it is sent and processed regardless.
type Future struct {
	ch  <-chan Reply
	err error
}

// Wait blocks until the reply arrives, the session dies, or ctx ends. The
// returned error is a communication-level failure (ErrSessionClosed,
// ErrConnectionLost, or ctx's error); server errors ride inside the Reply.
func (f *Future) Wait(ctx context.Context) (Reply, error) {
	if f.err != nil {
		return Reply{}, f.err
	}
	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case r, ok := <-f.ch:
		if !ok {
			return Reply{}, ErrConnectionLost
		}
		return r, nil
	}
}

// Enqueuer submits requests into a session. Clones share one queue and may
// be used concurrently; closing the last clone closes the queue, which the
// packetizer reads as the end-of-session signal.
type Enqueuer struct {
	q    *requestQueue
	refs *atomic.Int32
	once sync.Once
}

func newEnqueuer(q *requestQueue) *Enqueuer {
	return &Enqueuer{q: q, refs: atomic.NewInt32(1)}
}

// Clone returns another handle on the same session. Each clone must be
// closed independently.
func (e *Enqueuer) Clone() *Enqueuer {
	e.refs.Inc()
	return &Enqueuer{q: e.q, refs: e.refs}
}

// Close releases this handle. The last Close begins the session's clean
// shutdown. Closing a clone twice is harmless.
func (e *Enqueuer) Close() {
	e.once.Do(func() {
		if e.refs.Dec() == 0 {
			e.q.close()
		}
	})
}

// Enqueue submits req and returns the future reply. It never blocks; when
// the session is already gone the future is failed with ErrSessionClosed
// without touching the session.
func (e *Enqueuer) Enqueue(req proto.Request) *Future {
	reply := make(chan Reply, 1)
	if err := e.q.push(queueItem{req: req, reply: reply}); err != nil {
		return &Future{err: err}
	}
	return &Future{ch: reply}
}
