package zk

import (
	"sync"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
)

// queueItem pairs a request with the channel its eventual reply resolves.
type queueItem struct {
	req   proto.Request
	reply chan<- Reply
}

type popState int

const (
	popItem popState = iota
	popEmpty
	popClosed
)

// requestQueue is the unbounded many-sender FIFO between Enqueuer clones and
// the packetizer. Senders never block; popClosed is observed only once every
// item pushed before the close has drained, which is the normal
// end-of-session signal.
type requestQueue struct {
	mu     sync.Mutex
	items  []queueItem
	closed bool

	wake chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{wake: make(chan struct{}, 1)}
}

func (q *requestQueue) push(it queueItem) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrSessionClosed
	}
	q.items = append(q.items, it)
	q.mu.Unlock()
	q.notify()
	return nil
}

func (q *requestQueue) pop() (queueItem, popState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		if q.closed {
			return queueItem{}, popClosed
		}
		return queueItem{}, popEmpty
	}
	it := q.items[0]
	q.items[0] = queueItem{}
	q.items = q.items[1:]
	return it, popItem
}

func (q *requestQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

func (q *requestQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// ready returns the channel the session goroutine blocks on for new work.
func (q *requestQueue) ready() <-chan struct{} {
	return q.wake
}
