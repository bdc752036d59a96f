package ipc

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/kernel/resource"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

const (
	// MaxMessageBytes is the largest accepted message payload.
	MaxMessageBytes = 4096
	// QueueDepth bounds queued messages per direction.
	QueueDepth = 16
)

// channel is the state shared by an endpoint pair: one bounded FIFO per
// direction plus per-endpoint closure flags. dirs[i] holds messages flowing
// toward endpoint i.
type channel struct {
	mu     sync.Mutex
	dirs   [2][][]byte
	closed [2]bool
	eps    [2]*Endpoint
}

// Endpoint is one side of a channel and the Resource installed in a handle
// table. The pair shares the queue state; each endpoint carries its own
// wakers and mailbox back-reference.
type Endpoint struct {
	ch   *channel
	side int

	// recvWaker fires when a message arrives for this endpoint or the peer
	// closes; sendWaker fires when space frees in the peer-bound direction.
	recvWaker *resource.Waker
	sendWaker *resource.Waker
	att       resource.Attachment
}

// NewPair creates a connected endpoint pair atomically.
func NewPair(wake resource.WakeFunc) (*Endpoint, *Endpoint) {
	ch := &channel{}
	for i := range ch.eps {
		ch.eps[i] = &Endpoint{
			ch:        ch,
			side:      i,
			recvWaker: resource.NewWaker(wake),
			sendWaker: resource.NewWaker(wake),
		}
	}
	return ch.eps[0], ch.eps[1]
}

// Kind implements resource.Resource.
func (e *Endpoint) Kind() types.HandleKind { return types.KindChannel }

// Events implements resource.Resource.
func (e *Endpoint) Events() types.Events {
	return types.EventReadable | types.EventWritable | types.EventPeerClosed
}

// Attach implements resource.Resource.
func (e *Endpoint) Attach(p resource.Poster, h types.Handle, mask types.Events) {
	e.att.Set(p, h, mask)

	// Level-triggered: report conditions that already hold.
	e.ch.mu.Lock()
	var pending types.Events
	if len(e.ch.dirs[e.side]) > 0 {
		pending |= types.EventReadable
	}
	if len(e.ch.dirs[e.peer()]) < QueueDepth && !e.ch.closed[e.peer()] {
		pending |= types.EventWritable
	}
	if e.ch.closed[e.peer()] {
		pending |= types.EventPeerClosed
	}
	e.ch.mu.Unlock()

	if pending != 0 {
		e.att.Notify(pending)
	}
}

// Detach implements resource.Resource.
func (e *Endpoint) Detach(p resource.Poster) { e.att.Clear(p) }

func (e *Endpoint) peer() int { return 1 - e.side }

// TrySend enqueues one whole message toward the peer without blocking.
func (e *Endpoint) TrySend(msg []byte) types.Errno {
	if len(msg) > MaxMessageBytes {
		return types.ErrMsgTooBig
	}

	ch := e.ch
	ch.mu.Lock()

	if ch.closed[e.peer()] {
		ch.mu.Unlock()
		return types.ErrPeerClosed
	}
	if ch.closed[e.side] {
		ch.mu.Unlock()
		return types.ErrBadHandle
	}

	dir := &ch.dirs[e.peer()]
	if len(*dir) >= QueueDepth {
		ch.mu.Unlock()
		return types.ErrWouldBlock
	}

	owned := make([]byte, len(msg))
	copy(owned, msg)
	*dir = append(*dir, owned)
	peer := ch.eps[e.peer()]
	ch.mu.Unlock()

	peer.recvWaker.Wake()
	peer.att.Notify(types.EventReadable)
	return types.OK
}

// TryRecv dequeues one whole message without blocking. The returned errno is
// would-block while the peer lives and peer-closed once the queue drains
// after closure.
func (e *Endpoint) TryRecv() ([]byte, types.Errno) {
	return e.TryRecvLimit(MaxMessageBytes)
}

// TryRecvLimit is TryRecv with a receiver buffer bound. A head message larger
// than limit stays queued and the call fails, so messages are delivered whole
// or not at all.
func (e *Endpoint) TryRecvLimit(limit int) ([]byte, types.Errno) {
	ch := e.ch
	ch.mu.Lock()

	dir := &ch.dirs[e.side]
	if len(*dir) == 0 {
		peerClosed := ch.closed[e.peer()]
		ch.mu.Unlock()
		if peerClosed {
			return nil, types.ErrPeerClosed
		}
		return nil, types.ErrWouldBlock
	}

	if len((*dir)[0]) > limit {
		ch.mu.Unlock()
		return nil, types.ErrMsgTooBig
	}

	msg := (*dir)[0]
	*dir = (*dir)[1:]
	freedSpace := len(*dir) == QueueDepth-1
	peer := ch.eps[e.peer()]
	ch.mu.Unlock()

	if freedSpace {
		// The sender side blocks on the peer endpoint's send waker.
		peer.sendWaker.Wake()
		peer.att.Notify(types.EventWritable)
	}
	return msg, types.OK
}

// Close implements resource.Resource. The peer transitions into an
// observable closed state; its own queued messages stay readable until
// drained. Closing twice is a no-op.
func (e *Endpoint) Close() {
	ch := e.ch
	ch.mu.Lock()
	if ch.closed[e.side] {
		ch.mu.Unlock()
		return
	}
	ch.closed[e.side] = true
	// Messages addressed to the closed endpoint have no reader left.
	ch.dirs[e.side] = nil
	peer := ch.eps[e.peer()]
	ch.mu.Unlock()

	// Unblock the peer whichever way it is waiting.
	peer.recvWaker.Wake()
	peer.sendWaker.Wake()
	peer.att.Notify(types.EventPeerClosed)
}

// RecvWaker exposes the waker a blocking receive registers with.
func (e *Endpoint) RecvWaker() *resource.Waker { return e.recvWaker }

// SendWaker exposes the waker a blocking send registers with.
func (e *Endpoint) SendWaker() *resource.Waker { return e.sendWaker }

// Depth reports queued message counts (inbound, outbound) for the monitor
// API.
func (e *Endpoint) Depth() (in, out int) {
	e.ch.mu.Lock()
	defer e.ch.mu.Unlock()
	return len(e.ch.dirs[e.side]), len(e.ch.dirs[e.peer()])
}

// PeerClosed reports whether the remote endpoint has closed.
func (e *Endpoint) PeerClosed() bool {
	e.ch.mu.Lock()
	defer e.ch.mu.Unlock()
	return e.ch.closed[e.peer()]
}
