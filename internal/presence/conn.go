package presence

import (
	"sync"

	"skedit/pkg/auth"

	"github.com/google/uuid"
)

// Conn is one authenticated realtime session. Its identity is fixed at
// upgrade time. Outbound frames go through a bounded queue drained by the
// transport's write loop.
type Conn struct {
	id        string
	principal *auth.Principal
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// rooms is guarded by the owning hub's mutex.
	rooms map[string]struct{}
}

func NewConn(principal *auth.Principal, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &Conn{
		id:        uuid.NewString(),
		principal: principal,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
		rooms:     make(map[string]struct{}),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) UserID() string {
	return c.principal.UserID
}

func (c *Conn) Principal() *auth.Principal {
	return c.principal
}

// Send exposes the outbound queue to the write loop.
func (c *Conn) Send() <-chan []byte {
	return c.send
}

// Done is closed once the connection is shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

type enqueueResult int

const (
	enqueued enqueueResult = iota
	droppedFull
	droppedClosed
	overflowClosed
)

// enqueue never blocks. A full queue drops droppable frames and closes the
// connection for anything else.
func (c *Conn) enqueue(event string, payload []byte) enqueueResult {
	if c.closed() {
		return droppedClosed
	}
	select {
	case c.send <- payload:
		return enqueued
	default:
	}
	if droppable(event) {
		return droppedFull
	}
	c.Close()
	return overflowClosed
}
