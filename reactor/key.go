// Package reactor implements the non-blocking, single-threaded
// readiness loop: one OS-thread-pinned poller per instance, dispatching
// OP_READ/OP_WRITE readiness to the client.Listener registered against
// each connection's Key.
//
// Two backends are provided: this package's default epoll poller
// (epoll_linux.go), and reactor/uringpoller, an alternative io_uring-
// backed backend exposing a completion-style API instead.
package reactor

import (
	"net"
	"sync"

	"go.uber.org/atomic"

	"github.com/y001j/netlet/client"
)

// Key is this package's implementation of client.Key: the registration
// record a Poller hands back from Register, carrying the interest bits,
// the underlying connection, and an attachment slot the endpoint uses
// to neutralize dispatch after end-of-stream (client.NoopListener).
type Key struct {
	fd     int
	conn   net.Conn
	poller *Poller

	ops        atomic.Int32
	valid      atomic.Bool
	listenerMu sync.Mutex
	listener   client.Listener
}

func newKey(fd int, conn net.Conn, poller *Poller, listener client.Listener) *Key {
	k := &Key{fd: fd, conn: conn, poller: poller}
	k.valid.Store(true)
	k.listener = listener
	return k
}

// InterestOps returns the currently registered interest bits.
func (k *Key) InterestOps() int {
	return int(k.ops.Load())
}

// SetInterestOps updates the epoll registration for this key's fd to
// exactly the given interest bits. Safe to call from any goroutine:
// epoll_ctl itself requires no external synchronization, matching
// java.nio.channels.SelectionKey.interestOps being callable off the
// selector thread.
func (k *Key) SetInterestOps(ops int) {
	k.ops.Store(int32(ops))
	if k.valid.Load() {
		_ = k.poller.updateInterest(k, ops)
	}
}

// Wakeup interrupts the poller's blocking wait so an interest-ops
// change made from a producer goroutine takes effect without waiting
// for the next naturally occurring readiness event.
func (k *Key) Wakeup() {
	k.poller.wakeup()
}

// Attach swaps the listener dispatched to on this key's events. Used
// to install client.NoopListener once a connection has reached
// end-of-stream.
func (k *Key) Attach(x any) {
	l, ok := x.(client.Listener)
	if !ok {
		return
	}
	k.listenerMu.Lock()
	k.listener = l
	k.listenerMu.Unlock()
}

func (k *Key) currentListener() client.Listener {
	k.listenerMu.Lock()
	defer k.listenerMu.Unlock()
	return k.listener
}

// Channel returns the key's underlying connection.
func (k *Key) Channel() net.Conn {
	return k.conn
}

// IsValid reports whether the key is still registered with its poller.
func (k *Key) IsValid() bool {
	return k.valid.Load()
}

func (k *Key) invalidate() {
	k.valid.Store(false)
}

// Unregister removes this key from its poller. client.Endpoint calls it
// (via a type assertion, since client.Key doesn't name it directly) once
// Unregistered has torn down the outbound pipeline.
func (k *Key) Unregister() {
	k.poller.unregister(k)
}

var _ client.Key = (*Key)(nil)
