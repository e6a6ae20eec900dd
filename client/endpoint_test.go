package client

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/y001j/netlet/errs"
)

type fakeKey struct {
	conn    net.Conn
	ops     int
	valid   bool
	wakeups int
	attach  any
}

func (k *fakeKey) InterestOps() int       { return k.ops }
func (k *fakeKey) SetInterestOps(ops int) { k.ops = ops }
func (k *fakeKey) Wakeup()                { k.wakeups++ }
func (k *fakeKey) Attach(x any)           { k.attach = x }
func (k *fakeKey) Channel() net.Conn      { return k.conn }
func (k *fakeKey) IsValid() bool          { return k.valid }

type testHandler struct {
	buf          []byte
	reads        [][]byte
	connectedN   int
	disconnected int
}

func newTestHandler() *testHandler { return &testHandler{buf: make([]byte, 64)} }

func (h *testHandler) Buffer() []byte { return h.buf }
func (h *testHandler) Read(n int) {
	h.reads = append(h.reads, append([]byte{}, h.buf[:n]...))
}
func (h *testHandler) Connected()    { h.connectedN++ }
func (h *testHandler) Disconnected() { h.disconnected++ }

func TestSendRejectsAfterUnregister(t *testing.T) {
	ep := NewEndpoint(newTestHandler())
	key := &fakeKey{valid: true}
	ep.Registered(key)
	ep.Unregistered(key)

	ok, err := ep.Send([]byte("x"))
	assert.False(t, ok)
	assert.Equal(t, errs.ErrFatalOwnershipLost, err)
}

func TestSendAssertsWriteInterestOnFirstFrame(t *testing.T) {
	ep := NewEndpoint(newTestHandler())
	key := &fakeKey{valid: true}
	ep.Registered(key)
	ep.Connected()

	ok, err := ep.Send([]byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)

	assert.NotZero(t, key.ops&OpWrite)
	assert.Equal(t, 1, key.wakeups)
}

func TestMaxSendBufferBytesAppliesBackpressure(t *testing.T) {
	ep := NewEndpoint(newTestHandler(), WithMaxSendBufferBytes(5))
	key := &fakeKey{valid: true}
	ep.Registered(key)
	ep.Connected()

	ok, err := ep.Send([]byte("abcde"))
	require.NoError(t, err)
	require.True(t, ok)

	ok2, err2 := ep.Send([]byte("f"))
	assert.False(t, ok2)
	assert.NoError(t, err2)
}

func TestPendingBytesWrapSafeAccounting(t *testing.T) {
	ep := NewEndpoint(newTestHandler())

	ep.sendBufferBytes.Store(10)
	ep.writeBufferBytes.Store(3)
	assert.Equal(t, int64(7), ep.pendingBytes())

	ep.sendBufferBytes.Store(-5)
	ep.writeBufferBytes.Store(3)
	assert.Equal(t, int64(2), ep.pendingBytes())
}

func TestOnWritableFlushesQueuedDataToSocket(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	ep := NewEndpoint(newTestHandler(), WithWriteBufferSize(64))
	key := &fakeKey{conn: clientConn, valid: true}
	ep.Registered(key)
	ep.Connected()

	ok, err := ep.Send([]byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := serverConn.Read(buf)
		received <- string(buf[:n])
	}()

	ep.OnWritable()

	select {
	case got := <-received:
		assert.Equal(t, "hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}

	assert.Zero(t, key.ops&OpWrite, "write interest clears once fully drained")
}

func TestSuspendAndResumeReadAreIdempotent(t *testing.T) {
	ep := NewEndpoint(newTestHandler())
	key := &fakeKey{ops: OpRead | OpWrite, valid: true}
	ep.Registered(key)

	assert.True(t, ep.SuspendReadIfResumed())
	assert.True(t, ep.IsReadSuspended())
	assert.False(t, ep.SuspendReadIfResumed(), "already suspended, nothing to do")

	assert.True(t, ep.ResumeReadIfSuspended())
	assert.False(t, ep.IsReadSuspended())
	assert.False(t, ep.ResumeReadIfSuspended(), "already resumed, nothing to do")
}

func TestCloseOnEOFUnregistersAndAttachesNoopListener(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()

	ep := NewEndpoint(newTestHandler())
	key := &fakeKey{conn: clientConn, valid: true}
	ep.Registered(key)
	ep.Connected()
	serverConn.Close() // makes clientConn.Read return an error

	ep.OnReadable()

	assert.Equal(t, StateUnregistered, ep.State())
	assert.Equal(t, NoopListener, key.attach)

	ok, err := ep.Send([]byte("x"))
	assert.False(t, ok)
	assert.Equal(t, errs.ErrFatalOwnershipLost, err)
}

// brokenConn's Read always fails with a non-EOF error, so OnReadable's
// error path can be exercised without going through the io.EOF branch
// net.Pipe takes when the peer closes.
type brokenConn struct {
	net.Conn
	readErr error
}

func (c *brokenConn) Read([]byte) (int, error) { return 0, c.readErr }
func (c *brokenConn) Close() error             { return nil }

func TestOnReadableCollectsNonEOFErrorsBeforeTearingDown(t *testing.T) {
	readErr := errors.New("some transient read failure")
	ep := NewEndpoint(newTestHandler())
	key := &fakeKey{conn: &brokenConn{readErr: readErr}, valid: true}
	ep.Registered(key)
	ep.Connected()

	ep.OnReadable()

	assert.Equal(t, StateUnregistered, ep.State())
	assert.Equal(t, NoopListener, key.attach)

	env, ok := ep.errCh.Poll()
	require.True(t, ok, "non-EOF read error should be deposited for the producer to observe")
	assert.Equal(t, errs.CollectedReactorError, env.Kind)
	assert.ErrorIs(t, env, readErr)
}

func TestHandlerReadCalledOnInboundData(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	h := newTestHandler()
	ep := NewEndpoint(h)
	key := &fakeKey{conn: clientConn, valid: true}
	ep.Registered(key)
	ep.Connected()

	go serverConn.Write([]byte("hi"))
	ep.OnReadable()

	require.Len(t, h.reads, 1)
	assert.Equal(t, "hi", string(h.reads[0]))
}
