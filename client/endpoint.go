// Package client implements the send-side client endpoint: a
// non-blocking, backpressure-aware write path sitting in front of an
// outbound.Pipeline, driven by reactor readiness callbacks and fed by
// a single producer goroutine calling Send.
package client

import (
	"errors"
	"io"
	"time"

	"go.uber.org/atomic"

	"github.com/y001j/netlet/config"
	"github.com/y001j/netlet/errs"
	"github.com/y001j/netlet/internal/obs"
	"github.com/y001j/netlet/outbound"
)

// State is the lifecycle state of an Endpoint.
type State int32

const (
	StateNew State = iota
	StateRegistered
	StateConnected
	StateDisconnected
	StateUnregistered
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRegistered:
		return "registered"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateUnregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}

// Endpoint is the client-side half of a connection: a Handler plugged
// into a reactor registration through the outbound pipeline. All of
// its exported methods other than Send/SendAt/lifecycle queries are
// meant to be called from the reactor thread that owns its key.
type Endpoint struct {
	handler Handler
	key     Key

	pipeline *outbound.Pipeline
	errCh    *errs.Channel
	staging  *stagingBuffer

	state atomic.Int32

	// sendBufferBytes is producer-owned (incremented by Send); unit is
	// bytes handed to the pipeline so far, never decremented. Read only
	// by pendingBytes, on the producer side.
	sendBufferBytes atomic.Int64
	// writeBufferBytes is the reactor-published count of bytes drained
	// from the pipeline into the staging buffer so far, throttled by
	// writeCountUpdateInterval so
	// the producer's pendingBytes check doesn't pay an atomic store per
	// write. currWriteBufferBytes is the reactor-thread-local running
	// total that gets flushed into writeBufferBytes periodically.
	writeBufferBytes     atomic.Int64
	currWriteBufferBytes int64
	lastWriteUpdate      time.Time

	maxSendBufferBytes       int
	writeCountUpdateInterval time.Duration
}

// NewEndpoint builds an Endpoint around handler, applying opts over the
// process-wide config.Global defaults.
func NewEndpoint(handler Handler, opts ...Option) *Endpoint {
	global := config.FromEnv()

	o := options{
		sendBufferSize:           global.MaxSendBufferSize,
		maxSendBufferBytes:       global.MaxSendBufferBytes,
		writeCountUpdateInterval: global.WriteCountUpdateInterval,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.writeBuffer == nil {
		o.writeBuffer = make([]byte, defaultWriteBufferSize)
	}

	e := &Endpoint{
		handler:                  handler,
		errCh:                    errs.NewChannel(),
		staging:                  newStagingBuffer(o.writeBuffer),
		maxSendBufferBytes:       o.maxSendBufferBytes,
		writeCountUpdateInterval: o.writeCountUpdateInterval,
		lastWriteUpdate:          time.Now(),
	}
	initialCap := config.InitialSendRingCapacity(o.sendBufferSize)
	e.pipeline = outbound.New(initialCap, global.MaxSendBufferSize, &endpointInterest{e})
	return e
}

// endpointInterest adapts an Endpoint to outbound.InterestController.
type endpointInterest struct{ e *Endpoint }

func (i *endpointInterest) AssertWrite() {
	k := i.e.key
	if k == nil || !k.IsValid() {
		return
	}
	k.SetInterestOps(k.InterestOps() | OpWrite)
	k.Wakeup()
}

func (i *endpointInterest) ClearWrite() {
	k := i.e.key
	if k == nil || !k.IsValid() {
		return
	}
	k.SetInterestOps(k.InterestOps() &^ OpWrite)
}

func (e *Endpoint) accountingEnabled() bool {
	return e.maxSendBufferBytes != config.Unlimited
}

// pendingBytes computes sendBufferBytes - writeBufferBytes in a way
// that tolerates either counter wrapping a signed 64-bit value: if
// sendBufferBytes has wrapped negative while writeBufferBytes has not,
// the true pending count is -(sendBufferBytes + writeBufferBytes).
func (e *Endpoint) pendingBytes() int64 {
	sb := e.sendBufferBytes.Load()
	wb := e.writeBufferBytes.Load()
	if sb < 0 && wb >= 0 {
		return -(sb + wb)
	}
	return sb - wb
}

// State reports the endpoint's current lifecycle state.
func (e *Endpoint) State() State {
	return State(e.state.Load())
}

// IsConnected reports whether the endpoint still owns a valid,
// connected registration key.
func (e *Endpoint) IsConnected() bool {
	return e.State() == StateConnected && e.key != nil && e.key.IsValid()
}

// Send enqueues data for transmission. It returns false without error
// when the pipeline is simply applying backpressure (caller should
// retry later); it returns an error when the rejection is fatal, most
// often because the endpoint has already been unregistered.
func (e *Endpoint) Send(data []byte) (bool, error) {
	return e.SendAt(data, 0, len(data))
}

// SendAt enqueues data[offset:offset+length].
func (e *Endpoint) SendAt(data []byte, offset, length int) (bool, error) {
	if e.State() == StateUnregistered {
		return false, errs.ErrFatalOwnershipLost
	}

	if e.accountingEnabled() {
		if int64(e.maxSendBufferBytes)-e.pendingBytes() < int64(length) {
			return false, nil
		}
	}

	s := e.pipeline.AcquireSlice(data, offset, length)
	if !e.pipeline.TryEnqueueFast(s) {
		// A pending reactor-thread error takes priority over growing the
		// pipeline: if the connection already failed, there is no point
		// queueing more data behind a ring nothing will ever drain.
		if env, ok := e.errCh.Poll(); ok {
			return false, env
		}
		if !e.pipeline.Grow(s) {
			return false, nil
		}
	}

	e.sendBufferBytes.Add(int64(length))
	return true, nil
}

// fillThrottled fills the staging buffer from the poll ring, updating
// the producer-visible writeBufferBytes counter only once per
// writeCountUpdateInterval.
func (e *Endpoint) fillThrottled() {
	if e.pipeline.PollRingEmpty() {
		return
	}
	region := e.staging.fillable()
	if len(region) == 0 {
		return
	}
	n := e.pipeline.DrainInto(region)
	e.staging.advanceFill(n)
	if !e.accountingEnabled() {
		return
	}
	e.currWriteBufferBytes += int64(n)
	if now := time.Now(); now.Sub(e.lastWriteUpdate) >= e.writeCountUpdateInterval {
		e.writeBufferBytes.Store(e.currWriteBufferBytes)
		e.lastWriteUpdate = now
	}
}

// fillUnthrottled fills the staging buffer the same way but publishes
// the byte count immediately; used for the refills that happen inside
// a single OnWritable call after the buffer already fully drained once,
// where staleness would make pendingBytes lie to the producer for up to
// a full writeCountUpdateInterval.
func (e *Endpoint) fillUnthrottled() {
	if e.pipeline.PollRingEmpty() {
		return
	}
	n := e.pipeline.DrainInto(e.staging.fillable())
	e.staging.advanceFill(n)
	if e.accountingEnabled() {
		e.currWriteBufferBytes += int64(n)
		e.writeBufferBytes.Store(e.currWriteBufferBytes)
		e.lastWriteUpdate = time.Now()
	}
}

// OnWritable fills the staging buffer from the poll ring, flips it to
// read mode, and flushes to the socket; as long as the buffer and poll
// ring both keep draining fully it refills and keeps flushing within
// the same call, rather than returning to the reactor only to be
// immediately redispatched. It returns once the socket stops accepting
// writes (OP_WRITE stays asserted) or there is genuinely nothing left
// to send.
func (e *Endpoint) OnWritable() {
	for {
		if e.fillAndFlush() {
			return
		}
		if !e.pipeline.RotatePollRing() {
			return
		}
	}
}

// fillAndFlush runs one fill+flush cycle, internally looping while the
// buffer keeps draining completely and the poll ring still has data.
// It returns true if the socket blocked mid-write (the caller should
// stop; OP_WRITE stays asserted), false if both the buffer and the poll
// ring drained and the caller should attempt RotatePollRing.
func (e *Endpoint) fillAndFlush() bool {
	e.fillThrottled()
	e.staging.flip()

	for {
		conn := e.key.Channel()
		for e.staging.remainingRead() > 0 {
			n, err := conn.Write(e.staging.readable())
			if n > 0 {
				e.staging.advanceRead(n)
			}
			if err != nil {
				e.HandleException(err)
				return true
			}
			if e.staging.remainingRead() > 0 {
				e.staging.compact()
				return true
			}
		}

		if e.pipeline.PollRingEmpty() {
			e.staging.clear()
			return false
		}
		e.staging.clear()
		e.fillUnthrottled()
		e.staging.flip()
	}
}

// HandleException is the reactor-thread callback for any I/O error
// encountered while servicing this endpoint (read or write). It never
// panics out of the callback; the error is wrapped and queued for the
// producer to observe on its next Send.
func (e *Endpoint) HandleException(err error) {
	if err == nil {
		return
	}
	obs.L().Sugar().Debugf("collected reactor error: %v", err)
	e.errCh.Offer(errs.Wrap(errs.CollectedReactorError, err))
}

// OnReadable reads available data into the handler's buffer. A plain
// io.EOF tears the connection down silently; any other read error is
// first deposited for the producer to observe via HandleException,
// then torn down the same way.
func (e *Endpoint) OnReadable() {
	buf := e.handler.Buffer()
	n, err := e.key.Channel().Read(buf)
	switch {
	case n > 0:
		e.handler.Read(n)
	case errors.Is(err, io.EOF):
		e.closeOnEOF()
	case err != nil:
		e.HandleException(err)
		e.closeOnEOF()
	default:
		obs.L().Sugar().Debugf("read returned 0 bytes with no error")
	}
}

func (e *Endpoint) closeOnEOF() {
	_ = e.key.Channel().Close()
	e.Disconnected()
	e.Unregistered(e.key)
	e.key.Attach(NoopListener)
}
